package main

// Logo artwork is drawn on a 200x200 grid and scaled to fit
const (
	LOGO_SIZE  = 200.0
	LOGO_SCALE = 0.6
)

// drawLogo draws a small deck: a rounded body, an art window and a
// transport row with a rotary knob. x, y is the centre.
func (p *ggPanel) drawLogo(x, y, scale float64) {
	dc := p.dc
	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)
	dc.Scale(scale, scale)
	dc.Translate(-LOGO_SIZE/2, -LOGO_SIZE/2)

	// Body
	dc.DrawRoundedRectangle(0, 0, LOGO_SIZE, LOGO_SIZE, 28)
	dc.SetHexColor(p.theme.Title)
	dc.Fill()

	// Art window
	dc.DrawRoundedRectangle(20, 20, 104, 104, 12)
	dc.SetHexColor(p.theme.BG)
	dc.Fill()

	// Play triangle inside the window
	dc.SetHexColor(p.theme.Accent)
	dc.MoveTo(52, 44)
	dc.LineTo(96, 72)
	dc.LineTo(52, 100)
	dc.ClosePath()
	dc.Fill()

	// Rotary knob
	dc.DrawCircle(162, 72, 24)
	dc.SetHexColor(p.theme.BG)
	dc.Fill()
	dc.DrawCircle(162, 56, 5)
	dc.SetHexColor(p.theme.Accent)
	dc.Fill()

	// Transport buttons
	dc.SetHexColor(p.theme.BG)
	for i := 0; i < 4; i++ {
		dc.DrawRoundedRectangle(20+float64(i)*42, 148, 34, 30, 6)
		dc.Fill()
	}
}

// drawSplash shows the logo and a loading line until the first frame is flushed
func (p *ggPanel) drawSplash(status string) {
	dc := p.dc
	w := float64(p.width)
	h := float64(p.height)

	dc.SetHexColor(p.theme.BG)
	dc.Clear()

	p.drawLogo(w/2, h/2-50, LOGO_SCALE)

	dc.SetFontFace(p.fontTitle)
	dc.SetHexColor(p.theme.HeaderTxt)
	dc.DrawStringAnchored(APP_NAME, w/2, h/2+80, 0.5, 0.5)

	dc.SetFontFace(p.fontSmall)
	dc.SetHexColor(p.theme.Dim)
	dc.DrawStringAnchored(p.truncateText(status, w-2*SIDE_PAD, p.fontSmall), w/2, h/2+108, 0.5, 0.5)
	dc.DrawStringAnchored("Version: "+appVersion(), w/2, h-14, 0.5, 0.5)

	p.present()
}
