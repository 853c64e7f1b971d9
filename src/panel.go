package main

import (
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/samber/lo"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

// Panel is the presentation collaborator driven by the frame loop.
type Panel interface {
	SetArtist(text string)
	SetTitle(text string)
	SetDevice(text string)
	SetCurrentTime(text string)
	SetEndTime(text string)
	SetClock(timeStr, dateStr string)
	SetProgress(percent int)
	SetImage(desc ImageDescriptor, scale int)
	Flush()
}

// nowPlaying is everything the screen shows
type nowPlaying struct {
	artist   string
	title    string
	device   string
	current  string
	end      string
	clock    string
	date     string
	progress int
	art      *image.RGBA
	artScale int
}

// ggPanel renders the now-playing screen with gg into its own canvas and
// hands finished frames to the presenter.
type ggPanel struct {
	mu sync.Mutex

	canvas *image.RGBA
	dc     *gg.Context
	width  int
	height int
	theme  Theme

	fontTitle  font.Face
	fontArtist font.Face
	fontSmall  font.Face

	measureCache map[string]float64

	state nowPlaying
	dirty bool

	frame   *frameBuffer
	refresh chan struct{}
}

func newGGPanel(width, height int, theme Theme, frame *frameBuffer, refresh chan struct{}) *ggPanel {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	p := &ggPanel{
		canvas:       canvas,
		dc:           gg.NewContextForRGBA(canvas),
		width:        width,
		height:       height,
		theme:        theme,
		fontTitle:    inconsolata.Bold8x16,
		fontArtist:   inconsolata.Regular8x16,
		fontSmall:    basicfont.Face7x13,
		measureCache: make(map[string]float64),
		frame:        frame,
		refresh:      refresh,
		dirty:        true,
	}
	p.state.current = formatTime(0)
	p.state.end = formatTime(0)
	return p
}

func (p *ggPanel) set(field *string, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if *field != text {
		*field = text
		p.dirty = true
	}
}

func (p *ggPanel) SetArtist(text string)      { p.set(&p.state.artist, text) }
func (p *ggPanel) SetTitle(text string)       { p.set(&p.state.title, text) }
func (p *ggPanel) SetDevice(text string)      { p.set(&p.state.device, text) }
func (p *ggPanel) SetCurrentTime(text string) { p.set(&p.state.current, text) }
func (p *ggPanel) SetEndTime(text string)     { p.set(&p.state.end, text) }

func (p *ggPanel) SetClock(timeStr, dateStr string) {
	p.set(&p.state.clock, timeStr)
	p.set(&p.state.date, dateStr)
}

func (p *ggPanel) SetProgress(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	percent = lo.Clamp(percent, 0, 100)
	if p.state.progress != percent {
		p.state.progress = percent
		p.dirty = true
	}
}

// SetImage copies the pixels; the caller may reuse or release desc.Data.
func (p *ggPanel) SetImage(desc ImageDescriptor, scale int) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.Length < desc.Width*desc.Height*2 {
		return
	}
	if scale < 1 {
		scale = 1
	}
	art := image.NewRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	unpackRGB565(desc, art)

	p.mu.Lock()
	p.state.art = art
	p.state.artScale = scale
	p.dirty = true
	p.mu.Unlock()
}

func (p *ggPanel) setTheme(theme Theme) {
	p.mu.Lock()
	p.theme = theme
	p.dirty = true
	p.mu.Unlock()
}

// Flush redraws the whole screen if anything changed since the last flush.
func (p *ggPanel) Flush() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	p.dirty = false
	state := p.state
	p.mu.Unlock()

	p.drawNowPlaying(state)
	p.present()
}

func (p *ggPanel) present() {
	if p.frame != nil {
		p.frame.store(p.canvas)
	}
	triggerRefresh(p.refresh)
}

func (p *ggPanel) drawNowPlaying(s nowPlaying) {
	dc := p.dc
	w := float64(p.width)

	dc.SetHexColor(p.theme.BG)
	dc.Clear()

	// Header: device on the left, clock on the right
	p.fastFillRect(0, 0, p.width, HEADER_HEIGHT, parseColor(p.theme.HeaderBG))
	dc.SetFontFace(p.fontSmall)
	dc.SetHexColor(p.theme.HeaderTxt)
	clockW := p.measureText(s.clock, p.fontSmall)
	device := p.truncateText(s.device, w-clockW-3*SIDE_PAD, p.fontSmall)
	dc.DrawStringAnchored(device, SIDE_PAD, HEADER_HEIGHT/2, 0, 0.5)
	dc.DrawStringAnchored(s.clock, w-SIDE_PAD, HEADER_HEIGHT/2, 1, 0.5)

	// Album art, scaled nearest-neighbour and centred
	artSize := ART_WIDTH * ART_SCALE
	if s.art != nil {
		artSize = s.art.Rect.Dx() * s.artScale
	}
	artX := (p.width - artSize) / 2
	p.fastFillRect(artX-1, ART_Y-1, artSize+2, artSize+2, parseColor(p.theme.ArtBorder))
	if s.art != nil {
		dst := image.Rect(artX, ART_Y, artX+artSize, ART_Y+s.art.Rect.Dy()*s.artScale)
		draw.NearestNeighbor.Scale(p.canvas, dst, s.art, s.art.Bounds(), draw.Src, nil)
	} else {
		p.fastFillRect(artX, ART_Y, artSize, artSize, parseColor(p.theme.ProgBG))
	}

	// Title and artist
	textY := float64(ART_Y + artSize + 24)
	dc.SetFontFace(p.fontTitle)
	dc.SetHexColor(p.theme.Title)
	dc.DrawStringAnchored(p.truncateText(s.title, w-2*SIDE_PAD, p.fontTitle), w/2, textY, 0.5, 0.5)

	dc.SetFontFace(p.fontArtist)
	dc.SetHexColor(p.theme.Artist)
	dc.DrawStringAnchored(p.truncateText(s.artist, w-2*SIDE_PAD, p.fontArtist), w/2, textY+22, 0.5, 0.5)

	p.drawProgressBar(SIDE_PAD, PROGRESS_BAR_Y, p.width-2*SIDE_PAD, s.progress, s.current, s.end)

	// Date in the footer
	dc.SetFontFace(p.fontSmall)
	dc.SetHexColor(p.theme.Dim)
	dc.DrawStringAnchored(s.date, w/2, float64(p.height)-14, 0.5, 0.5)
}

// drawProgressBar draws the bar with direct pixel fills and the time labels above it
func (p *ggPanel) drawProgressBar(x, y, width, percent int, current, end string) {
	p.fastFillRect(x, y, width, PROGRESS_BAR_H, parseColor(p.theme.ProgBG))

	filledWidth := width * percent / 100
	if filledWidth > 0 {
		p.fastFillRect(x, y, filledWidth, PROGRESS_BAR_H, parseColor(p.theme.Progress))
	}

	dc := p.dc
	dc.SetFontFace(p.fontSmall)
	dc.SetHexColor(p.theme.Dim)
	dc.DrawStringAnchored(current, float64(x), float64(y)-4, 0, 0)
	dc.DrawStringAnchored(end, float64(x+width), float64(y)-4, 1, 0)
}

// drawFault paints a full-screen fault message. Used when startup fails.
func (p *ggPanel) drawFault(reason string) {
	dc := p.dc
	dc.SetHexColor(FAULT_BG)
	dc.Clear()

	dc.SetFontFace(p.fontTitle)
	dc.SetHexColor(FAULT_TXT)
	dc.DrawStringAnchored("FAULT", float64(p.width)/2, 60, 0.5, 0.5)

	dc.SetFontFace(p.fontSmall)
	y := 100.0
	for _, line := range wrapText(reason, float64(p.width-2*SIDE_PAD), p.fontSmall) {
		dc.DrawStringAnchored(line, float64(p.width)/2, y, 0.5, 0.5)
		y += 16
	}
	dc.DrawStringAnchored("Device halted", float64(p.width)/2, float64(p.height)-24, 0.5, 0.5)

	p.present()
}

// fastFillRect fills a rectangle directly in the canvas, clipped to its bounds
func (p *ggPanel) fastFillRect(x, y, w, h int, c color.RGBA) {
	fb := p.canvas
	rect := image.Rect(x, y, x+w, y+h).Intersect(fb.Rect)
	if rect.Empty() {
		return
	}
	for row := rect.Min.Y; row < rect.Max.Y; row++ {
		off := fb.PixOffset(rect.Min.X, row)
		for col := rect.Min.X; col < rect.Max.X; col++ {
			fb.Pix[off] = c.R
			fb.Pix[off+1] = c.G
			fb.Pix[off+2] = c.B
			fb.Pix[off+3] = c.A
			off += 4
		}
	}
}

// measureText measures text width with caching, keyed by text and face
func (p *ggPanel) measureText(text string, face font.Face) float64 {
	key := text + "|" + p.fontID(face)
	if w, ok := p.measureCache[key]; ok {
		return w
	}
	w := measureString(text, face)
	if len(p.measureCache) > 512 {
		clear(p.measureCache)
	}
	p.measureCache[key] = w
	return w
}

func (p *ggPanel) fontID(face font.Face) string {
	switch face {
	case p.fontTitle:
		return "T"
	case p.fontArtist:
		return "A"
	case p.fontSmall:
		return "S"
	}
	return "X"
}

// truncateText truncates text with "..." if it exceeds maxWidth.
// Binary search over rune boundaries.
func (p *ggPanel) truncateText(text string, maxWidth float64, face font.Face) string {
	if p.measureText(text, face) <= maxWidth {
		return text
	}

	runes := []rune(text)
	left, right := 0, len(runes)
	bestFit := 0
	for left <= right {
		mid := (left + right) / 2
		if mid == 0 {
			left = 1
			continue
		}
		if p.measureText(string(runes[:mid])+"...", face) <= maxWidth {
			bestFit = mid
			left = mid + 1
		} else {
			right = mid - 1
		}
	}

	if bestFit == 0 {
		return "..."
	}
	return string(runes[:bestFit]) + "..."
}

// measureString measures the width of a string with the given font
func measureString(s string, face font.Face) float64 {
	width := fixed.Int26_6(0)
	prevRune := rune(-1)
	for _, r := range s {
		if prevRune >= 0 {
			width += face.Kern(prevRune, r)
		}
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			continue
		}
		width += adv
		prevRune = r
	}
	return float64(width) / 64.0
}

// wrapText breaks text into lines that fit within maxWidth
func wrapText(text string, maxWidth float64, face font.Face) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	var lines []string
	currentLine := ""
	for _, word := range words {
		test := currentLine
		if test != "" {
			test += " "
		}
		test += word

		if measureString(test, face) <= maxWidth {
			currentLine = test
		} else {
			if currentLine != "" {
				lines = append(lines, currentLine)
			}
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}
	return lines
}

// parseHexColor converts "#RRGGBB" to RGBA bytes
func parseHexColor(hex string) (r, g, b, a uint8) {
	if len(hex) == 7 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 0, 0, 0, 255
	}
	rv, _ := strconv.ParseUint(hex[0:2], 16, 8)
	gv, _ := strconv.ParseUint(hex[2:4], 16, 8)
	bv, _ := strconv.ParseUint(hex[4:6], 16, 8)
	return uint8(rv), uint8(gv), uint8(bv), 255
}

func parseColor(hex string) color.RGBA {
	r, g, b, a := parseHexColor(hex)
	return color.RGBA{r, g, b, a}
}
