package main

import (
	"context"
	"fmt"
	"image"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

const PAIRING_QR_SIZE = 168

// drawPairingScreen shows the authorisation URL as a QR code with instructions
func (p *ggPanel) drawPairingScreen(authURL, redirectURI string) error {
	dc := p.dc
	w := float64(p.width)

	dc.SetHexColor(p.theme.BG)
	dc.Clear()

	p.fastFillRect(0, 0, p.width, HEADER_HEIGHT, parseColor(p.theme.HeaderBG))
	dc.SetFontFace(p.fontTitle)
	dc.SetHexColor(p.theme.HeaderTxt)
	dc.DrawStringAnchored("Link "+APP_NAME, w/2, HEADER_HEIGHT/2, 0.5, 0.5)

	qr, err := qrcode.New(authURL, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("qr code: %w", err)
	}
	qrSize := min(PAIRING_QR_SIZE, p.width-2*SIDE_PAD)
	qrImg := qr.Image(qrSize)
	qrX := (p.width - qrSize) / 2
	qrY := HEADER_HEIGHT + 12
	draw.Draw(p.canvas, image.Rect(qrX, qrY, qrX+qrSize, qrY+qrSize), qrImg, qrImg.Bounds().Min, draw.Src)

	dc.SetFontFace(p.fontSmall)
	dc.SetHexColor(p.theme.Title)
	y := float64(qrY + qrSize + 18)
	msg := "Scan to sign in, then put the refresh token from " + redirectURI + " in the config file and restart."
	for _, line := range wrapText(msg, w-2*SIDE_PAD, p.fontSmall) {
		dc.DrawStringAnchored(line, w/2, y, 0.5, 0.5)
		y += 15
	}

	dc.SetHexColor(p.theme.Dim)
	dc.DrawStringAnchored("Version: "+APP_VERSION, w/2, float64(p.height)-14, 0.5, 0.5)

	p.present()
	return nil
}

// runPairing shows the pairing screen and waits until the process is stopped.
func (app *SpotiDeck) runPairing(ctx context.Context) error {
	authURL := pairingURL(app.Config.Spotify)
	logMsg(fmt.Sprintf("INFO: No refresh token configured, pairing at %s", authURL))

	if err := app.Panel.drawPairingScreen(authURL, app.Config.Spotify.RedirectURI); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
