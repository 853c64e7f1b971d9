package main

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// recordDisplay keeps every frame it is given.
type recordDisplay struct {
	mu     sync.Mutex
	frames []*image.RGBA
	closed bool
}

func (d *recordDisplay) Present(img *image.RGBA) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := image.NewRGBA(img.Rect)
	copy(cp.Pix, img.Pix)
	d.frames = append(d.frames, cp)
	return nil
}

func (d *recordDisplay) Close() error {
	d.closed = true
	return nil
}

func (d *recordDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

func newTestPanel() (*ggPanel, *frameBuffer, chan struct{}) {
	fb := newFrameBuffer(DEFAULT_SCREEN_WIDTH, DEFAULT_SCREEN_HEIGHT)
	refresh := make(chan struct{}, 1)
	return newGGPanel(DEFAULT_SCREEN_WIDTH, DEFAULT_SCREEN_HEIGHT, ThemeDark, fb, refresh), fb, refresh
}

func TestPanelFlushOnlyWhenDirty(t *testing.T) {
	p, _, refresh := newTestPanel()

	p.Flush()
	select {
	case <-refresh:
	default:
		t.Fatal("first flush did not request a refresh")
	}

	p.Flush()
	select {
	case <-refresh:
		t.Fatal("clean flush requested a refresh")
	default:
	}

	p.SetTitle("Same")
	p.Flush()
	<-refresh
	p.SetTitle("Same")
	if p.dirty {
		t.Error("setting an unchanged title marked the panel dirty")
	}
}

func TestPanelDrawsArt(t *testing.T) {
	p, fb, _ := newTestPanel()

	// Solid green, big-endian RGB565
	pix := make([]byte, ART_BUF_BYTES)
	for i := 0; i < len(pix); i += 2 {
		pix[i], pix[i+1] = 0x07, 0xE0
	}
	p.SetImage(ImageDescriptor{Width: ART_WIDTH, Height: ART_HEIGHT, Format: PixelFormatRGB565Swapped, Data: pix, Length: len(pix)}, ART_SCALE)

	// The panel owns a copy
	pix[0], pix[1] = 0, 0
	p.Flush()

	artX := (DEFAULT_SCREEN_WIDTH - ART_WIDTH*ART_SCALE) / 2
	fb.mu.Lock()
	got := fb.img.RGBAAt(artX, ART_Y)
	last := fb.img.RGBAAt(artX+ART_WIDTH*ART_SCALE-1, ART_Y+ART_HEIGHT*ART_SCALE-1)
	fb.mu.Unlock()
	if got != (color.RGBA{0, 0xFF, 0, 0xFF}) || last != got {
		t.Errorf("art pixels = %v, %v, want green", got, last)
	}
}

func TestPanelRejectsShortImage(t *testing.T) {
	p, _, _ := newTestPanel()
	p.SetImage(ImageDescriptor{Width: ART_WIDTH, Height: ART_HEIGHT, Data: make([]byte, 10), Length: 10}, 1)
	if p.state.art != nil {
		t.Error("short descriptor accepted")
	}
}

func TestPanelProgressClamped(t *testing.T) {
	p, _, _ := newTestPanel()
	p.SetProgress(150)
	if p.state.progress != 100 {
		t.Errorf("progress = %d", p.state.progress)
	}
	p.SetProgress(-5)
	if p.state.progress != 0 {
		t.Errorf("progress = %d", p.state.progress)
	}
}

func TestTruncateText(t *testing.T) {
	p, _, _ := newTestPanel()
	face := p.fontSmall

	if got := p.truncateText("short", 200, face); got != "short" {
		t.Errorf("short text = %q", got)
	}
	long := "A very long song title that never fits on a small panel"
	got := p.truncateText(long, 100, face)
	if measureString(got, face) > 100 {
		t.Errorf("truncated %q is still %v wide", got, measureString(got, face))
	}
	if len(got) < 4 || got[len(got)-3:] != "..." {
		t.Errorf("truncated text %q has no ellipsis", got)
	}
	if got := p.truncateText("Title", 1, face); got != "..." {
		t.Errorf("nothing fits = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 60, basicFace())
	if len(lines) < 2 {
		t.Fatalf("lines = %q, want wrapping", lines)
	}
	for _, l := range lines {
		if measureString(l, basicFace()) > 60 {
			t.Errorf("line %q too wide", l)
		}
	}
	if got := wrapText("   ", 60, basicFace()); len(got) != 0 {
		t.Errorf("blank text wrapped to %q", got)
	}
}

func basicFace() font.Face {
	return basicfont.Face7x13
}

func TestParseColor(t *testing.T) {
	if got := parseColor("#1DB954"); got != (color.RGBA{0x1D, 0xB9, 0x54, 0xFF}) {
		t.Errorf("parseColor = %v", got)
	}
	if got := parseColor("bogus"); got != (color.RGBA{0, 0, 0, 0xFF}) {
		t.Errorf("parseColor(bogus) = %v", got)
	}
}

func TestThemeByName(t *testing.T) {
	if got := themeByName("nord"); got.Name != "Nord" {
		t.Errorf("themeByName(nord) = %s", got.Name)
	}
	if got := themeByName("neon"); got.Name != ThemeDark.Name {
		t.Errorf("unknown theme = %s, want Dark", got.Name)
	}
	for _, th := range AllThemes() {
		if parseColor(th.BG) == parseColor(th.Title) {
			t.Errorf("theme %s has unreadable title colour", th.Name)
		}
	}
}

func TestSetThemePersists(t *testing.T) {
	p, _, _ := newTestPanel()
	app := &SpotiDeck{Panel: p, Settings: &Settings{path: filepath.Join(t.TempDir(), "settings.json")}}

	app.setTheme(ThemeGruvbox)
	if p.theme.Name != "Gruvbox" {
		t.Errorf("panel theme = %s", p.theme.Name)
	}
	s, err := loadSettings(app.Settings.path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Theme != "Gruvbox" {
		t.Errorf("saved theme = %q", s.Theme)
	}
}

func TestScreensRender(t *testing.T) {
	p, fb, refresh := newTestPanel()

	p.drawSplash("Loading...")
	<-refresh
	// Logo body, between the art window and the buttons
	fb.mu.Lock()
	body := fb.img.RGBAAt(DEFAULT_SCREEN_WIDTH/2, DEFAULT_SCREEN_HEIGHT/2-50+24)
	fb.mu.Unlock()
	if body != parseColor(ThemeDark.Title) {
		t.Errorf("splash logo body = %v", body)
	}

	if err := p.drawPairingScreen("https://accounts.spotify.com/authorize?client_id=abc", "http://localhost:8888/callback"); err != nil {
		t.Fatalf("drawPairingScreen: %v", err)
	}
	<-refresh

	p.drawFault("display init failed")
	<-refresh
	fb.mu.Lock()
	corner := fb.img.RGBAAt(1, 1)
	fb.mu.Unlock()
	if corner != parseColor(FAULT_BG) {
		t.Errorf("fault screen corner = %v", corner)
	}
}

func TestRunPresenter(t *testing.T) {
	fb := newFrameBuffer(4, 4)
	disp := &recordDisplay{}
	refresh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runPresenter(ctx, refresh, fb, disp) }()

	triggerRefresh(refresh)
	triggerRefresh(refresh)
	triggerRefresh(nil)

	deadline := time.Now().Add(time.Second)
	for disp.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no frame presented")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("runPresenter = %v", err)
	}
}

func TestPNGDisplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	d, err := openDisplay("png:"+path, 8, 8)
	if err != nil {
		t.Fatal(err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(3, 3, color.RGBA{0xFF, 0, 0, 0xFF})
	if err := d.Present(img); err != nil {
		t.Fatalf("Present: %v", err)
	}

	loaded, err := gg.LoadPNG(path)
	if err != nil {
		t.Fatalf("LoadPNG: %v", err)
	}
	if r, _, _, _ := loaded.At(3, 3).RGBA(); r>>8 != 0xFF {
		t.Errorf("pixel red = %#x", r>>8)
	}
}

func TestFBDisplayWritesRGB565(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fb0")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	d, err := openDisplay(path, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{0xFF, 0xFF, 0xFF, 0xFF})
	img.Set(1, 0, color.RGBA{0, 0, 0xFF, 0xFF})
	if err := d.Present(img); err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(path)
	want := []byte{0xFF, 0xFF, 0x1F, 0x00}
	if string(got) != string(want) {
		t.Errorf("framebuffer bytes = % x, want % x", got, want)
	}
}

func TestOpenDisplayErrors(t *testing.T) {
	if _, err := openDisplay("/nonexistent/fb9", 8, 8); err == nil {
		t.Error("missing framebuffer opened")
	}
	d, err := openDisplay("none", 8, 8)
	if err != nil || d.Present(image.NewRGBA(image.Rect(0, 0, 1, 1))) != nil {
		t.Errorf("null display: %v", err)
	}
}
