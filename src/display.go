package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fogleman/gg"
)

// Display presents a finished frame on the physical panel.
type Display interface {
	Present(img *image.RGBA) error
	Close() error
}

// frameBuffer is the last finished frame, shared by the panel and the presenter.
type frameBuffer struct {
	mu  sync.Mutex
	img *image.RGBA
}

func newFrameBuffer(width, height int) *frameBuffer {
	return &frameBuffer{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (f *frameBuffer) store(src *image.RGBA) {
	f.mu.Lock()
	copy(f.img.Pix, src.Pix)
	f.mu.Unlock()
}

func (f *frameBuffer) present(d Display) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return d.Present(f.img)
}

// triggerRefresh signals the presenter goroutine to present the framebuffer.
// Non-blocking: if a refresh is already pending, this is a no-op.
func triggerRefresh(refresh chan struct{}) {
	if refresh == nil {
		return
	}
	select {
	case refresh <- struct{}{}:
	default:
	}
}

// runPresenter pushes a frame to the display for every refresh signal.
func runPresenter(ctx context.Context, refresh <-chan struct{}, fb *frameBuffer, disp Display) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh:
			if err := fb.present(disp); err != nil {
				logMsg(fmt.Sprintf("ERROR: Present frame: %v", err))
			}
		}
	}
}

// openDisplay picks a backend from the device string: "none", "png:<path>",
// or a Linux framebuffer device path.
func openDisplay(device string, width, height int) (Display, error) {
	switch {
	case device == "" || device == "none":
		return nullDisplay{}, nil
	case strings.HasPrefix(device, "png:"):
		return &pngDisplay{path: strings.TrimPrefix(device, "png:")}, nil
	}
	return openFBDisplay(device, width, height)
}

// fbDisplay writes RGB565 little-endian pixels to a Linux fbdev from offset 0.
type fbDisplay struct {
	f      *os.File
	buf    []byte
	width  int
	height int
}

func openFBDisplay(path string, width, height int) (*fbDisplay, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer %s: %w", path, err)
	}
	logMsg(fmt.Sprintf("INFO: Framebuffer %s opened at %dx%d", path, width, height))
	return &fbDisplay{
		f:      f,
		buf:    make([]byte, width*height*2),
		width:  width,
		height: height,
	}, nil
}

func (d *fbDisplay) Present(img *image.RGBA) error {
	w := min(d.width, img.Rect.Dx())
	h := min(d.height, img.Rect.Dy())
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := d.buf[y*d.width*2:]
		for x := 0; x < w; x++ {
			r, g, b := src[x*4], src[x*4+1], src[x*4+2]
			c := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
			dst[x*2] = byte(c)
			dst[x*2+1] = byte(c >> 8)
		}
	}
	_, err := d.f.WriteAt(d.buf, 0)
	return err
}

func (d *fbDisplay) Close() error {
	return d.f.Close()
}

// pngDisplay writes each frame as a PNG snapshot, replacing the file atomically.
type pngDisplay struct {
	path string
}

func (d *pngDisplay) Present(img *image.RGBA) error {
	tmp := filepath.Join(filepath.Dir(d.path), "."+filepath.Base(d.path)+".tmp.png")
	if err := gg.SavePNG(tmp, img); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}

func (d *pngDisplay) Close() error { return nil }

type nullDisplay struct{}

func (nullDisplay) Present(*image.RGBA) error { return nil }
func (nullDisplay) Close() error              { return nil }
