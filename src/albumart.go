package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/image/draw"
)

// JPEG SOI marker
const (
	JPEG_MAGIC_0 = 0xFF
	JPEG_MAGIC_1 = 0xD8
)

const ART_READ_BACKOFF = 10 * time.Millisecond

// pixelAllocator hands out pixel and scratch buffers from a fixed byte budget.
// It stands in for the DMA-capable heap of the panel driver.
type pixelAllocator struct {
	mu     sync.Mutex
	budget int
	live   int
}

func newPixelAllocator(budget int) *pixelAllocator {
	return &pixelAllocator{budget: budget}
}

// defaultArtBudget fits one max-size scratch buffer and three canvases.
func defaultArtBudget(maxBytes int) int {
	return maxBytes + 3*ART_BUF_BYTES
}

// Alloc returns n zeroed bytes or ErrAllocationFailure.
func (a *pixelAllocator) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrAllocationFailure, n)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live+n > a.budget {
		return nil, fmt.Errorf("%w: %d bytes (%d/%d in use)", ErrAllocationFailure, n, a.live, a.budget)
	}
	a.live += n
	return make([]byte, n), nil
}

func (a *pixelAllocator) Free(b []byte) {
	if b == nil {
		return
	}
	a.mu.Lock()
	a.live -= len(b)
	a.mu.Unlock()
}

// Live reports the bytes currently handed out.
func (a *pixelAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// AlbumArt owns one decoded 64x64 RGB565 canvas. Ownership moves between the
// poller and the state channel; only the current owner may Release it.
type AlbumArt struct {
	pix    []byte
	width  int
	height int
	url    string
	alloc  *pixelAllocator
}

func (a *AlbumArt) Descriptor() ImageDescriptor {
	return ImageDescriptor{
		Width:  a.width,
		Height: a.height,
		Format: PixelFormatRGB565Swapped,
		Data:   a.pix,
		Length: len(a.pix),
	}
}

// URL is the address the art was decoded from.
func (a *AlbumArt) URL() string {
	if a == nil {
		return ""
	}
	return a.url
}

// Release returns the pixels to the allocator. Safe to call more than once.
func (a *AlbumArt) Release() {
	if a == nil || a.pix == nil {
		return
	}
	a.alloc.Free(a.pix)
	a.pix = nil
}

type artFetcher struct {
	client        *http.Client
	alloc         *pixelAllocator
	maxBytes      int
	readRetries   int
	allowInsecure bool

	// decodeHook runs between the body read and the decode. Tests use it to
	// observe the channel while a decode is in flight.
	decodeHook func()
}

func newArtFetcher(cfg *Config, alloc *pixelAllocator) *artFetcher {
	client := &http.Client{Timeout: cfg.HTTPTimeout()}
	if cfg.AllowInsecureArt {
		logMsg("WARNING: allow_insecure_art is set; album art accepts http:// and unverified certificates")
		// The RTC sits at the epoch until NTP syncs, which fails every cert check.
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &artFetcher{
		client:        client,
		alloc:         alloc,
		maxBytes:      lo.Clamp(cfg.MaxArtBytes, 1, MAX_ART_BYTES),
		readRetries:   ART_READ_RETRIES,
		allowInsecure: cfg.AllowInsecureArt,
	}
}

func (f *artFetcher) validateURL(url string) error {
	if url == "" || url == ArtURLUnavailable {
		return ErrInvalidURL
	}
	if strings.HasPrefix(url, ART_SCHEME) {
		return nil
	}
	if f.allowInsecure && strings.HasPrefix(url, "http://") {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidURL, url)
}

// fetchAndDecode downloads a JPEG and decodes it into a fresh 64x64 canvas.
// Every failure path frees what it allocated and leaves published state alone.
func (f *artFetcher) fetchAndDecode(ctx context.Context, url string) (*AlbumArt, error) {
	if err := f.validateURL(url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	// Unknown length (-1) is rejected along with empty and oversized bodies
	length := resp.ContentLength
	if length <= 0 || length > int64(f.maxBytes) {
		return nil, fmt.Errorf("%w: content length %d (max %d)", ErrOversizedPayload, length, f.maxBytes)
	}

	scratch, err := f.alloc.Alloc(int(length))
	if err != nil {
		return nil, err
	}
	defer f.alloc.Free(scratch)

	if err := f.readFull(resp.Body, scratch); err != nil {
		return nil, err
	}
	logMsg(fmt.Sprintf("[ART] Downloaded %d bytes", len(scratch)))

	if len(scratch) < 2 || scratch[0] != JPEG_MAGIC_0 || scratch[1] != JPEG_MAGIC_1 {
		return nil, fmt.Errorf("%w: bad magic bytes", ErrCorruptPayload)
	}

	dst, err := f.alloc.Alloc(ART_BUF_BYTES)
	if err != nil {
		return nil, err
	}

	if f.decodeHook != nil {
		f.decodeHook()
	}

	if err := decodeJPEGInto(scratch, dst); err != nil {
		f.alloc.Free(dst)
		return nil, err
	}

	return &AlbumArt{
		pix:    dst,
		width:  ART_WIDTH,
		height: ART_HEIGHT,
		url:    url,
		alloc:  f.alloc,
	}, nil
}

// readFull fills buf from r. Empty reads are retried a bounded number of times.
func (f *artFetcher) readFull(r io.Reader, buf []byte) error {
	read := 0
	retries := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if read == len(buf) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: body ended after %d of %d bytes", ErrTransport, read, len(buf))
			}
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if n == 0 {
			retries++
			if retries > f.readRetries {
				return fmt.Errorf("%w: stalled after %d of %d bytes", ErrTransport, read, len(buf))
			}
			time.Sleep(ART_READ_BACKOFF)
		}
	}
	return nil
}

// decodeJPEGInto draws the image 1:1 at the origin of a 64x64 canvas and packs
// it as big-endian RGB565. Pixels past the canvas are dropped; a smaller image
// leaves the remainder black.
func decodeJPEGInto(data []byte, dst []byte) error {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, ART_WIDTH, ART_HEIGHT))
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)

	packRGB565BE(canvas, dst)
	return nil
}

func packRGB565BE(src *image.RGBA, dst []byte) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		out := dst[y*w*2:]
		for x := 0; x < w; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			c := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
			out[x*2] = byte(c >> 8)
			out[x*2+1] = byte(c)
		}
	}
}

// unpackRGB565 expands packed pixels into an RGBA image.
func unpackRGB565(desc ImageDescriptor, dst *image.RGBA) {
	for y := 0; y < desc.Height; y++ {
		for x := 0; x < desc.Width; x++ {
			i := (y*desc.Width + x) * 2
			if i+1 >= desc.Length {
				return
			}
			var c uint16
			if desc.Format == PixelFormatRGB565Swapped {
				c = uint16(desc.Data[i])<<8 | uint16(desc.Data[i+1])
			} else {
				c = uint16(desc.Data[i+1])<<8 | uint16(desc.Data[i])
			}
			r := byte(c>>11) & 0x1F
			g := byte(c>>5) & 0x3F
			b := byte(c) & 0x1F
			o := dst.PixOffset(dst.Rect.Min.X+x, dst.Rect.Min.Y+y)
			dst.Pix[o] = r<<3 | r>>2
			dst.Pix[o+1] = g<<2 | g>>4
			dst.Pix[o+2] = b<<3 | b>>2
			dst.Pix[o+3] = 0xFF
		}
	}
}
