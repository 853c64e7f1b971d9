package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func encodeTestJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// newArtServer serves body over TLS with an explicit Content-Length.
func newArtServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(srv *httptest.Server, alloc *pixelAllocator) *artFetcher {
	return &artFetcher{
		client:      srv.Client(),
		alloc:       alloc,
		maxBytes:    MAX_ART_BYTES,
		readRetries: ART_READ_RETRIES,
	}
}

func rgb565At(art *AlbumArt, x, y int) uint16 {
	i := (y*art.width + x) * 2
	return uint16(art.pix[i])<<8 | uint16(art.pix[i+1])
}

func TestFetchAndDecode(t *testing.T) {
	srv := newArtServer(t, encodeTestJPEG(t, ART_WIDTH, ART_HEIGHT, color.RGBA{255, 0, 0, 255}))
	alloc := newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))
	f := newTestFetcher(srv, alloc)

	art, err := f.fetchAndDecode(context.Background(), srv.URL+"/cover.jpg")
	if err != nil {
		t.Fatalf("fetchAndDecode: %v", err)
	}
	defer art.Release()

	if art.width != ART_WIDTH || art.height != ART_HEIGHT || len(art.pix) != ART_BUF_BYTES {
		t.Fatalf("art is %dx%d with %d bytes", art.width, art.height, len(art.pix))
	}
	c := rgb565At(art, 10, 10)
	if r, g, b := c>>11, (c>>5)&0x3F, c&0x1F; r < 30 || g > 2 || b > 2 {
		t.Errorf("pixel = r%d g%d b%d, want red", r, g, b)
	}
	if got := alloc.Live(); got != ART_BUF_BYTES {
		t.Errorf("live bytes = %d, want only the canvas (%d)", got, ART_BUF_BYTES)
	}
	if art.URL() != srv.URL+"/cover.jpg" {
		t.Errorf("url = %q", art.URL())
	}
}

func TestFetchAndDecodeSmallImageLeavesBlackBorder(t *testing.T) {
	srv := newArtServer(t, encodeTestJPEG(t, 32, 32, color.White))
	alloc := newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))

	art, err := newTestFetcher(srv, alloc).fetchAndDecode(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchAndDecode: %v", err)
	}
	defer art.Release()

	if c := rgb565At(art, 5, 5); c < 0xF000 {
		t.Errorf("inside pixel = %#04x, want white", c)
	}
	if c := rgb565At(art, 48, 48); c != 0 {
		t.Errorf("outside pixel = %#04x, want black", c)
	}
}

func TestFetchAndDecodeRejectsInvalidURL(t *testing.T) {
	alloc := newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))
	f := &artFetcher{client: http.DefaultClient, alloc: alloc, maxBytes: MAX_ART_BYTES}

	for _, url := range []string{"", ArtURLUnavailable, "http://i.scdn.co/image/abc", "ftp://x/y.jpg"} {
		if _, err := f.fetchAndDecode(context.Background(), url); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("fetchAndDecode(%q) error = %v, want ErrInvalidURL", url, err)
		}
	}

	f.allowInsecure = true
	if err := f.validateURL("http://i.scdn.co/image/abc"); err != nil {
		t.Errorf("plain http rejected with allowInsecure: %v", err)
	}
}

func TestFetchAndDecodeRejectsOversizedBeforeReading(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(MAX_ART_BYTES+1))
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		// Never send the body
		<-release
	}))
	defer srv.Close()
	defer close(release)

	alloc := newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))
	f := newTestFetcher(srv, alloc)

	start := time.Now()
	_, err := f.fetchAndDecode(context.Background(), srv.URL)
	if !errors.Is(err, ErrOversizedPayload) {
		t.Fatalf("error = %v, want ErrOversizedPayload", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("rejection took %v, body was probably read", elapsed)
	}
	if got := alloc.Live(); got != 0 {
		t.Errorf("live bytes = %d after rejection", got)
	}
}

func TestNewArtFetcherKeepsHardPayloadCap(t *testing.T) {
	var logs bytes.Buffer
	setLogOutput(&logs)
	t.Cleanup(func() { setLogOutput(io.Discard) })

	cfg := testConfig()
	cfg.MaxArtBytes = 5000000
	cfg.AllowInsecureArt = true
	alloc := newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))
	f := newArtFetcher(cfg, alloc)

	if f.maxBytes != MAX_ART_BYTES {
		t.Errorf("maxBytes = %d, want %d", f.maxBytes, MAX_ART_BYTES)
	}
	if !strings.Contains(logs.String(), "WARNING: allow_insecure_art") {
		t.Errorf("no startup warning for insecure art, log: %q", logs.String())
	}

	body := make([]byte, MAX_ART_BYTES+1)
	body[0], body[1] = JPEG_MAGIC_0, JPEG_MAGIC_1
	srv := newArtServer(t, body)

	if _, err := f.fetchAndDecode(context.Background(), srv.URL); !errors.Is(err, ErrOversizedPayload) {
		t.Errorf("error = %v, want ErrOversizedPayload", err)
	}
	if got := alloc.Live(); got != 0 {
		t.Errorf("live bytes = %d after rejection", got)
	}
}

func TestNewArtFetcherSecureByDefault(t *testing.T) {
	var logs bytes.Buffer
	setLogOutput(&logs)
	t.Cleanup(func() { setLogOutput(io.Discard) })

	f := newArtFetcher(testConfig(), newPixelAllocator(defaultArtBudget(MAX_ART_BYTES)))
	if f.allowInsecure || f.client.Transport != nil {
		t.Error("insecure art enabled without allow_insecure_art")
	}
	if err := f.validateURL("http://i.scdn.co/image/abc"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("plain http error = %v, want ErrInvalidURL", err)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected log output %q", logs.String())
	}
}

func TestFetchAndDecodeRejectsUnknownLength(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv, newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))).fetchAndDecode(context.Background(), srv.URL)
	if !errors.Is(err, ErrOversizedPayload) {
		t.Errorf("error = %v, want ErrOversizedPayload", err)
	}
}

func TestFetchAndDecodeRejectsBadStatus(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestFetcher(srv, newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))).fetchAndDecode(context.Background(), srv.URL)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestFetchAndDecodeCorruptPayload(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want error
	}{
		{"gif magic", []byte("GIF89a\x01\x00\x01\x00"), ErrCorruptPayload},
		{"single byte", []byte{0xFF}, ErrCorruptPayload},
		{"truncated jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, ErrDecodeFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newArtServer(t, tt.body)
			alloc := newPixelAllocator(defaultArtBudget(MAX_ART_BYTES))

			art, err := newTestFetcher(srv, alloc).fetchAndDecode(context.Background(), srv.URL)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if art != nil {
				t.Error("art returned on failure")
			}
			if got := alloc.Live(); got != 0 {
				t.Errorf("live bytes = %d after failure, want 0", got)
			}
		})
	}
}

func TestFetchAndDecodeBadMagicAllocatesNoDestination(t *testing.T) {
	body := []byte("\x89PNG\r\n\x1a\n")
	srv := newArtServer(t, body)

	// Room for the scratch buffer only; a destination allocation would fail first.
	alloc := newPixelAllocator(len(body))
	_, err := newTestFetcher(srv, alloc).fetchAndDecode(context.Background(), srv.URL)
	if !errors.Is(err, ErrCorruptPayload) {
		t.Fatalf("error = %v, want ErrCorruptPayload", err)
	}
}

func TestFetchAndDecodeAllocationFailure(t *testing.T) {
	srv := newArtServer(t, encodeTestJPEG(t, 8, 8, color.Black))
	alloc := newPixelAllocator(16)

	_, err := newTestFetcher(srv, alloc).fetchAndDecode(context.Background(), srv.URL)
	if !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("error = %v, want ErrAllocationFailure", err)
	}
	if got := alloc.Live(); got != 0 {
		t.Errorf("live bytes = %d, want 0", got)
	}
}

// stallReader returns no data and no error forever.
type stallReader struct{ reads int }

func (r *stallReader) Read(p []byte) (int, error) {
	r.reads++
	return 0, nil
}

func TestReadFullRetriesAreBounded(t *testing.T) {
	f := &artFetcher{readRetries: 3}
	r := &stallReader{}

	err := f.readFull(r, make([]byte, 10))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if r.reads != 4 {
		t.Errorf("reads = %d, want 4", r.reads)
	}
}

func TestReadFullShortBody(t *testing.T) {
	f := &artFetcher{readRetries: 3}
	err := f.readFull(io.LimitReader(bytes.NewReader(make([]byte, 100)), 5), make([]byte, 10))
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestPixelAllocator(t *testing.T) {
	a := newPixelAllocator(100)

	b1, err := a.Alloc(60)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Alloc(41); !errors.Is(err, ErrAllocationFailure) {
		t.Errorf("over-budget alloc error = %v", err)
	}
	if _, err := a.Alloc(0); !errors.Is(err, ErrAllocationFailure) {
		t.Errorf("zero alloc error = %v", err)
	}
	a.Free(b1)
	a.Free(nil)
	if a.Live() != 0 {
		t.Errorf("live = %d after free", a.Live())
	}
}

func TestAlbumArtReleaseIsIdempotent(t *testing.T) {
	a := newPixelAllocator(ART_BUF_BYTES)
	pix, _ := a.Alloc(ART_BUF_BYTES)
	art := &AlbumArt{pix: pix, width: ART_WIDTH, height: ART_HEIGHT, alloc: a}

	art.Release()
	art.Release()
	var nilArt *AlbumArt
	nilArt.Release()

	if a.Live() != 0 {
		t.Errorf("live = %d, want 0", a.Live())
	}
}

func TestPackUnpackRGB565(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{0xF8, 0x00, 0x00, 0xFF})
	src.Set(1, 0, color.RGBA{0x00, 0x00, 0xF8, 0xFF})

	buf := make([]byte, 4)
	packRGB565BE(src, buf)
	if !bytes.Equal(buf, []byte{0xF8, 0x00, 0x00, 0x1F}) {
		t.Fatalf("packed = % x", buf)
	}

	dst := image.NewRGBA(image.Rect(0, 0, 2, 1))
	unpackRGB565(ImageDescriptor{Width: 2, Height: 1, Format: PixelFormatRGB565Swapped, Data: buf, Length: 4}, dst)
	if got := dst.RGBAAt(0, 0); got != (color.RGBA{0xFF, 0, 0, 0xFF}) {
		t.Errorf("pixel 0 = %v", got)
	}
	if got := dst.RGBAAt(1, 0); got != (color.RGBA{0, 0, 0xFF, 0xFF}) {
		t.Errorf("pixel 1 = %v", got)
	}
}
