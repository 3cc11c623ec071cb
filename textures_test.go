package vista

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
)

// scriptedFetcher fails the first failures calls per path, then succeeds.
type scriptedFetcher struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
}

func (f *scriptedFetcher) Fetch(_ context.Context, path string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[path]++
	if f.calls[path] <= f.failures {
		return nil, errors.New("unavailable")
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 1)), nil
}

func (f *scriptedFetcher) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newTestTextures(f TextureFetcher) (*TextureCache, *int) {
	c := NewTextureCache(f, time.Second, zerolog.Nop())
	uploads := 0
	c.newImage = func(image.Image) *ebiten.Image {
		uploads++
		return nil
	}
	return c, &uploads
}

// waitState pumps Update until path reaches want.
func waitState(t *testing.T, c *TextureCache, path string, now time.Time, want TextureState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.Update(now)
		if st, ok := c.State(path); ok && st == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	st, _ := c.State(path)
	t.Fatalf("%s: state %v, want %v", path, st, want)
}

func TestTextureLoads(t *testing.T) {
	f := &scriptedFetcher{}
	c, uploads := newTestTextures(f)
	defer c.Close()

	c.Request("insta360/a.jpg")
	c.Request("insta360/a.jpg")
	waitState(t, c, "insta360/a.jpg", t0, TextureReady)

	if *uploads != 1 || f.count("insta360/a.jpg") != 1 {
		t.Errorf("uploads %d, fetches %d; want one of each", *uploads, f.count("insta360/a.jpg"))
	}
	if _, ok := c.Get("insta360/a.jpg"); !ok {
		t.Error("ready texture not returned")
	}
}

func TestTextureRetriesOnceThenFails(t *testing.T) {
	f := &scriptedFetcher{failures: 5}
	c, _ := newTestTextures(f)
	defer c.Close()

	var failed []string
	c.OnFailure = func(path string, err error) { failed = append(failed, path) }

	c.Request("insta360/a.jpg")
	waitState(t, c, "insta360/a.jpg", t0, TextureRetryWait)
	if len(failed) != 0 {
		t.Fatal("first failure should wait for a retry, not report")
	}

	// Not yet due.
	c.Update(t0.Add(500 * time.Millisecond))
	if f.count("insta360/a.jpg") != 1 {
		t.Fatalf("retried before the delay: %d fetches", f.count("insta360/a.jpg"))
	}

	waitState(t, c, "insta360/a.jpg", t0.Add(time.Second), TextureFailed)
	if f.count("insta360/a.jpg") != maxTextureAttempts {
		t.Errorf("fetches = %d, want %d", f.count("insta360/a.jpg"), maxTextureAttempts)
	}
	if len(failed) != 1 || failed[0] != "insta360/a.jpg" {
		t.Errorf("OnFailure calls = %v", failed)
	}

	// A failed texture is not retried again.
	c.Update(t0.Add(time.Hour))
	if f.count("insta360/a.jpg") != maxTextureAttempts {
		t.Error("failed texture fetched again")
	}
}

func TestTextureRetrySucceeds(t *testing.T) {
	f := &scriptedFetcher{failures: 1}
	c, _ := newTestTextures(f)
	defer c.Close()
	c.OnFailure = func(string, error) { t.Error("unexpected failure report") }

	c.Request("insta360/a.jpg")
	waitState(t, c, "insta360/a.jpg", t0, TextureRetryWait)
	waitState(t, c, "insta360/a.jpg", t0.Add(2*time.Second), TextureReady)
}

func TestTextureReleaseDiscardsLateResult(t *testing.T) {
	release := make(chan struct{})
	f := TextureFetcherFunc(func(ctx context.Context, path string) (image.Image, error) {
		<-release
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	})
	c, uploads := newTestTextures(f)
	defer c.Close()

	c.Request("insta360/a.jpg")
	c.Release("insta360/a.jpg")
	close(release)

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.Update(t0)
		time.Sleep(time.Millisecond)
	}
	if *uploads != 0 || c.Len() != 0 {
		t.Errorf("released texture came back: uploads %d, len %d", *uploads, c.Len())
	}
}

func TestTextureRetain(t *testing.T) {
	c, _ := newTestTextures(nil)
	c.Request("a.jpg")
	c.Request("b.jpg")
	c.Request("c.jpg")
	c.Request("")
	if c.Len() != 3 {
		t.Fatalf("len = %d", c.Len())
	}
	c.Retain("b.jpg")
	if c.Len() != 1 {
		t.Errorf("len = %d after retain", c.Len())
	}
	if st, ok := c.State("b.jpg"); !ok || st != TextureLoading {
		t.Errorf("b.jpg state = %v, %v", st, ok)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/insta360/a.png" {
			http.NotFound(w, r)
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, 4, 2))
		img.Set(0, 0, color.RGBA{R: 255, A: 255})
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, img)
	}))
	defer srv.Close()

	f := HTTPFetcher{BaseURL: srv.URL + "/assets", Client: srv.Client()}
	img, err := f.Fetch(context.Background(), "/insta360/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("bounds = %v", b)
	}

	if _, err := f.Fetch(context.Background(), "insta360/missing.png"); err == nil {
		t.Error("404 should be an error")
	}
}
