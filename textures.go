package vista

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // panoramas are usually JPEG
	_ "image/png"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
)

// DefaultTextureRetryDelay is the wait before the single retry of a failed
// texture fetch.
const DefaultTextureRetryDelay = 2 * time.Second

const maxTextureAttempts = 2

// TextureFetcher loads an image by its stored file path. Fetch is called on
// its own goroutine.
type TextureFetcher interface {
	Fetch(ctx context.Context, path string) (image.Image, error)
}

// TextureFetcherFunc adapts a function to TextureFetcher.
type TextureFetcherFunc func(ctx context.Context, path string) (image.Image, error)

// Fetch calls f.
func (f TextureFetcherFunc) Fetch(ctx context.Context, path string) (image.Image, error) {
	return f(ctx, path)
}

// TextureState is the load state of one cached texture.
type TextureState uint8

const (
	TextureLoading TextureState = iota
	TextureRetryWait
	TextureReady
	TextureFailed
)

type textureEntry struct {
	state    TextureState
	img      *ebiten.Image
	attempts int
	retryAt  time.Time
	err      error
	gen      int
}

type textureResult struct {
	path string
	gen  int
	img  image.Image
	err  error
}

// TextureCache holds decoded images keyed by file path. Fetches run in the
// background; their results are applied by Update on the caller's goroutine,
// so the map itself is never shared.
type TextureCache struct {
	// OnFailure is called once a texture has failed its final attempt.
	OnFailure func(path string, err error)

	fetcher    TextureFetcher
	retryDelay time.Duration
	log        zerolog.Logger

	entries map[string]*textureEntry
	results chan textureResult
	ctx     context.Context
	cancel  context.CancelFunc
	gen     int

	// newImage uploads a decoded image; replaced in tests.
	newImage func(image.Image) *ebiten.Image
}

// NewTextureCache returns an empty cache. A nil fetcher leaves every
// request loading forever.
func NewTextureCache(fetcher TextureFetcher, retryDelay time.Duration, log zerolog.Logger) *TextureCache {
	if retryDelay <= 0 {
		retryDelay = DefaultTextureRetryDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TextureCache{
		fetcher:    fetcher,
		retryDelay: retryDelay,
		log:        log.With().Str("component", "textures").Logger(),
		entries:    make(map[string]*textureEntry),
		results:    make(chan textureResult, 16),
		ctx:        ctx,
		cancel:     cancel,
		newImage:   ebiten.NewImageFromImage,
	}
}

// Request starts loading path unless it is already cached or loading.
func (c *TextureCache) Request(path string) {
	if path == "" {
		return
	}
	if _, ok := c.entries[path]; ok {
		return
	}
	c.gen++
	e := &textureEntry{state: TextureLoading, gen: c.gen}
	c.entries[path] = e
	c.fetch(path, e)
}

func (c *TextureCache) fetch(path string, e *textureEntry) {
	e.attempts++
	e.state = TextureLoading
	if c.fetcher == nil {
		return
	}
	gen := e.gen
	go func() {
		img, err := c.fetcher.Fetch(c.ctx, path)
		select {
		case c.results <- textureResult{path: path, gen: gen, img: img, err: err}:
		case <-c.ctx.Done():
		}
	}()
}

// Update applies finished fetches and starts due retries. It never blocks.
func (c *TextureCache) Update(now time.Time) {
drain:
	for {
		select {
		case r := <-c.results:
			c.apply(r, now)
		default:
			break drain
		}
	}
	for path, e := range c.entries {
		if e.state == TextureRetryWait && !now.Before(e.retryAt) {
			c.log.Debug().Str("path", path).Int("attempt", e.attempts+1).Msg("retrying texture")
			c.fetch(path, e)
		}
	}
}

func (c *TextureCache) apply(r textureResult, now time.Time) {
	e, ok := c.entries[r.path]
	if !ok || e.gen != r.gen {
		return // released while loading
	}
	if r.err == nil && r.img == nil {
		r.err = fmt.Errorf("texture %s: empty image", r.path)
	}
	if r.err != nil {
		e.err = r.err
		if e.attempts < maxTextureAttempts {
			e.state = TextureRetryWait
			e.retryAt = now.Add(c.retryDelay)
			return
		}
		e.state = TextureFailed
		if c.OnFailure != nil {
			c.OnFailure(r.path, r.err)
		}
		return
	}
	e.img = c.newImage(r.img)
	e.state = TextureReady
	e.err = nil
}

// Get returns the image for path once it is ready.
func (c *TextureCache) Get(path string) (*ebiten.Image, bool) {
	e, ok := c.entries[path]
	if !ok || e.state != TextureReady {
		return nil, false
	}
	return e.img, true
}

// State returns the load state of path and whether it is cached at all.
func (c *TextureCache) State(path string) (TextureState, bool) {
	e, ok := c.entries[path]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Len returns the number of cached entries.
func (c *TextureCache) Len() int { return len(c.entries) }

// Release drops path and deallocates its image.
func (c *TextureCache) Release(path string) {
	e, ok := c.entries[path]
	if !ok {
		return
	}
	if e.img != nil {
		e.img.Deallocate()
	}
	delete(c.entries, path)
}

// Retain releases every entry except the given paths.
func (c *TextureCache) Retain(paths ...string) {
	for path := range c.entries {
		keep := false
		for _, p := range paths {
			if p == path {
				keep = true
				break
			}
		}
		if !keep {
			c.Release(path)
		}
	}
}

// Close stops outstanding fetches and releases everything.
func (c *TextureCache) Close() {
	c.cancel()
	c.Retain()
}

// HTTPFetcher loads images from the asset server.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// Fetch downloads and decodes BaseURL/path.
func (f HTTPFetcher) Fetch(ctx context.Context, path string) (image.Image, error) {
	u, err := url.JoinPath(f.BaseURL, strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("texture url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
