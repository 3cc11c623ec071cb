package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// UploadKind selects the server-side storage bucket for an upload.
type UploadKind string

const (
	UploadPanorama  UploadKind = "insta360"
	UploadCloseup   UploadKind = "closeups"
	UploadFloorplan UploadKind = "floorplan"
)

// Valid reports whether k is a known kind.
func (k UploadKind) Valid() bool {
	switch k {
	case UploadPanorama, UploadCloseup, UploadFloorplan:
		return true
	}
	return false
}

// UploadResult is the server's answer to a successful upload.
type UploadResult struct {
	FilePath      string `json:"file_path" validate:"required"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	PreviewPath   string `json:"preview_path,omitempty"`
}

// UploadError carries a non-2xx upload response.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload rejected: %d %s", e.Status, e.Body)
}

// Uploader posts files as multipart forms.
type Uploader struct {
	URL    string
	Client *http.Client
	Log    zerolog.Logger

	validate *validator.Validate
}

// NewUploader returns an Uploader with a bounded HTTP client.
func NewUploader(url string, log zerolog.Logger) *Uploader {
	return &Uploader{
		URL:      url,
		Client:   &http.Client{Timeout: 2 * time.Minute},
		Log:      log.With().Str("component", "uploader").Logger(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Upload sends the file as the "file" form field with its kind as "type".
func (u *Uploader) Upload(ctx context.Context, kind UploadKind, filename string, r io.Reader) (UploadResult, error) {
	if !kind.Valid() {
		return UploadResult{}, fmt.Errorf("upload: unknown kind %q", kind)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("type", string(kind)); err != nil {
		return UploadResult{}, err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, err
	}
	n, err := io.Copy(part, r)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: read response: %w", filename, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadResult{}, &UploadError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	var res UploadResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: decode response: %w", filename, err)
	}
	v := u.validate
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	if err := v.Struct(res); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", filename, err)
	}

	u.Log.Info().
		Str("kind", string(kind)).
		Str("file", filename).
		Int64("bytes", n).
		Dur("took", time.Since(start)).
		Str("file_path", res.FilePath).
		Msg("upload complete")
	return res, nil
}
