// Package snapshot downloads the printer's current print image into a local
// file, bounded in size and replaced atomically.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

const chunkBytes = 64 * 1024

var (
	// ErrUnsupportedContentType means the response declared a content type
	// outside the allowlist. Nothing is written.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrSizeExceeded means the body grew past the configured limit. The
	// partial download is discarded and the destination stays untouched.
	ErrSizeExceeded = errors.New("snapshot size limit exceeded")
)

// TransportError wraps connection-level fetch failures: timeouts, resets,
// and non-2xx statuses.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "snapshot transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Config describes one fetch target. All fields are fixed at construction.
type Config struct {
	URL          string
	DestPath     string
	MaxBytes     int64
	AllowedTypes []string
	Timeout      time.Duration
}

// DefaultAllowedTypes is the image allowlist used when the config leaves it
// empty.
func DefaultAllowedTypes() []string {
	return []string{"image/png", "image/jpeg", "image/jpg"}
}

// Fetcher performs bounded, streamed downloads of the snapshot image.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New creates a fetcher. Zero MaxBytes defaults to 5 MiB, zero Timeout to
// 5 seconds, an empty allowlist to the common image types.
func New(cfg Config) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = DefaultAllowedTypes()
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch downloads the configured URL into DestPath. The body is streamed
// into a temporary file in the destination directory and renamed over the
// destination only when complete, so readers of DestPath observe either the
// previous snapshot or the new one, never a partial write. Any failure
// leaves the previous snapshot in place.
func (f *Fetcher) Fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if ct := contentType(resp); ct != "" && !lo.Contains(f.cfg.AllowedTypes, ct) {
		return fmt.Errorf("%w: %q", ErrUnsupportedContentType, ct)
	}

	if err := os.MkdirAll(filepath.Dir(f.cfg.DestPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmpPath := f.cfg.DestPath + ".tmp"
	if err := f.writeBounded(tmpPath, resp.Body); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.cfg.DestPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// writeBounded streams body into path in fixed-size chunks, enforcing the
// byte limit before anything past it is written.
func (f *Fetcher) writeBounded(path string, body io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	buf := make([]byte, chunkBytes)
	var written int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > f.cfg.MaxBytes {
				out.Close()
				return fmt.Errorf("%w: limit %d bytes", ErrSizeExceeded, f.cfg.MaxBytes)
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return fmt.Errorf("write temp snapshot: %w", werr)
			}
		}
		if err == io.EOF {
			return out.Close()
		}
		if err != nil {
			out.Close()
			return &TransportError{Err: err}
		}
	}
}

func contentType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
