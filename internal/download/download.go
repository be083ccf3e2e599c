// Package download fetches candidate media and encodes it for inline delivery.
package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"booru-bot/internal/booru"
)

// ErrNoUsableMedia means every source either failed to download or exceeded
// the size limit. Distinct from catalog errors: the catalog answered fine.
var ErrNoUsableMedia = errors.New("download: no usable media")

const inlinePrefix = "base64://"

// Blob is one downloaded item as an inline-encodable payload.
type Blob struct {
	Inline string // base64://<payload>
}

// NewBlob encodes raw bytes into the inline payload form.
func NewBlob(data []byte) Blob {
	return Blob{Inline: inlinePrefix + base64.StdEncoding.EncodeToString(data)}
}

// Bytes decodes the payload back into raw bytes.
func (b Blob) Bytes() ([]byte, error) {
	payload, ok := strings.CutPrefix(b.Inline, inlinePrefix)
	if !ok {
		return nil, fmt.Errorf("blob payload has no %q prefix", inlinePrefix)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode blob payload: %w", err)
	}
	return data, nil
}

// Opts is a carrier of options for Downloader.
type Opts struct {
	UserAgent   string
	ProxyURL    *url.URL
	Timeout     time.Duration
	MaxFileSize int64
}

// Downloader fetches sources sequentially, skipping the ones that fail or
// come back too large. One bad item never sinks the batch.
type Downloader struct {
	httpc       *http.Client
	userAgent   string
	maxFileSize int64
	log         *zap.Logger
}

// New returns a configured Downloader.
func New(opts Opts, log *zap.Logger) *Downloader {
	transport := &http.Transport{}
	if opts.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(opts.ProxyURL)
	}

	return &Downloader{
		httpc: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		userAgent:   opts.UserAgent,
		maxFileSize: opts.MaxFileSize,
		log:         log,
	}
}

// Fetch downloads each source in order, preferring the preview URL over the
// full one. A transport failure on the preview falls back to the full URL; an
// oversized body discards the whole item. The returned blobs keep source
// order. An empty result is ErrNoUsableMedia.
func (d *Downloader) Fetch(ctx context.Context, sources []booru.Source) ([]Blob, error) {
	var blobs []Blob

	for _, src := range sources {
		for _, rawURL := range []string{src.PreviewURL, src.FileURL} {
			if rawURL == "" {
				continue
			}

			data, err := d.fetchOne(ctx, rawURL)
			if err != nil {
				d.log.Warn("skipping source url", zap.String("url", rawURL), zap.Error(err))
				continue
			}
			if int64(len(data)) > d.maxFileSize {
				d.log.Warn("discarding oversized item",
					zap.String("url", rawURL),
					zap.Int("size", len(data)),
					zap.Int64("max", d.maxFileSize),
				)
				break
			}

			blobs = append(blobs, NewBlob(data))
			break
		}
	}

	if len(blobs) == 0 {
		return nil, fmt.Errorf("%d sources attempted: %w", len(sources), ErrNoUsableMedia)
	}
	return blobs, nil
}

func (d *Downloader) fetchOne(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source answered %d", resp.StatusCode)
	}

	// Read one byte past the limit so oversize detection never buffers an
	// unbounded body.
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
