// Package fetcher reads remote documents such as the product catalog.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxBytes = 8 << 20
)

// Fetcher performs a single blocking GET of a document
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Config tunes the HTTP fetcher
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

type httpFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// New creates a Fetcher with its own bounded HTTP client.
// No retries and no caching: every call goes to the network.
func New(cfg Config, logger *zap.Logger) Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	return &httpFetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBytes,
		logger:   logger.Named("fetcher"),
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, &domain.FetchError{Err: domain.ErrResourceUnavailable}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		// *url.Error repeats the signed URL in its message.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
		}
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &domain.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("document exceeds %d bytes", f.maxBytes)}
	}

	f.logger.Debug("Fetched document",
		zap.String("url", domain.RedactURL(rawURL)),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return body, nil
}
