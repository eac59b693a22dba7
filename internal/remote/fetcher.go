// Package remote fetches identity payloads and credentials over HTTP. The
// fetcher returns raw payload strings; classification stays with the parser
// and extractor.
package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	dErrors "idem/pkg/domain-errors"
)

const defaultTimeout = 15 * time.Second

// Fetcher wraps an HTTP client with the engine's error conventions.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the underlying client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{client: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET or POST and returns the response body. Non-2xx
// responses surface as "HTTP <code>: <reason>".
func (f *Fetcher) Fetch(ctx context.Context, url, method, body string) (string, error) {
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid fetch request")
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if f.logger != nil {
			f.logger.WarnContext(ctx, "remote fetch failed", "url", url, "error", err)
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "remote fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", dErrors.Newf(dErrors.CodeUnavailable, "HTTP %d: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "reading remote payload failed")
	}
	return string(payload), nil
}

// FetchAll retrieves several URLs concurrently, preserving input order in the
// results. The first failure cancels the rest.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]string, error) {
	results := make([]string, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			payload, err := f.Fetch(ctx, url, http.MethodGet, "")
			if err != nil {
				return err
			}
			results[i] = payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
