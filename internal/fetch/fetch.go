// Package fetch retrieves raw bytes over HTTP, either silently or while
// reporting download progress.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 5 * time.Minute
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "driverium/1.0"
	// progressChunkSize is how many bytes are read between progress reports.
	progressChunkSize = 1024
)

// ErrTransfer indicates a network or HTTP failure. Transfers are never
// retried internally; callers may retry the whole operation.
var ErrTransfer = errors.New("transfer failed")

// ProgressFunc receives cumulative downloaded bytes against the expected
// total. total is 0 when the server did not send a Content-Length, in which
// case the caller should render an indeterminate indicator.
type ProgressFunc func(done, total int64)

// Fetcher retrieves raw bytes from URLs.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher using the given HTTP client. A nil client
// falls back to a default with a bounded redirect chain.
func NewFetcher(client *http.Client, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	return &Fetcher{
		client:    client,
		userAgent: DefaultUserAgent,
		logger:    logger,
	}
}

// Fetch downloads the URL quietly, buffering the entire body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body from %s: %v", ErrTransfer, url, err)
	}
	return body, nil
}

// FetchProgress downloads the URL in fixed-size chunks, reporting cumulative
// bytes to progress after each chunk.
func (f *Fetcher) FetchProgress(ctx context.Context, url string, progress ProgressFunc) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	var buf bytes.Buffer
	chunk := make([]byte, progressChunkSize)
	var done int64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read body from %s: %v", ErrTransfer, url, err)
		}
	}

	return buf.Bytes(), nil
}

// Exists probes whether a URL is retrievable without downloading its body.
// It issues a HEAD request, falling back to GET on servers that reject HEAD.
func (f *Fetcher) Exists(ctx context.Context, url string) (bool, error) {
	resp, err := f.do(ctx, http.MethodHead, url)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		getResp, err := f.do(ctx, http.MethodGet, url)
		if err != nil {
			return false, err
		}
		defer getResp.Body.Close()

		if getResp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		if getResp.StatusCode < 200 || getResp.StatusCode >= 300 {
			return false, fmt.Errorf("%w: unexpected status %d probing %s", ErrTransfer, getResp.StatusCode, url)
		}
		return true, nil
	}

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: unexpected status %d probing %s", ErrTransfer, resp.StatusCode, url)
	}
	return true, nil
}

// get issues a GET and verifies a success status.
func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	resp, err := f.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrTransfer, resp.StatusCode, url)
	}
	return resp, nil
}

func (f *Fetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.logger.Debug().Str("method", method).Str("url", url).Msg("http request")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransfer, method, url, err)
	}
	return resp, nil
}
