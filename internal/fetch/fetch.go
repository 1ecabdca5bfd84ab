// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch reads BibTeX source text from a file, standard input or an
// http(s) URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// RetryBaseDelay is the first backoff after an HTTP 429. Each further retry
// doubles it. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const (
	defaultMaxRetries = 5
	maxRetryInterval  = 2 * time.Minute
)

// maxSourceBytes caps what is read from stdin or a URL.
var maxSourceBytes int64 = 64 << 20

var (
	// ErrNotText is returned when a remote source is not a text document,
	// for example a PDF or an archive served in place of a .bib file.
	ErrNotText = errors.New("not a text document")

	// ErrTooLarge is returned when stdin or a remote source exceeds the
	// 64 MiB read limit.
	ErrTooLarge = errors.New("source too large")
)

// Stdin is read when the location is "-".
var Stdin io.Reader = os.Stdin

// Read returns the contents of location: "-" for standard input, an
// http:// or https:// URL, or a file path.
func Read(ctx context.Context, client *http.Client, location string, cfg types.HTTPConfig) ([]byte, error) {
	switch {
	case location == "-":
		data, err := readLimited(Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	case IsURL(location):
		return readURL(ctx, client, location, cfg)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return data, nil
}

// IsURL reports whether location is an http or https URL.
func IsURL(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func readURL(ctx context.Context, client *http.Client, url string, cfg types.HTTPConfig) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/x-bibtex, text/plain;q=0.9, */*;q=0.1")

	resp, err := doWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	if !isText(data) {
		return nil, fmt.Errorf("fetching %s: %w (detected %s)", url, ErrNotText, mimetype.Detect(data))
	}
	return data, nil
}

// readLimited reads all of r, failing with ErrTooLarge once more than
// maxSourceBytes arrive.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSourceBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxSourceBytes)
	}
	return data, nil
}

// isText reports whether data sniffs as text/plain or one of its subtypes.
func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// doWithRetry sends req and retries on HTTP 429 with exponential backoff
// starting at RetryBaseDelay. A Retry-After header given in seconds
// replaces the computed delay. After maxRetries the last 429 response is
// returned for the caller to report.
func doWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	expo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(RetryBaseDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(max(RetryBaseDelay, maxRetryInterval)),
		backoff.WithMaxElapsedTime(0),
	)
	policy := backoff.WithMaxRetries(expo, uint64(maxRetries))

	for {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return resp, nil
		}
		if d, ok := retryAfter(resp); ok {
			wait = d
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := time.ParseDuration(v + "s")
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}
