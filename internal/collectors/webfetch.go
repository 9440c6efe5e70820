package collectors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"partsbot/internal/config"
)

const maxPageBytes = 4 << 20

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
}

// Page is a fetched search result page.
type Page struct {
	URL    string
	Status int
	Header http.Header
	Body   string
}

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

type HTTPStatusError struct {
	URL    string
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Fetcher issues browser-like GET requests with a rotating user agent and a small
// retry budget for network errors, 403, 429 and 5xx.
type Fetcher struct {
	httpClient *http.Client
	retries    int
	backoff    func(attempt int) time.Duration
	agent      atomic.Uint64
}

func NewFetcher(cfg config.Config) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: time.Duration(cfg.ScrapeTimeoutMs) * time.Millisecond},
		retries:    cfg.ScrapeRetryCount,
		backoff: func(attempt int) time.Duration {
			return time.Duration(400*(1<<(attempt-1))+rand.Intn(250)) * time.Millisecond
		},
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (Page, error) {
	attempts := f.retries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, f.backoff(attempt-1)); err != nil {
				return Page{}, err
			}
		}
		page, err := f.get(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && !retryableScrapeStatus(statusErr.Status) {
			return Page{}, err
		}
	}
	return Page{}, lastErr
}

func (f *Fetcher) get(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, err
	}
	ua := userAgents[int(f.agent.Add(1)-1)%len(userAgents)]
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, &HTTPStatusError{URL: url, Status: resp.StatusCode}
	}
	return Page{URL: url, Status: resp.StatusCode, Header: resp.Header, Body: string(body)}, nil
}

func retryableScrapeStatus(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests || status >= 500
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
