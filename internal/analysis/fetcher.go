package analysis

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/wali-os/wali/internal/forms"
)

// PageFetcher returns the readable text of a web page.
type PageFetcher interface {
	FetchText(ctx context.Context, pageURL string) (string, error)
}

// CollyFetcher fetches opportunity pages with colly, retrying transient failures.
type CollyFetcher struct {
	UserAgent      string
	MaxRetries     int
	RequestTimeout time.Duration
	MaxBodySize    int
	MaxChars       int
}

func NewCollyFetcher() *CollyFetcher {
	return &CollyFetcher{
		UserAgent:      "Mozilla/5.0 (compatible; WALI-OS/1.0; +https://wali-os.com)",
		MaxRetries:     2,
		RequestTimeout: 20 * time.Second,
		MaxBodySize:    5 * 1024 * 1024,
		MaxChars:       12000,
	}
}

func (f *CollyFetcher) collector(hostname string) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowedDomains(hostname),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
	)
	c.SetRequestTimeout(f.RequestTimeout)
	return c
}

// FetchText visits pageURL and returns its text with markup stripped, truncated to MaxChars.
func (f *CollyFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid URL %q", pageURL)
	}
	c := f.collector(u.Hostname())

	var (
		mu      sync.Mutex
		body    []byte
		lastErr error
	)
	c.OnResponse(func(r *colly.Response) {
		mu.Lock()
		body = r.Body
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		retries, _ := r.Request.Ctx.GetAny("retries").(int)
		if retries < f.MaxRetries && ctx.Err() == nil {
			r.Request.Ctx.Put("retries", retries+1)
			log.Printf("[analysis] retry %d/%d for %s: %v", retries+1, f.MaxRetries, r.Request.URL, err)
			time.Sleep(time.Duration(retries+1) * time.Second)
			r.Request.Retry()
			return
		}
		mu.Lock()
		lastErr = err
		mu.Unlock()
	})

	// A retried request may succeed after Visit has already seen the first error,
	// so the body decides success.
	done := make(chan error, 1)
	go func() { done <- c.Visit(pageURL) }()
	var visitErr error
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case visitErr = <-done:
	}

	mu.Lock()
	defer mu.Unlock()
	if body == nil {
		if lastErr == nil {
			lastErr = visitErr
		}
		if lastErr != nil {
			return "", fmt.Errorf("fetch %s: %w", pageURL, lastErr)
		}
		return "", fmt.Errorf("no response received for %s", pageURL)
	}
	return forms.TruncateText(forms.PlainText(string(body)), f.MaxChars), nil
}
