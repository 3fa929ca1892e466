// Package cricbuzz fetches and parses Cricbuzz pages.
package cricbuzz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// BaseURL is the Cricbuzz homepage, the source of the match listing
	BaseURL = "https://www.cricbuzz.com/"

	// UserAgent for requests
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// AcceptLanguage sent with every request
	AcceptLanguage = "en-US,en;q=0.9"

	// MaxBodyBytes caps how much of a response body is read
	MaxBodyBytes = 5 << 20

	homepageReferer = "https://www.google.com/"
)

// Fetcher retrieves the markup of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, timeout time.Duration) (string, error)
}

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindHTTPStatus ErrorKind = "http_status"
)

// FetchError is returned by every Fetcher when a page could not be retrieved.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: connection failed: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a FetchError of kind timeout.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindTimeout
}

// Client fetches pages over plain HTTP with a browser-like header set.
type Client struct {
	httpClient *http.Client
	homepage   string
}

// NewClient creates a Client. homepage is the listing URL and decides which
// Referer a request carries.
func NewClient(homepage string) *Client {
	if homepage == "" {
		homepage = BaseURL
	}
	return &Client{
		httpClient: &http.Client{},
		homepage:   homepage,
	}
}

// Fetch performs a single GET. No retries happen here; the scheduler retries
// on its next cycle.
func (c *Client) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{Kind: KindConnection, URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", AcceptLanguage)
	req.Header.Set("Referer", c.refererFor(pageURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &FetchError{Kind: KindHTTPStatus, URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return "", classify(pageURL, err)
	}
	return string(body), nil
}

// refererFor mimics a user arriving at the homepage from a search engine and
// then navigating within the site.
func (c *Client) refererFor(pageURL string) string {
	if strings.TrimSuffix(pageURL, "/") == strings.TrimSuffix(c.homepage, "/") {
		return homepageReferer
	}
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		return u.Scheme + "://" + u.Host + "/"
	}
	return c.homepage
}

func classify(pageURL string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, URL: pageURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, URL: pageURL, Err: err}
	}
	return &FetchError{Kind: KindConnection, URL: pageURL, Err: err}
}

// ParseHTML converts raw HTML to a goquery Document for parsing
func ParseHTML(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}
