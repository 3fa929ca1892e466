package cricbuzz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// renderDelay gives client-side scripts a moment to fill in live scores
const renderDelay = 1 * time.Second

// BrowserClient renders pages in headless Chrome. It satisfies Fetcher and is
// used when the site serves score widgets that only appear after scripts run.
type BrowserClient struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowserClient starts a shared Chrome allocator. Close releases it.
func NewBrowserClient() *BrowserClient {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserClient{
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

// Close releases the browser
func (b *BrowserClient) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Fetch navigates to pageURL and returns the rendered document.
func (b *BrowserClient) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()

	// Tie the tab to the caller so scheduler cancellation closes it.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	if timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, timeout)
		defer cancel()
	}

	var htmlContent string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(renderDelay),
		chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(tabCtx.Err(), context.DeadlineExceeded) {
			return "", &FetchError{Kind: KindTimeout, URL: pageURL, Err: err}
		}
		return "", &FetchError{Kind: KindConnection, URL: pageURL, Err: fmt.Errorf("chromedp: %w", err)}
	}

	if htmlContent == "" {
		return "", &FetchError{Kind: KindConnection, URL: pageURL, Err: errors.New("empty HTML content returned")}
	}
	return htmlContent, nil
}
