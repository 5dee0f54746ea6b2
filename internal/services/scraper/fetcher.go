package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

// Fetcher renders a page in a leased browser context and parses the
// post-JavaScript DOM.
type Fetcher struct {
	cfg    common.PoolConfig
	logger arbor.ILogger
}

// NewFetcher creates a Fetcher with the pool's navigation budgets.
func NewFetcher(cfg common.PoolConfig, logger arbor.ILogger) *Fetcher {
	return &Fetcher{cfg: cfg, logger: logger}
}

// Fetch navigates to url, waits for client-side rendering to settle, and
// returns the parsed document. The outer HTML is captured after JSWaitTime
// so lazily rendered cards are present.
func (f *Fetcher) Fetch(ctx context.Context, lease interfaces.BrowserLease, url string) (*goquery.Document, error) {
	const op = "fetcher.fetch"

	navCtx, cancel := context.WithTimeout(lease.Context(), f.cfg.PageTimeout)
	defer cancel()

	// Respect caller cancellation even though the chromedp context belongs
	// to the lease.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-navCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(f.cfg.JSWaitTime),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.E(common.KindCancelled, op, ctx.Err())
		}
		if lease.Context().Err() != nil {
			lease.MarkBroken()
		}
		return nil, common.E(common.KindTransient, op, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, common.E(common.KindTransient, op, err)
	}

	f.logger.Debug().Str("url", url).Int("html_bytes", len(html)).Msg("Page fetched")
	return doc, nil
}
