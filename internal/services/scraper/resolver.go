package scraper

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

// redirectParams are the query keys listing sites use to wrap the real
// destination in a redirect URL.
var redirectParams = []string{"u", "url", "dest", "destination", "redirect", "r", "jk_url"}

// Resolver turns a job card's link into the canonical employer URL. It
// tries three steps in order: decode the href directly, unwrap a redirect
// parameter, and finally click the link inside the leased browser context
// and capture wherever the site sends us (popup tab or in-place
// navigation). Unresolvable cards come back empty, never as errors; the
// caller records the counter and falls back to location-based identity.
type Resolver struct {
	clickBudget time.Duration
	logger      arbor.ILogger
}

// NewResolver builds a resolver with the per-click time budget.
func NewResolver(cfg common.ScraperConfig, logger arbor.ILogger) *Resolver {
	budget := cfg.ClickBudget
	if budget <= 0 {
		budget = 5 * time.Second
	}
	return &Resolver{clickBudget: budget, logger: logger}
}

// Resolve resolves one card. The lease's active tab must currently show
// pageURL; click resolution depends on it.
func (r *Resolver) Resolve(ctx context.Context, lease interfaces.BrowserLease, pageURL string, card *interfaces.JobCard, site interfaces.SiteAdapter) (interfaces.ResolveResult, error) {
	if ctx.Err() != nil {
		return interfaces.ResolveResult{}, common.E(common.KindCancelled, "resolver.resolve", ctx.Err())
	}

	// Fragment-only hrefs ("#!") carry no destination of their own;
	// absolutizing them would inherit the search page's query and
	// misclassify the card as a self-link. Only the click path can
	// resolve them.
	absolute := ""
	href := strings.TrimSpace(card.Href)
	if href != "" && !strings.HasPrefix(strings.ToLower(href), "javascript:") && !fragmentOnly(href) {
		absolute = common.AbsoluteURL(pageURL, href)
	}

	if absolute != "" {
		// Direct external link: done without touching the browser.
		if !common.IsListingSiteURL(absolute) {
			return interfaces.ResolveResult{URL: absolute, Via: "href"}, nil
		}

		// Redirect wrapper on the listing site: unwrap the embedded URL.
		if wrapped := unwrapRedirect(absolute); wrapped != "" {
			return interfaces.ResolveResult{URL: wrapped, Via: "redirect"}, nil
		}

		// The site's own search page disguised as a job link.
		if common.IsSearchSelfLink(absolute) {
			return interfaces.ResolveResult{SelfLink: true}, nil
		}
	}

	if card.LinkSelector == "" {
		return interfaces.ResolveResult{}, nil
	}
	return r.resolveByClick(ctx, lease, pageURL, card, site)
}

// fragmentOnly reports whether href has nothing but a fragment.
func fragmentOnly(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.Path == "" && u.RawQuery == ""
}

// unwrapRedirect extracts an embedded external URL from a listing-site
// redirect wrapper. Returns empty when no parameter carries one.
func unwrapRedirect(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, key := range redirectParams {
		candidate := q.Get(key)
		if candidate == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(candidate); err == nil {
			candidate = decoded
		}
		cu, err := url.Parse(candidate)
		if err != nil || cu.Host == "" {
			continue
		}
		if !common.IsListingHost(cu.Host) {
			return candidate
		}
	}
	return ""
}

// resolveByClick clicks the card link and watches for either a popup tab
// or an in-place navigation, whichever the site performs. Popups are
// closed after their URL is read so tabs never accumulate.
func (r *Resolver) resolveByClick(ctx context.Context, lease interfaces.BrowserLease, pageURL string, card *interfaces.JobCard, site interfaces.SiteAdapter) (interfaces.ResolveResult, error) {
	const op = "resolver.click"

	browserCtx := lease.Context()

	listenCtx, stopListening := context.WithCancel(browserCtx)
	defer stopListening()

	var mu sync.Mutex
	popupURL := ""
	var popupTarget target.ID
	captured := make(chan struct{}, 1)

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		var info *target.Info
		switch e := ev.(type) {
		case *target.EventTargetCreated:
			info = e.TargetInfo
		case *target.EventTargetInfoChanged:
			info = e.TargetInfo
		default:
			return
		}
		if info.Type != "page" || info.URL == "" || info.URL == "about:blank" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if popupURL != "" {
			return
		}
		// The popup may open on the listing host first and then redirect
		// out; only a non-listing URL counts as captured.
		if common.IsListingSiteURL(info.URL) {
			popupTarget = info.TargetID
			return
		}
		popupURL = info.URL
		popupTarget = info.TargetID
		select {
		case captured <- struct{}{}:
		default:
		}
	})

	clickCtx, cancelClick := context.WithTimeout(browserCtx, r.clickBudget)
	defer cancelClick()

	clickErr := chromedp.Run(clickCtx,
		chromedp.Click(card.LinkSelector, chromedp.NodeVisible),
	)
	if clickErr != nil && clickCtx.Err() == nil {
		if browserCtx.Err() != nil {
			lease.MarkBroken()
			return interfaces.ResolveResult{}, common.E(common.KindTransient, op, clickErr)
		}
		r.logger.Debug().Err(clickErr).Str("site", site.Name()).Str("selector", card.LinkSelector).Msg("Card click failed")
		return interfaces.ResolveResult{}, nil
	}

	// Wait out the remainder of the budget for a popup to surface.
	select {
	case <-captured:
	case <-clickCtx.Done():
	case <-ctx.Done():
		r.closePopup(browserCtx, popupTarget)
		return interfaces.ResolveResult{}, common.E(common.KindCancelled, op, ctx.Err())
	}

	mu.Lock()
	capturedURL := popupURL
	capturedTarget := popupTarget
	mu.Unlock()
	stopListening()

	if capturedURL != "" {
		r.closePopup(browserCtx, capturedTarget)
		return interfaces.ResolveResult{URL: capturedURL, Via: "popup"}, nil
	}

	// No popup: the click may have navigated the listing tab itself.
	var currentURL string
	urlCtx, cancelURL := context.WithTimeout(browserCtx, 2*time.Second)
	defer cancelURL()
	if err := chromedp.Run(urlCtx, chromedp.Location(&currentURL)); err != nil {
		if browserCtx.Err() != nil {
			lease.MarkBroken()
			return interfaces.ResolveResult{}, common.E(common.KindTransient, op, err)
		}
		return interfaces.ResolveResult{TimedOut: true}, nil
	}

	if currentURL != "" && currentURL != pageURL && !common.IsListingSiteURL(currentURL) {
		r.navigateBack(browserCtx, pageURL)
		return interfaces.ResolveResult{URL: currentURL, Via: "navigation"}, nil
	}
	if currentURL != pageURL {
		r.navigateBack(browserCtx, pageURL)
	}

	r.closePopup(browserCtx, capturedTarget)
	return interfaces.ResolveResult{TimedOut: true}, nil
}

// closePopup closes a captured popup tab, best effort.
func (r *Resolver) closePopup(browserCtx context.Context, id target.ID) {
	if id == "" || browserCtx.Err() != nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(browserCtx, 2*time.Second)
	defer cancel()
	err := chromedp.Run(closeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.CloseTarget(id).Do(ctx)
	}))
	if err != nil {
		r.logger.Debug().Err(err).Str("target", string(id)).Msg("Failed to close popup tab")
	}
}

// navigateBack restores the listing page after an in-place navigation so
// the remaining cards on the page can still be clicked.
func (r *Resolver) navigateBack(browserCtx context.Context, pageURL string) {
	backCtx, cancel := context.WithTimeout(browserCtx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(backCtx, chromedp.Navigate(pageURL)); err != nil {
		r.logger.Debug().Err(err).Str("url", pageURL).Msg("Failed to restore listing page")
	}
}
