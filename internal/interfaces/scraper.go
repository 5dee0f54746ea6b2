package interfaces

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// JobCard is the raw material extracted from one listing-page card before
// resolution and fingerprinting.
type JobCard struct {
	Title      string
	Company    string
	Location   string
	SalaryText string
	PostedText string
	Summary    string

	// Href is the raw link target from the card. May be relative, a
	// redirect wrapper, or a javascript pseudo-link.
	Href string
	// LinkSelector is the CSS selector to click when Href alone cannot be
	// resolved.
	LinkSelector string
	// DescriptionHTML carries the description fragment when the listing
	// page includes one inline.
	DescriptionHTML string
}

// SiteAdapter encapsulates all per-site knowledge. Adapters are stateless
// between calls and safe to share across workers.
type SiteAdapter interface {
	// Name is the site tag persisted as source_site.
	Name() string

	// SearchHost is the listing site's host, used to reject self-links.
	SearchHost() string

	// BuildSearchURL produces the listing search URL for a keyword,
	// location, and 1-based page number.
	BuildSearchURL(keyword, location string, page int) string

	// LocateJobCards finds card elements using a priority-ordered selector
	// list; the first non-empty match wins. Zero cards on a known-good
	// page surface as KindAdapterDrift.
	LocateJobCards(doc *goquery.Document) (*goquery.Selection, error)

	// ExtractCard pulls the basic fields from one card element. Returns
	// nil when a required field (title, company, location) is missing; the
	// caller counts the drop.
	ExtractCard(sel *goquery.Selection) *JobCard

	// Paginate returns the next page URL, or false when the site caps out.
	Paginate(keyword, location string, nextPage int) (string, bool)

	// WarmupURLs are optional neutral navigations before the first search
	// page, empty for most sites.
	WarmupURLs() []string
}

// BrowserLease is a scoped acquisition of a browser context. Release is
// guaranteed to run on every exit path and is safe to call twice.
type BrowserLease interface {
	// Context is the chromedp browser context for this lease.
	Context() context.Context
	// Release returns the context to the pool, reaping any stray pages.
	Release()
	// MarkBroken flags the context as crashed so the pool replaces it.
	MarkBroken()
}

// BrowserPool lends ready automated browser contexts to workers.
type BrowserPool interface {
	// Acquire blocks until a context is free or ctx expires.
	Acquire(ctx context.Context) (BrowserLease, error)
	// OpenTabCount reports the number of open page targets across the
	// pool. Tests assert it returns to baseline after every run.
	OpenTabCount() (int, error)
	Shutdown() error
}

// PageFetcher renders a listing page into a parsed document.
type PageFetcher interface {
	Fetch(ctx context.Context, lease BrowserLease, url string) (*goquery.Document, error)
}

// ResolveResult is the outcome of one canonical-URL resolution.
type ResolveResult struct {
	// URL is the canonical employer URL, or empty for recoverable
	// failures (timeout, self-link, no handler). Empty results are always
	// paired with a counter.
	URL string
	// Via names the resolution step that produced the URL: "href",
	// "redirect", "popup", "navigation", or "" when empty.
	Via string
	// TimedOut marks a click that exceeded the per-click budget.
	TimedOut bool
	// SelfLink marks an href discarded as a listing-site search link.
	SelfLink bool
}

// URLResolver turns a card's link into the canonical employer URL.
type URLResolver interface {
	Resolve(ctx context.Context, lease BrowserLease, pageURL string, card *JobCard, site SiteAdapter) (ResolveResult, error)
}
