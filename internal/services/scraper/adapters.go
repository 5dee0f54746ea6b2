package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

// NewAdapterRegistry builds the supported site adapters in deterministic
// order. Sites are iterated in this order when building the work queue.
func NewAdapterRegistry(cfg common.ScraperConfig) []interfaces.SiteAdapter {
	return []interfaces.SiteAdapter{
		NewElutaAdapter(cfg.DaysPostedWindow),
		NewIndeedAdapter(cfg.DaysPostedWindow),
		NewLinkedInAdapter(cfg.DaysPostedWindow),
		NewMonsterAdapter(cfg.MonsterWarmup),
		NewJobBankAdapter(),
		NewTowardsAIAdapter(),
	}
}

// AdapterByName returns the adapter with the given site tag.
func AdapterByName(adapters []interfaces.SiteAdapter, name string) (interfaces.SiteAdapter, bool) {
	for _, a := range adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// firstMatch walks a priority-ordered selector list and returns the first
// selection that matches at least one element.
func firstMatch(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

// locateCards applies the selector cascade and classifies the empty case:
// a page showing the site's no-results marker is a legitimate empty result,
// a page without it means the selectors rotted.
func locateCards(doc *goquery.Document, site string, cardSelectors, emptyMarkers []string) (*goquery.Selection, error) {
	if cards := firstMatch(doc, cardSelectors); cards != nil {
		return cards, nil
	}
	for _, marker := range emptyMarkers {
		if doc.Find(marker).Length() > 0 {
			return doc.Find(cardSelectors[0]), nil
		}
	}
	return nil, common.Ef(common.KindAdapterDrift, "adapter.locate_cards",
		"%s: no job cards and no empty-result marker; selectors likely stale", site)
}

// cleanText collapses whitespace in extracted node text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textFrom returns the first non-empty cleaned text among the selectors.
func textFrom(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if t := cleanText(sel.Find(s).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// hrefFrom returns the first non-empty href among the selectors, with the
// matching selector so the resolver can click it later.
func hrefFrom(sel *goquery.Selection, selectors ...string) (string, string) {
	for _, s := range selectors {
		node := sel.Find(s).First()
		if href, ok := node.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return strings.TrimSpace(href), s
		}
	}
	return "", ""
}

// cardLinkSelector returns an absolute positional selector for the card's
// primary link. Pinning to the href is not unique when cards share one
// (Eluta's "#!" pseudo-hrefs), so the path is built from nth-child
// positions and always hits this card's own anchor.
func cardLinkSelector(sel *goquery.Selection, selectors ...string) string {
	if goquery.NodeName(sel) == "a" {
		return nodePath(sel)
	}
	for _, s := range selectors {
		if node := sel.Find(s).First(); node.Length() > 0 {
			return nodePath(node)
		}
	}
	if node := sel.Find("a").First(); node.Length() > 0 {
		return nodePath(node)
	}
	return ""
}

// nodePath builds a body-rooted nth-child chain for one element.
func nodePath(node *goquery.Selection) string {
	var parts []string
	for cur := node.First(); cur.Length() > 0; cur = cur.Parent() {
		tag := goquery.NodeName(cur)
		if tag == "" || tag == "html" || strings.HasPrefix(tag, "#") {
			break
		}
		if tag == "body" {
			parts = append(parts, "body")
			break
		}
		position := 1
		for prev := cur.Prev(); prev.Length() > 0; prev = prev.Prev() {
			position++
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", tag, position))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
