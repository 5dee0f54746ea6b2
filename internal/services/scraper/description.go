package scraper

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// mdConverter is shared; the converter is stateless after construction.
var mdConverter = md.NewConverter("", true, nil)

// DescriptionMarkdown converts an inline description fragment to markdown
// for storage. Falls back to stripped text when conversion fails.
func DescriptionMarkdown(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	out, err := mdConverter.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(out)
}
