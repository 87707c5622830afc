package normalizer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inboxia/mailcore/internal/utils"
)

const maxSnippetLength = 4096

// htmlToText strips markup from an HTML body and returns collapsed plain
// text, capped at maxSnippetLength. Script and style contents are removed
// before extraction.
func htmlToText(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable markup: fall back to the raw content
		return utils.Truncate(utils.CollapseWhitespace(html), maxSnippetLength)
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	text := doc.Text()
	return utils.Truncate(utils.CollapseWhitespace(text), maxSnippetLength)
}
