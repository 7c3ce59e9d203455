// Package markdown converts raw help-centre HTML into the clean
// Markdown documents that get indexed. The output is tuned for
// retrieval: navigation chrome, images and promotional boilerplate
// are dropped, links are absolutised for citations, and a small
// metadata header carries the item id and URL.
package markdown

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/kbsync-cli/internal/adapters/driven/artifacts"
	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
)

// Ensure Transformer implements the interface.
var _ driven.ContentTransformer = (*Transformer)(nil)

// Transformer is the HTML -> Markdown implementation of
// driven.ContentTransformer.
type Transformer struct {
	converter *md.Converter
	baseURL   string
}

// New creates a transformer. baseURL is used to absolutise relative
// links so citations keep working outside the source site.
func New(baseURL string) *Transformer {
	return &Transformer{
		converter: md.NewConverter("", true, nil),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// ToDocument converts a raw item body into an indexable document.
func (t *Transformer) ToDocument(_ context.Context, raw *domain.RawContent) (*domain.Document, error) {
	if raw == nil {
		return nil, fmt.Errorf("nil raw content")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	t.cleanDOM(doc)

	markdown := t.converter.Convert(doc.Selection)
	markdown = cleanMarkdown(markdown)

	content := header(raw.Item) + markdown

	return &domain.Document{
		ItemID:  raw.Item.ID,
		Name:    artifacts.ArtifactName(raw.Item.Title, raw.Item.ID),
		Content: content,
	}, nil
}

// cleanDOM strips non-content elements and absolutises URLs before
// conversion.
func (t *Transformer) cleanDOM(doc *goquery.Document) {
	doc.Find("nav, aside, footer, header, script, style, noscript, svg").Remove()
	doc.Find(`div[class*="ad"], div[class*="nav"]`).Remove()
	doc.Find("img").Remove()

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if abs := t.absolutise(href); abs != href {
			sel.SetAttr("href", abs)
		}
	})

	// list-style-type:none on list items confuses the converter into
	// dropping bullets.
	doc.Find("li[style], ol[style], ul[style]").RemoveAttr("style")
}

// absolutise turns a site-relative URL into an absolute one.
func (t *Transformer) absolutise(href string) string {
	if t.baseURL == "" || !strings.HasPrefix(href, "/") {
		return href
	}
	if u, err := url.Parse(href); err != nil || u.IsAbs() {
		return href
	}
	return t.baseURL + href
}

// Pre-compiled cleanup expressions applied to the converted Markdown.
var (
	imageRefs     = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	promotional   = regexp.MustCompile(`(?is)### That's all!.*|If you have any additional questions.*?\)|feel free to reach out.*?\)`)
	starSeparator = regexp.MustCompile(`\n\s*\*\s*\*\s*\*\s*\n`)
	dashSeparator = regexp.MustCompile(`\n\s*-{3,}\s*\n`)
	equalsRule    = regexp.MustCompile(`\n\s*={3,}\s*\n`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// cleanMarkdown applies the retrieval-oriented cleanups to converted
// Markdown.
func cleanMarkdown(s string) string {
	s = imageRefs.ReplaceAllString(s, "")
	s = promotional.ReplaceAllString(s, "")
	s = starSeparator.ReplaceAllString(s, "\n\n")
	s = dashSeparator.ReplaceAllString(s, "\n\n")
	s = equalsRule.ReplaceAllString(s, "\n\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// header builds the citation header prepended to every document.
func header(item domain.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	fmt.Fprintf(&b, "**Article ID:** %s\n", item.ID)
	if item.URL != "" {
		fmt.Fprintf(&b, "**Article URL:** %s\n", item.URL)
	}
	b.WriteString("\n---\n\n")
	return b.String()
}
