package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// minSectionLen is the retention threshold for section text. Spans at or below
// this length are discarded as non-substantive (stray labels, captions).
const minSectionLen = 50

// strippedSelector matches elements whose content must never become searchable.
// They are removed before any text extraction.
const strippedSelector = "script, style, noscript, nav, footer, [role=navigation]"

// Extractor turns raw page markup into plain-text page records.
type Extractor struct{}

// New creates a new Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractPage parses raw HTML markup and produces one Page record.
// Malformed markup degrades to best-effort extraction; an empty or missing
// content region yields a Page with empty FullText and zero sections.
func (e *Extractor) ExtractPage(markup, url string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	doc.Find(strippedSelector).Remove()

	// Prefer a semantic container, then fall back to the whole body.
	region := doc.Find("article").First()
	if region.Length() == 0 {
		region = doc.Find("main").First()
	}
	if region.Length() == 0 {
		region = doc.Find("body").First()
	}

	page := &Page{
		Title: pageTitle(doc, region, url),
		URL:   url,
	}

	if region.Length() == 0 {
		return page, nil
	}

	page.FullText = normalizeWhitespace(region.Text())

	region.Find("h1, h2, h3, h4").Each(func(_ int, sel *goquery.Selection) {
		text := normalizeWhitespace(sel.Text())
		if text == "" {
			return
		}
		page.Headings = append(page.Headings, Heading{
			Level: headingLevel(goquery.NodeName(sel)),
			Text:  text,
		})
	})

	page.Sections = splitSections(region.Get(0))

	return page, nil
}

// pageTitle resolves a display name: <title> tag, then first h1 in the
// content region, then the URL itself.
func pageTitle(doc *goquery.Document, region *goquery.Selection, url string) string {
	if title := normalizeWhitespace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if region.Length() > 0 {
		if h1 := normalizeWhitespace(region.Find("h1").First().Text()); h1 != "" {
			return h1
		}
	}
	return url
}

// splitSections segments the content region at heading boundaries. Every
// heading starts a new section; content before the first heading is assigned
// to an implicit unheaded leading section. Sections whose text does not exceed
// minSectionLen are dropped.
func splitSections(root *html.Node) []Section {
	var sections []Section
	var buf strings.Builder
	heading := ""
	started := false

	flush := func() {
		text := normalizeWhitespace(buf.String())
		if len(text) > minSectionLen {
			sections = append(sections, Section{Heading: heading, Text: text})
		}
		buf.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level >= 1 && level <= 4 {
				if started {
					flush()
				}
				started = true
				heading = normalizeWhitespace(nodeText(n))
				return // heading text belongs to the Heading field, not the body
			}
		}
		if n.Type == html.TextNode {
			started = true
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	if started {
		flush()
	}

	return sections
}

// nodeText collects the text content of a node subtree.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func headingLevel(name string) int {
	switch name {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	}
	return 0
}

// normalizeWhitespace collapses all runs of whitespace (including newlines)
// to single spaces and trims the result.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
