package extractor

// Heading is one entry of a page's outline, in document order.
type Heading struct {
	Level int    // 1-4
	Text  string
}

// Section is a heading-delimited span of page content.
// Heading is empty for the implicit leading section before the first heading.
type Section struct {
	Heading string
	Text    string
}

// Page is the normalized plain-text record of one source document.
// It is built once per index pass and never mutated afterwards.
type Page struct {
	Title    string
	URL      string // relative path, unique per page
	Headings []Heading
	FullText string
	Sections []Section
}

// WordCount returns the whitespace-delimited token count of the page's full text.
func (p *Page) WordCount() int {
	return countWords(p.FullText)
}
