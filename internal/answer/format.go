package answer

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// formatter renders answer text for display: markdown emphasis/code becomes
// HTML and bare URLs become hyperlinks. Pure string transform, cosmetic only.
var formatter = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
)

// FormatHTML converts an answer string to display HTML. On any conversion
// failure the original text is returned unchanged.
func FormatHTML(text string) string {
	var buf bytes.Buffer
	if err := formatter.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return strings.TrimSpace(buf.String())
}
