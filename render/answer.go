package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// The policy is built once; bluemonday policies are safe for concurrent use.
var sanitizer = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// AnswerHTML renders a markdown answer to HTML with scripts, event handlers
// and unsafe URLs stripped. Links open in a new tab.
func AnswerHTML(md string) string {
	// Parsers keep state and cannot be reused.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.Render(doc, renderer)
	return string(sanitizer.SanitizeBytes(out))
}

const blockElements = "p, li, h1, h2, h3, h4, h5, h6, pre, blockquote, tr, br, hr, div"

// PlainText extracts readable text from HTML. Scripts and styles are
// dropped, block elements end a line, and blank lines are collapsed.
func PlainText(htmlText string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find(blockElements).AfterHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// AnswerText renders a markdown answer for a plain terminal.
func AnswerText(md string) string {
	text, err := PlainText(AnswerHTML(md))
	if err != nil {
		return md
	}
	return text
}
