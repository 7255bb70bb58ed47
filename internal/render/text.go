package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/net/html"
)

// PlainText extracts the visible text of rendered caption HTML. <br> becomes
// a newline; runs of whitespace inside text nodes collapse to one space.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF, or malformed markup: either way the text so far is
			// the best answer.
			return strings.TrimSpace(b.String())
		case html.TextToken:
			writeCollapsed(&b, string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br":
				b.WriteString("\n")
			case "p", "li", "div":
				if b.Len() > 0 {
					b.WriteString("\n")
				}
			}
		}
	}
}

func writeCollapsed(b *strings.Builder, text string) {
	words := strings.Fields(text)
	if len(words) == 0 {
		if text != "" {
			writeSpace(b)
		}
		return
	}
	if text[0] == ' ' || text[0] == '\t' || text[0] == '\n' {
		writeSpace(b)
	}
	b.WriteString(strings.Join(words, " "))
	if last := text[len(text)-1]; last == ' ' || last == '\t' || last == '\n' {
		writeSpace(b)
	}
}

func writeSpace(b *strings.Builder) {
	s := b.String()
	if s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") {
		return
	}
	b.WriteString(" ")
}

// Terminal renders markdown for a terminal without colour codes, wrapped at
// width columns. Falls back to the source text if rendering fails.
func Terminal(markdown string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSpace(out)
}
