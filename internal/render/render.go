// Package render turns caption text sent by the session server into display
// strings.
//
// Plain captions are sanitised HTML with newlines converted to <br/>;
// markdown captions and help text are rendered to HTML first and then
// sanitised. The tree model only depends on the Captioner interface so tests
// can substitute an identity renderer.
package render

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Captioner renders caption fields for display.
type Captioner interface {
	// Caption sanitises a plain caption. Empty input yields "".
	Caption(raw string) string
	// Markdown renders a markdown caption or help text. Empty input yields "".
	Markdown(raw string) string
}

// HTML is the production Captioner.
type HTML struct {
	policy *bluemonday.Policy
	md     goldmark.Markdown
}

// NewHTML creates a Captioner backed by goldmark and bluemonday's UGC policy.
func NewHTML() *HTML {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("target").OnElements("a")
	return &HTML{
		policy: policy,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough, extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Caption converts newlines to <br/> and strips unsafe markup.
func (h *HTML) Caption(raw string) string {
	if raw == "" {
		return ""
	}
	return h.policy.Sanitize(strings.ReplaceAll(raw, "\n", "<br/>"))
}

// Markdown renders raw as markdown and sanitises the result. On a renderer
// failure the sanitised source text is returned instead.
func (h *HTML) Markdown(raw string) string {
	if raw == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(raw), &buf); err != nil {
		slog.Warn("markdown render failed", "error", err)
		return h.policy.Sanitize(raw)
	}
	return strings.TrimSpace(h.policy.Sanitize(buf.String()))
}

// Identity returns captions unchanged. Used by tests and by tools that
// want the raw server text.
type Identity struct{}

// Caption returns raw.
func (Identity) Caption(raw string) string { return raw }

// Markdown returns raw.
func (Identity) Markdown(raw string) string { return raw }
