package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTML_Caption(t *testing.T) {
	r := NewHTML()

	assert.Equal(t, "", r.Caption(""))
	assert.Equal(t, "line one<br/>line two", r.Caption("line one\nline two"))

	got := r.Caption(`hi <script>alert(1)</script><b>there</b>`)
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "<b>there</b>")
}

func TestHTML_Markdown(t *testing.T) {
	r := NewHTML()

	assert.Equal(t, "", r.Markdown(""))
	assert.Equal(t, "<p><strong>bold</strong> text</p>", r.Markdown("**bold** text"))

	got := r.Markdown("click <a href=\"javascript:alert(1)\">me</a>")
	assert.NotContains(t, got, "javascript:")
}

func TestIdentity(t *testing.T) {
	var c Captioner = Identity{}
	assert.Equal(t, "a\nb", c.Caption("a\nb"))
	assert.Equal(t, "**x**", c.Markdown("**x**"))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line one<br/>line two", "line one\nline two"},
		{"<p><strong>bold</strong> text</p>", "bold text"},
		{"a &amp; b", "a & b"},
		{"<p>one</p><p>two</p>", "one\ntwo"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), tt.in)
	}
}

func TestTerminal(t *testing.T) {
	out := Terminal("# Title\n\nSome *text*.", 40)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "text")
}
