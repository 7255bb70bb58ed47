package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/wire"
)

// Snapshot is a plain, serializable copy of a live tree, used for golden
// files and machine-readable CLI output.
type Snapshot struct {
	Kind            string     `json:"kind"`
	Type            string     `json:"type,omitempty"`
	Ix              string     `json:"ix,omitempty"`
	AbsIx           string     `json:"abs_ix,omitempty"`
	UUID            string     `json:"uuid,omitempty"`
	Caption         string     `json:"caption,omitempty"`
	CaptionMarkdown string     `json:"caption_markdown,omitempty"`
	Datatype        string     `json:"datatype,omitempty"`
	Answer          any        `json:"answer,omitempty"`
	Dirty           bool       `json:"dirty,omitempty"`
	Error           string     `json:"error,omitempty"`
	ServerError     string     `json:"server_error,omitempty"`
	Required        bool       `json:"required,omitempty"`
	Choices         []any      `json:"choices,omitempty"`
	Collapsed       bool       `json:"collapsed,omitempty"`
	Children        []Snapshot `json:"children,omitempty"`
}

// Snap copies the tree under n.
func Snap(n Node) Snapshot {
	s := Snapshot{
		Kind:            n.Kind().String(),
		Type:            n.Type(),
		Ix:              n.Ix(),
		UUID:            n.UUID(),
		Caption:         n.Caption(),
		CaptionMarkdown: n.CaptionMarkdown(),
	}
	switch v := n.(type) {
	case *Question:
		s.AbsIx = AbsoluteIndex(v)
		s.Datatype = v.Datatype()
		s.Answer = v.Answer()
		s.Dirty = v.Dirty()
		s.Error = v.Error()
		s.ServerError = v.ServerError()
		s.Required = v.Required()
		s.Choices = v.Choices()
	case *Group:
		s.Collapsed = !v.ShowChildren()
	}
	if c, ok := n.(Container); ok {
		for _, child := range c.Children() {
			s.Children = append(s.Children, Snap(child))
		}
	}
	return s
}

// MarshalSnapshot renders the tree under n as indented canonical JSON.
func MarshalSnapshot(n Node) ([]byte, error) {
	data, err := wire.MarshalCanonical(Snap(n))
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return wire.Indent(data)
}

// Dump writes a human-readable outline of the form, one node per line.
func Dump(w io.Writer, f *Form) error {
	var b strings.Builder
	b.WriteString("form")
	if f.Title() != "" {
		fmt.Fprintf(&b, " %q", f.Title())
	}
	if f.OneQuestionPerScreen() {
		b.WriteString(" [one-question-per-screen]")
	}
	b.WriteString("\n")
	dumpChildren(&b, f, 1)
	_, err := io.WriteString(w, b.String())
	return err
}

func dumpChildren(b *strings.Builder, c Container, depth int) {
	for _, child := range c.Children() {
		b.WriteString(strings.Repeat("  ", depth))
		dumpLine(b, child)
		b.WriteString("\n")
		if cc, ok := child.(Container); ok {
			dumpChildren(b, cc, depth+1)
		}
	}
}

func dumpLine(b *strings.Builder, n Node) {
	fmt.Fprintf(b, "%s %s", n.Kind(), n.Ix())
	if caption := displayCaption(n); caption != "" {
		fmt.Fprintf(b, " %q", caption)
	}
	switch v := n.(type) {
	case *Question:
		fmt.Fprintf(b, " [%s]", v.Datatype())
		if v.Answer() != nil {
			fmt.Fprintf(b, " = %v", v.Answer())
		}
		if v.Required() {
			b.WriteString(" *required")
		}
		if v.Dirty() {
			b.WriteString(" *dirty")
		}
		if msg := v.Error(); msg != "" {
			fmt.Fprintf(b, " !%q", msg)
		}
		if msg := v.ServerError(); msg != "" {
			fmt.Fprintf(b, " !%q", msg)
		}
	case *Group:
		if v.IsRepetition() {
			fmt.Fprintf(b, " (%s)", v.UUID())
		}
		if v.Collapsible() && !v.ShowChildren() {
			b.WriteString(" [collapsed]")
		}
	}
}

// displayCaption returns the visible text of a node's caption.
func displayCaption(n Node) string {
	if md := n.CaptionMarkdown(); md != "" {
		return render.PlainText(md)
	}
	return render.PlainText(n.Caption())
}
