package wire

import (
	"fmt"
	"strings"
)

// Node types sent by the session server, plus the synthetic row type produced
// by the grouping preprocessor.
const (
	TypeQuestion       = "question"
	TypeGroup          = "group"
	TypeSubGroup       = "sub-group"
	TypeRepeat         = "repeat"
	TypeRepeatJuncture = "repeat-juncture"
	TypeGroupedTileRow = "grouped-element-tile-row"
)

// Response statuses and validation error types.
const (
	StatusValidationError = "validation-error"
	StatusSuccess         = "success"
	StatusError           = "error"

	ValidationRequired   = "required"
	ValidationConstraint = "constraint"
)

// Human-readable server error messages.
const (
	MessageRequired   = "An answer is required"
	MessageConstraint = "This answer is outside the allowed range."
)

// Node is one element of the recursive tree snapshot pushed by the server.
//
// Absent and empty are distinct for list fields: a nil Children means the
// snapshot says nothing about children, an empty non-nil slice means the
// container has none.
type Node struct {
	Type            string         `json:"type"`
	Ix              string         `json:"ix"`
	UUID            string         `json:"uuid,omitempty"`
	Caption         *string        `json:"caption,omitempty"`
	CaptionMarkdown *string        `json:"caption_markdown,omitempty"`
	Help            *string        `json:"help,omitempty"`
	Hint            *string        `json:"hint,omitempty"`
	Datatype        string         `json:"datatype,omitempty"`
	Answer          any            `json:"answer,omitempty"`
	Choices         []any          `json:"choices,omitempty"`
	Required        Flag           `json:"required,omitempty"`
	Style           Style          `json:"style,omitempty"`
	DomainMeta      map[string]any `json:"domain_meta,omitempty"`
	Repeatable      string         `json:"repeatable,omitempty"`
	Children        []Node         `json:"children,omitempty"`
}

// Key returns the identity used when diffing children: the uuid when the
// server assigned one (repeat instances), otherwise the index.
func (n Node) Key() string {
	if n.UUID != "" {
		return n.UUID
	}
	return n.Ix
}

// IsComposite reports whether the node type carries children.
func (n Node) IsComposite() bool {
	switch n.Type {
	case TypeGroup, TypeSubGroup, TypeRepeat, TypeRepeatJuncture, TypeGroupedTileRow:
		return true
	}
	return false
}

// IsRepeatLike reports whether the node is a repeat, or a sub-group the
// server marked as repeatable (a repeat with a fixed repeat-count).
func (n Node) IsRepeatLike() bool {
	switch n.Type {
	case TypeRepeat, TypeRepeatJuncture:
		return true
	case TypeGroup, TypeSubGroup:
		return n.Repeatable == "true"
	}
	return false
}

// Flag decodes a boolean the server may send as true/false or 0/1.
type Flag bool

// UnmarshalJSON accepts JSON booleans, numbers and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch s := strings.TrimSpace(string(data)); s {
	case "true":
		*f = true
	case "false", "null", "0", `""`:
		*f = false
	default:
		if s == "" {
			return fmt.Errorf("empty flag")
		}
		if s[0] == '"' {
			*f = Flag(strings.Trim(s, `"`) == "true")
			return nil
		}
		*f = true
	}
	return nil
}

// Style carries appearance hints. The "raw" key holds space-separated style
// tokens; other keys are per-datatype options.
type Style map[string]any

// Raw returns the raw token string, or "".
func (s Style) Raw() string {
	if s == nil {
		return ""
	}
	raw, _ := s["raw"].(string)
	return raw
}

// Tokens returns the whitespace-separated style tokens.
func (s Style) Tokens() []string {
	return strings.Fields(s.Raw())
}

// Has reports whether token is one of the style tokens.
func (s Style) Has(token string) bool {
	for _, t := range s.Tokens() {
		if t == token {
			return true
		}
	}
	return false
}

// WithToken returns a copy of s with token appended to raw, unless present.
func (s Style) WithToken(token string) Style {
	if s.Has(token) {
		return s
	}
	out := make(Style, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	if raw := s.Raw(); raw != "" {
		out["raw"] = raw + " " + token
	} else {
		out["raw"] = token
	}
	return out
}

// DisplayOptions configures how the form is presented.
type DisplayOptions struct {
	OneQuestionPerScreen bool `json:"oneQuestionPerScreen,omitempty"`
}

// ValidationError is a server-side validation failure for one question.
type ValidationError struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// Message renders the error for display. Unknown types yield "".
func (e *ValidationError) Message() string {
	if e == nil {
		return ""
	}
	switch e.Type {
	case ValidationRequired:
		return MessageRequired
	case ValidationConstraint:
		if e.Reason != "" {
			return e.Reason
		}
		return MessageConstraint
	}
	return ""
}

// Response is a server message carrying either a tree snapshot or a
// validation error for the question that triggered it.
type Response struct {
	Status           string                      `json:"status,omitempty"`
	Type             string                      `json:"type,omitempty"`
	Reason           string                      `json:"reason,omitempty"`
	Tree             []Node                      `json:"tree,omitempty"`
	Children         []Node                      `json:"children,omitempty"`
	SeqID            int64                       `json:"seq_id,omitempty"`
	SessionID        string                      `json:"session_id,omitempty"`
	Title            string                      `json:"title,omitempty"`
	Langs            []string                    `json:"langs,omitempty"`
	DisplayOptions   *DisplayOptions             `json:"displayOptions,omitempty"`
	Errors           map[string]*ValidationError `json:"errors,omitempty"`
	ShouldAutoSubmit bool                        `json:"shouldAutoSubmit,omitempty"`
}

// IsValidationError reports whether the response rejects the submitted answer.
func (r *Response) IsValidationError() bool {
	return r.Status == StatusValidationError
}

// ValidationError returns the rejection carried by a validation-error response.
func (r *Response) ValidationError() *ValidationError {
	return &ValidationError{Type: r.Type, Reason: r.Reason}
}

// Normalize moves the server's "tree" field to "children" so the response
// can be reconciled like any other container.
func (r *Response) Normalize() {
	if r.Tree != nil {
		r.Children = r.Tree
		r.Tree = nil
	}
}

// Root returns the response as an untyped container node.
func (r *Response) Root() Node {
	r.Normalize()
	return Node{Children: r.Children}
}

// NavigationResult is the server's answer to a next/prev request.
type NavigationResult struct {
	CurrentIndex   string `json:"currentIndex"`
	IsAtFirstIndex bool   `json:"isAtFirstIndex"`
	IsAtLastIndex  bool   `json:"isAtLastIndex"`
}

// SubmitResult is the server's answer to a submit-all request.
type SubmitResult struct {
	Status       string                      `json:"status"`
	Errors       map[string]*ValidationError `json:"errors,omitempty"`
	Notification string                      `json:"notification,omitempty"`
}
