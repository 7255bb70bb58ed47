package tree

import (
	"github.com/roach88/formentry/internal/ix"
	"github.com/roach88/formentry/internal/observable"
	"github.com/roach88/formentry/internal/wire"
)

// Kind discriminates the closed set of node variants.
type Kind int

const (
	KindQuestion Kind = iota + 1
	KindGroup
	KindRepeat
	KindTileRow
	KindForm
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindGroup:
		return "group"
	case KindRepeat:
		return "repeat"
	case KindTileRow:
		return "tile-row"
	case KindForm:
		return "form"
	}
	return "unknown"
}

// kindOf maps a snapshot type to the node kind that represents it.
func kindOf(nodeType string) (Kind, bool) {
	switch nodeType {
	case wire.TypeQuestion:
		return KindQuestion, true
	case wire.TypeGroup, wire.TypeSubGroup:
		return KindGroup, true
	case wire.TypeRepeat, wire.TypeRepeatJuncture:
		return KindRepeat, true
	case wire.TypeGroupedTileRow:
		return KindTileRow, true
	}
	return 0, false
}

// Node is a live element of a form tree.
//
// The set of implementations is closed: *Question is the only leaf, and
// *Group, *Repeat, *TileRow and *Form implement Container.
type Node interface {
	Kind() Kind
	// Type is the snapshot type string ("sub-group" and "group" are both
	// KindGroup).
	Type() string
	Ix() string
	// RelIx is the part of Ix below the deepest enclosing repeat.
	RelIx() string
	UUID() string
	Parent() Container
	Caption() string
	CaptionMarkdown() string
	Style() wire.Style
	DomainMeta() map[string]any

	// SubscribeIx registers fn for index changes (repeat instances shift
	// when siblings are added or removed).
	SubscribeIx(fn func(string)) observable.Subscription

	core() *nodeBase
}

// Container is a node that owns an ordered list of children.
type Container interface {
	Node
	Children() []Node
	// ChildrenRequired reports whether any descendant question is required.
	ChildrenRequired() bool
	// SubscribeChildren registers fn for structural changes of the child list.
	SubscribeChildren(fn func([]Node)) observable.Subscription

	body() *container
}

// nodeBase holds the fields shared by every variant.
type nodeBase struct {
	typ             string
	ix              *observable.Value[string]
	uuid            string
	caption         *observable.Value[string]
	captionMarkdown *observable.Value[string]
	style           wire.Style
	domainMeta      map[string]any
	parent          Container

	// subs holds subscriptions this node registered on other cells. They
	// are released when the node is dropped from the tree.
	subs observable.Group
}

func newBase(nodeType, index, uuid string, parent Container) nodeBase {
	return nodeBase{
		typ:             nodeType,
		ix:              observable.NewComparable(index),
		uuid:            uuid,
		caption:         observable.NewComparable(""),
		captionMarkdown: observable.NewComparable(""),
		parent:          parent,
	}
}

func (b *nodeBase) Type() string { return b.typ }
func (b *nodeBase) Ix() string { return b.ix.Get() }
func (b *nodeBase) UUID() string { return b.uuid }
func (b *nodeBase) Parent() Container { return b.parent }
func (b *nodeBase) Caption() string { return b.caption.Get() }
func (b *nodeBase) CaptionMarkdown() string { return b.captionMarkdown.Get() }
func (b *nodeBase) Style() wire.Style { return b.style }
func (b *nodeBase) DomainMeta() map[string]any { return b.domainMeta }
func (b *nodeBase) core() *nodeBase { return b }
func (b *nodeBase) RelIx() string { return ix.Relative(b.ix.Get()) }
func (b *nodeBase) StylesContain(token string) bool { return b.style.Has(token) }

func (b *nodeBase) SubscribeIx(fn func(string)) observable.Subscription {
	return b.ix.Subscribe(fn)
}

// key is the identity used when diffing siblings.
func (b *nodeBase) key() string {
	if b.uuid != "" {
		return b.uuid
	}
	return b.ix.Get()
}

// release disposes the subscriptions held by n and its descendants.
func release(n Node) {
	n.core().subs.Dispose()
	if c, ok := n.(Container); ok {
		for _, child := range c.Children() {
			release(child)
		}
	}
}

// container holds the child list of a composite node.
type container struct {
	children *observable.Value[[]Node]
}

func newContainer() container {
	return container{children: observable.New[[]Node]([]Node{}, sameNodes)}
}

func (c *container) Children() []Node { return c.children.Get() }

func (c *container) SubscribeChildren(fn func([]Node)) observable.Subscription {
	return c.children.Subscribe(fn)
}

func (c *container) body() *container { return c }

func (c *container) ChildrenRequired() bool {
	for _, child := range c.Children() {
		switch n := child.(type) {
		case *Question:
			if n.Required() {
				return true
			}
		case Container:
			if n.ChildrenRequired() {
				return true
			}
		}
	}
	return false
}

// sameNodes reports whether two child lists hold the same nodes in the same
// order.
func sameNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
