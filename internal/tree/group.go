package tree

import (
	"github.com/roach88/formentry/internal/grouping"
	"github.com/roach88/formentry/internal/observable"
	"github.com/roach88/formentry/internal/wire"
)

// Group style tokens.
const (
	StyleCollapsible     = "collapsible"
	StyleCollapsibleOpen = "collapsible-open"
	StyleStripeRepeats   = "stripe-repeats"
	StyleGroupBorder     = "group-border"
)

// Group is a container of questions and nested containers. A group whose
// parent is a Repeat is one instance of that repeat.
type Group struct {
	nodeBase
	container

	repeatable   bool
	collapsible  bool
	showChildren *observable.Value[bool]
}

func newGroup(snap wire.Node, parent Container) *Group {
	g := &Group{
		nodeBase:     newBase(snap.Type, snap.Ix, snap.UUID, parent),
		container:    newContainer(),
		showChildren: observable.NewComparable(true),
	}
	g.collapsible = snap.Style.Has(StyleCollapsible)
	g.showChildren.Set(!g.collapsible || snap.Style.Has(StyleCollapsibleOpen))
	return g
}

// Kind returns KindGroup.
func (g *Group) Kind() Kind { return KindGroup }

// IsRepetition reports whether the group is an instance of a repeat.
func (g *Group) IsRepetition() bool {
	_, ok := g.parent.(*Repeat)
	return ok
}

// Repeatable reports whether the server marked the group as a repeat with a
// fixed repeat count.
func (g *Group) Repeatable() bool { return g.repeatable }

// Caption returns the group caption. Repeat instances hide theirs, since
// the repeat shows it once, unless the form shows one question per screen.
func (g *Group) Caption() string {
	if g.IsRepetition() && !oneQuestionPerScreen(g) {
		return ""
	}
	return g.caption.Get()
}

// ShowHeader reports whether the group renders a header row.
func (g *Group) ShowHeader() bool {
	return oneQuestionPerScreen(g) || g.IsRepetition() || g.Caption() != "" || g.CaptionMarkdown() != ""
}

// Collapsible reports whether the group declared the collapsible style.
func (g *Group) Collapsible() bool { return g.collapsible }

// ShowChildren reports whether the group is expanded.
func (g *Group) ShowChildren() bool { return g.showChildren.Get() }

// ToggleChildren expands or collapses a collapsible group. It is a no-op
// for other groups.
func (g *Group) ToggleChildren() {
	if g.collapsible {
		g.showChildren.Set(!g.showChildren.Get())
	}
}

// SubscribeShowChildren registers fn for expand/collapse changes.
func (g *Group) SubscribeShowChildren(fn func(bool)) observable.Subscription {
	return g.showChildren.Subscribe(fn)
}

// StripeRepeats reports whether repeat instances are rendered striped.
func (g *Group) StripeRepeats() bool { return g.style.Has(StyleStripeRepeats) }

// GroupBorder reports whether the group is rendered with a border.
func (g *Group) GroupBorder() bool { return g.style.Has(StyleGroupBorder) }

// IsVisible reports whether the group has both children and a caption.
func (g *Group) IsVisible() bool {
	return len(g.Children()) > 0 && (g.Caption() != "" || g.CaptionMarkdown() != "")
}

// HeaderDepth returns the nesting depth used to shade the header, or 0 when
// the group has no shaded header.
func (g *Group) HeaderDepth() int {
	if g.IsRepetition() || !g.collapsible {
		return 0
	}
	return NestingDepth(g)
}

// ElementWidth returns the grid columns the group occupies.
func (g *Group) ElementWidth() int { return grouping.ElementWidth(g.style) }

func (g *Group) reconcile(snap wire.Node, r *reconciler) {
	g.typ = snap.Type
	g.ix.Set(snap.Ix)
	g.repeatable = snap.Repeatable == "true"
	r.applyCommon(&g.nodeBase, snap)
	g.collapsible = snap.Style.Has(StyleCollapsible)
	r.reconcileOwner(g, snap.Children)
}

// Repeat is a container whose children are repeat instances.
type Repeat struct {
	nodeBase
	container
}

func newRepeat(snap wire.Node, parent Container) *Repeat {
	return &Repeat{
		nodeBase:  newBase(snap.Type, snap.Ix, snap.UUID, parent),
		container: newContainer(),
	}
}

// Kind returns KindRepeat.
func (r *Repeat) Kind() Kind { return KindRepeat }

// Instances returns the repeat instances in order.
func (r *Repeat) Instances() []*Group {
	var out []*Group
	for _, c := range r.Children() {
		if g, ok := c.(*Group); ok {
			out = append(out, g)
		}
	}
	return out
}

// ElementWidth returns the grid columns the repeat occupies.
func (r *Repeat) ElementWidth() int { return grouping.ElementWidth(r.style) }

func (r *Repeat) reconcile(snap wire.Node, rc *reconciler) {
	r.typ = snap.Type
	r.ix.Set(snap.Ix)
	rc.applyCommon(&r.nodeBase, snap)
	rc.reconcileOwner(r, snap.Children)
}

// TileRow is a synthetic row of questions laid out side by side. Its index
// is the composite of its members' indices.
type TileRow struct {
	nodeBase
	container
}

func newTileRow(snap wire.Node, parent Container) *TileRow {
	return &TileRow{
		nodeBase:  newBase(snap.Type, snap.Ix, snap.UUID, parent),
		container: newContainer(),
	}
}

// Kind returns KindTileRow.
func (t *TileRow) Kind() Kind { return KindTileRow }

// RelIx returns "": rows are transparent to index qualification.
func (t *TileRow) RelIx() string { return "" }

// HasQuestions reports whether the row holds any question.
func (t *TileRow) HasQuestions() bool {
	for _, c := range t.Children() {
		if c.Kind() == KindQuestion {
			return true
		}
	}
	return false
}

func (t *TileRow) reconcile(snap wire.Node, r *reconciler, sc *scope) {
	t.ix.Set(snap.Ix)
	t.body().children.Set(r.match(t, snap.Children, sc))
}
