package tree

import (
	"fmt"
	"log/slog"

	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/wire"
)

// reconciler applies one snapshot to a live tree. A reconciler is used for a
// single pass and then discarded.
type reconciler struct {
	form      *Form
	captioner render.Captioner
	errs      []*ProtocolError
}

// scope is the pool of reusable nodes for one container. It holds the
// container's current children and the members of its tile rows, so a
// question that moves between rows keeps its identity.
type scope struct {
	pool map[string]Node
	seen map[string]bool
}

func newScope(owner Container) *scope {
	sc := &scope{pool: make(map[string]Node), seen: make(map[string]bool)}
	for _, child := range owner.Children() {
		sc.pool[child.core().key()] = child
		if row, ok := child.(*TileRow); ok {
			for _, member := range row.Children() {
				sc.pool[member.core().key()] = member
			}
		}
	}
	return sc
}

// reconcileOwner diffs owner's children against snaps, by identity key.
func (r *reconciler) reconcileOwner(owner Container, snaps []wire.Node) {
	sc := newScope(owner)
	owner.body().children.Set(r.match(owner, snaps, sc))
	for _, leftover := range sc.pool {
		if leftover.Kind() != KindTileRow {
			release(leftover)
		}
	}
}

// match builds the reconciled child list for owner in snapshot order,
// updating pooled nodes in place and creating the rest.
func (r *reconciler) match(owner Container, snaps []wire.Node, sc *scope) []Node {
	out := make([]Node, 0, len(snaps))
	for _, snap := range snaps {
		key := snap.Key()
		if sc.seen[key] {
			r.report(ErrCodeDuplicateKey, snap, fmt.Sprintf("duplicate identity key %q", key))
			continue
		}
		kind, ok := kindOf(snap.Type)
		if !ok {
			r.report(ErrCodeUnknownNodeType, snap, "unrecognized node type")
			continue
		}
		sc.seen[key] = true

		if existing, ok := sc.pool[key]; ok {
			delete(sc.pool, key)
			if existing.Kind() == kind {
				existing.core().parent = owner
				r.update(existing, snap, sc)
				out = append(out, existing)
				continue
			}
			r.report(ErrCodeKindMismatch, snap,
				fmt.Sprintf("node %q changed from %s to %s", key, existing.Kind(), kind))
			if existing.Kind() != KindTileRow {
				release(existing)
			}
		}
		out = append(out, r.create(owner, kind, snap, sc))
	}
	return out
}

func (r *reconciler) update(n Node, snap wire.Node, sc *scope) {
	switch v := n.(type) {
	case *Question:
		v.reconcile(snap, r)
	case *Group:
		v.reconcile(snap, r)
	case *Repeat:
		v.reconcile(snap, r)
	case *TileRow:
		v.reconcile(snap, r, sc)
	}
}

func (r *reconciler) create(owner Container, kind Kind, snap wire.Node, sc *scope) Node {
	switch kind {
	case KindQuestion:
		q := newQuestion(snap, owner)
		q.reconcile(snap, r)
		q.choiceReplacements = 0
		r.form.watch(q)
		return q
	case KindGroup:
		g := newGroup(snap, owner)
		g.reconcile(snap, r)
		return g
	case KindRepeat:
		rp := newRepeat(snap, owner)
		rp.reconcile(snap, r)
		return rp
	default:
		row := newTileRow(snap, owner)
		row.reconcile(snap, r, sc)
		return row
	}
}

// applyCommon copies the fields every variant shares.
func (r *reconciler) applyCommon(b *nodeBase, snap wire.Node) {
	b.uuid = snap.UUID
	b.style = snap.Style
	b.domainMeta = snap.DomainMeta
	b.caption.Set(r.caption(snap.Caption))
	b.captionMarkdown.Set(r.markdown(snap.CaptionMarkdown))
}

func (r *reconciler) caption(raw *string) string {
	if raw == nil {
		return ""
	}
	return r.captioner.Caption(*raw)
}

func (r *reconciler) markdown(raw *string) string {
	if raw == nil {
		return ""
	}
	return r.captioner.Markdown(*raw)
}

func (r *reconciler) report(code ProtocolErrorCode, snap wire.Node, msg string) {
	err := &ProtocolError{Code: code, Ix: snap.Ix, Type: snap.Type, Message: msg}
	slog.Error("reconcile protocol error",
		"code", err.Code,
		"ix", err.Ix,
		"type", err.Type,
		"error", err.Message,
	)
	r.errs = append(r.errs, err)
}
