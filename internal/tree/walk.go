package tree

import (
	"iter"

	"github.com/roach88/formentry/internal/ix"
)

// AbsoluteIndex rebuilds the fully qualified index of n from its relative
// index by walking up its ancestors. Every ancestor whose relative index ends
// in a repeat occurrence contributes a prefix. Tile rows are skipped and the
// walk stops at the form root.
func AbsoluteIndex(n Node) string {
	index := n.RelIx()
	for p := n.Parent(); ix.IsRelative(index) && p != nil; p = p.Parent() {
		if p.Kind() == KindTileRow {
			continue
		}
		rel := p.RelIx()
		if rel == "" {
			break
		}
		if ix.EndsInRepeat(rel) {
			index = ix.Qualify(rel, index)
		}
	}
	return index
}

// Questions yields every question under root in pre-order. The sequence is
// recomputed on every iteration.
func Questions(root Container) iter.Seq[*Question] {
	return func(yield func(*Question) bool) {
		walkQuestions(root, yield)
	}
}

func walkQuestions(c Container, yield func(*Question) bool) bool {
	for _, child := range c.Children() {
		switch n := child.(type) {
		case *Question:
			if !yield(n) {
				return false
			}
		case Container:
			if !walkQuestions(n, yield) {
				return false
			}
		}
	}
	return true
}

// FindByIndex returns the question under root whose absolute index is index,
// or nil.
func FindByIndex(root Container, index string) *Question {
	for q := range Questions(root) {
		if AbsoluteIndex(q) == index {
			return q
		}
	}
	return nil
}

// Find returns the node under root whose absolute index is index, or nil.
// Tile rows have no index of their own and are never returned.
func Find(root Container, index string) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() != KindTileRow && AbsoluteIndex(n) == index {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk calls fn for every node under root in pre-order. Returning false
// from fn skips the node's children.
func Walk(root Container, fn func(Node) bool) {
	for _, child := range root.Children() {
		if !fn(child) {
			continue
		}
		if c, ok := child.(Container); ok {
			Walk(c, fn)
		}
	}
}

// NestingDepth counts n and its ancestors that are collapsible groups or
// repeats, excluding the form root.
func NestingDepth(n Node) int {
	depth := 0
	for cur := n; cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		switch v := cur.(type) {
		case *Group:
			if v.Collapsible() {
				depth++
			}
		case *Repeat:
			depth++
		}
	}
	return depth
}

// formOf walks up to the tree root.
func formOf(n Node) *Form {
	var cur Node = n
	for cur != nil {
		if f, ok := cur.(*Form); ok {
			return f
		}
		p := cur.Parent()
		if p == nil {
			return nil
		}
		cur = p
	}
	return nil
}

func oneQuestionPerScreen(n Node) bool {
	if f := formOf(n); f != nil {
		return f.OneQuestionPerScreen()
	}
	return false
}
