// Package grouping lays out consecutive questions into visual rows.
//
// The session server sends an ungrouped children list on every update.
// Before a snapshot is reconciled, runs of questions are wrapped in synthetic
// grouped-element-tile-row nodes according to their "<N>-per-row" style
// tokens on a 12-column grid. Groups and repeats are grouped recursively,
// each with its own width accumulator, and always end the current row.
//
// The transform does not mutate its input and is idempotent: rows already
// present are passed through untouched.
package grouping

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/formentry/internal/ix"
	"github.com/roach88/formentry/internal/wire"
)

// GridColumns is the width of a full row.
const GridColumns = 12

// Style token suffixes.
const (
	PerRowSuffix       = "-per-row"
	PerRowRepeatSuffix = "-per-row-repeat"
)

var (
	perRowPattern       = regexp.MustCompile(`^\d+-per-row$`)
	perRowRepeatPattern = regexp.MustCompile(`^\d+-per-row-repeat$`)
)

// ElementWidth returns the number of grid columns a node occupies: the grid
// width divided by N for the first "<N>-per-row" token (rounded half up), or
// the full grid when there is no such token.
func ElementWidth(style wire.Style) int {
	n, ok := perRowCount(style, perRowPattern)
	if !ok || n <= 0 {
		return GridColumns
	}
	return int(math.Round(float64(GridColumns) / float64(n)))
}

// HasPerRow reports whether the style requests a per-row layout.
func HasPerRow(style wire.Style) bool {
	_, ok := perRowCount(style, perRowPattern)
	return ok
}

func perRowCount(style wire.Style, pattern *regexp.Regexp) (int, bool) {
	for _, token := range style.Tokens() {
		if !pattern.MatchString(token) {
			continue
		}
		n, err := strconv.Atoi(token[:strings.IndexByte(token, '-')])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Apply groups the children of node, recursing into nested containers.
func Apply(node wire.Node) wire.Node {
	if node.Children == nil {
		return node
	}
	if node.Type == wire.TypeGroup || node.Type == wire.TypeSubGroup {
		node.Children = propagateRepeatStyle(node.Style, node.Children)
	}
	node.Children = Children(node.Children)
	return node
}

// Children groups one children list.
func Children(children []wire.Node) []wire.Node {
	out := make([]wire.Node, 0, len(children))
	var row *wire.Node
	var members []string
	used := 0

	closeRow := func() {
		if row != nil {
			row.Ix = ix.Composite(members)
			out = append(out, *row)
		}
		row = nil
		members = nil
		used = 0
	}

	for _, child := range children {
		switch child.Type {
		case wire.TypeGroup, wire.TypeSubGroup, wire.TypeRepeat, wire.TypeRepeatJuncture:
			closeRow()
			out = append(out, Apply(child))
		case wire.TypeQuestion:
			width := ElementWidth(child.Style)
			used += width
			if used > GridColumns {
				closeRow()
				used = width
			}
			if row == nil {
				row = &wire.Node{Type: wire.TypeGroupedTileRow, Children: []wire.Node{}}
			}
			row.Children = append(row.Children, child)
			members = append(members, child.Ix)
		default:
			closeRow()
			out = append(out, child)
		}
	}
	closeRow()
	return out
}

// propagateRepeatStyle copies a group's "<N>-per-row-repeat" token onto its
// repeat children as "<N>-per-row", so each repeat lays out N per row.
func propagateRepeatStyle(style wire.Style, children []wire.Node) []wire.Node {
	n, ok := perRowCount(style, perRowRepeatPattern)
	if !ok {
		return children
	}
	token := strconv.Itoa(n) + PerRowSuffix
	out := make([]wire.Node, len(children))
	for i, child := range children {
		if child.IsRepeatLike() {
			child.Style = child.Style.WithToken(token)
		}
		out[i] = child
	}
	return out
}
