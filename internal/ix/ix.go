// Package ix implements the index algebra used to address nodes of a form tree.
//
// An index is a server-assigned string such as "0,2:1,3". Segments are
// separated by commas; a segment containing a colon marks an occurrence of a
// repeat group ("2:1" is the second occurrence of the repeat at position 2).
//
// Indices identify tree positions, not logical entities: the index of a node
// inside a repeat instance shifts when sibling instances are added or removed.
// To keep repeat-instance subtrees structurally identical, nodes store a
// relative index (the part below the deepest enclosing repeat, prefixed with
// "-") and the absolute index is rebuilt on demand by walking parents.
package ix

import "strings"

const (
	// Separator joins the segments of an index.
	Separator = ","

	// RepeatMarker marks a repeat occurrence inside a segment.
	RepeatMarker = ":"

	// RelativePrefix marks an index as relative to its deepest repeat.
	RelativePrefix = "-"
)

// Segments splits an index into its comma-separated segments.
func Segments(index string) []string {
	return strings.Split(index, Separator)
}

// IsRepeatSegment reports whether a segment is a repeat occurrence marker.
func IsRepeatSegment(segment string) bool {
	return strings.Contains(segment, RepeatMarker)
}

// IsRelative reports whether index was produced by Relative and still needs
// qualification against its ancestors.
func IsRelative(index string) bool {
	return strings.HasPrefix(index, RelativePrefix)
}

// LastSegment returns the final segment of an index.
func LastSegment(index string) string {
	if i := strings.LastIndex(index, Separator); i >= 0 {
		return index[i+1:]
	}
	return index
}

// EndsInRepeat reports whether the last segment of index is a repeat occurrence.
// Only such ancestors contribute to qualifying a relative index.
func EndsInRepeat(index string) bool {
	return IsRepeatSegment(LastSegment(index))
}

// Relative returns the part of index below its deepest enclosing repeat,
// prefixed with "-". The last segment is never considered a repeat boundary
// for the node itself. An index with no enclosing repeat is returned unchanged.
//
//	Relative("0,1:2,3")   == "-3"
//	Relative("0,1:2,3,4") == "-3,4"
//	Relative("0,1")       == "0,1"
func Relative(index string) string {
	steps := Segments(index)
	deepest := -1
	for i := len(steps) - 2; i >= 0; i-- {
		if IsRepeatSegment(steps[i]) {
			deepest = i
			break
		}
	}
	if deepest == -1 {
		return index
	}
	return RelativePrefix + strings.Join(steps[deepest+1:], Separator)
}

// Qualify prefixes a relative index with an ancestor's index. The ancestor
// index may itself still be relative; callers keep qualifying until the
// result no longer starts with "-".
func Qualify(ancestor, relative string) string {
	return ancestor + Separator + strings.TrimPrefix(relative, RelativePrefix)
}

// OccurrenceNumber returns the occurrence part of the last repeat segment of
// index ("0,1:2" -> "2"), with "_" accepted as an alternative marker. It
// returns "" when the index does not end in a repeat occurrence.
func OccurrenceNumber(index string) string {
	last := strings.ReplaceAll(LastSegment(index), "_", RepeatMarker)
	i := strings.LastIndex(last, RepeatMarker)
	if i < 0 {
		return ""
	}
	return last[i+1:]
}

// Composite builds the synthetic index of a row of grouped nodes: each
// member index parenthesised, comma-joined.
//
//	Composite([]string{"0", "1"}) == "(0),(1)"
func Composite(members []string) string {
	var b strings.Builder
	for i, m := range members {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString("(")
		b.WriteString(m)
		b.WriteString(")")
	}
	return b.String()
}
