package tree

import (
	"github.com/roach88/formentry/internal/observable"
	"github.com/roach88/formentry/internal/wire"
)

// noPendingAnswer marks a question with no answer in flight.
type noPendingAnswer struct{}

// NoPendingAnswer is the pending value of a question that has no outstanding
// answer submission. Use IsNoPending to test for it.
var NoPendingAnswer any = noPendingAnswer{}

// IsNoPending reports whether v is the NoPendingAnswer sentinel.
func IsNoPending(v any) bool {
	_, ok := v.(noPendingAnswer)
	return ok
}

// Datatypes whose answers are server-assigned media references. Their
// pending answers are resolved by any reconcile, whatever answer it carries.
var fileDatatypes = map[string]bool{
	"file":      true,
	"image":     true,
	"audio":     true,
	"video":     true,
	"signature": true,
}

// DatatypeInfo is the datatype of display-only label questions.
const DatatypeInfo = "info"

// Question is a leaf node holding one answer.
//
// Dirty, Clean and HasError are derived from the answer, pending and error
// cells on every call and cannot be set directly.
type Question struct {
	nodeBase

	datatype    string
	answer      *observable.Value[any]
	pending     *observable.Value[any]
	err         *observable.Value[string]
	serverError *observable.Value[string]
	required    *observable.Value[bool]
	choices     *observable.Value[[]any]
	help        *observable.Value[string]
	hint        *observable.Value[string]

	// hasAnswered latches once an answer has ever been submitted.
	hasAnswered bool

	// choiceReplacements counts how often the choice list was replaced.
	choiceReplacements int
}

func newQuestion(snap wire.Node, parent Container) *Question {
	q := &Question{
		nodeBase:    newBase(snap.Type, snap.Ix, snap.UUID, parent),
		datatype:    snap.Datatype,
		answer:      observable.New[any](nil, wire.AnswersEqual),
		pending:     observable.New[any](NoPendingAnswer, pendingEqual),
		err:         observable.NewComparable(""),
		serverError: observable.NewComparable(""),
		required:    observable.NewComparable(false),
		choices:     observable.New[[]any](nil, nil),
		help:        observable.NewComparable(""),
		hint:        observable.NewComparable(""),
	}
	q.subs.Add(q.pending.Subscribe(func(any) { q.hasAnswered = true }))
	return q
}

func pendingEqual(a, b any) bool {
	if IsNoPending(a) || IsNoPending(b) {
		return IsNoPending(a) && IsNoPending(b)
	}
	return wire.AnswersEqual(a, b)
}

// Kind returns KindQuestion.
func (q *Question) Kind() Kind { return KindQuestion }

// Datatype returns the declared datatype (str, int, select, info, ...).
func (q *Question) Datatype() string { return q.datatype }

// IsLabel reports whether the question is display-only.
func (q *Question) IsLabel() bool { return q.datatype == DatatypeInfo }

// IsFileLike reports whether the answer is a server-assigned media reference.
func (q *Question) IsFileLike() bool { return fileDatatypes[q.datatype] }

// Answer returns the displayed answer. nil means unanswered.
func (q *Question) Answer() any { return q.answer.Get() }

// SetAnswer records a user edit. It does not submit anything; callers mark
// the answer pending when they publish it.
func (q *Question) SetAnswer(v any) bool { return q.answer.Set(v) }

// Pending returns the in-flight answer snapshot or NoPendingAnswer.
func (q *Question) Pending() any { return q.pending.Get() }

// MarkPending snapshots the current answer as the in-flight submission.
func (q *Question) MarkPending() {
	q.pending.Set(wire.Clone(q.answer.Get()))
}

// ClearPending ends the in-flight submission without changing the answer.
func (q *Question) ClearPending() {
	q.pending.Set(NoPendingAnswer)
}

// Dirty reports whether an answer submission is in flight.
func (q *Question) Dirty() bool { return !IsNoPending(q.pending.Get()) }

// Clean reports whether the question has a submitted, accepted answer.
func (q *Question) Clean() bool {
	return !q.Dirty() && q.err.Get() == "" && q.serverError.Get() == "" && q.hasAnswered
}

// HasError reports whether an error should be shown. Errors are hidden
// while a new answer is in flight.
func (q *Question) HasError() bool {
	return (q.err.Get() != "" || q.serverError.Get() != "") && !q.Dirty()
}

// IsValid reports whether neither a client nor a server error is set.
func (q *Question) IsValid() bool {
	return q.err.Get() == "" && q.serverError.Get() == ""
}

// Error returns the client-side validation message, or "".
func (q *Question) Error() string { return q.err.Get() }

// SetError sets the client-side validation message. "" clears it.
func (q *Question) SetError(msg string) { q.err.Set(msg) }

// ServerError returns the server-side validation message, or "".
func (q *Question) ServerError() string { return q.serverError.Get() }

// SetServerError sets the server-side validation message. "" clears it.
func (q *Question) SetServerError(msg string) { q.serverError.Set(msg) }

// ApplyValidation sets or clears the server error from a validation result.
// A nil result clears it; an unrecognized type leaves it unchanged.
func (q *Question) ApplyValidation(v *wire.ValidationError) {
	if v == nil {
		q.serverError.Set("")
		return
	}
	if msg := v.Message(); msg != "" {
		q.serverError.Set(msg)
	}
}

// Required reports whether an answer is required.
func (q *Question) Required() bool { return q.required.Get() }

// Choices returns the choice list of select questions.
func (q *Question) Choices() []any { return q.choices.Get() }

// ChoiceReplacements returns how many times the choice list was replaced
// since the question was created.
func (q *Question) ChoiceReplacements() int { return q.choiceReplacements }

// Help returns the rendered help text.
func (q *Question) Help() string { return q.help.Get() }

// Hint returns the sanitised hint text.
func (q *Question) Hint() string { return q.hint.Get() }

// HasLabelContent reports whether the question has anything to show beside
// its control.
func (q *Question) HasLabelContent() bool {
	return q.Caption() != "" || q.CaptionMarkdown() != "" || q.Help() != "" || q.Hint() != "" || q.Required()
}

// SubscribeAnswer registers fn for answer changes.
func (q *Question) SubscribeAnswer(fn func(any)) observable.Subscription {
	return q.answer.Subscribe(fn)
}

// SubscribePending registers fn for pending-answer changes.
func (q *Question) SubscribePending(fn func(any)) observable.Subscription {
	return q.pending.Subscribe(fn)
}

// SubscribeServerError registers fn for server error changes.
func (q *Question) SubscribeServerError(fn func(string)) observable.Subscription {
	return q.serverError.Subscribe(fn)
}

// Form returns the root of the tree the question belongs to, or nil for a
// detached question.
func (q *Question) Form() *Form {
	return formOf(q)
}

// NavigateTo expands every collapsed ancestor group and records q as the
// form's current jump point.
func (q *Question) NavigateTo() {
	for p := q.Parent(); p != nil; p = p.Parent() {
		if g, ok := p.(*Group); ok && g.Collapsible() && !g.ShowChildren() {
			g.ToggleChildren()
		}
	}
	if f := q.Form(); f != nil {
		f.currentJumpPoint = q
	}
}

// reconcile applies a snapshot to a live question.
func (q *Question) reconcile(snap wire.Node, r *reconciler) {
	q.typ = snap.Type
	q.ix.Set(snap.Ix)
	q.datatype = snap.Datatype
	r.applyCommon(&q.nodeBase, snap)
	q.help.Set(r.markdown(snap.Help))
	q.hint.Set(r.caption(snap.Hint))
	q.required.Set(bool(snap.Required))

	incoming := snap.Answer
	if q.Dirty() {
		if q.IsFileLike() || wire.AnswersEqual(incoming, q.pending.Get()) {
			q.pending.Set(NoPendingAnswer)
		} else {
			// Edited again while the request was out: keep the local value.
			incoming = wire.Clone(q.pending.Get())
		}
	}
	if q.serverError.Get() != "" {
		incoming = q.answer.Get()
	}
	q.answer.Set(incoming)

	if !wire.ChoicesEqual(q.choices.Get(), snap.Choices) {
		q.choices.Set(snap.Choices)
		q.choiceReplacements++
	}
}
