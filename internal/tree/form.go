package tree

import (
	"log/slog"
	"slices"

	"github.com/roach88/formentry/internal/grouping"
	"github.com/roach88/formentry/internal/observable"
	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/wire"
)

// BlockLevel is the input lock the session holds while a request is out.
type BlockLevel int

const (
	BlockNone BlockLevel = iota
	BlockSubmit
	BlockAll
)

// Navigation index values that count as the start of the form.
const (
	firstIndex  = "0"
	beforeFirst = "-1"
)

// LabelAnswer is the answer submitted for info questions.
const LabelAnswer = "OK"

// Form is the root of a form tree and owns the navigation and validation
// state of one form session.
//
// A Form is not safe for concurrent use; the engine applies every mutation
// from its single writer loop.
type Form struct {
	nodeBase
	container

	captioner render.Captioner

	oneQuestionPerScreen *observable.Value[bool]
	shouldAutoSubmit     bool
	title                string
	langs                []string
	sessionID            string

	currentIndex *observable.Value[string]
	atFirstIndex *observable.Value[bool]
	atLastIndex  *observable.Value[bool]

	block                *observable.Value[BlockLevel]
	hasSubmitAttempted   *observable.Value[bool]
	isSubmitting         *observable.Value[bool]
	forceRequiredVisible *observable.Value[bool]
	requiredSatisfied    *observable.Value[bool]

	currentJumpPoint *Question

	// reconciling is set while a snapshot is applied; derived state is
	// refreshed once at the end of the pass.
	reconciling bool
}

// Option configures a Form.
type Option func(*Form)

// WithCaptioner sets the caption renderer. The default is render.NewHTML().
func WithCaptioner(c render.Captioner) Option {
	return func(f *Form) {
		f.captioner = c
	}
}

// New builds a form from the initial server payload. Protocol errors in the
// payload are logged and returned; the offending nodes are skipped.
func New(resp *wire.Response, opts ...Option) (*Form, []*ProtocolError) {
	f := &Form{
		nodeBase:             newBase("", "", "", nil),
		container:            newContainer(),
		oneQuestionPerScreen: observable.NewComparable(false),
		currentIndex:         observable.NewComparable(firstIndex),
		atFirstIndex:         observable.NewComparable(true),
		atLastIndex:          observable.NewComparable(false),
		block:                observable.NewComparable(BlockNone),
		hasSubmitAttempted:   observable.NewComparable(false),
		isSubmitting:         observable.NewComparable(false),
		forceRequiredVisible: observable.NewComparable(false),
		requiredSatisfied:    observable.NewComparable(true),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.captioner == nil {
		f.captioner = render.NewHTML()
	}

	// forceRequiredVisible clears itself once the screen is satisfied.
	f.requiredSatisfied.Subscribe(func(ok bool) {
		if ok {
			f.forceRequiredVisible.Set(false)
		}
	})
	f.oneQuestionPerScreen.Subscribe(func(bool) { f.refresh() })

	if resp.DisplayOptions != nil {
		f.oneQuestionPerScreen.Set(resp.DisplayOptions.OneQuestionPerScreen)
	}
	return f, f.apply(resp)
}

// Kind returns KindForm.
func (f *Form) Kind() Kind { return KindForm }

// Captioner returns the caption renderer in use.
func (f *Form) Captioner() render.Captioner { return f.captioner }

// Title returns the form title.
func (f *Form) Title() string { return f.title }

// Langs returns the languages the form is available in.
func (f *Form) Langs() []string { return f.langs }

// SessionID returns the server session id from the initial payload.
func (f *Form) SessionID() string { return f.sessionID }

// OneQuestionPerScreen reports whether the form shows one question at a time.
func (f *Form) OneQuestionPerScreen() bool { return f.oneQuestionPerScreen.Get() }

// SetOneQuestionPerScreen switches the display mode.
func (f *Form) SetOneQuestionPerScreen(on bool) { f.oneQuestionPerScreen.Set(on) }

// ShouldAutoSubmit reports whether the server submits the form itself.
func (f *Form) ShouldAutoSubmit() bool { return f.shouldAutoSubmit }

// Reconcile applies a server response addressed to target. target is nil for
// responses that are not tied to a question (navigation, language change).
//
// A validation-error response leaves the tree alone: it sets the target's
// server error and ends its in-flight submission. An unrecognized validation
// type keeps whatever server error the target already shows. Any other response clears
// the target's server error and is merged into the tree.
func (f *Form) Reconcile(resp *wire.Response, target *Question) []*ProtocolError {
	if resp.IsValidationError() {
		if target == nil {
			slog.Warn("validation error without target question", "type", resp.Type)
			return nil
		}
		target.ApplyValidation(resp.ValidationError())
		target.ClearPending()
		return nil
	}
	if target != nil {
		target.SetServerError("")
	}
	return f.apply(resp)
}

func (f *Form) apply(resp *wire.Response) []*ProtocolError {
	root := grouping.Apply(resp.Root())

	f.reconciling = true
	r := &reconciler{form: f, captioner: f.captioner}
	r.reconcileOwner(f, root.Children)
	f.reconciling = false

	if resp.Title != "" {
		f.title = resp.Title
	}
	if resp.Langs != nil {
		f.langs = resp.Langs
	}
	if resp.SessionID != "" {
		f.sessionID = resp.SessionID
	}
	if resp.ShouldAutoSubmit {
		f.shouldAutoSubmit = true
	}
	if f.currentJumpPoint != nil && formOf(f.currentJumpPoint) != f {
		f.currentJumpPoint = nil
	}
	f.refresh()
	return r.errs
}

// watch subscribes the form to the cells of q that feed derived state.
func (f *Form) watch(q *Question) {
	q.subs.Add(q.answer.Subscribe(func(any) { f.refresh() }))
	q.subs.Add(q.required.Subscribe(func(bool) { f.refresh() }))
}

// refresh recomputes the cached derived cells that other state subscribes to.
func (f *Form) refresh() {
	if f.reconciling {
		return
	}
	f.requiredSatisfied.Set(f.IsCurrentRequiredSatisfied())
}

// ApplyErrors sets or clears the server error of each question in indices
// from errs. Indices missing from errs are cleared; indices that no longer
// resolve to a question are ignored.
func (f *Form) ApplyErrors(indices []string, errs map[string]*wire.ValidationError) {
	for _, index := range indices {
		if q := FindByIndex(f, index); q != nil {
			q.ApplyValidation(errs[index])
		}
	}
}

// ApplySubmitResult ends a submission. A failed submission applies the
// per-question errors it carries.
func (f *Form) ApplySubmitResult(res wire.SubmitResult) {
	f.isSubmitting.Set(false)
	if res.Status == wire.StatusSuccess {
		return
	}
	indices := make([]string, 0, len(res.Errors))
	for index := range res.Errors {
		indices = append(indices, index)
	}
	slices.Sort(indices)
	f.ApplyErrors(indices, res.Errors)
}

// SetNavigation records the server's answer to a next/prev request.
func (f *Form) SetNavigation(nav wire.NavigationResult) {
	f.currentIndex.Set(nav.CurrentIndex)
	f.atFirstIndex.Set(nav.IsAtFirstIndex)
	f.atLastIndex.Set(nav.IsAtLastIndex)
}

// CurrentIndex returns the index of the current screen.
func (f *Form) CurrentIndex() string { return f.currentIndex.Get() }

// AtFirstIndex reports whether the current screen is the first.
func (f *Form) AtFirstIndex() bool { return f.atFirstIndex.Get() }

// AtLastIndex reports whether the current screen is the last.
func (f *Form) AtLastIndex() bool { return f.atLastIndex.Get() }

// SetBlock records the session's input lock.
func (f *Form) SetBlock(level BlockLevel) { f.block.Set(level) }

// InputsDisabled reports whether every input is locked.
func (f *Form) InputsDisabled() bool { return f.block.Get() == BlockAll }

// BlockSubmit reports whether submission is locked.
func (f *Form) BlockSubmit() bool {
	level := f.block.Get()
	return level == BlockAll || level == BlockSubmit
}

// ShowInFormNavigation reports whether next/prev navigation is shown.
func (f *Form) ShowInFormNavigation() bool { return f.OneQuestionPerScreen() }

// IsCurrentRequiredSatisfied reports whether every required question on the
// current screen has an answer. It is always true outside
// one-question-per-screen mode.
func (f *Form) IsCurrentRequiredSatisfied() bool {
	if !f.ShowInFormNavigation() {
		return true
	}
	for q := range Questions(f) {
		if q.Required() && q.Answer() == nil {
			return false
		}
	}
	return true
}

// EnableNext reports whether the next button is enabled.
func (f *Form) EnableNext() bool {
	if !f.ShowInFormNavigation() {
		return false
	}
	for q := range Questions(f) {
		if !q.IsValid() || q.Dirty() {
			return false
		}
	}
	return f.IsCurrentRequiredSatisfied() && !f.AtLastIndex()
}

// EnablePrevious reports whether the previous button is enabled.
func (f *Form) EnablePrevious() bool {
	if !f.ShowInFormNavigation() {
		return false
	}
	index := f.CurrentIndex()
	return index != firstIndex && index != beforeFirst && !f.AtFirstIndex()
}

// ClickedNextOnRequired records an attempt to move past an unsatisfied
// screen. The required notice stays visible until the screen is satisfied.
func (f *Form) ClickedNextOnRequired() {
	f.forceRequiredVisible.Set(true)
}

// ForceRequiredVisible reports whether the required notice was forced on.
func (f *Form) ForceRequiredVisible() bool { return f.forceRequiredVisible.Get() }

// ShowRequiredNotice reports whether the "answer required" notice is shown.
func (f *Form) ShowRequiredNotice() bool {
	return !f.IsCurrentRequiredSatisfied() && f.ForceRequiredVisible()
}

// EnableForceNext reports whether the next button should be offered only to
// reveal the required notice.
func (f *Form) EnableForceNext() bool {
	return !f.IsCurrentRequiredSatisfied() && !f.EnableNext()
}

// DisableNext reports whether the next button is fully disabled.
func (f *Form) DisableNext() bool {
	return !f.EnableNext() && !f.EnableForceNext()
}

// ShowSubmit reports whether the submit button is shown.
func (f *Form) ShowSubmit() bool {
	return !f.ShowInFormNavigation() && !f.shouldAutoSubmit
}

// AttemptSubmit latches the submit attempt. From then on ErroredQuestions
// reports invalid and unanswered required questions.
func (f *Form) AttemptSubmit() { f.hasSubmitAttempted.Set(true) }

// HasSubmitAttempted reports whether submit was ever clicked.
func (f *Form) HasSubmitAttempted() bool { return f.hasSubmitAttempted.Get() }

// SetSubmitting records whether a submission is in flight.
func (f *Form) SetSubmitting(on bool) { f.isSubmitting.Set(on) }

// IsSubmitting reports whether a submission is in flight.
func (f *Form) IsSubmitting() bool { return f.isSubmitting.Get() }

// ErroredQuestions returns, after a submit attempt, every question with an
// error or a missing required answer, in form order.
func (f *Form) ErroredQuestions() []*Question {
	if !f.HasSubmitAttempted() {
		return nil
	}
	var out []*Question
	for q := range Questions(f) {
		if !q.IsValid() || (q.Required() && q.Answer() == nil) {
			out = append(out, q)
		}
	}
	return out
}

// EnableSubmit reports whether the submit button is enabled.
func (f *Form) EnableSubmit() bool {
	return !f.IsSubmitting() && len(f.ErroredQuestions()) == 0
}

// JumpToErrors navigates to the errored question after the current jump
// point, wrapping to the first. It returns the question jumped to, or nil
// when there are no errors.
func (f *Form) JumpToErrors() *Question {
	errored := f.ErroredQuestions()
	if len(errored) == 0 {
		return nil
	}
	next := errored[0]
	if i := slices.Index(errored, f.currentJumpPoint); i >= 0 && i < len(errored)-1 {
		next = errored[i+1]
	}
	next.NavigateTo()
	return next
}

// CurrentJumpPoint returns the question last navigated to, or nil.
func (f *Form) CurrentJumpPoint() *Question { return f.currentJumpPoint }

// ErroredLabels returns the absolute indices of invalid info questions.
// They are revalidated by the server with every answer.
func (f *Form) ErroredLabels() []string {
	var out []string
	for q := range Questions(f) {
		if q.IsLabel() && !q.IsValid() {
			out = append(out, AbsoluteIndex(q))
		}
	}
	return out
}

// SubmitAnswers collects the answers of every valid question keyed by
// absolute index, with LabelAnswer for info questions. prevalidated is false
// when any question is invalid.
func (f *Form) SubmitAnswers() (answers map[string]any, prevalidated bool) {
	answers = make(map[string]any)
	prevalidated = true
	for q := range Questions(f) {
		if !q.IsValid() {
			prevalidated = false
			continue
		}
		if q.IsLabel() {
			answers[AbsoluteIndex(q)] = LabelAnswer
		} else {
			answers[AbsoluteIndex(q)] = q.Answer()
		}
	}
	return answers, prevalidated
}
