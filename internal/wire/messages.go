package wire

// Actions named in outbound requests.
const (
	ActionAnswer       = "answer"
	ActionClearAnswer  = "clear-answer"
	ActionNewRepeat    = "new-repeat"
	ActionDeleteRepeat = "delete-repeat"
	ActionNextIndex    = "next-index"
	ActionPrevIndex    = "prev-index"
	ActionSubmitAll    = "submit-all"
)

// MessageSaveFailed is shown when an answer could not reach the server.
const MessageSaveFailed = "We were unable to save this answer. Please try again later."

// AnswerRequest submits one question's answer. AnswersToValidate lists the
// info questions currently in error so the server re-checks them.
type AnswerRequest struct {
	RequestID            string   `json:"request_id"`
	Action               string   `json:"action"`
	Ix                   string   `json:"ix"`
	Answer               any      `json:"answer"`
	AnswersToValidate    []string `json:"answersToValidate,omitempty"`
	OneQuestionPerScreen bool     `json:"oneQuestionPerScreen,omitempty"`
}

// RepeatRequest adds an instance to the repeat at Ix.
type RepeatRequest struct {
	RequestID string `json:"request_id"`
	Ix        string `json:"ix"`
}

// DeleteRepeatRequest removes occurrence Ix of the repeat at FormIx.
type DeleteRepeatRequest struct {
	RequestID string `json:"request_id"`
	Ix        int    `json:"ix"`
	FormIx    string `json:"form_ix"`
}

// NavigationRequest asks for the next or previous screen. The server calls
// Callback with its answer.
type NavigationRequest struct {
	RequestID string                 `json:"request_id"`
	Action    string                 `json:"action"`
	Title     string                 `json:"title,omitempty"`
	Callback  func(NavigationResult) `json:"-"`
}

// SubmitRequest submits the whole form.
type SubmitRequest struct {
	RequestID    string         `json:"request_id"`
	Answers      map[string]any `json:"answers"`
	Prevalidated bool           `json:"prevalidated"`
}

// Dirty signals that the user changed something.
type Dirty struct {
	Action string `json:"action"`
	Ix     string `json:"ix,omitempty"`
}

// Reconcile delivers a server response. RequestID ties it to the request
// that caused it; Target names the question by absolute index when there is
// no request id. Both are empty for untargeted updates.
type Reconcile struct {
	RequestID string    `json:"request_id,omitempty"`
	Target    string    `json:"target,omitempty"`
	Response  *Response `json:"response"`
}

// Block sets the input lock: 0 none, 1 submit only, 2 everything.
type Block struct {
	Level int `json:"level"`
}

// AnswerFailed reports that an answer request never got a response.
type AnswerFailed struct {
	RequestID string `json:"request_id,omitempty"`
	Target    string `json:"target,omitempty"`
}

// Navigated is the result of a navigation request, as applied.
type Navigated struct {
	RequestID string           `json:"request_id,omitempty"`
	Result    NavigationResult `json:"result"`
}
