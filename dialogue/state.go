// Package dialogue implements the conversational state machine that drives
// the information-gathering loop: record free-text answers, detect which
// taxonomy categories they satisfy, and decide whether to ask another
// question or hand off to the recommendation pipeline.
//
// The machine is an explicit transition function over a per-call state
// value. Nothing here is a process-wide singleton; callers own their State
// and thread it through Advance and RecordAnswer.
package dialogue

import "github.com/insurlab/advisor/taxonomy"

// Step is the machine's next-step marker.
type Step string

const (
	// StepContinue means a question is pending and the dialogue goes on.
	StepContinue Step = "CONTINUE"
	// StepComplete is terminal: no further question will be generated.
	StepComplete Step = "COMPLETE"
)

// MaxAttempts is the default question-attempt ceiling.
const MaxAttempts = 5

// State is the mutable aggregate owned by one in-flight dialogue.
type State struct {
	// ThreadID identifies the owning session.
	ThreadID string `json:"thread_id"`
	// RawAnswers is every free-text answer so far, insertion order
	// preserved. Later answers may refine earlier ones.
	RawAnswers []string `json:"raw_answers"`
	// Satisfied holds the canonical names of categories judged answered,
	// in taxonomy order. Monotonic: a category never leaves this set.
	Satisfied []string `json:"satisfied"`
	// Attempts counts generated questions, capped at the machine's
	// maximum.
	Attempts int `json:"attempts"`
	// NextStep is CONTINUE while questions remain, COMPLETE when done.
	NextStep Step `json:"next_step"`
	// PendingQuestion is the question to present next; set only when
	// NextStep is CONTINUE.
	PendingQuestion string `json:"pending_question,omitempty"`
	// EvidenceCount is the last-known count of relevant chunks found
	// with the in-progress profile. Used by evidence-driven termination.
	EvidenceCount int `json:"evidence_count"`
}

// NewState returns a fresh dialogue state for the given thread.
func NewState(threadID string) State {
	return State{
		ThreadID: threadID,
		NextStep: StepContinue,
	}
}

// Missing returns the canonical names of categories not yet satisfied.
func (s State) Missing() []string {
	have := make(map[string]bool, len(s.Satisfied))
	for _, name := range s.Satisfied {
		have[name] = true
	}

	var missing []string
	for _, name := range taxonomy.Names() {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete reports whether the dialogue reached its terminal step.
func (s State) Complete() bool {
	return s.NextStep == StepComplete
}
