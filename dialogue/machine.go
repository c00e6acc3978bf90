package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/insurlab/advisor/llm"
	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/profile"
	"github.com/insurlab/advisor/prompt"
	"github.com/insurlab/advisor/taxonomy"
)

// PlaceholderQuestion is shown when question generation fails or returns
// unparseable output. The dialogue must never dead-end on a bad generation.
const PlaceholderQuestion = "Please provide more information about your company."

// DefaultEvidenceThreshold is the chunk count at which the evidence check
// short-circuits the question loop. Configurable because the right value is
// deployment-specific.
const DefaultEvidenceThreshold = 600

// Machine owns the dialogue transition logic. It is stateless itself and
// safe to share across sessions; all per-dialogue data lives in State.
type Machine struct {
	generator         llm.Generator
	detector          taxonomy.Detector
	synthesizer       *profile.Synthesizer
	retriever         policy.Retriever
	logger            log.Logger
	maxAttempts       int
	evidenceThreshold int
}

// Option configures a Machine.
type Option func(*Machine)

// WithDetector replaces the default keyword detector.
func WithDetector(d taxonomy.Detector) Option {
	return func(m *Machine) { m.detector = d }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithMaxAttempts overrides the question-attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithEvidenceCheck enables evidence-driven termination: before asking
// another question the machine synthesizes a provisional profile, counts
// retrievable evidence, and completes early once the count reaches
// threshold. Enough evidence to recommend beats every box checked.
func WithEvidenceCheck(synth *profile.Synthesizer, retriever policy.Retriever, threshold int) Option {
	return func(m *Machine) {
		m.synthesizer = synth
		m.retriever = retriever
		if threshold > 0 {
			m.evidenceThreshold = threshold
		}
	}
}

// NewMachine creates a Machine over the given generator.
func NewMachine(generator llm.Generator, opts ...Option) *Machine {
	m := &Machine{
		generator:         generator,
		detector:          taxonomy.NewKeywordDetector(),
		logger:            log.Default(),
		maxAttempts:       MaxAttempts,
		evidenceThreshold: DefaultEvidenceThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordAnswer appends a non-empty answer and re-runs category detection
// over the entire history. An empty answer is a no-op. Satisfaction is
// monotonic: detection can only grow the satisfied set.
func (m *Machine) RecordAnswer(state State, answer string) State {
	if strings.TrimSpace(answer) == "" {
		return state
	}
	if state.Complete() {
		// Terminal states no longer accumulate answers for this cycle.
		return state
	}

	state.RawAnswers = append(append([]string(nil), state.RawAnswers...), answer)

	detected := m.detector.Detect(state.RawAnswers)
	have := make(map[string]bool, len(state.Satisfied))
	for _, name := range state.Satisfied {
		have[name] = true
	}
	for _, category := range detected {
		have[category.Name] = true
	}

	satisfied := make([]string, 0, len(have))
	for _, name := range taxonomy.Names() {
		if have[name] {
			satisfied = append(satisfied, name)
		}
	}
	state.Satisfied = satisfied
	return state
}

// Advance decides the next move: terminate on the attempt cap, terminate
// when nothing is missing, optionally terminate on sufficient evidence, or
// generate the next question. Failures degrade to a placeholder question;
// Advance never aborts the dialogue.
func (m *Machine) Advance(ctx context.Context, state State) State {
	if state.Attempts >= m.maxAttempts {
		state.NextStep = StepComplete
		state.PendingQuestion = ""
		return state
	}

	missing := state.Missing()
	if len(missing) == 0 {
		state.NextStep = StepComplete
		state.PendingQuestion = ""
		return state
	}

	if m.evidenceCheckEnabled() {
		count, ok := m.countEvidence(ctx, state)
		if ok {
			state.EvidenceCount = count
			if count >= m.evidenceThreshold {
				m.logger.Info("dialogue %s: %d evidence chunks >= threshold %d, completing early", state.ThreadID, count, m.evidenceThreshold)
				state.NextStep = StepComplete
				state.PendingQuestion = ""
				return state
			}
		}
	}

	state.PendingQuestion = m.nextQuestion(ctx, state, missing)
	state.Attempts++
	state.NextStep = StepContinue
	return state
}

func (m *Machine) evidenceCheckEnabled() bool {
	return m.synthesizer != nil && m.retriever != nil
}

func (m *Machine) countEvidence(ctx context.Context, state State) (int, bool) {
	provisional, err := m.synthesizer.Synthesize(ctx, state.RawAnswers)
	if err != nil {
		m.logger.Warn("dialogue %s: provisional profile failed, skipping evidence check: %v", state.ThreadID, err)
		return 0, false
	}
	if provisional == profile.NoInformation {
		return 0, false
	}

	collections, err := m.retriever.ListCollections(ctx, "")
	if err != nil || len(collections) == 0 {
		return 0, false
	}

	chunks, err := m.retriever.Retrieve(ctx, policy.CollectionIDs(collections), provisional, policy.RetrievalOptions{
		TopK: m.evidenceThreshold,
	})
	if err != nil {
		return 0, false
	}
	return len(chunks), true
}

func (m *Machine) nextQuestion(ctx context.Context, state State, missing []string) string {
	currentInfo := "No information yet."
	if len(state.RawAnswers) > 0 {
		currentInfo = strings.Join(state.RawAnswers, "\n")
	}

	lines := []string{fmt.Sprintf(
		"Note: You have a maximum of %d attempts to gather missing information. This is attempt %d.",
		m.maxAttempts, state.Attempts+1,
	)}
	for _, name := range missing {
		options := strings.Join(taxonomy.ExampleAnswers(name), ", ")
		lines = append(lines, fmt.Sprintf("%s (e.g., %s)", name, options))
	}

	output, err := m.generator.Invoke(ctx, prompt.QuestionRefinement, map[string]any{
		"current_info": currentInfo,
		"missing_info": strings.Join(lines, "\n"),
	})
	if err != nil {
		m.logger.Error("dialogue %s: question generation failed: %v", state.ThreadID, err)
		return PlaceholderQuestion
	}

	return ParseQuestion(output)
}

// ParseQuestion extracts the single question from generator output. The
// prompt asks for a "CATEGORY: ...\nQUESTION: ..." shape; anything that
// cannot be reduced to one question becomes the placeholder.
func ParseQuestion(output string) string {
	cleaned := llm.StripReasoning(output)
	if cleaned == "" {
		return PlaceholderQuestion
	}

	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "QUESTION:"); ok {
			if question := strings.TrimSpace(rest); question != "" {
				return question
			}
		}
	}

	// No marker: accept a bare single-line question.
	lines := nonEmptyLines(cleaned)
	if len(lines) == 1 {
		return lines[0]
	}
	return PlaceholderQuestion
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
