// Package advisor is the application facade. It ties the dialogue machine,
// the recommendation pipeline and a session store into the operations the
// HTTP server and the CLI expose: start a session, submit an answer, request
// a recommendation, search policies.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/profile"
	"github.com/insurlab/advisor/recommend"
	"github.com/insurlab/advisor/session"
	"github.com/insurlab/advisor/session/memory"
)

var (
	// ErrInputRequired is returned when an operation needs non-empty text.
	ErrInputRequired = errors.New("input text is required")
	// ErrSessionNotFound is returned for an unknown thread ID.
	ErrSessionNotFound = errors.New("session not found")
)

// TurnResult is the outcome of one dialogue turn.
type TurnResult struct {
	ThreadID      string   `json:"thread_id"`
	NextQuestion  string   `json:"next_question,omitempty"`
	Profile       string   `json:"profile,omitempty"`
	Completed     bool     `json:"completed"`
	Satisfied     []string `json:"all_detected_categories"`
	Missing       []string `json:"missing_categories"`
	Answers       []string `json:"updated_info"`
	Attempts      int      `json:"attempts"`
	EvidenceCount int      `json:"evidence_count,omitempty"`
}

// Service is the advisor facade. Safe for concurrent use when its store is.
type Service struct {
	machine     *dialogue.Machine
	pipeline    *recommend.Pipeline
	retriever   policy.Retriever
	synthesizer *profile.Synthesizer
	store       session.Store
	logger      log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore replaces the default in-memory session store.
func WithStore(store session.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSynthesizer enables the per-turn profile summary on SubmitAnswer
// results.
func WithSynthesizer(synth *profile.Synthesizer) Option {
	return func(s *Service) { s.synthesizer = synth }
}

// NewService creates a Service. The retriever backs the Search operation.
func NewService(machine *dialogue.Machine, pipeline *recommend.Pipeline, retriever policy.Retriever, opts ...Option) *Service {
	s := &Service{
		machine:   machine,
		pipeline:  pipeline,
		retriever: retriever,
		store:     memory.New(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession starts a dialogue and generates its first question.
func (s *Service) NewSession(ctx context.Context) (*TurnResult, error) {
	state := dialogue.NewState(uuid.NewString())
	state = s.machine.Advance(ctx, state)

	if err := s.store.Save(ctx, session.NewSnapshot(state)); err != nil {
		return nil, fmt.Errorf("saving new session: %w", err)
	}
	s.logger.Info("session %s started", state.ThreadID)
	return turnResult(state), nil
}

// SubmitAnswer records an answer for the thread and advances the dialogue.
// Empty input is rejected without touching the session.
func (s *Service) SubmitAnswer(ctx context.Context, threadID, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInputRequired
	}

	snapshot, err := s.loadSnapshot(ctx, threadID)
	if err != nil {
		return nil, err
	}

	state := s.machine.RecordAnswer(snapshot.State, text)
	state = s.machine.Advance(ctx, state)

	if err := s.saveNext(ctx, snapshot, state); err != nil {
		return nil, err
	}

	result := turnResult(state)
	result.Profile = s.profileSummary(ctx, state.RawAnswers)
	return result, nil
}

// profileSummary renders the running profile for UI display. Optional and
// best-effort; failures yield an empty summary.
func (s *Service) profileSummary(ctx context.Context, answers []string) string {
	if s.synthesizer == nil {
		return ""
	}
	summary, err := s.synthesizer.Synthesize(ctx, answers)
	if err != nil {
		s.logger.Warn("profile summary failed: %v", err)
		return ""
	}
	return summary
}

// RequestRecommendation runs the recommendation pipeline over the thread's
// answer history and marks the dialogue complete.
func (s *Service) RequestRecommendation(ctx context.Context, threadID string) (recommend.Recommendation, error) {
	snapshot, err := s.loadSnapshot(ctx, threadID)
	if err != nil {
		return recommend.Recommendation{}, err
	}
	if len(snapshot.State.RawAnswers) == 0 {
		return recommend.Recommendation{}, ErrInputRequired
	}

	rec := s.pipeline.Produce(ctx, snapshot.State.RawAnswers)

	state := snapshot.State
	state.NextStep = dialogue.StepComplete
	state.PendingQuestion = ""
	if err := s.saveNext(ctx, snapshot, state); err != nil {
		s.logger.Warn("session %s: could not persist completion: %v", threadID, err)
	}
	return rec, nil
}

// RecommendFromAnswers runs the pipeline over a caller-supplied answer
// history, without any session.
func (s *Service) RecommendFromAnswers(ctx context.Context, answers []string) (recommend.Recommendation, error) {
	if len(nonBlank(answers)) == 0 {
		return recommend.Recommendation{}, ErrInputRequired
	}
	return s.pipeline.Produce(ctx, answers), nil
}

// Search retrieves policy chunks for a free-text query across all
// collections. Retrieval failures degrade to an empty result.
func (s *Service) Search(ctx context.Context, query string) ([]policy.Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInputRequired
	}

	collections, err := s.retriever.ListCollections(ctx, "")
	if err != nil || len(collections) == 0 {
		return nil, nil
	}
	return s.retriever.Retrieve(ctx, policy.CollectionIDs(collections), query, policy.RetrievalOptions{})
}

// DeleteSession removes a thread's stored state.
func (s *Service) DeleteSession(ctx context.Context, threadID string) error {
	return s.store.Delete(ctx, threadID)
}

func (s *Service) loadSnapshot(ctx context.Context, threadID string) (*session.Snapshot, error) {
	snapshot, err := s.store.Load(ctx, threadID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", threadID, err)
	}
	return snapshot, nil
}

func (s *Service) saveNext(ctx context.Context, prev *session.Snapshot, state dialogue.State) error {
	next := &session.Snapshot{
		ThreadID:  state.ThreadID,
		State:     state,
		UpdatedAt: time.Now().UTC(),
		Version:   prev.Version + 1,
	}
	if err := s.store.Save(ctx, next); err != nil {
		return fmt.Errorf("saving session %s: %w", state.ThreadID, err)
	}
	return nil
}

func turnResult(state dialogue.State) *TurnResult {
	return &TurnResult{
		ThreadID:      state.ThreadID,
		NextQuestion:  state.PendingQuestion,
		Completed:     state.Complete(),
		Satisfied:     append([]string{}, state.Satisfied...),
		Missing:       append([]string{}, state.Missing()...),
		Answers:       append([]string{}, state.RawAnswers...),
		Attempts:      state.Attempts,
		EvidenceCount: state.EvidenceCount,
	}
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
