package advisor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/llm"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/profile"
	"github.com/insurlab/advisor/prompt"
	"github.com/insurlab/advisor/recommend"
	"github.com/insurlab/advisor/taxonomy"
)

type stubGenerator struct {
	outputs map[string]string
	errs    map[string]error
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{outputs: map[string]string{}, errs: map[string]error{}}
}

func (s *stubGenerator) Invoke(ctx context.Context, templateName string, vars map[string]any) (string, error) {
	if err := s.errs[templateName]; err != nil {
		return "", err
	}
	if out, ok := s.outputs[templateName]; ok {
		return out, nil
	}
	return "", llm.ErrGeneration
}

type stubRetriever struct {
	collections []policy.Collection
	chunks      []policy.Chunk
}

func (s *stubRetriever) ListCollections(ctx context.Context, nameFilter string) ([]policy.Collection, error) {
	return s.collections, nil
}

func (s *stubRetriever) Retrieve(ctx context.Context, collectionIDs []string, query string, opts policy.RetrievalOptions) ([]policy.Chunk, error) {
	return s.chunks, nil
}

func newTestService(gen *stubGenerator, retriever policy.Retriever) *Service {
	machine := dialogue.NewMachine(gen)
	pipeline := recommend.NewPipeline(profile.NewSynthesizer(gen), retriever, gen)
	return NewService(machine, pipeline, retriever)
}

func fullAnswer() string {
	return "30-person fintech startup in Hong Kong, $2M revenue, worried about cyberattacks, budget $20K, no crypto custody, 90 day grace period for subsidiaries"
}

func TestNewSessionGeneratesFirstQuestion(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: How many employees do you have?"

	svc := newTestService(gen, &stubRetriever{})
	result, err := svc.NewSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.ThreadID)
	assert.Equal(t, "How many employees do you have?", result.NextQuestion)
	assert.False(t, result.Completed)
	assert.Equal(t, 1, result.Attempts)
	assert.Len(t, result.Missing, len(taxonomy.Names()))
}

func TestSubmitAnswerAdvancesDialogue(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: What is your budget?"

	svc := newTestService(gen, &stubRetriever{})
	ctx := context.Background()

	start, err := svc.NewSession(ctx)
	require.NoError(t, err)

	result, err := svc.SubmitAnswer(ctx, start.ThreadID, "We are a 30-person fintech startup")
	require.NoError(t, err)

	assert.Equal(t, []string{"We are a 30-person fintech startup"}, result.Answers)
	assert.Contains(t, result.Satisfied, taxonomy.CompanySize)
	assert.Contains(t, result.Satisfied, taxonomy.Industry)
	assert.Equal(t, 2, result.Attempts)
	assert.False(t, result.Completed)
}

func TestSubmitAnswerEmptyInput(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: q"
	svc := newTestService(gen, &stubRetriever{})
	ctx := context.Background()

	start, err := svc.NewSession(ctx)
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, start.ThreadID, "   ")
	assert.ErrorIs(t, err, ErrInputRequired)

	// The rejected turn must not count as an attempt.
	again, err := svc.SubmitAnswer(ctx, start.ThreadID, "real answer about our software business")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Attempts)
}

func TestSubmitAnswerUnknownThread(t *testing.T) {
	gen := newStubGenerator()
	svc := newTestService(gen, &stubRetriever{})

	_, err := svc.SubmitAnswer(context.Background(), "missing-thread", "answer")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDialogueCompletesAtAttemptCap(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: Another question?"

	svc := newTestService(gen, &stubRetriever{})
	ctx := context.Background()

	start, err := svc.NewSession(ctx)
	require.NoError(t, err)

	var result *TurnResult
	for i := 0; i < dialogue.MaxAttempts; i++ {
		result, err = svc.SubmitAnswer(ctx, start.ThreadID, fmt.Sprintf("vague answer %d", i))
		require.NoError(t, err)
	}

	assert.True(t, result.Completed)
	assert.Empty(t, result.NextQuestion)
}

func TestRequestRecommendation(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: q"
	gen.outputs[prompt.Profile] = "Hong Kong fintech, 30 staff"
	gen.outputs[prompt.Recommendation] = "1. Cyber Liability Insurance"

	retriever := &stubRetriever{
		collections: []policy.Collection{{ID: "c1"}},
		chunks:      []policy.Chunk{{Content: "cyber clause", Source: "AXA Cyber"}},
	}
	svc := newTestService(gen, retriever)
	ctx := context.Background()

	start, err := svc.NewSession(ctx)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, start.ThreadID, fullAnswer())
	require.NoError(t, err)

	rec, err := svc.RequestRecommendation(ctx, start.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "1. Cyber Liability Insurance", rec.Text)
	assert.Equal(t, "Hong Kong fintech, 30 staff", rec.Profile)
	assert.Equal(t, 1, rec.EvidenceCount)

	// Requesting a recommendation completes the dialogue.
	result, err := svc.SubmitAnswer(ctx, start.ThreadID, "one more thing")
	require.NoError(t, err)
	assert.True(t, result.Completed)
}

func TestRequestRecommendationWithoutAnswers(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: q"
	svc := newTestService(gen, &stubRetriever{})
	ctx := context.Background()

	start, err := svc.NewSession(ctx)
	require.NoError(t, err)

	_, err = svc.RequestRecommendation(ctx, start.ThreadID)
	assert.ErrorIs(t, err, ErrInputRequired)
}

func TestRecommendFromAnswers(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.Profile] = "Profile"
	gen.outputs[prompt.Recommendation] = "Recommendation text"

	svc := newTestService(gen, &stubRetriever{})

	rec, err := svc.RecommendFromAnswers(context.Background(), []string{"software company"})
	require.NoError(t, err)
	assert.Equal(t, "Recommendation text", rec.Text)

	_, err = svc.RecommendFromAnswers(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, ErrInputRequired)
}

func TestSearch(t *testing.T) {
	gen := newStubGenerator()
	retriever := &stubRetriever{
		collections: []policy.Collection{{ID: "c1"}},
		chunks:      []policy.Chunk{{Content: "clause", Source: "Policy A", Score: 0.8}},
	}
	svc := newTestService(gen, retriever)

	chunks, err := svc.Search(context.Background(), "cyber insurance")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Policy A", chunks[0].Source)

	_, err = svc.Search(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInputRequired)
}

func TestSearchNoCollections(t *testing.T) {
	svc := newTestService(newStubGenerator(), &stubRetriever{})

	chunks, err := svc.Search(context.Background(), "anything")
	assert.NoError(t, err)
	assert.Empty(t, chunks)
}
