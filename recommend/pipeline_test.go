package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/profile"
	"github.com/insurlab/advisor/prompt"
)

type stubGenerator struct {
	outputs map[string]string
	errs    map[string]error
	vars    map[string]map[string]any
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{
		outputs: map[string]string{},
		errs:    map[string]error{},
		vars:    map[string]map[string]any{},
	}
}

func (s *stubGenerator) Invoke(ctx context.Context, templateName string, vars map[string]any) (string, error) {
	s.vars[templateName] = vars
	if err := s.errs[templateName]; err != nil {
		return "", err
	}
	return s.outputs[templateName], nil
}

type stubRetriever struct {
	collections []policy.Collection
	chunks      []policy.Chunk
	queries     []string
}

func (s *stubRetriever) ListCollections(ctx context.Context, nameFilter string) ([]policy.Collection, error) {
	return s.collections, nil
}

func (s *stubRetriever) Retrieve(ctx context.Context, collectionIDs []string, query string, opts policy.RetrievalOptions) ([]policy.Chunk, error) {
	s.queries = append(s.queries, query)
	return s.chunks, nil
}

func TestProduceWithEvidence(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.Profile] = "Hong Kong fintech, 30 employees"
	gen.outputs[prompt.Recommendation] = "POLICY RECOMMENDATIONS:\n1. Cyber Liability Insurance"

	retriever := &stubRetriever{
		collections: []policy.Collection{{ID: "c1", Name: "axa_policies"}},
		chunks: []policy.Chunk{
			{Content: "Cyber cover up to $5M", Source: "AXA Cyber Plus", Score: 0.9},
			{Content: "Professional indemnity terms", Source: "AXA PI", Score: 0.7},
		},
	}

	p := NewPipeline(profile.NewSynthesizer(gen), retriever, gen)
	rec := p.Produce(context.Background(), []string{"fintech startup", "30 employees"})

	assert.Equal(t, "POLICY RECOMMENDATIONS:\n1. Cyber Liability Insurance", rec.Text)
	assert.Equal(t, "Hong Kong fintech, 30 employees", rec.Profile)
	assert.Equal(t, 2, rec.EvidenceCount)
	assert.False(t, rec.Fallback)

	// Retrieval is keyed on the synthesized profile, not the raw answers.
	require.Len(t, retriever.queries, 1)
	assert.Equal(t, "Hong Kong fintech, 30 employees", retriever.queries[0])

	evidence, _ := gen.vars[prompt.Recommendation]["relevant_policies"].(string)
	assert.Contains(t, evidence, "Policy: AXA Cyber Plus\nContent: Cyber cover up to $5M")
	assert.Contains(t, evidence, "Policy: AXA PI")
}

func TestProduceNoChunksUsesFixedEvidenceSentence(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.Profile] = "Small retail shop"
	gen.outputs[prompt.Recommendation] = "Recommendation text"

	retriever := &stubRetriever{collections: []policy.Collection{{ID: "c1"}}}

	p := NewPipeline(profile.NewSynthesizer(gen), retriever, gen)
	rec := p.Produce(context.Background(), []string{"retail shop"})

	assert.Equal(t, "Recommendation text", rec.Text)
	assert.Zero(t, rec.EvidenceCount)
	assert.Equal(t, NoEvidence, gen.vars[prompt.Recommendation]["relevant_policies"])
}

func TestProduceNoCollectionsUsesGenericContext(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.Profile] = "Small retail shop"
	gen.outputs[prompt.Recommendation] = "Recommendation text"

	p := NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)
	rec := p.Produce(context.Background(), []string{"retail shop"})

	assert.Equal(t, "Recommendation text", rec.Text)
	assert.Zero(t, rec.EvidenceCount)
	assert.Equal(t, genericPolicyContext, gen.vars[prompt.Recommendation]["relevant_policies"])
}

func TestProduceGenerationFailureFallsBack(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.Profile] = "Small retail shop"
	gen.errs[prompt.Recommendation] = errors.New("model unavailable")

	p := NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)
	rec := p.Produce(context.Background(), []string{"retail shop"})

	assert.True(t, rec.Fallback)
	assert.Contains(t, rec.Text, "POLICY RECOMMENDATIONS")
	assert.Contains(t, rec.Text, "General Liability Insurance")
	assert.Equal(t, "Small retail shop", rec.Profile)
}

func TestProduceProfileFailureUsesRawAnswers(t *testing.T) {
	gen := newStubGenerator()
	gen.errs[prompt.Profile] = errors.New("model unavailable")
	gen.outputs[prompt.Recommendation] = "Recommendation text"

	p := NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)
	rec := p.Produce(context.Background(), []string{"fintech startup", "budget $20K"})

	assert.Equal(t, "Recommendation text", rec.Text)
	assert.Equal(t, "fintech startup\nbudget $20K", rec.Profile)
}

func TestProduceEmptyHistory(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.Recommendation] = "Recommendation text"

	p := NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)
	rec := p.Produce(context.Background(), nil)

	assert.Equal(t, profile.NoInformation, rec.Profile)
	assert.NotEmpty(t, rec.Text)
}

func TestProduceStripsReasoningFromRecommendation(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.Profile] = "Profile"
	gen.outputs[prompt.Recommendation] = "<think>reasoning here</think>Final recommendation"

	p := NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)
	rec := p.Produce(context.Background(), []string{"some company"})

	assert.Equal(t, "Final recommendation", rec.Text)
}

func TestFormatEvidence(t *testing.T) {
	chunks := []policy.Chunk{
		{Content: "Clause one", Source: "Policy A"},
		{Content: "  ", Source: "Policy B"},
		{Content: "Clause three", Source: ""},
	}

	got := FormatEvidence(chunks)
	parts := strings.Split(got, "\n\n")
	require.Len(t, parts, 2)
	assert.Equal(t, "Policy: Policy A\nContent: Clause one", parts[0])
	assert.Equal(t, "Policy: Unknown policy\nContent: Clause three", parts[1])

	assert.Equal(t, NoEvidence, FormatEvidence(nil))
}
