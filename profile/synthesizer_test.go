package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurlab/advisor/llm"
)

type stubGenerator struct {
	output string
	err    error
	calls  int
	vars   map[string]any
}

func (s *stubGenerator) Invoke(ctx context.Context, templateName string, vars map[string]any) (string, error) {
	s.calls++
	s.vars = vars
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func TestSynthesizeEmptyHistoryReturnsSentinel(t *testing.T) {
	gen := &stubGenerator{output: "should not be used"}
	synth := NewSynthesizer(gen)

	got, err := synth.Synthesize(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, NoInformation, got)
	assert.Zero(t, gen.calls, "generation must not be invoked for empty history")
}

func TestSynthesizeJoinsAnswersInOrder(t *testing.T) {
	gen := &stubGenerator{output: "Fintech company with 30 employees."}
	synth := NewSynthesizer(gen)

	got, err := synth.Synthesize(context.Background(), []string{"first answer", "", "second answer"})

	require.NoError(t, err)
	assert.Equal(t, "Fintech company with 30 employees.", got)
	assert.Equal(t, "first answer\nsecond answer", gen.vars["collected_info"])
}

func TestSynthesizeStripsReasoningMarkup(t *testing.T) {
	gen := &stubGenerator{output: "<think>let me think about this</think>  Clean profile sentence.  "}
	synth := NewSynthesizer(gen)

	got, err := synth.Synthesize(context.Background(), []string{"some info"})

	require.NoError(t, err)
	assert.Equal(t, "Clean profile sentence.", got)
}

func TestSynthesizeAllReasoningFallsBackToSentinel(t *testing.T) {
	gen := &stubGenerator{output: "<think>nothing but thoughts</think>"}
	synth := NewSynthesizer(gen)

	got, err := synth.Synthesize(context.Background(), []string{"some info"})

	require.NoError(t, err)
	assert.Equal(t, NoInformation, got)
}

func TestSynthesizePropagatesGenerationError(t *testing.T) {
	gen := &stubGenerator{err: llm.ErrGeneration}
	synth := NewSynthesizer(gen)

	_, err := synth.Synthesize(context.Background(), []string{"some info"})
	assert.ErrorIs(t, err, llm.ErrGeneration)
}

func TestSynthesizeWhitespaceOnlyHistory(t *testing.T) {
	gen := &stubGenerator{output: "x"}
	synth := NewSynthesizer(gen)

	got, err := synth.Synthesize(context.Background(), []string{"  ", ""})
	require.NoError(t, err)
	assert.Equal(t, NoInformation, got)
	assert.Zero(t, gen.calls)
}
