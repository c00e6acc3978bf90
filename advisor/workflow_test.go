package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/profile"
	"github.com/insurlab/advisor/prompt"
	"github.com/insurlab/advisor/recommend"
)

func TestWorkflowRunsToRecommendation(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: Tell me more?"
	gen.outputs[prompt.Profile] = "Fintech profile"
	gen.outputs[prompt.Recommendation] = "Final recommendation"

	machine := dialogue.NewMachine(gen)
	pipeline := recommend.NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)

	answers := []string{
		"We are a fintech startup",
		fullAnswer(),
	}
	var asked []string
	input := func(ctx context.Context, question string) (string, error) {
		asked = append(asked, question)
		if len(asked) > len(answers) {
			return "nothing else", nil
		}
		return answers[len(asked)-1], nil
	}

	runnable, err := NewWorkflow(machine, pipeline, input)
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), WorkflowState{Dialogue: dialogue.NewState("w1")})
	require.NoError(t, err)

	assert.Equal(t, "Final recommendation", final.Recommendation.Text)
	assert.True(t, final.Dialogue.Complete())
	// The opening turn asks with an empty question, later turns carry one.
	require.NotEmpty(t, asked)
	assert.Empty(t, asked[0])
	for _, q := range asked[1:] {
		assert.NotEmpty(t, q)
	}
}

func TestWorkflowStopsOnInputError(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: q"

	machine := dialogue.NewMachine(gen)
	pipeline := recommend.NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)

	wantErr := errors.New("stdin closed")
	runnable, err := NewWorkflow(machine, pipeline, func(ctx context.Context, question string) (string, error) {
		return "", wantErr
	})
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), WorkflowState{Dialogue: dialogue.NewState("w1")})
	assert.ErrorIs(t, err, wantErr)
}

func TestWorkflowAttemptCapTerminates(t *testing.T) {
	gen := newStubGenerator()
	gen.outputs[prompt.QuestionRefinement] = "QUESTION: q"
	gen.outputs[prompt.Profile] = "Sparse profile"
	gen.outputs[prompt.Recommendation] = "Best-effort recommendation"

	machine := dialogue.NewMachine(gen)
	pipeline := recommend.NewPipeline(profile.NewSynthesizer(gen), &stubRetriever{}, gen)

	runnable, err := NewWorkflow(machine, pipeline, func(ctx context.Context, question string) (string, error) {
		return "vague answer", nil
	})
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), WorkflowState{Dialogue: dialogue.NewState("w1")})
	require.NoError(t, err)

	assert.True(t, final.Dialogue.Complete())
	assert.Equal(t, dialogue.MaxAttempts, final.Dialogue.Attempts)
	assert.Equal(t, "Best-effort recommendation", final.Recommendation.Text)
}
