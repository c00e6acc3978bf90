// Package profile turns the accumulated free-text answers into one
// normalized, keyword-dense company profile sentence.
package profile

import (
	"context"
	"strings"

	"github.com/insurlab/advisor/llm"
	"github.com/insurlab/advisor/prompt"
)

// NoInformation is the sentinel profile returned for an empty answer
// history. Generation is not invoked in that case.
const NoInformation = "No company information available."

// Synthesizer derives a company profile from raw answers. The profile is
// regenerated on every call, never incrementally updated.
type Synthesizer struct {
	generator llm.Generator
}

// NewSynthesizer creates a Synthesizer over the given generator.
func NewSynthesizer(generator llm.Generator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

// Synthesize produces the profile sentence. Answers are joined in insertion
// order; reasoning markup is stripped from the model output. Generation
// failures propagate so the caller can fall back at its own level.
func (s *Synthesizer) Synthesize(ctx context.Context, rawAnswers []string) (string, error) {
	collected := joinAnswers(rawAnswers)
	if collected == "" {
		return NoInformation, nil
	}

	output, err := s.generator.Invoke(ctx, prompt.Profile, map[string]any{
		"collected_info": collected,
	})
	if err != nil {
		return "", err
	}

	cleaned := llm.StripReasoning(output)
	if cleaned == "" {
		return NoInformation, nil
	}
	return cleaned, nil
}

func joinAnswers(rawAnswers []string) string {
	kept := make([]string, 0, len(rawAnswers))
	for _, answer := range rawAnswers {
		if strings.TrimSpace(answer) != "" {
			kept = append(kept, answer)
		}
	}
	return strings.Join(kept, "\n")
}
