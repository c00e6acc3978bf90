package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQuestionRefinement(t *testing.T) {
	text, err := Render(QuestionRefinement, map[string]any{
		"current_info": "Technology company",
		"missing_info": "Annual revenue (e.g., < $1M, $1M - $5M)",
	})

	require.NoError(t, err)
	assert.Contains(t, text, "Technology company")
	assert.Contains(t, text, "Annual revenue")
	assert.Contains(t, text, "CATEGORY:")
}

func TestRenderProfile(t *testing.T) {
	text, err := Render(Profile, map[string]any{"collected_info": "50 employees, fintech"})

	require.NoError(t, err)
	assert.Contains(t, text, "50 employees, fintech")
	assert.Contains(t, text, "keyword-rich search query")
}

func TestRenderRecommendation(t *testing.T) {
	text, err := Render(Recommendation, map[string]any{
		"company_profile":   "Fintech startup in Hong Kong",
		"relevant_policies": "Policy: Cyber Shield",
	})

	require.NoError(t, err)
	assert.Contains(t, text, "Fintech startup in Hong Kong")
	assert.Contains(t, text, "POLICY RECOMMENDATIONS")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("nope", nil)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{QuestionRefinement, Profile, Recommendation}, Names())
}
