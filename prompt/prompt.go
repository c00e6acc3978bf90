// Package prompt holds the named prompt templates used by the dialogue and
// recommendation flows.
package prompt

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// Template names accepted by Render and the llm.Generator implementations.
const (
	QuestionRefinement = "question_refinement"
	Profile            = "profile"
	Recommendation     = "recommendation"
)

var questionRefinementTemplate = prompts.NewPromptTemplate(
	`Based on the following information about the company:
{{.current_info}}

We still need to know:
{{.missing_info}}

INSTRUCTIONS:
1. Select ONE specific missing information category to ask about.
2. Generate a clear, direct question to gather that specific information.
3. Keep your question concise and focused only on the selected category.
4. Format your response as: "CATEGORY: [selected category]
QUESTION: [your question]"
5. Be confident, no verification is required.

For example:
CATEGORY: Company size/employee count
QUESTION: How many employees does your company currently have?

Your response:`,
	[]string{"current_info", "missing_info"},
)

var profileTemplate = prompts.NewPromptTemplate(
	`Based on the following collected information about a company:
{{.collected_info}}

INSTRUCTIONS:
1. Create a single, concise line summarizing all key company details.
2. Include industry, size, revenue, risks, and budget information.
3. Format as a keyword-rich search query.
4. DO NOT include explanations, thinking, or multiple lines.
5. DO NOT use <think> tags or similar markers.

OUTPUT FORMAT:
[Industry] company with [size] employees, [revenue] annual revenue, concerned about [risks], with [budget] constraints.`,
	[]string{"collected_info"},
)

var recommendationTemplate = prompts.NewPromptTemplate(
	`Given the following company profile:
{{.company_profile}}

And the following relevant insurance policies:
{{.relevant_policies}}

ROLE: You are an insurance broker helping to identify the best policies for this client.

INSTRUCTIONS:
1. Analyze the company profile to identify their key risks and needs.
2. Review the available policies and select the ones that best address these needs.
3. Clearly name each recommended policy and explain why it's the best fit.

Your response must include:
- POLICY RECOMMENDATIONS: List the specific names of recommended policies in order of priority
- WHY THESE POLICIES: Brief explanation of why each policy is suitable for this client
- COVERAGE HIGHLIGHTS: Key benefits and coverage amounts that address client needs

Keep your response concise and focused on actionable recommendations. Avoid lengthy explanations of policy details unless directly relevant to the client's needs.`,
	[]string{"company_profile", "relevant_policies"},
)

var templates = map[string]prompts.PromptTemplate{
	QuestionRefinement: questionRefinementTemplate,
	Profile:            profileTemplate,
	Recommendation:     recommendationTemplate,
}

// Render formats the named template with the given variables.
func Render(name string, vars map[string]any) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}

	text, err := tmpl.Format(vars)
	if err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return text, nil
}

// Names returns the registered template names.
func Names() []string {
	return []string{QuestionRefinement, Profile, Recommendation}
}
