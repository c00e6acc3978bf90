// Package recommend orchestrates the end of the dialogue: synthesize the
// company profile, gather supporting policy evidence, and generate the
// final recommendation. Every failure path degrades; the caller always
// receives usable recommendation text.
package recommend

import (
	"context"
	"strings"

	"github.com/insurlab/advisor/llm"
	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/profile"
	"github.com/insurlab/advisor/prompt"
)

// NoEvidence is the evidence block used when retrieval finds nothing.
const NoEvidence = "No specific policy information was found for this company profile."

// genericPolicyContext stands in for evidence when no policy collections
// exist at all.
const genericPolicyContext = "No indexed policy documents are available. Base the recommendation on common commercial insurance policy types."

// fallbackText is the hardcoded baseline recommendation emitted when
// generation itself fails. The end user must always get actionable output.
const fallbackText = `POLICY RECOMMENDATIONS:
1. General Liability Insurance
2. Professional Indemnity Insurance
3. Cyber Liability Insurance
4. Directors & Officers (D&O) Insurance
5. Commercial Property Insurance

WHY THESE POLICIES: These are the core commercial covers most companies need. General liability and property protect day-to-day operations, professional indemnity and D&O cover management and service risks, and cyber liability addresses the most common modern threat.

COVERAGE HIGHLIGHTS: Start with liability limits matched to annual revenue and add cyber cover sized to the volume of customer data handled. Review deductibles against the available budget.`

// Recommendation is the pipeline's end artifact.
type Recommendation struct {
	// Text is the generated (or fallback) recommendation.
	Text string `json:"recommendation"`
	// Profile is the company profile the recommendation was based on.
	Profile string `json:"company_profile"`
	// EvidenceCount is the number of policy chunks that supported it.
	EvidenceCount int `json:"chunk_count"`
	// Fallback reports whether the hardcoded baseline was used.
	Fallback bool `json:"fallback,omitempty"`
}

// Pipeline wires the profile synthesizer, a retriever and the generator.
type Pipeline struct {
	synthesizer *profile.Synthesizer
	retriever   policy.Retriever
	generator   llm.Generator
	logger      log.Logger
	opts        policy.RetrievalOptions
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRetrievalOptions overrides the retrieval tuning used for evidence
// gathering.
func WithRetrievalOptions(opts policy.RetrievalOptions) Option {
	return func(p *Pipeline) { p.opts = opts }
}

// NewPipeline creates a Pipeline.
func NewPipeline(synth *profile.Synthesizer, retriever policy.Retriever, generator llm.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		synthesizer: synth,
		retriever:   retriever,
		generator:   generator,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Produce runs the full pipeline over the answer history. It never fails:
// a broken profile falls back to the raw answers, missing evidence falls
// back to generic context, and a broken generation falls back to the
// baseline recommendation.
func (p *Pipeline) Produce(ctx context.Context, rawAnswers []string) Recommendation {
	companyProfile, err := p.synthesizer.Synthesize(ctx, rawAnswers)
	if err != nil {
		companyProfile = strings.TrimSpace(strings.Join(rawAnswers, "\n"))
		p.logger.Warn("recommend: profile synthesis failed, using raw answers: %v", err)
		if companyProfile == "" {
			companyProfile = profile.NoInformation
		}
	}

	evidence, count := p.gatherEvidence(ctx, companyProfile)

	output, err := p.generator.Invoke(ctx, prompt.Recommendation, map[string]any{
		"company_profile":   companyProfile,
		"relevant_policies": evidence,
	})
	if err != nil {
		p.logger.Error("recommend: generation failed, emitting baseline recommendation: %v", err)
		return Recommendation{Text: fallbackText, Profile: companyProfile, EvidenceCount: count, Fallback: true}
	}

	text := llm.StripReasoning(output)
	if text == "" {
		return Recommendation{Text: fallbackText, Profile: companyProfile, EvidenceCount: count, Fallback: true}
	}

	return Recommendation{Text: text, Profile: companyProfile, EvidenceCount: count}
}

// gatherEvidence retrieves chunks for the profile and formats the evidence
// block. Missing collections or empty retrieval degrade to fixed context
// strings.
func (p *Pipeline) gatherEvidence(ctx context.Context, companyProfile string) (string, int) {
	collections, err := p.retriever.ListCollections(ctx, "")
	if err != nil || len(collections) == 0 {
		p.logger.Warn("recommend: no policy collections available")
		return genericPolicyContext, 0
	}

	chunks, err := p.retriever.Retrieve(ctx, policy.CollectionIDs(collections), companyProfile, p.opts)
	if err != nil || len(chunks) == 0 {
		return NoEvidence, 0
	}

	return FormatEvidence(chunks), len(chunks)
}

// FormatEvidence renders chunks into the evidence block consumed by the
// recommendation prompt. Chunks without content are skipped.
func FormatEvidence(chunks []policy.Chunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		source := chunk.Source
		if source == "" {
			source = "Unknown policy"
		}
		blocks = append(blocks, "Policy: "+source+"\nContent: "+chunk.Content)
	}
	if len(blocks) == 0 {
		return NoEvidence
	}
	return strings.Join(blocks, "\n\n")
}
