package advisor

import (
	"context"

	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/graph"
	"github.com/insurlab/advisor/recommend"
)

// InputFunc supplies the next user answer for a workflow run. question is
// empty on the opening turn.
type InputFunc func(ctx context.Context, question string) (string, error)

// WorkflowState carries one workflow run from first question to final
// recommendation.
type WorkflowState struct {
	Dialogue       dialogue.State
	Recommendation recommend.Recommendation
}

// NewWorkflow wires the dialogue machine and the recommendation pipeline
// into an executable graph:
//
//	get_initial_input -> refine_question -> process_user_input (loop)
//	                                     -> generate_recommendation -> END
//
// The input function is called whenever the graph needs an answer, which
// makes the same graph usable from a terminal loop or a scripted test.
func NewWorkflow(machine *dialogue.Machine, pipeline *recommend.Pipeline, input InputFunc) (*graph.Runnable[WorkflowState], error) {
	g := graph.NewStateGraph[WorkflowState]()

	g.AddNode("get_initial_input", "collects the opening company description", func(ctx context.Context, s WorkflowState) (WorkflowState, error) {
		text, err := input(ctx, "")
		if err != nil {
			return s, err
		}
		s.Dialogue = machine.RecordAnswer(s.Dialogue, text)
		return s, nil
	})

	g.AddNode("refine_question", "decides whether to ask another question", func(ctx context.Context, s WorkflowState) (WorkflowState, error) {
		s.Dialogue = machine.Advance(ctx, s.Dialogue)
		return s, nil
	})

	g.AddNode("process_user_input", "asks the pending question and records the answer", func(ctx context.Context, s WorkflowState) (WorkflowState, error) {
		text, err := input(ctx, s.Dialogue.PendingQuestion)
		if err != nil {
			return s, err
		}
		s.Dialogue = machine.RecordAnswer(s.Dialogue, text)
		return s, nil
	})

	g.AddNode("generate_recommendation", "synthesizes the profile and produces the recommendation", func(ctx context.Context, s WorkflowState) (WorkflowState, error) {
		s.Recommendation = pipeline.Produce(ctx, s.Dialogue.RawAnswers)
		return s, nil
	})

	g.SetEntryPoint("get_initial_input")
	g.AddEdge("get_initial_input", "refine_question")
	g.AddConditionalEdge("refine_question", func(ctx context.Context, s WorkflowState) string {
		if s.Dialogue.Complete() {
			return "generate_recommendation"
		}
		return "process_user_input"
	})
	g.AddEdge("process_user_input", "refine_question")
	g.AddEdge("generate_recommendation", graph.END)

	return g.Compile()
}
