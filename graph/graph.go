// Package graph provides a small typed state graph: named nodes over a
// state value S, static and conditional edges, and a sequential runner.
// The dialogue workflow is strictly sequential, so there is no parallel
// execution; one node runs at a time until END.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// END is the terminal pseudo-node name.
const END = "END"

var (
	// ErrEntryPointNotSet is returned by Compile when no entry point was set.
	ErrEntryPointNotSet = errors.New("entry point not set")
	// ErrNodeNotFound is returned when an edge references an unknown node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNoOutgoingEdge is returned when execution reaches a node with no
	// outgoing edge.
	ErrNoOutgoingEdge = errors.New("no outgoing edge")
	// ErrMaxStepsExceeded guards against accidental infinite loops.
	ErrMaxStepsExceeded = errors.New("max steps exceeded")
)

// Node is a named state-transition function.
type Node[S any] struct {
	Name        string
	Description string
	Function    func(ctx context.Context, state S) (S, error)
}

// Edge is a static connection between two nodes.
type Edge struct {
	From string
	To   string
}

// StateGraph is a buildable graph over state type S.
type StateGraph[S any] struct {
	nodes            map[string]Node[S]
	edges            []Edge
	conditionalEdges map[string]func(ctx context.Context, state S) string
	entryPoint       string
	maxSteps         int
}

// NewStateGraph creates an empty graph.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]func(ctx context.Context, state S) string),
		maxSteps:         100,
	}
}

// AddNode registers a node.
func (g *StateGraph[S]) AddNode(name, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{Name: name, Description: description, Function: fn}
}

// AddEdge connects from to to unconditionally.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge derives the next node from the state at runtime.
func (g *StateGraph[S]) AddConditionalEdge(from string, condition func(ctx context.Context, state S) string) {
	g.conditionalEdges[from] = condition
}

// SetEntryPoint sets the node execution starts from.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetMaxSteps overrides the loop guard (default 100).
func (g *StateGraph[S]) SetMaxSteps(n int) {
	g.maxSteps = n
}

// Runnable is a compiled graph ready to invoke.
type Runnable[S any] struct {
	graph *StateGraph[S]
}

// Compile validates the graph and returns a Runnable.
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: entry point %q", ErrNodeNotFound, g.entryPoint)
	}
	for _, edge := range g.edges {
		if _, ok := g.nodes[edge.From]; !ok {
			return nil, fmt.Errorf("%w: edge source %q", ErrNodeNotFound, edge.From)
		}
		if edge.To != END {
			if _, ok := g.nodes[edge.To]; !ok {
				return nil, fmt.Errorf("%w: edge target %q", ErrNodeNotFound, edge.To)
			}
		}
	}
	return &Runnable[S]{graph: g}, nil
}

// Invoke runs the graph from the entry point until END, returning the final
// state.
func (r *Runnable[S]) Invoke(ctx context.Context, initial S) (S, error) {
	state := initial
	current := r.graph.entryPoint

	for steps := 0; current != END; steps++ {
		if steps >= r.graph.maxSteps {
			return state, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, r.graph.maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %q", ErrNodeNotFound, current)
		}

		next, err := node.Function(ctx, state)
		if err != nil {
			return state, fmt.Errorf("node %q: %w", current, err)
		}
		state = next

		current, err = r.nextNode(ctx, current, state)
		if err != nil {
			return state, err
		}
	}

	return state, nil
}

func (r *Runnable[S]) nextNode(ctx context.Context, current string, state S) (string, error) {
	if condition, ok := r.graph.conditionalEdges[current]; ok {
		next := condition(ctx, state)
		if next == "" {
			return "", fmt.Errorf("%w: conditional edge from %q returned no target", ErrNodeNotFound, current)
		}
		return next, nil
	}

	for _, edge := range r.graph.edges {
		if edge.From == current {
			return edge.To, nil
		}
	}
	return "", fmt.Errorf("%w: from %q", ErrNoOutgoingEdge, current)
}
