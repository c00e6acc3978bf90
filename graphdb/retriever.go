// Package graphdb implements the graph-database retrieval variant: policy
// clauses live as nodes behind a full-text index in a Cypher-speaking,
// redis-protocol graph database (FalkorDB/RedisGraph). It produces the same
// canonical chunks as the HTTP backend and degrades the same way.
package graphdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/retry"
)

const (
	defaultGraphName = "policies"
	defaultThreshold = 0.2
	defaultTopK      = 1024

	clauseIndex = "clause_text_idx"
)

// WildcardScope searches every policy instead of a fixed id list.
const WildcardScope = "all"

// Retriever is a policy.Retriever backed by a graph database.
type Retriever struct {
	client    redis.UniversalClient
	graphName string
	policy    retry.Policy
	logger    log.Logger
}

var _ policy.Retriever = (*Retriever)(nil)

// Option configures a Retriever.
type Option func(*Retriever)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Retriever) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

// New creates a Retriever from a connection string of the form
// falkordb://host:port/graph_name.
func New(connectionString string, opts ...Option) (*Retriever, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid connection string: missing host")
	}

	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = defaultGraphName
	}

	r := &Retriever{
		client:    redis.NewClient(&redis.Options{Addr: u.Host}),
		graphName: graphName,
		policy:    retry.DefaultPolicy(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewWithClient creates a Retriever over an existing redis client.
func NewWithClient(client redis.UniversalClient, graphName string, opts ...Option) *Retriever {
	r := &Retriever{
		client:    client,
		graphName: graphName,
		policy:    retry.DefaultPolicy(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve runs a full-text clause lookup scoped to the given policy ids.
// Passing no ids or the WildcardScope id searches every policy. Failures
// degrade to an empty result after the retry budget is spent.
func (r *Retriever) Retrieve(ctx context.Context, collectionIDs []string, query string, opts policy.RetrievalOptions) ([]policy.Chunk, error) {
	if len(collectionIDs) == 0 {
		r.logger.Warn("graphdb: retrieve called without policy ids, skipping query")
		return nil, nil
	}

	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	cypher := buildClauseQuery(query, collectionIDs, threshold, topK)

	chunks, err := retry.Do(ctx, r.policy, func(ctx context.Context) ([]policy.Chunk, error) {
		rows, err := r.query(ctx, cypher)
		if err != nil {
			return nil, err
		}
		return rowsToChunks(rows), nil
	})
	if err != nil {
		r.logger.Warn("graphdb: clause lookup failed after %d attempts, degrading to empty evidence: %v", r.policy.MaxAttempts, err)
		return nil, nil
	}
	return chunks, nil
}

// RetrieveWithContext enriches the query with free-text context before
// searching, mirroring the profile-aware diagnostics search.
func (r *Retriever) RetrieveWithContext(ctx context.Context, collectionIDs []string, query, context_ string, opts policy.RetrievalOptions) ([]policy.Chunk, error) {
	if context_ != "" {
		query = fmt.Sprintf("%s (Context: %s)", query, context_)
	}
	if len(collectionIDs) == 0 {
		collections, err := r.ListCollections(ctx, "")
		if err == nil {
			collectionIDs = policy.CollectionIDs(collections)
		}
	}
	return r.Retrieve(ctx, collectionIDs, query, opts)
}

// ListCollections returns every policy node as a collection, optionally
// filtered by name.
func (r *Retriever) ListCollections(ctx context.Context, nameFilter string) ([]policy.Collection, error) {
	cypher := "MATCH (p:Policy)"
	if nameFilter != "" {
		cypher += fmt.Sprintf(" WHERE p.policyName CONTAINS '%s'", escapeCypherString(nameFilter))
	}
	cypher += " RETURN p.policyId, p.policyName, p.insurer"

	collections, err := retry.Do(ctx, r.policy, func(ctx context.Context) ([]policy.Collection, error) {
		rows, err := r.query(ctx, cypher)
		if err != nil {
			return nil, err
		}
		return rowsToCollections(rows), nil
	})
	if err != nil {
		r.logger.Warn("graphdb: listing policies failed after %d attempts: %v", r.policy.MaxAttempts, err)
		return nil, nil
	}
	return collections, nil
}

// Close closes the underlying connection.
func (r *Retriever) Close() error {
	return r.client.Close()
}

func (r *Retriever) query(ctx context.Context, cypher string) ([][]any, error) {
	reply, err := r.client.Do(ctx, "GRAPH.QUERY", r.graphName, cypher, "--compact").Result()
	if err != nil {
		return nil, fmt.Errorf("graph query: %w", err)
	}
	return parseResultRows(reply)
}

// buildClauseQuery assembles the full-text lookup. Scope by policy ids
// unless the wildcard scope is requested.
func buildClauseQuery(query string, policyIDs []string, threshold float64, topK int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CALL db.idx.fulltext.queryNodes('%s', '%s') YIELD node, score", clauseIndex, escapeCypherString(query))
	fmt.Fprintf(&b, " WHERE score >= %g", threshold)
	b.WriteString(" MATCH (p:Policy)-[:CONTAINS_CLAUSE]->(node)")

	if !isWildcard(policyIDs) {
		quoted := make([]string, len(policyIDs))
		for i, id := range policyIDs {
			quoted[i] = "'" + escapeCypherString(id) + "'"
		}
		fmt.Fprintf(&b, " WHERE p.policyId IN [%s]", strings.Join(quoted, ", "))
	}

	b.WriteString(" RETURN node.text, p.insurer + ' - ' + p.policyName, score, node.text")
	b.WriteString(" ORDER BY score DESC")
	fmt.Fprintf(&b, " LIMIT %d", topK)
	return b.String()
}

func isWildcard(policyIDs []string) bool {
	return len(policyIDs) == 1 && policyIDs[0] == WildcardScope
}

func escapeCypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
