// Package server exposes the advisor over HTTP. The JSON shapes follow the
// browser client this service was built for: update_requirements drives the
// dialogue, generate_recommendation produces the final answer, search
// queries the policy index directly.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/insurlab/advisor/advisor"
	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/recommend"
)

// Server wires the advisor service into a gin router.
type Server struct {
	service   *advisor.Service
	logger    log.Logger
	sanitizer *bluemonday.Policy
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a Server around the given service.
func New(service *advisor.Service, opts ...Option) *Server {
	s := &Server{
		service:   service,
		logger:    log.Default(),
		sanitizer: bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.POST("/sessions", s.handleNewSession)
	r.POST("/update_requirements", s.handleUpdateRequirements)
	r.POST("/generate_recommendation", s.handleGenerateRecommendation)
	r.POST("/search", s.handleSearch)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleNewSession(c *gin.Context) {
	result, err := s.service.NewSession(c.Request.Context())
	if err != nil {
		s.logger.Error("new session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateRequirementsRequest struct {
	ThreadID string `json:"thread_id"`
	Input    string `json:"input"`
}

func (s *Server) handleUpdateRequirements(c *gin.Context) {
	var req updateRequirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	// A missing thread starts a fresh session, so the browser client can
	// begin the dialogue with its first answer.
	if req.ThreadID == "" {
		start, err := s.service.NewSession(ctx)
		if err != nil {
			s.logger.Error("implicit session start failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
			return
		}
		req.ThreadID = start.ThreadID
	}

	result, err := s.service.SubmitAnswer(ctx, req.ThreadID, req.Input)
	switch {
	case errors.Is(err, advisor.ErrInputRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No input provided"})
		return
	case errors.Is(err, advisor.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	case err != nil:
		s.logger.Error("update requirements failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread_id":               result.ThreadID,
		"updated_info":            result.Answers,
		"all_detected_categories": result.Satisfied,
		"next_question":           nextQuestionMessage(result),
		"profile":                 result.Profile,
		"missing_categories":      result.Missing,
		"completed":               result.Completed,
	})
}

// nextQuestionMessage substitutes the completion notice once the dialogue
// has everything it needs.
func nextQuestionMessage(result *advisor.TurnResult) string {
	if result.Completed {
		return "Great! You've provided all the necessary information. You can now generate a recommendation."
	}
	return result.NextQuestion
}

type generateRecommendationRequest struct {
	ThreadID    string   `json:"thread_id"`
	CompanyInfo []string `json:"company_info"`
}

func (s *Server) handleGenerateRecommendation(c *gin.Context) {
	var req generateRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	var rec recommend.Recommendation
	var err error
	if len(req.CompanyInfo) > 0 {
		rec, err = s.service.RecommendFromAnswers(ctx, req.CompanyInfo)
	} else {
		rec, err = s.service.RequestRecommendation(ctx, req.ThreadID)
	}

	switch {
	case errors.Is(err, advisor.ErrInputRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No company information provided."})
		return
	case errors.Is(err, advisor.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	case err != nil:
		s.logger.Error("generate recommendation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendation":      rec.Text,
		"recommendation_html": s.renderMarkdown(rec.Text),
		"company_profile":     rec.Profile,
		"chunk_count":         rec.EvidenceCount,
	})
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	chunks, err := s.service.Search(c.Request.Context(), req.Query)
	if errors.Is(err, advisor.ErrInputRequired) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
		return
	}
	if err != nil {
		s.logger.Error("search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if chunks == nil {
		chunks = []policy.Chunk{}
	}
	c.JSON(http.StatusOK, gin.H{"results": chunks})
}

// renderMarkdown converts recommendation text to sanitized HTML for the
// browser client.
func (s *Server) renderMarkdown(text string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	rendered := markdown.ToHTML([]byte(text), p, renderer)
	return s.sanitizer.Sanitize(string(rendered))
}
