// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/ragflow"
)

// Retrieval backend kinds.
const (
	BackendRAGFlow = "ragflow"
	BackendGraph   = "graphdb"
)

// LLM provider kinds.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Settings holds everything the binaries need to wire the service.
type Settings struct {
	// RAGFlow configuration.
	RAGFlowAPIURL string
	RAGFlowAPIKey string

	// Graph retrieval configuration, used when Backend is "graphdb".
	Backend  string
	GraphURL string

	// LLM configuration.
	LLMProvider string
	LLMModel    string
	LLMAPIBase  string
	LLMAPIKey   string

	// Dialogue tuning.
	EvidenceThreshold int

	// Session persistence. Kind is one of memory, sqlite, postgres,
	// redis; DSN is backend-specific.
	SessionStore string
	SessionDSN   string

	// HTTP server.
	AppHost string
	AppPort int
}

// Load reads settings from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Settings {
	_ = godotenv.Load()

	return Settings{
		RAGFlowAPIURL:     envString("RAGFLOW_API_URL", "http://localhost:9380"),
		RAGFlowAPIKey:     envString("RAGFLOW_API_KEY", ""),
		Backend:           envString("ADVISOR_BACKEND", BackendRAGFlow),
		GraphURL:          envString("ADVISOR_GRAPH_URL", "falkordb://localhost:6379/policies"),
		LLMProvider:       envString("LLM_PROVIDER", ProviderOllama),
		LLMModel:          envString("LLM_MODEL", "deepseek-r1:latest"),
		LLMAPIBase:        envString("LLM_API_BASE", "http://localhost:11434"),
		LLMAPIKey:         envString("LLM_API_KEY", ""),
		EvidenceThreshold: envInt("ADVISOR_EVIDENCE_THRESHOLD", dialogue.DefaultEvidenceThreshold),
		SessionStore:      envString("ADVISOR_SESSION_STORE", "memory"),
		SessionDSN:        envString("ADVISOR_SESSION_DSN", ""),
		AppHost:           envString("APP_HOST", "0.0.0.0"),
		AppPort:           envInt("APP_PORT", 5000),
	}
}

// Addr returns the host:port to listen on.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.AppHost, s.AppPort)
}

// Diagnose probes the configured RAGFlow endpoint and logs the outcome.
// Startup never fails on an unreachable backend; retrieval degrades at
// runtime instead.
func (s Settings) Diagnose(ctx context.Context, logger log.Logger) {
	logger.Info("RAGFlow API URL: %s", s.RAGFlowAPIURL)
	logger.Info("LLM: %s via %s (%s)", s.LLMModel, s.LLMProvider, s.LLMAPIBase)
	logger.Info("retrieval backend: %s", s.Backend)

	if s.Backend != BackendRAGFlow {
		return
	}

	client := ragflow.New(
		ragflow.WithAPIKey(s.RAGFlowAPIKey),
		ragflow.WithBaseURL(s.RAGFlowAPIURL),
		ragflow.WithLogger(logger),
	)
	count, err := client.Check(ctx)
	if err != nil {
		logger.Warn("could not connect to RAGFlow at %s: %v", s.RAGFlowAPIURL, err)
		logger.Warn("the service will start, but retrieval features may not work")
		return
	}
	logger.Info("connected to RAGFlow successfully, found %d datasets", count)
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
