// Package bootstrap assembles a running advisor service from settings. Both
// binaries share this wiring.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/insurlab/advisor/advisor"
	"github.com/insurlab/advisor/config"
	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/graphdb"
	"github.com/insurlab/advisor/llm"
	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/profile"
	"github.com/insurlab/advisor/ragflow"
	"github.com/insurlab/advisor/recommend"
	"github.com/insurlab/advisor/session"
	"github.com/insurlab/advisor/session/memory"
	"github.com/insurlab/advisor/session/postgres"
	sessionredis "github.com/insurlab/advisor/session/redis"
	"github.com/insurlab/advisor/session/sqlite"
)

// App bundles the wired service with its cleanup hook.
type App struct {
	Service    *advisor.Service
	Machine    *dialogue.Machine
	Pipeline   *recommend.Pipeline
	Retriever  policy.Retriever
	closeHooks []func() error
	logger     log.Logger
}

// Close releases backend connections.
func (a *App) Close() {
	for _, hook := range a.closeHooks {
		if err := hook(); err != nil {
			a.logger.Warn("cleanup: %v", err)
		}
	}
}

// Build wires retriever, generator, dialogue machine, pipeline and session
// store per the settings.
func Build(ctx context.Context, settings config.Settings, logger log.Logger) (*App, error) {
	app := &App{logger: logger}

	retriever, err := buildRetriever(settings, logger, app)
	if err != nil {
		return nil, err
	}
	app.Retriever = retriever

	generator, err := buildGenerator(settings)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, settings, app)
	if err != nil {
		return nil, err
	}

	synth := profile.NewSynthesizer(generator)
	app.Machine = dialogue.NewMachine(generator,
		dialogue.WithLogger(logger),
		dialogue.WithEvidenceCheck(synth, retriever, settings.EvidenceThreshold),
	)
	app.Pipeline = recommend.NewPipeline(synth, retriever, generator, recommend.WithLogger(logger))
	app.Service = advisor.NewService(app.Machine, app.Pipeline, retriever,
		advisor.WithStore(store),
		advisor.WithSynthesizer(synth),
		advisor.WithLogger(logger),
	)
	return app, nil
}

func buildRetriever(settings config.Settings, logger log.Logger, app *App) (policy.Retriever, error) {
	switch settings.Backend {
	case config.BackendGraph:
		retriever, err := graphdb.New(settings.GraphURL, graphdb.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("graph retriever: %w", err)
		}
		app.closeHooks = append(app.closeHooks, retriever.Close)
		return retriever, nil
	case config.BackendRAGFlow, "":
		return ragflow.New(
			ragflow.WithAPIKey(settings.RAGFlowAPIKey),
			ragflow.WithBaseURL(settings.RAGFlowAPIURL),
			ragflow.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q", settings.Backend)
	}
}

func buildGenerator(settings config.Settings) (llm.Generator, error) {
	switch settings.LLMProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIGenerator(settings.LLMAPIKey, settings.LLMAPIBase, settings.LLMModel), nil
	case config.ProviderOllama, "":
		model, err := ollama.New(
			ollama.WithModel(settings.LLMModel),
			ollama.WithServerURL(settings.LLMAPIBase),
		)
		if err != nil {
			return nil, fmt.Errorf("ollama model: %w", err)
		}
		return llm.NewLangChainGenerator(model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", settings.LLMProvider)
	}
}

func buildStore(ctx context.Context, settings config.Settings, app *App) (session.Store, error) {
	switch settings.SessionStore {
	case "memory", "":
		return memory.New(), nil
	case "sqlite":
		path := settings.SessionDSN
		if path == "" {
			path = "advisor.db"
		}
		store, err := sqlite.New(sqlite.Options{Path: path})
		if err != nil {
			return nil, fmt.Errorf("sqlite session store: %w", err)
		}
		app.closeHooks = append(app.closeHooks, store.Close)
		return store, nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Options{ConnString: settings.SessionDSN})
		if err != nil {
			return nil, fmt.Errorf("postgres session store: %w", err)
		}
		if err := store.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres session schema: %w", err)
		}
		app.closeHooks = append(app.closeHooks, func() error { store.Close(); return nil })
		return store, nil
	case "redis":
		addr := settings.SessionDSN
		if addr == "" {
			addr = "localhost:6379"
		}
		store := sessionredis.New(sessionredis.Options{Addr: addr})
		app.closeHooks = append(app.closeHooks, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", settings.SessionStore)
	}
}
