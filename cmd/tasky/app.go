package main

import (
	"fmt"

	"github.com/chris/tasky/config"
	"github.com/chris/tasky/internal/agent"
	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/llm"
	"github.com/chris/tasky/internal/metrics"
	"github.com/chris/tasky/internal/ratelimit"
	"github.com/chris/tasky/internal/session"
)

// app is everything a command needs, wired from config.
type app struct {
	cfg     *config.Config
	db      *db.DB
	metrics *metrics.Metrics
	agent   *agent.Agent
}

func newApp(cfg *config.Config) (*app, error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	client, err := llm.NewClient(llm.ProviderConfig{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.APIKey(),
		AuthToken: cfg.AnthropicToken,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.LLMBaseURL,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	sessions, err := session.NewMemoryStore(cfg.SessionCapacity)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	m := metrics.New()
	invoker := llm.NewInvoker(client, ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow), llm.InvokerConfig{
		Fallbacks: llm.ParseModelList(cfg.FallbackModels),
		MaxWait:   cfg.RetryMaxWait,
	}, m)
	ag := agent.New(database, invoker, sessions, agent.Config{
		Model:            cfg.LLMModel,
		MaxContextTokens: cfg.MaxContextTokens,
	}, m)

	return &app{cfg: cfg, db: database, metrics: m, agent: ag}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
