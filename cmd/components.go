package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/audit"
	"github.com/hkanersen/autopub-cli/internal/browser"
	"github.com/hkanersen/autopub-cli/internal/config"
	"github.com/hkanersen/autopub-cli/internal/events"
	"github.com/hkanersen/autopub-cli/internal/llmclient"
	"github.com/hkanersen/autopub-cli/internal/orchestrator"
	"github.com/hkanersen/autopub-cli/internal/planner"
	"github.com/hkanersen/autopub-cli/internal/scheduler"
	"github.com/hkanersen/autopub-cli/internal/store"
)

// components is the composition root for a pipeline run.
type components struct {
	logger    *zap.Logger
	Planner   *planner.Planner
	Browser   *browser.Manager
	Bus       *events.Bus
	Scheduler scheduler.Scheduler

	pgPool *pgxpool.Pool
}

// newPlanner builds the goal planner, degrading to fallback-only planning
// when no model client can be constructed (e.g. missing API key).
func newPlanner(cfg *config.Config, logger *zap.Logger) *planner.Planner {
	llm, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		logger.Warn("Model client unavailable, plans will use local heuristics", zap.Error(err))
		llm = unavailableLLM{err: err}
	}
	return planner.New(cfg.Planner, llm, logger)
}

// unavailableLLM fails every generation call, which routes the planner onto
// its fallback path.
type unavailableLLM struct{ err error }

func (u unavailableLLM) GenerateResponse(context.Context, schemas.GenerationRequest) (string, error) {
	return "", fmt.Errorf("model client unavailable: %w", u.err)
}

// initializeComponents wires the full execution pipeline: browser, stores,
// audit trail, event bus and scheduler.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{logger: logger}
	c.Planner = newPlanner(cfg, logger)

	var (
		auditStore    schemas.AuditStore
		resourceStore schemas.ResourceStateStore
	)
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		c.pgPool = pool
		pgStore, err := store.New(ctx, pool, logger)
		if err != nil {
			c.Shutdown(ctx)
			return nil, err
		}
		auditStore, resourceStore = pgStore, pgStore
	default:
		mem := store.NewMemory()
		auditStore, resourceStore = mem, mem
	}

	var orch schemas.Orchestrator
	if cfg.Planner.DemoMode {
		// Demo runs never touch a browser: planning happens as usual, but
		// every action resolves as a synthetic success.
		orch = orchestrator.NewDemo(c.Planner, logger)
	} else {
		manager, err := browser.NewManager(ctx, cfg.Browser, logger)
		if err != nil {
			c.Shutdown(ctx)
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		c.Browser = manager
		orch = orchestrator.New(c.Planner, manager, logger)
	}

	c.Bus = events.NewBus(logger, cfg.Events.BufferSize)
	c.Scheduler = scheduler.New(cfg.Scheduler, scheduler.Deps{
		Orchestrator: orch,
		Audit:        audit.New(auditStore, logger),
		Resources:    resourceStore,
		Events:       c.Bus,
		Logger:       logger,
	}, logger)

	return c, nil
}

// Shutdown releases everything in reverse dependency order.
func (c *components) Shutdown(ctx context.Context) {
	if c.Scheduler != nil {
		if err := c.Scheduler.Shutdown(ctx); err != nil {
			c.logger.Warn("Scheduler shutdown incomplete", zap.Error(err))
		}
	}
	if c.Bus != nil {
		c.Bus.Shutdown()
	}
	if c.Browser != nil {
		if err := c.Browser.Shutdown(ctx); err != nil {
			c.logger.Warn("Browser shutdown incomplete", zap.Error(err))
		}
	}
	if c.pgPool != nil {
		c.pgPool.Close()
	}
}
