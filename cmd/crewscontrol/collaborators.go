package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/crewscontrol/internal/api"
	"github.com/ShayCichocki/crewscontrol/internal/config"
	"github.com/ShayCichocki/crewscontrol/internal/orchestrator"
	"github.com/ShayCichocki/crewscontrol/internal/project"
	"github.com/ShayCichocki/crewscontrol/internal/state"
)

// interruptedAfter is how old a run still marked running must be before it
// is considered abandoned by a dead process.
const interruptedAfter = 24 * time.Hour

// newClient creates the API client from configuration.
func newClient(cfg *config.Config) (*api.Client, error) {
	key, source, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("using Anthropic credentials", "source", string(source), "key", config.MaskAPIKey(key))

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		MaxTokens:     cfg.Anthropic.MaxTokens,
		APIKey:        key,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// openHistory opens the run history. Failure is not fatal: runs proceed
// unrecorded.
func openHistory(ctx context.Context, cfg *config.Config) *state.DB {
	path := cfg.State.DBPath
	if path == "" {
		path = config.DefaultStatePath()
	}
	db, err := state.OpenAndMigrate(path)
	if err != nil {
		slog.Warn("run history unavailable", "path", path, "err", err)
		return nil
	}
	if n, err := db.MarkInterrupted(ctx, time.Now().Add(-interruptedAfter)); err != nil {
		slog.Warn("mark interrupted runs failed", "err", err)
	} else if n > 0 {
		slog.Info("marked interrupted runs as failed", "count", n)
	}
	return db
}

// session bundles an orchestrator with what must be closed after it.
type session struct {
	orch    *orchestrator.Orchestrator
	client  *api.Client
	history *state.DB
}

func (s *session) Close() {
	if s.history != nil {
		s.history.Close()
	}
}

func newSession(ctx context.Context, cfg *config.Config, p *project.Project) (*session, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	executor := api.NewCrewExecutor(api.CrewExecutorConfig{
		Client: client,
		Tools:  api.NewTools(p.Dir),
		Logger: slog.Default(),
	})

	s := &session{client: client, history: openHistory(ctx, cfg)}
	opts := []orchestrator.Option{
		orchestrator.WithScorer(api.NewScorer(client)),
		orchestrator.WithKnownTools(api.KnownTool),
		orchestrator.WithLogger(slog.Default()),
		orchestrator.WithBackoff(cfg.Execution.BackoffBase, cfg.Execution.BackoffUnit),
	}
	if s.history != nil {
		opts = append(opts, orchestrator.WithRecorder(s.history))
	}

	s.orch, err = orchestrator.New(orchestrator.RequiredConfig{Project: p, Executor: executor}, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) printUsage() {
	in, out, calls := s.client.Usage().Total()
	if calls > 0 {
		fmt.Printf("API calls: %d, tokens in: %d, tokens out: %d\n", calls, in, out)
	}
}
