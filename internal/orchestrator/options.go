package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/ShayCichocki/crewscontrol/internal/project"
	"github.com/ShayCichocki/crewscontrol/internal/runner"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Project is the project whose crews are run.
	Project *project.Project
	// Executor runs crews.
	Executor runner.Executor
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	scorer      Scorer
	contexts    runner.ContextSource
	recorder    Recorder
	knownTool   func(string) bool
	logger      *slog.Logger
	backoffBase float64
	backoffUnit time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// WithScorer sets the scoring collaborator used by the validation pipeline.
// Without one, validations are skipped with a warning.
func WithScorer(s Scorer) Option {
	return func(o *orchestratorOptions) { o.scorer = s }
}

// WithContextSource overrides where context files are read from.
// The default reads the project's context directory.
func WithContextSource(c runner.ContextSource) Option {
	return func(o *orchestratorOptions) { o.contexts = c }
}

// WithRecorder sets the run history recorder.
func WithRecorder(r Recorder) Option {
	return func(o *orchestratorOptions) { o.recorder = r }
}

// WithKnownTools restricts agent and task tools to names accepted by fn.
func WithKnownTools(fn func(name string) bool) Option {
	return func(o *orchestratorOptions) { o.knownTool = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithBackoff sets the rate-limit backoff base and unit.
func WithBackoff(base float64, unit time.Duration) Option {
	return func(o *orchestratorOptions) {
		o.backoffBase = base
		o.backoffUnit = unit
	}
}

// WithSleep replaces the backoff sleep. Used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *orchestratorOptions) { o.sleep = fn }
}
