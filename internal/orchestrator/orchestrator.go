// Package orchestrator drives a run of a crew project: it schedules units in
// dependency order, threads results from unit to unit, and scores results
// through the validation pipeline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/crewscontrol/internal/cache"
	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/graph"
	"github.com/ShayCichocki/crewscontrol/internal/project"
	"github.com/ShayCichocki/crewscontrol/internal/retry"
	"github.com/ShayCichocki/crewscontrol/internal/runner"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// RunConfig holds the per-run toggles. They are passed explicitly so every
// run, and every test, can vary them independently.
type RunConfig struct {
	// IgnoreCache forces every unit to execute even when its output exists.
	IgnoreCache bool
	// ExitOnError terminates the run on the first remote failure.
	ExitOnError bool
}

// Recorder receives run history. Recorder errors are logged, never fatal.
type Recorder interface {
	RunStarted(ctx context.Context, run *models.RunRecord) error
	UnitFinished(ctx context.Context, unit *models.UnitRecord) error
	RunFinished(ctx context.Context, runID string, status models.RunStatus, errMsg string) error
}

// RunSummary is the outcome of one Execute call.
type RunSummary struct {
	RunID       string
	Order       []string
	Results     []*runner.Result
	Validations []*ValidationReport
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Result returns the named unit's result, or nil.
func (s *RunSummary) Result(unit string) *runner.Result {
	for _, r := range s.Results {
		if r.Unit == unit {
			return r
		}
	}
	return nil
}

// Orchestrator runs the crews of one project.
type Orchestrator struct {
	project  *project.Project
	executor runner.Executor
	opts     orchestratorOptions
	log      *slog.Logger
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Project == nil {
		return nil, errors.New("project is required")
	}
	if req.Executor == nil {
		return nil, errors.New("executor is required")
	}

	o := orchestratorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.contexts == nil {
		o.contexts = req.Project.ContextReader()
	}

	return &Orchestrator{
		project:  req.Project,
		executor: req.Executor,
		opts:     o,
		log:      o.logger.With("project", req.Project.Name),
	}, nil
}

// Execute runs every unit of cfg in dependency order. validations maps unit
// name to the validation to apply once that unit completes; it may be nil.
//
// Graph, path-safety and configuration errors abort the run before or as
// soon as they are found. Remote failures become the unit's result unless
// rc.ExitOnError is set.
func (o *Orchestrator) Execute(ctx context.Context, cfg *models.ExecutionConfig, inputs models.Inputs, validations map[string]models.ValidationSpec, rc RunConfig) (*RunSummary, error) {
	summary := &RunSummary{RunID: uuid.New().String(), StartedAt: time.Now()}
	log := o.log.With("run", summary.RunID)

	g := graph.New()
	g.SetDebugLog(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	})
	if err := g.Load(cfg); err != nil {
		return summary, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return summary, err
	}
	for _, name := range order {
		if cfg.Unit(name) == nil {
			return summary, crewerr.New(crewerr.ErrConfiguration,
				fmt.Sprintf("crew %q is listed as a dependency but not declared", name))
		}
	}
	for name := range validations {
		if cfg.Unit(name) == nil {
			return summary, crewerr.New(crewerr.ErrConfiguration,
				fmt.Sprintf("validation references undeclared crew %q", name))
		}
	}
	summary.Order = order
	log.Info("starting execution", "order", order)

	controller := retry.New(retry.Config{
		Base:        o.opts.backoffBase,
		Unit:        o.opts.backoffUnit,
		ExitOnError: rc.ExitOnError,
		Sleep:       o.opts.sleep,
		Logger:      log,
	})
	run := runner.New(runner.Config{
		Project:  o.project.Name,
		Executor: o.executor,
		Contexts: o.opts.contexts,
		Cache: cache.New(o.project.OutputDir(), cache.Options{
			IgnoreCache: rc.IgnoreCache,
			Export:      cfg.Settings.OutputResults,
			Logger:      log,
		}),
		Retry:     controller,
		KnownTool: o.opts.knownTool,
		Logger:    log,
	})

	userInputs := inputs.Map()
	o.recordStart(ctx, &models.RunRecord{
		ID:          summary.RunID,
		Project:     o.project.Name,
		Inputs:      userInputs,
		Order:       order,
		IgnoreCache: rc.IgnoreCache,
		ExitOnError: rc.ExitOnError,
		Status:      models.RunRunning,
		StartedAt:   summary.StartedAt,
	})

	previous := make(map[string]string, len(order))
	for _, name := range order {
		unit := cfg.Unit(name)
		started := time.Now()
		log.Info("running crew", "crew", name)

		res, err := run.Run(ctx, name, unit, userInputs, previous)
		if res != nil {
			summary.Results = append(summary.Results, res)
		}
		if err != nil {
			return o.finish(ctx, summary, err)
		}
		previous[name] = res.Text

		record := &models.UnitRecord{
			RunID:      summary.RunID,
			Unit:       name,
			Status:     res.Status.String(),
			CacheHit:   res.CacheHit,
			Stored:     res.Stored,
			Attempts:   res.Attempts,
			OutputPath: res.OutputPath,
		}

		if spec, ok := validations[name]; ok {
			report, err := o.validate(ctx, validationInput{
				unit:     name,
				config:   unit,
				spec:     spec,
				result:   res.Text,
				inputs:   inputs,
				previous: previous,
				retry:    controller,
			})
			if err != nil {
				return o.finish(ctx, summary, err)
			}
			if report != nil {
				summary.Validations = append(summary.Validations, report)
				passed := report.Outcome.Passed()
				record.ValidationPath = report.Path
				record.Passed = &passed
			}
		}

		record.Duration = time.Since(started)
		record.FinishedAt = time.Now()
		if o.opts.recorder != nil {
			if err := o.opts.recorder.UnitFinished(ctx, record); err != nil {
				log.Warn("record unit failed", "crew", name, "err", err)
			}
		}
	}

	return o.finish(ctx, summary, nil)
}

// Benchmark runs each execution of bench in turn, validating its inputs
// against the declarations of cfg first. It stops at the first error;
// artifacts already written by earlier executions are kept.
func (o *Orchestrator) Benchmark(ctx context.Context, cfg *models.ExecutionConfig, bench *models.Benchmark, rc RunConfig) ([]*RunSummary, error) {
	var summaries []*RunSummary
	for i, exec := range bench.Executions {
		inputs, err := project.ValidateInputs(cfg.UserInputs, exec.UserInputs)
		if err != nil {
			return summaries, fmt.Errorf("benchmark execution %d: %w", i+1, err)
		}
		o.log.Info("running benchmark execution", "index", i+1, "total", len(bench.Executions), "inputs", inputs.Map())

		summary, err := o.Execute(ctx, cfg, inputs, exec.Validations, rc)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, fmt.Errorf("benchmark execution %d: %w", i+1, err)
		}
	}
	return summaries, nil
}

func (o *Orchestrator) recordStart(ctx context.Context, run *models.RunRecord) {
	if o.opts.recorder == nil {
		return
	}
	if err := o.opts.recorder.RunStarted(ctx, run); err != nil {
		o.log.Warn("record run start failed", "run", run.ID, "err", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, summary *RunSummary, runErr error) (*RunSummary, error) {
	summary.FinishedAt = time.Now()
	status, msg := models.RunSucceeded, ""
	if runErr != nil {
		status, msg = models.RunFailed, runErr.Error()
		o.log.Error("run failed", "run", summary.RunID, "err", runErr)
	} else {
		o.log.Info("run finished", "run", summary.RunID, "duration", summary.FinishedAt.Sub(summary.StartedAt))
	}
	if o.opts.recorder != nil {
		// The run context may already be cancelled; history is still written.
		if err := o.opts.recorder.RunFinished(context.WithoutCancel(ctx), summary.RunID, status, msg); err != nil {
			o.log.Warn("record run finish failed", "run", summary.RunID, "err", err)
		}
	}
	return summary, runErr
}
