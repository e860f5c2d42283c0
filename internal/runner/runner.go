// Package runner executes one crew: it validates the crew's declaration,
// loads its context, consults the result cache, and invokes the execution
// collaborator under the retry policy.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ShayCichocki/crewscontrol/internal/cache"
	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/interp"
	"github.com/ShayCichocki/crewscontrol/internal/retry"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// Agent is a fully interpolated agent declaration.
type Agent struct {
	Name      string
	Role      string
	Goal      string
	Backstory string
	Tools     []string
}

// Task is a fully interpolated task declaration.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Tools          []string
	Agent          string
}

// Crew is what the execution collaborator receives for one unit.
type Crew struct {
	Name   string
	Agents []Agent
	Tasks  []Task
}

// Agent returns the named agent, or nil.
func (c *Crew) Agent(name string) *Agent {
	for i := range c.Agents {
		if c.Agents[i].Name == name {
			return &c.Agents[i]
		}
	}
	return nil
}

// Executor runs a crew and returns its single result string. Errors that
// carry a 429 status (see retry.StatusCoder) are retried.
type Executor interface {
	Kickoff(ctx context.Context, crew *Crew) (string, error)
}

// ContextSource reads a context file of a project.
type ContextSource interface {
	Read(project, name string) (string, error)
}

// NoAgentFoundError is returned for a unit that declares no agents.
type NoAgentFoundError struct {
	Unit string
}

func (e *NoAgentFoundError) Error() string {
	return fmt.Sprintf("crew %q must have at least one agent", e.Unit)
}

func (e *NoAgentFoundError) Unwrap() error { return crewerr.ErrConfiguration }

// NoTaskFoundError is returned for a unit that declares no tasks.
type NoTaskFoundError struct {
	Unit string
}

func (e *NoTaskFoundError) Error() string {
	return fmt.Sprintf("crew %q must have at least one task", e.Unit)
}

func (e *NoTaskFoundError) Unwrap() error { return crewerr.ErrConfiguration }

// Config holds the collaborators of a Runner.
type Config struct {
	// Project identifies the project for context reads.
	Project string
	// Executor runs crews. Required.
	Executor Executor
	// Contexts reads context files. Required when a unit declares context.
	Contexts ContextSource
	// Cache is the project's result cache. Required.
	Cache *cache.Cache
	// Retry wraps executor calls. Defaults to retry.New(retry.Config{}).
	Retry *retry.Controller
	// KnownTool reports whether a tool name can be provided to agents.
	// Nil accepts every name.
	KnownTool func(name string) bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner executes units of one project.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Retry == nil {
		cfg.Retry = retry.New(retry.Config{Logger: cfg.Logger})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, log: logger}
}

// Result is the outcome of running one unit.
type Result struct {
	Unit string
	// Text is the crew's output, or the failure message when Status is not
	// retry.Succeeded.
	Text     string
	Status   retry.Status
	Attempts int
	// CacheHit is set when Text came from a previous run's output file.
	CacheHit bool
	// OutputPath is the unit's cache file, empty when it has none.
	OutputPath string
	// Stored is set when Text was written to OutputPath.
	Stored bool
}

// Run executes one unit. userInputs are the run's external inputs and
// previous holds the results of units that already ran.
//
// Structural problems (missing agents or tasks, scope conflicts, unknown
// agents or tools, missing context) are returned as errors before anything
// is interpolated. Remote failures are reported through Result unless the
// retry controller aborts the run.
func (r *Runner) Run(ctx context.Context, name string, unit *models.UnitConfig, userInputs, previous map[string]string) (*Result, error) {
	if unit == nil {
		return nil, crewerr.New(crewerr.ErrConfiguration, fmt.Sprintf("crew %q is not declared", name))
	}
	if err := r.validate(name, unit, userInputs, previous); err != nil {
		return nil, err
	}

	contexts, err := r.loadContext(name, unit, userInputs, previous)
	if err != nil {
		return nil, err
	}
	scopes := interp.NewScopes(contexts, userInputs, previous)

	path, err := r.cfg.Cache.ResolveOutputPath(unit.OutputNamingTemplate, scopes)
	if err != nil {
		return nil, fmt.Errorf("crew %s: %w", name, err)
	}

	cached, ok, err := r.cfg.Cache.Get(path)
	if err != nil {
		return nil, fmt.Errorf("crew %s: %w", name, err)
	}
	if ok {
		r.log.Info("using cached result", "crew", name, "path", path)
		return &Result{Unit: name, Text: cached, Status: retry.Succeeded, CacheHit: true, OutputPath: path}, nil
	}

	crew, err := buildCrew(name, unit, scopes)
	if err != nil {
		return nil, err
	}

	r.log.Info("running crew", "crew", name, "agents", len(crew.Agents), "tasks", len(crew.Tasks))
	outcome, err := r.cfg.Retry.Do(ctx, name, func(ctx context.Context) (string, error) {
		return r.cfg.Executor.Kickoff(ctx, crew)
	})
	res := &Result{
		Unit:       name,
		Text:       outcome.Text,
		Status:     outcome.Status,
		Attempts:   outcome.Attempts,
		OutputPath: path,
	}
	if err != nil {
		return res, err
	}

	if outcome.Status == retry.Succeeded {
		stored, err := r.cfg.Cache.Store(path, outcome.Text)
		if err != nil {
			return res, fmt.Errorf("crew %s: %w", name, err)
		}
		res.Stored = stored
	}
	return res, nil
}

// validate checks the declaration itself. The scope check uses the declared
// context keys so it runs before any context file is read.
func (r *Runner) validate(name string, unit *models.UnitConfig, userInputs, previous map[string]string) error {
	if unit.Agents.Len() == 0 {
		return &NoAgentFoundError{Unit: name}
	}
	if unit.Tasks.Len() == 0 {
		return &NoTaskFoundError{Unit: name}
	}

	declared := make(map[string]string, unit.Context.Len())
	for _, key := range unit.Context.Keys() {
		declared[key] = ""
	}
	if err := interp.CheckConflicts(interp.NewScopes(declared, userInputs, previous)); err != nil {
		return fmt.Errorf("crew %s: %w", name, err)
	}

	for _, taskName := range unit.Tasks.Keys() {
		task, _ := unit.Tasks.Get(taskName)
		// An empty agent means the crew's first agent.
		if task.Agent != "" && !unit.Agents.Has(task.Agent) {
			return crewerr.New(crewerr.ErrConfiguration,
				fmt.Sprintf("crew %s: task %q references unknown agent %q", name, taskName, task.Agent))
		}
		if err := r.checkTools(name, task.Tools); err != nil {
			return err
		}
	}
	for _, agent := range unit.Agents.Values() {
		if err := r.checkTools(name, agent.Tools); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) checkTools(unit string, tools []string) error {
	if r.cfg.KnownTool == nil {
		return nil
	}
	for _, tool := range tools {
		if !r.cfg.KnownTool(tool) {
			return crewerr.New(crewerr.ErrConfiguration, fmt.Sprintf("crew %s: unknown tool %q", unit, tool))
		}
	}
	return nil
}

// loadContext reads every declared context file. File references are
// interpolated against the user inputs and previous results only.
func (r *Runner) loadContext(name string, unit *models.UnitConfig, userInputs, previous map[string]string) (map[string]string, error) {
	if unit.Context.Len() == 0 {
		return nil, nil
	}
	if r.cfg.Contexts == nil {
		return nil, crewerr.New(crewerr.ErrConfiguration, fmt.Sprintf("crew %s: no context source configured", name))
	}

	refScopes := interp.NewScopes(nil, userInputs, previous)
	out := make(map[string]string, unit.Context.Len())
	for _, key := range unit.Context.Keys() {
		ref, _ := unit.Context.Get(key)
		file, err := interp.Interpolate(ref, refScopes)
		if err != nil {
			return nil, fmt.Errorf("crew %s: context %s: %w", name, key, err)
		}
		content, err := r.cfg.Contexts.Read(r.cfg.Project, file)
		if err != nil {
			if crewerr.Kind(err) == nil {
				err = crewerr.Wrap(crewerr.ErrConfiguration, fmt.Sprintf("context %s", key), err)
			}
			return nil, fmt.Errorf("crew %s: %w", name, err)
		}
		r.log.Debug("context loaded", "crew", name, "key", key, "file", file)
		out[key] = content
	}
	return out, nil
}

// buildCrew interpolates every agent and task field.
func buildCrew(name string, unit *models.UnitConfig, scopes interp.Scopes) (*Crew, error) {
	crew := &Crew{Name: name}

	for _, agentName := range unit.Agents.Keys() {
		cfg, _ := unit.Agents.Get(agentName)
		agent := Agent{Name: agentName, Tools: cfg.Tools}
		for _, f := range []struct {
			dst  *string
			tmpl string
		}{{&agent.Role, cfg.Role}, {&agent.Goal, cfg.Goal}, {&agent.Backstory, cfg.Backstory}} {
			v, err := interp.Interpolate(f.tmpl, scopes)
			if err != nil {
				return nil, fmt.Errorf("crew %s: agent %s: %w", name, agentName, err)
			}
			*f.dst = v
		}
		crew.Agents = append(crew.Agents, agent)
	}

	for _, taskName := range unit.Tasks.Keys() {
		cfg, _ := unit.Tasks.Get(taskName)
		task := Task{Name: taskName, Tools: cfg.Tools, Agent: cfg.Agent}
		var err error
		if task.Description, err = interp.Interpolate(cfg.Description, scopes); err != nil {
			return nil, fmt.Errorf("crew %s: task %s: %w", name, taskName, err)
		}
		if task.ExpectedOutput, err = interp.Interpolate(cfg.ExpectedOutput, scopes); err != nil {
			return nil, fmt.Errorf("crew %s: task %s: %w", name, taskName, err)
		}
		crew.Tasks = append(crew.Tasks, task)
	}
	return crew, nil
}
