package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/runner"
)

// CrewExecutor runs crews against the Messages API. Tasks run in
// declaration order; each task sees the outputs of the tasks before it and
// the crew's result is the output of its last task.
type CrewExecutor struct {
	client        *Client
	tools         *Tools
	maxIterations int
	log           *slog.Logger
}

// CrewExecutorConfig configures a CrewExecutor.
type CrewExecutorConfig struct {
	Client *Client
	// Tools executes tool calls. Nil answers every call with an error.
	Tools *Tools
	// MaxIterations bounds the API calls per task. Defaults to DefaultMaxIterations.
	MaxIterations int
	Logger        *slog.Logger
}

// NewCrewExecutor creates a CrewExecutor.
func NewCrewExecutor(cfg CrewExecutorConfig) *CrewExecutor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CrewExecutor{
		client:        cfg.Client,
		tools:         cfg.Tools,
		maxIterations: cfg.MaxIterations,
		log:           cfg.Logger,
	}
}

// Kickoff implements runner.Executor.
func (e *CrewExecutor) Kickoff(ctx context.Context, crew *runner.Crew) (string, error) {
	loop := &agentLoop{client: e.client, tools: e.tools, maxIterations: e.maxIterations, log: e.log}

	var done []taskOutput
	for _, task := range crew.Tasks {
		agent := e.agentFor(crew, task)
		if agent == nil {
			return "", crewerr.New(crewerr.ErrConfiguration,
				fmt.Sprintf("crew %q task %q: no agent available", crew.Name, task.Name))
		}

		tools := task.Tools
		if len(tools) == 0 {
			tools = agent.Tools
		}

		e.log.Debug("running task", "crew", crew.Name, "task", task.Name, "agent", agent.Name)
		res, err := loop.run(ctx, systemPrompt(agent), taskPrompt(task, done), ToolDefinitions(tools))
		if err != nil {
			return "", fmt.Errorf("task %s: %w", task.Name, err)
		}
		e.log.Debug("task finished", "crew", crew.Name, "task", task.Name,
			"iterations", res.Iterations, "tool_calls", res.ToolCalls)
		done = append(done, taskOutput{name: task.Name, output: res.Output})
	}

	if len(done) == 0 {
		return "", nil
	}
	return done[len(done)-1].output, nil
}

// agentFor returns the task's agent, or the crew's first agent when the
// task names none.
func (e *CrewExecutor) agentFor(crew *runner.Crew, task runner.Task) *runner.Agent {
	if task.Agent != "" {
		return crew.Agent(task.Agent)
	}
	if len(crew.Agents) == 0 {
		return nil
	}
	return &crew.Agents[0]
}

type taskOutput struct {
	name   string
	output string
}

func systemPrompt(agent *runner.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", agent.Role)
	if agent.Goal != "" {
		fmt.Fprintf(&b, "Your personal goal is: %s\n", agent.Goal)
	}
	if agent.Backstory != "" {
		fmt.Fprintf(&b, "\n%s\n", agent.Backstory)
	}
	return b.String()
}

func taskPrompt(task runner.Task, previous []taskOutput) string {
	var b strings.Builder
	b.WriteString("Current Task: ")
	b.WriteString(task.Description)
	b.WriteString("\n")

	if task.ExpectedOutput != "" {
		b.WriteString("\nThis is the expected criteria for your final answer: ")
		b.WriteString(task.ExpectedOutput)
		b.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.\n")
	}

	if len(previous) > 0 {
		b.WriteString("\nThis is the context you're working with:\n")
		for _, p := range previous {
			fmt.Fprintf(&b, "\n## Output of task %s\n%s\n", p.name, p.output)
		}
	}
	return b.String()
}
