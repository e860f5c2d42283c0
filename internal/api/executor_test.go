package api

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/crewscontrol/internal/retry"
	"github.com/ShayCichocki/crewscontrol/internal/runner"
)

func testCrew() *runner.Crew {
	return &runner.Crew{
		Name: "research",
		Agents: []runner.Agent{
			{Name: "analyst", Role: "Senior Analyst", Goal: "Summarise acme/api", Tools: []string{ToolReadFile}},
			{Name: "writer", Role: "Technical Writer"},
		},
		Tasks: []runner.Task{
			{Name: "collect", Description: "Collect facts", ExpectedOutput: "A list"},
			{Name: "write", Description: "Write the summary", Agent: "writer"},
		},
	}
}

func TestCrewExecutor_TasksRunInOrder(t *testing.T) {
	fake := &fakeMessages{responses: []string{textResponse("fact one"), textResponse("final summary")}}
	exec := NewCrewExecutor(CrewExecutorConfig{Client: newClient(fake, "m", 0)})

	out, err := exec.Kickoff(context.Background(), testCrew())
	if err != nil {
		t.Fatalf("Kickoff failed: %v", err)
	}
	if out != "final summary" {
		t.Errorf("expected last task output, got %q", out)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fake.requests))
	}

	first, second := fake.requests[0], fake.requests[1]
	if !strings.Contains(first.System[0].Text, "Senior Analyst") {
		t.Errorf("first task should default to the first agent: %q", first.System[0].Text)
	}
	if len(first.Tools) != 1 {
		t.Errorf("first task should inherit the agent's tool, got %d", len(first.Tools))
	}
	if !strings.Contains(second.System[0].Text, "Technical Writer") {
		t.Errorf("second task should use its named agent: %q", second.System[0].Text)
	}
	if len(second.Tools) != 0 {
		t.Errorf("writer has no tools, got %d", len(second.Tools))
	}
}

func TestCrewExecutor_UnknownAgent(t *testing.T) {
	crew := testCrew()
	crew.Tasks[0].Agent = "ghost"
	exec := NewCrewExecutor(CrewExecutorConfig{Client: newClient(&fakeMessages{}, "m", 0)})

	if _, err := exec.Kickoff(context.Background(), crew); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestCrewExecutor_ToolLoop(t *testing.T) {
	root := t.TempDir()
	fake := &fakeMessages{responses: []string{
		toolUseResponse("tu1", ToolWriteFile, `{"file_path":"output/notes.md","content":"hello"}`),
		textResponse("done"),
	}}
	exec := NewCrewExecutor(CrewExecutorConfig{Client: newClient(fake, "m", 0), Tools: NewTools(root)})

	crew := &runner.Crew{
		Name:   "notes",
		Agents: []runner.Agent{{Name: "a", Role: "Writer"}},
		Tasks:  []runner.Task{{Name: "t", Description: "Write notes", Tools: []string{ToolWriteFile}}},
	}
	out, err := exec.Kickoff(context.Background(), crew)
	if err != nil {
		t.Fatalf("Kickoff failed: %v", err)
	}
	if out != "done" {
		t.Errorf("expected final text, got %q", out)
	}
	if len(fake.requests) != 2 || len(fake.requests[1].Messages) != 3 {
		t.Fatalf("expected tool result round trip, got %d requests", len(fake.requests))
	}

	data, err := os.ReadFile(filepath.Join(root, "output", "notes.md"))
	if err != nil {
		t.Fatalf("tool did not write: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestCrewExecutor_MaxIterations(t *testing.T) {
	loopForever := toolUseResponse("tu", ToolListDirectory, `{}`)
	fake := &fakeMessages{responses: []string{loopForever, loopForever, loopForever}}
	exec := NewCrewExecutor(CrewExecutorConfig{
		Client:        newClient(fake, "m", 0),
		Tools:         NewTools(t.TempDir()),
		MaxIterations: 2,
	})
	crew := &runner.Crew{
		Name:   "c",
		Agents: []runner.Agent{{Name: "a", Role: "r"}},
		Tasks:  []runner.Task{{Name: "t", Description: "d"}},
	}

	if _, err := exec.Kickoff(context.Background(), crew); err == nil {
		t.Fatal("expected max iterations error")
	}
	if len(fake.requests) != 2 {
		t.Errorf("expected 2 requests, got %d", len(fake.requests))
	}
}

func TestCrewExecutor_RateLimitSurfaces(t *testing.T) {
	fake := &fakeMessages{err: &retry.StatusError{Code: 429}}
	exec := NewCrewExecutor(CrewExecutorConfig{Client: newClient(fake, "m", 0)})

	_, err := exec.Kickoff(context.Background(), testCrew())
	if !retry.IsRateLimited(err) {
		t.Fatalf("expected rate limit to surface, got %v", err)
	}
}

func TestTaskPrompt(t *testing.T) {
	prompt := taskPrompt(runner.Task{Description: "Summarise", ExpectedOutput: "Markdown"},
		[]taskOutput{{name: "collect", output: "fact one"}})

	for _, want := range []string{"Summarise", "Markdown", "Output of task collect", "fact one"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
