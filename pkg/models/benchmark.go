package models

import "sort"

// Benchmark is the content of benchmark.yaml: a sweep of input sets run
// against one project.
type Benchmark struct {
	Executions []BenchmarkExecution `yaml:"executions"`
}

// BenchmarkExecution is one run of the sweep.
type BenchmarkExecution struct {
	UserInputs  Inputs                    `yaml:"user_inputs"`
	Validations map[string]ValidationSpec `yaml:"validations"`
}

// ValidationSpec describes how to score one unit's result.
type ValidationSpec struct {
	// CompareTo is either a file name under the project's validations
	// directory or an inline expected value. It is interpolated.
	CompareTo string `yaml:"compare_to"`
	// Metrics are the named checks the scorer must answer.
	Metrics []string `yaml:"metrics"`
}

// MetricResult is the scorer's verdict for one metric.
type MetricResult struct {
	Res    bool   `json:"res"`
	Reason string `json:"reason,omitempty"`
}

// ValidationOutcome maps metric name to verdict.
type ValidationOutcome map[string]MetricResult

// Passed reports whether every metric succeeded.
func (o ValidationOutcome) Passed() bool {
	for _, r := range o {
		if !r.Res {
			return false
		}
	}
	return true
}

// Failures returns "metric: reason" lines for failed metrics, sorted by metric.
func (o ValidationOutcome) Failures() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		r := o[name]
		if r.Res {
			continue
		}
		reason := r.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		out = append(out, name+": "+reason)
	}
	return out
}
