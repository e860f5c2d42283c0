package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/cache"
	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/fsutil"
	"github.com/ShayCichocki/crewscontrol/internal/interp"
	"github.com/ShayCichocki/crewscontrol/internal/retry"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// ResultExt is the extension of validation artifacts.
const ResultExt = ".result"

// ScoreRequest is what the scoring collaborator compares.
type ScoreRequest struct {
	Unit     string
	Metrics  []string
	Actual   string
	Expected string
}

// Scorer compares a result with its expected output. It must answer with
// a bare JSON object mapping each metric to {"res": bool, "reason": string}.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (string, error)
}

// ValidationReport is the outcome of validating one unit.
type ValidationReport struct {
	Unit string
	// Path is the .result artifact that was written.
	Path    string
	Outcome models.ValidationOutcome
	// Accepted is false when the scorer's answer was rejected and a failing
	// outcome was written in its place.
	Accepted bool
}

type validationInput struct {
	unit     string
	config   *models.UnitConfig
	spec     models.ValidationSpec
	result   string
	inputs   models.Inputs
	previous map[string]string
	retry    *retry.Controller
}

// validate scores one unit's result and writes the artifact. It returns
// nil without error when no scorer is configured.
func (o *Orchestrator) validate(ctx context.Context, in validationInput) (*ValidationReport, error) {
	if o.opts.scorer == nil {
		o.log.Warn("no scorer configured, skipping validation", "crew", in.unit)
		return nil, nil
	}

	scopes := interp.NewScopes(nil, in.inputs.Map(), in.previous)
	target, err := interp.Interpolate(in.spec.CompareTo, scopes)
	if err != nil {
		return nil, fmt.Errorf("crew %s: compare_to: %w", in.unit, err)
	}
	if target == "" {
		if target, err = interp.Interpolate(in.config.ValidateResults, scopes); err != nil {
			return nil, fmt.Errorf("crew %s: validate_results: %w", in.unit, err)
		}
	}

	expected, path, err := o.locateExpected(target, in.inputs)
	if err != nil {
		return nil, fmt.Errorf("crew %s: %w", in.unit, err)
	}

	req := ScoreRequest{Unit: in.unit, Metrics: in.spec.Metrics, Actual: in.result, Expected: expected}
	outcome, err := in.retry.Do(ctx, in.unit+" validation", func(ctx context.Context) (string, error) {
		return o.opts.scorer.Score(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{Unit: in.unit, Path: path}
	content := outcome.Text
	if outcome.Status == retry.Succeeded {
		report.Outcome, err = ParseScore(outcome.Text, in.spec.Metrics)
	} else {
		err = errors.New(outcome.Text)
	}
	if err == nil {
		report.Accepted = true
	} else {
		o.log.Warn("scorer output rejected", "crew", in.unit, "err", err)
		report.Outcome = rejectedOutcome(in.spec.Metrics, err)
		data, mErr := json.MarshalIndent(report.Outcome, "", "  ")
		if mErr != nil {
			return nil, fmt.Errorf("encode validation outcome: %w", mErr)
		}
		content = string(data)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, crewerr.Wrap(crewerr.ErrCacheIO, "create validations directory", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, crewerr.Wrap(crewerr.ErrCacheIO, "write validation result", err)
	}
	o.log.Info("validation written", "crew", in.unit, "path", path, "passed", report.Outcome.Passed())
	return report, nil
}

// locateExpected resolves the comparison target. When validations/<target>
// is an existing file inside the project, its content is the expected
// output and the artifact sits next to it. Otherwise target itself is the
// expected output and the artifact is named from the run's input values.
func (o *Orchestrator) locateExpected(target string, inputs models.Inputs) (expected, path string, err error) {
	dir := o.project.ValidationsDir()

	if target != "" {
		candidate := filepath.Join(dir, target)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			if !fsutil.IsStrictlyInside(o.project.Dir, candidate) {
				return "", "", &cache.PathTraversalError{Root: o.project.Dir, Path: target}
			}
			data, err := os.ReadFile(candidate)
			if err != nil {
				return "", "", crewerr.Wrap(crewerr.ErrCacheIO, "read expected output", err)
			}
			return string(data), candidate + ResultExt, nil
		}
	}

	name := fsutil.SanitizeFilename(strings.Join(inputs.Values(), "_")) + ResultExt
	path = filepath.Join(dir, name)
	if !fsutil.IsStrictlyInside(o.project.Dir, path) {
		return "", "", &cache.PathTraversalError{Root: o.project.Dir, Path: name}
	}
	return target, path, nil
}

// ParseScore checks scorer output. It must be a bare JSON object with an
// entry per requested metric; every failed metric needs a reason.
func ParseScore(raw string, metrics []string) (models.ValidationOutcome, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, errors.New("scorer output is not a bare JSON object")
	}

	var parsed map[string]struct {
		Res    *bool  `json:"res"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("scorer output is not valid JSON: %w", err)
	}

	outcome := make(models.ValidationOutcome, len(parsed))
	for metric, v := range parsed {
		if v.Res == nil {
			return nil, fmt.Errorf("metric %q has no res field", metric)
		}
		if !*v.Res && strings.TrimSpace(v.Reason) == "" {
			return nil, fmt.Errorf("failed metric %q has no reason", metric)
		}
		outcome[metric] = models.MetricResult{Res: *v.Res, Reason: v.Reason}
	}
	for _, m := range metrics {
		if _, ok := outcome[m]; !ok {
			return nil, fmt.Errorf("metric %q missing from scorer output", m)
		}
	}
	return outcome, nil
}

func rejectedOutcome(metrics []string, cause error) models.ValidationOutcome {
	reason := "invalid scorer output: " + cause.Error()
	if len(metrics) == 0 {
		return models.ValidationOutcome{"validation": {Res: false, Reason: reason}}
	}
	out := make(models.ValidationOutcome, len(metrics))
	for _, m := range metrics {
		out[m] = models.MetricResult{Res: false, Reason: reason}
	}
	return out
}
