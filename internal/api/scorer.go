package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/orchestrator"
)

const scorerSystemPrompt = `You are a Software QA Engineer who is responsible for validating the results of the crew.
Your goal is to validate the results of the crew.`

// Scorer compares crew results with expected outputs using the model.
type Scorer struct {
	client *Client
}

// NewScorer creates a Scorer.
func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

// Score implements orchestrator.Scorer. The answer is returned untouched;
// checking its shape is the caller's job.
func (s *Scorer) Score(ctx context.Context, req orchestrator.ScoreRequest) (string, error) {
	loop := &agentLoop{client: s.client, maxIterations: 1, log: slog.Default()}
	res, err := loop.run(ctx, scorerSystemPrompt, scorePrompt(req), nil)
	if err != nil {
		return "", fmt.Errorf("score %s: %w", req.Unit, err)
	}
	return res.Output, nil
}

func scorePrompt(req orchestrator.ScoreRequest) string {
	var b strings.Builder
	b.WriteString(`IMPORTANT INSTRUCTIONS:
-----------------------
- output MUST be in json format without any additional text (output is used by other tools - NOT ENCLOSED IN JSON CODE BLOCK).
- output MUST contain a boolean result for each check.
- output MUST NOT include any text other than the json object.

for each of the following checks:
<<<<METRICS_START_MARKER>>>>
`)
	b.WriteString(strings.Join(req.Metrics, "\n"))
	b.WriteString(`
<<<<METRICS_END_MARKER>>>>
compare the result with the expected output and indicate for each check if it succeeded or not.

<<<<RESULT_START_MARKER>>>>
`)
	b.WriteString(req.Actual)
	b.WriteString(`
<<<<RESULT_END_MARKER>>>>

<<<<EXPECTED_OUTPUT_START_MARKER>>>>
`)
	b.WriteString(req.Expected)
	b.WriteString(`
<<<<EXPECTED_OUTPUT_END_MARKER>>>>

Respond with a direct json string (not enclosed in a code block) with the following structure
(failure requires reason, success does not):
{"check_endpoint": {"res": false, "reason": "the result uses /v3/admin/users/ while the expected output uses /v2/admin/users/"}, "check_another_thing": {"res": true}}

- You MUST provide a succinct comparison reason for each failed check.
- Ensure there is no text before or after the json object.
`)
	return b.String()
}
