// Package api connects crews to the Anthropic Messages API. It provides the
// crew executor, the validation scorer, and the sandboxed tools agents use.
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/crewscontrol/internal/retry"
)

// DefaultMaxTokens bounds each response when ClientConfig.MaxTokens is zero.
const DefaultMaxTokens = 8192

// messageAPI is the part of the SDK the package uses.
type messageAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client wraps the Anthropic SDK client with usage tracking.
type Client struct {
	messages  messageAPI
	model     anthropic.Model
	maxTokens int64
	usage     *Usage
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the Claude model to use. Defaults to Sonnet 4.5.
	Model anthropic.Model
	// MaxTokens bounds each response. Defaults to DefaultMaxTokens.
	MaxTokens int64
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// NewClient creates a new Anthropic API client. SDK retries are disabled:
// rate limiting is handled by the caller's retry controller.
func NewClient(cfg ClientConfig) (*Client, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	inner := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return newClient(&inner.Messages, model, cfg.MaxTokens), nil
}

func newClient(messages messageAPI, model anthropic.Model, maxTokens int64) *Client {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Client{
		messages:  messages,
		model:     model,
		maxTokens: maxTokens,
		usage:     &Usage{},
	}
}

var bedrockModels = map[anthropic.Model]string{
	anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
	anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
}

// translateModelForBedrock converts standard model names to Bedrock
// cross-region inference profiles. Unknown names are returned as-is.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Models returns the model names with a known Bedrock mapping, sorted.
func Models() []string {
	names := make([]string, 0, len(bedrockModels))
	for m := range bedrockModels {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return names
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Usage returns the token usage recorded by this client.
func (c *Client) Usage() *Usage {
	return c.usage
}

// send issues one Messages request with the client's model and token limit.
func (c *Client) send(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	params.Model = c.model
	params.MaxTokens = c.maxTokens
	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	c.usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}

// wrapAPIError attaches the HTTP status of API errors so the retry
// controller can recognise rate limiting.
func wrapAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &retry.StatusError{Code: apiErr.StatusCode, Err: err}
	}
	return err
}

// Usage tracks token usage across API calls.
type Usage struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// Add records token usage from an API call.
func (u *Usage) Add(input, output int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.inputTok += input
	u.outputTok += output
	u.calls++
}

// Total returns the input and output tokens and the number of calls.
func (u *Usage) Total() (input, output int64, calls int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.inputTok, u.outputTok, u.calls
}
