package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultMaxIterations bounds the API calls of one task.
const DefaultMaxIterations = 25

// loopResult contains the results of one task's conversation.
type loopResult struct {
	Output     string
	ToolCalls  int
	Iterations int
}

// agentLoop runs a conversation with the model, executing tool calls until
// the model stops asking for tools.
type agentLoop struct {
	client        *Client
	tools         *Tools
	maxIterations int
	log           *slog.Logger
}

func (l *agentLoop) run(ctx context.Context, systemPrompt, userPrompt string, defs []anthropic.ToolUnionParam) (*loopResult, error) {
	result := &loopResult{}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
	}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		params := anthropic.MessageNewParams{
			System:   []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages: messages,
		}
		if len(defs) > 0 {
			params.Tools = defs
		}
		resp, err := l.client.send(ctx, params)
		if err != nil {
			return result, err
		}

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var text strings.Builder

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(variant.Text)
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				result.ToolCalls++
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				var toolResult ToolResult
				if l.tools == nil {
					toolResult = ToolResult{Content: "No tools are available", IsError: true}
				} else {
					toolResult = l.tools.Execute(ctx, variant.Name, variant.Input)
				}
				l.log.Debug("tool call", "tool", variant.Name, "is_error", toolResult.IsError)

				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, toolResult.Content, toolResult.IsError))
			}
		}

		if resp.StopReason != anthropic.StopReasonToolUse || len(toolResultBlocks) == 0 {
			result.Output = text.String()
			return result, nil
		}

		messages = append(messages,
			anthropic.NewAssistantMessage(assistantBlocks...),
			anthropic.NewUserMessage(toolResultBlocks...))
	}

	return result, fmt.Errorf("max iterations (%d) reached", l.maxIterations)
}
