package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentctx/agentctx/types"
)

// CompletionMessage is one message in a completion request.
type CompletionMessage struct {
	Role string // "user" or "assistant"
	Text string
}

// CompletionRequest is a single model completion call.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	MaxTokens int
}

// CompletionResponse is the outcome of a completion call.
type CompletionResponse struct {
	StopReason string
	Text       string
	Usage      types.Usage
}

// Succeeded reports whether the completion stopped normally or by
// hitting its length bound. Anything else is a hard failure for
// summarization purposes.
func (r *CompletionResponse) Succeeded() bool {
	switch r.StopReason {
	case types.StopReasonEndTurn, types.StopReasonMaxTokens, "stop_sequence":
		return true
	}
	return false
}

// CompletionService issues model completions. The credential lives
// inside the implementation; cancellation rides the context.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// AnthropicService implements CompletionService on the Anthropic
// streaming Messages API.
type AnthropicService struct {
	client *anthropic.Client
}

// NewAnthropicService wraps an existing Anthropic client.
func NewAnthropicService(client *anthropic.Client) *AnthropicService {
	return &AnthropicService{client: client}
}

// NewAnthropicServiceWithKey builds a client from an API key.
func NewAnthropicServiceWithKey(apiKey string) *AnthropicService {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicService{client: &client}
}

// Complete issues the request and accumulates the streamed response.
func (s *AnthropicService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Text)
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	stream := s.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	return &CompletionResponse{
		StopReason: string(message.StopReason),
		Text:       text.String(),
		Usage: types.Usage{
			InputTokens:         int(message.Usage.InputTokens),
			OutputTokens:        int(message.Usage.OutputTokens),
			CacheCreationTokens: int(message.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(message.Usage.CacheReadInputTokens),
		},
	}, nil
}
