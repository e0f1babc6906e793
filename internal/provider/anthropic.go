package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicPrefix marks roster entries served by the Anthropic API instead
// of OpenRouter, e.g. "anthropic/claude-haiku-4-5-20251001".
const anthropicPrefix = "anthropic/"

// AnthropicCaller adapts the official SDK to the raw status/body shape the
// failover classifier consumes, so paid Anthropic models can sit at the tail
// of a roster of free providers without special-casing downstream.
type AnthropicCaller struct {
	client sdk.Client
}

// NewAnthropicCaller creates a caller backed by the official SDK.
func NewAnthropicCaller(apiKey string) *AnthropicCaller {
	return &AnthropicCaller{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Call runs a text-only message request. The response is re-encoded into the
// chat-completion shape (choices[0].message.content) so one classifier
// handles every backend.
func (a *AnthropicCaller) Call(ctx context.Context, req ChatRequest) (int, []byte, error) {
	model := strings.TrimPrefix(req.Model, anthropicPrefix)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			// Surface the upstream status so 429s classify as rate limits.
			return apiErr.StatusCode, []byte(apiErr.Error()), nil
		}
		return 0, nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": text.String()}},
		},
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, body, nil
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		content, ok := m.Content.(string)
		if !ok {
			// Multimodal parts are flattened to their text; Anthropic roster
			// entries are only used on text rosters.
			content = flattenParts(m.Content)
		}
		block := sdk.NewTextBlock(content)
		switch m.Role {
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(block))
		default:
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}

func flattenParts(content any) string {
	parts, ok := content.([]ContentPart)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
