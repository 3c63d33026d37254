package agent

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements ChatModel for Anthropic Claude
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(profile AuthProfile) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(profile.APIKey)}
	if profile.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(profile.BaseURL))
	}

	model := profile.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := profile.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: profile.Temperature,
	}
}

// Provider returns the provider name
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Send makes an API call to Anthropic Claude
func (p *AnthropicProvider) Send(ctx context.Context, systemContext string, history []Message, message string) (string, error) {
	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  anthropicMessages(history, message),
		MaxTokens: int64(p.maxTokens),
	}

	if systemContext != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: systemContext},
		}
	}

	if p.temperature > 0 {
		reqParams.Temperature = anthropic.Float(p.temperature)
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return "", err
	}

	content := ""
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}

	return textOrEmpty(content)
}

func anthropicMessages(history []Message, message string) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)

	for _, msg := range history {
		if msg.Role == RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
	}

	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
}
