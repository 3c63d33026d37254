package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements ChatModel for Google Gemini
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, profile AuthProfile) (*GeminiProvider, error) {
	cfg := &genai.ClientConfig{
		APIKey:  profile.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if profile.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: profile.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := profile.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		maxTokens:   profile.MaxTokens,
		temperature: profile.Temperature,
	}, nil
}

// Provider returns the provider name
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Send makes an API call to Google Gemini
func (p *GeminiProvider) Send(ctx context.Context, systemContext string, history []Message, message string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if p.maxTokens > 0 || p.temperature > 0 {
		cfg = &genai.GenerateContentConfig{}
		if p.maxTokens > 0 {
			cfg.MaxOutputTokens = int32(p.maxTokens)
		}
		if p.temperature > 0 {
			t := float32(p.temperature)
			cfg.Temperature = &t
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, geminiContents(systemContext, history, message), cfg)
	if err != nil {
		return "", err
	}

	return textOrEmpty(resp.Text())
}

// geminiContents lays out the conversation the way the chat history is
// primed: the system context is the leading user turn, followed by the
// stored turns and the new message.
func geminiContents(systemContext string, history []Message, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+2)
	if systemContext != "" {
		contents = append(contents, genai.NewContentFromText(systemContext, genai.RoleUser))
	}
	for _, msg := range history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))
	return contents
}
