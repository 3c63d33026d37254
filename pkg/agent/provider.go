package agent

import (
	"context"
	"fmt"
	"strings"
)

const (
	DefaultGeminiModel    = "gemini-1.5-pro"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"

	defaultMaxTokens = 1024
)

// ProviderFactory creates chat models from auth profiles
type ProviderFactory struct{}

// NewProvider creates a new chat model based on auth profile
func (f *ProviderFactory) NewProvider(ctx context.Context, profile AuthProfile) (ChatModel, error) {
	if strings.TrimSpace(profile.APIKey) == "" {
		return nil, fmt.Errorf("provider %s: api key is required", profile.Provider)
	}

	switch profile.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, profile)
	case "openai":
		return NewOpenAIProvider(profile), nil
	case "anthropic":
		return NewAnthropicProvider(profile), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// NewFromProfiles builds one model per profile and wraps them in a Failover.
func (f *ProviderFactory) NewFromProfiles(ctx context.Context, profiles []AuthProfile, opts ...FailoverOption) (*Failover, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("at least one ai profile is required")
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, profile := range profiles {
		model, err := f.NewProvider(ctx, profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %q: %w", profileName(profile), err)
		}
		candidates = append(candidates, Candidate{
			Name:     profileName(profile),
			Priority: profile.Priority,
			Model:    model,
		})
	}

	return NewFailover(candidates, opts...), nil
}

func profileName(profile AuthProfile) string {
	if profile.ID != "" {
		return profile.ID
	}
	return profile.Provider
}

// textOrEmpty trims a backend answer and maps blank text to ErrEmptyResponse.
func textOrEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
