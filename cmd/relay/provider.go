package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/anthropic"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/openai"
)

// resolveProvider constructs the configured provider. Keys come from the
// config, which main fills from the environment.
func resolveProvider(ctx context.Context, cfg config.Provider) (relay.Provider, error) {
	switch cfg.Name {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("%s not set", config.EnvOpenAIKey)
		}
		var opts []openai.Option
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		return openai.New(cfg.OpenAI.APIKey, opts...), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("%s not set", config.EnvGeminiKey)
		}
		client, err := gemini.New(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		return client, nil
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("%s not set", config.EnvAnthropicKey)
		}
		var opts []anthropic.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		return anthropic.New(cfg.Anthropic.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q: must be \"openai\", \"gemini\" or \"anthropic\"", cfg.Name)
	}
}
