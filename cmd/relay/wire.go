package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/agent"
	"github.com/fwojciec/relay/builtin"
	"github.com/fwojciec/relay/chat"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/history"
	"github.com/fwojciec/relay/opa"
	"github.com/fwojciec/relay/registry"
	"github.com/fwojciec/relay/telemetry"
	"github.com/fwojciec/relay/tiktoken"
)

func newEstimator(name string) (history.Estimator, error) {
	if name == "tiktoken" {
		est, err := tiktoken.New("")
		if err != nil {
			return nil, err
		}
		return est, nil
	}
	return history.Chars, nil
}

// newCatalog builds the tool registry. find_files is registered only when a
// workspace directory is configured.
func newCatalog(ctx context.Context, policyPath, workspace string) (*registry.Registry, error) {
	var opts []registry.Option
	if policyPath != "" {
		module, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		policy, err := opa.New(ctx, string(module))
		if err != nil {
			return nil, err
		}
		opts = append(opts, registry.WithFilter(policy))
	}
	reg := registry.New(opts...)
	if err := builtin.Register(reg, nil); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}
	if workspace != "" {
		if err := reg.Register(builtin.FindFiles(workspace)); err != nil {
			return nil, fmt.Errorf("register find_files: %w", err)
		}
	}
	return reg, nil
}

func newReporter(cfg config.Telemetry, logger *slog.Logger) relay.Reporter {
	if cfg.URL == "" {
		return relay.NopReporter
	}
	return telemetry.New(cfg.URL,
		telemetry.WithSource(cfg.Source),
		telemetry.WithTimeout(cfg.Timeout),
		telemetry.WithLogger(logger),
	)
}

func selectorTable(cfg config.Config) chat.Table {
	return chat.Table{
		Models: map[relay.SessionKind]map[chat.Complexity]string{
			relay.Guest:         {chat.Simple: cfg.Models.Guest.Simple, chat.Complex: cfg.Models.Guest.Complex},
			relay.Authenticated: {chat.Simple: cfg.Models.Authenticated.Simple, chat.Complex: cfg.Models.Authenticated.Complex},
		},
		Instructions: map[relay.SessionKind]string{
			relay.Guest:         cfg.Instructions.Guest,
			relay.Authenticated: cfg.Instructions.Authenticated,
		},
	}
}

func limits(l config.Limits) agent.Limits {
	return agent.Limits{MaxMessages: l.MaxMessages, MaxTokens: l.MaxTokens}
}

// newService wires the session policy. stores supplies the history store
// per session kind.
func newService(ctx context.Context, cfg config.Config, logger *slog.Logger, stores map[relay.SessionKind]relay.HistoryStore) (*chat.Service, error) {
	provider, err := resolveProvider(ctx, cfg.Provider)
	if err != nil {
		return nil, err
	}
	est, err := newEstimator(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	catalog, err := newCatalog(ctx, cfg.Policy, cfg.Workspace)
	if err != nil {
		return nil, err
	}

	loop := agent.New(provider,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithParallelism(cfg.Agent.Parallelism),
		agent.WithEstimator(est),
		agent.WithLogger(logger),
	)

	opts := []chat.Option{
		chat.WithSelector(selectorTable(cfg)),
		chat.WithFallback(chat.Selection{Model: cfg.Models.Fallback}),
		chat.WithLimits(relay.Guest, limits(cfg.Limits.Guest)),
		chat.WithLimits(relay.Authenticated, limits(cfg.Limits.Authenticated)),
		chat.WithMaxOutputTokens(cfg.Agent.MaxOutputTokens),
		chat.WithReporter(newReporter(cfg.Telemetry, logger)),
		chat.WithLogger(logger),
	}
	if cfg.Prompts.Guest != "" {
		opts = append(opts, chat.WithSystemPrompt(relay.Guest, cfg.Prompts.Guest))
	}
	if cfg.Prompts.Authenticated != "" {
		opts = append(opts, chat.WithSystemPrompt(relay.Authenticated, cfg.Prompts.Authenticated))
	}
	for kind, store := range stores {
		opts = append(opts, chat.WithStore(kind, store))
	}
	return chat.New(loop, catalog, opts...), nil
}
