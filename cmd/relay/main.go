// Command relay runs the conversational agent orchestrator.
//
// Usage:
//
//	relay serve [--config relay.yaml]
//	relay chat  [--config relay.yaml] [--user id] [--sessions dir] [--markdown]
//
// Secrets are read from OPENAI_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY
// and RELAY_DATABASE_DSN.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fwojciec/relay/config"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]

	flags := pflag.NewFlagSet("relay "+cmd, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to YAML config file")
	provider := flags.String("provider", "", "provider override: openai, gemini, anthropic")
	var opts chatOptions
	if cmd == "chat" {
		flags.StringVar(&opts.user, "user", "local", "user id of the local conversation")
		flags.StringVar(&opts.dir, "sessions", defaultSessionDir(), "directory for local conversation files")
		flags.BoolVar(&opts.markdown, "markdown", false, "render replies as formatted markdown once complete")
		flags.IntVar(&opts.width, "width", 100, "wrap width for markdown output")
	}
	if err := flags.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(getenv)
	if *provider != "" {
		cfg.Provider.Name = *provider
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		logger, err := newLogger(cfg.Log, stderr)
		if err != nil {
			return err
		}
		return serve(ctx, cfg, logger)
	case "chat":
		logger, err := newLogger(config.Log{Level: "error", Format: cfg.Log.Format}, stderr)
		if err != nil {
			return err
		}
		return chatREPL(ctx, cfg, logger, opts, stdin, stdout)
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(c config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := config.Config{Log: c}.LogLevel()
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: relay <command> [flags]

commands:
  serve   run the HTTP API
  chat    talk to the agent in the terminal

flags:
  --config string     path to YAML config file
  --provider string   provider override: openai, gemini, anthropic
`)
}
