package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/config"
)

type chatOptions struct {
	user     string
	dir      string
	markdown bool
	width    int
}

// chatREPL runs an interactive conversation stored under opts.dir.
func chatREPL(ctx context.Context, cfg config.Config, logger *slog.Logger, opts chatOptions, in io.Reader, out io.Writer) error {
	svc, err := newService(ctx, cfg, logger, map[relay.SessionKind]relay.HistoryStore{
		relay.Authenticated: newFileStore(opts.dir),
	})
	if err != nil {
		return err
	}
	r := newRenderer(out)
	if opts.markdown {
		r = newMarkdownRenderer(out, opts.width)
	}
	return converse(ctx, svc, relay.SessionRef{ID: opts.user, Kind: relay.Authenticated}, in, r)
}

// converse reads one message per line until EOF or /quit. /reset starts the
// conversation over.
func converse(ctx context.Context, svc relay.ChatService, ref relay.SessionRef, in io.Reader, r *renderer) error {
	r.info("relay chat: /reset to start over, /quit to exit")
	sc := bufio.NewScanner(in)
	for {
		r.prompt()
		if !sc.Scan() {
			r.endLine()
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := svc.ResetConversation(ctx, ref); err != nil {
				r.info("reset failed")
				continue
			}
			r.info("conversation reset")
			continue
		}
		for u := range svc.StreamMessage(ctx, ref, line) {
			r.update(u)
		}
		if ctx.Err() != nil {
			r.endLine()
			return nil
		}
	}
}
