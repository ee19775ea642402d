package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/goldmark"
)

const maxResultWidth = 120

type styles struct {
	prompt lipgloss.Style
	tool   lipgloss.Style
	err    lipgloss.Style
	muted  lipgloss.Style
}

func newStyles() styles {
	return styles{
		prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
		tool:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		muted:  lipgloss.NewStyle().Faint(true),
	}
}

// renderer prints updates of a streamed turn. Model and tool text is
// stripped of escape sequences before it reaches the terminal. With a
// markdown renderer, text is held back and printed formatted once the turn
// completes.
type renderer struct {
	w        io.Writer
	styles   styles
	markdown *goldmark.Renderer
	pending  strings.Builder
	inText   bool
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, styles: newStyles()}
}

func newMarkdownRenderer(w io.Writer, width int) *renderer {
	r := newRenderer(w)
	r.markdown = goldmark.New(goldmark.WithWidth(width))
	return r
}

func (r *renderer) prompt() {
	fmt.Fprint(r.w, r.styles.prompt.Render("> "))
}

func (r *renderer) info(msg string) {
	r.endLine()
	fmt.Fprintln(r.w, r.styles.muted.Render(msg))
}

func (r *renderer) endLine() {
	if r.inText {
		fmt.Fprintln(r.w)
		r.inText = false
	}
}

func (r *renderer) update(u relay.Update) {
	switch p := u.Payload.(type) {
	case string:
		if u.Type != relay.UpdateText {
			return
		}
		if r.markdown != nil {
			r.pending.WriteString(p)
			return
		}
		fmt.Fprint(r.w, ansi.Strip(p))
		r.inText = true
	case relay.ToolCallPayload:
		r.endLine()
		fmt.Fprintln(r.w, r.styles.tool.Render("→ "+p.Name))
	case relay.ToolResultPayload:
		r.endLine()
		out := ansi.Truncate(ansi.Strip(string(p.Output)), maxResultWidth, "…")
		style := r.styles.muted
		if p.IsError {
			style = r.styles.err
		}
		fmt.Fprintln(r.w, style.Render("← "+p.Name+" "+out))
	case relay.CompletedPayload:
		r.endLine()
		if r.markdown != nil {
			r.pending.Reset()
			if out := r.markdown.Render(p.Text); out != "" {
				fmt.Fprintln(r.w, out)
			}
		}
	case relay.ErrorPayload:
		r.endLine()
		if r.pending.Len() > 0 {
			fmt.Fprintln(r.w, ansi.Strip(r.pending.String()))
			r.pending.Reset()
		}
		fmt.Fprintln(r.w, r.styles.err.Render(ansi.Strip(p.Message)))
	}
}
