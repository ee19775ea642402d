// Package goldmark renders assistant replies as ANSI-styled terminal text.
// Markdown is parsed with goldmark and styled with lipgloss. Escape
// sequences already present in the source are stripped before parsing, so
// model output cannot drive the terminal.
package goldmark

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// DefaultWidth is used when the configured width is not positive.
const DefaultWidth = 80

// minItemWidth keeps deeply nested list items readable.
const minItemWidth = 10

// Styles is the palette applied to markdown elements.
type Styles struct {
	Strong    lipgloss.Style
	Emphasis  lipgloss.Style
	Heading   lipgloss.Style
	Code      lipgloss.Style
	Muted     lipgloss.Style
	Underline lipgloss.Style
}

// DefaultStyles uses the 16-color ANSI palette.
func DefaultStyles() Styles {
	return Styles{
		Strong:    lipgloss.NewStyle().Bold(true),
		Emphasis:  lipgloss.NewStyle().Italic(true),
		Heading:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
		Code:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true),
		Underline: lipgloss.NewStyle().Underline(true),
	}
}

// Renderer converts markdown to terminal output. It is safe for concurrent
// use.
type Renderer struct {
	width  int
	styles Styles
}

// Option configures a [Renderer].
type Option func(*Renderer)

// WithWidth sets the wrap width for paragraphs and list items.
func WithWidth(width int) Option {
	return func(r *Renderer) { r.width = width }
}

// WithStyles replaces DefaultStyles.
func WithStyles(s Styles) Option {
	return func(r *Renderer) { r.styles = s }
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		width:  DefaultWidth,
		styles: DefaultStyles(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.width <= 0 {
		r.width = DefaultWidth
	}
	return r
}

// Render returns source as styled text without a trailing newline.
// Paragraphs and list items are wrapped to the renderer's width; code blocks
// keep their lines as written.
func (r *Renderer) Render(source string) string {
	source = ansi.Strip(source)
	if strings.TrimSpace(source) == "" {
		return ""
	}
	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	w := &writer{Renderer: r, source: src}
	w.blocks(doc, r.width)
	return strings.TrimRight(w.out.String(), "\n")
}
