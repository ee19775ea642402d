package goldmark

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// writer holds the state of one Render call.
type writer struct {
	*Renderer
	source []byte
	out    strings.Builder
}

func (w *writer) blocks(node ast.Node, width int) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, width)
		if c.NextSibling() != nil {
			w.out.WriteString("\n")
		}
	}
}

func (w *writer) block(node ast.Node, width int) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		w.wrapped(w.inlines(n), width)

	case *ast.Heading:
		w.wrapped(w.styles.Heading.Render(w.inlines(n)), width)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(w.source)); lang != "" {
			w.out.WriteString(w.styles.Muted.Render(lang) + "\n")
		}
		w.code(n.Lines())

	case *ast.CodeBlock:
		w.code(n.Lines())

	case *ast.List:
		w.list(n, 0, width)

	case *ast.Blockquote:
		inner := &writer{Renderer: w.Renderer, source: w.source}
		inner.blocks(n, max(width-2, minItemWidth))
		gutter := w.styles.Muted.Render("│") + " "
		for _, line := range strings.Split(strings.TrimRight(inner.out.String(), "\n"), "\n") {
			w.out.WriteString(gutter + line + "\n")
		}

	case *ast.ThematicBreak:
		w.out.WriteString(w.styles.Muted.Render(strings.Repeat("─", min(width, 40))) + "\n")

	case *ast.HTMLBlock:
		w.raw(n.Lines())

	default:
		w.blocks(node, width)
	}
}

func (w *writer) wrapped(s string, width int) {
	w.out.WriteString(lipgloss.NewStyle().Width(width).Render(s))
	w.out.WriteString("\n")
}

func (w *writer) code(lines *text.Segments) {
	gutter := w.styles.Muted.Render("│") + " "
	for i := range lines.Len() {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(w.source)), "\n")
		w.out.WriteString(gutter + w.styles.Code.Render(line) + "\n")
	}
}

func (w *writer) raw(lines *text.Segments) {
	for i := range lines.Len() {
		seg := lines.At(i)
		w.out.Write(seg.Value(w.source))
	}
}

func (w *writer) list(node *ast.List, depth, width int) {
	n := node.Start
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "• "
		if node.IsOrdered() {
			marker = fmt.Sprintf("%d. ", n)
			n++
		}
		indent := strings.Repeat("  ", depth)

		var content strings.Builder
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				content.WriteString(w.inlines(in))
			case *ast.List:
				if content.Len() > 0 {
					w.item(indent, marker, content.String(), width)
					content.Reset()
				}
				w.list(in, depth+1, width)
				marker = strings.Repeat(" ", len(marker))
			default:
				inner := &writer{Renderer: w.Renderer, source: w.source}
				inner.block(ic, width)
				content.WriteString(strings.TrimRight(inner.out.String(), "\n"))
			}
		}
		if content.Len() > 0 {
			w.item(indent, marker, content.String(), width)
		}
	}
}

// item writes a list item with continuation lines aligned after the marker.
func (w *writer) item(indent, marker, content string, width int) {
	prefix := indent + marker
	pad := lipgloss.Width(prefix)
	wrapped := lipgloss.NewStyle().Width(max(width-pad, minItemWidth)).Render(content)
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			w.out.WriteString(prefix + line + "\n")
			continue
		}
		w.out.WriteString(strings.Repeat(" ", pad) + line + "\n")
	}
}
