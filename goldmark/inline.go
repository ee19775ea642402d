package goldmark

import (
	"strings"

	"github.com/yuin/goldmark/ast"
)

// inlines collects the styled inline text of node's children.
func (w *writer) inlines(node ast.Node) string {
	var b strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c, &b)
	}
	return b.String()
}

func (w *writer) inline(node ast.Node, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.source))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}

	case *ast.String:
		b.Write(n.Value)

	case *ast.Emphasis:
		// ***x*** parses as nested emphasis, so Level is 1 or 2.
		style := w.styles.Emphasis
		if n.Level > 1 {
			style = w.styles.Strong
		}
		b.WriteString(style.Render(w.inlines(n)))

	case *ast.CodeSpan:
		b.WriteString(w.styles.Code.Render(w.inlines(n)))

	case *ast.Link:
		w.reference(b, w.inlines(n), string(n.Destination))

	case *ast.Image:
		w.reference(b, w.inlines(n), string(n.Destination))

	case *ast.AutoLink:
		b.WriteString(w.styles.Underline.Render(string(n.URL(w.source))))

	case *ast.RawHTML:
		for i := range n.Segments.Len() {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			w.inline(c, b)
		}
	}
}

// reference writes label followed by its destination. A label equal to the
// destination is written once.
func (w *writer) reference(b *strings.Builder, label, dest string) {
	if label == "" || label == dest {
		b.WriteString(w.styles.Underline.Render(dest))
		return
	}
	b.WriteString(w.styles.Underline.Render(label))
	b.WriteString(" ")
	b.WriteString(w.styles.Muted.Render("(" + dest + ")"))
}
