package ui

import (
	"fmt"
	"strings"

	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
	"cursordb/pkg/ui/base"

	"github.com/charmbracelet/lipgloss"
)

// SchemaHighlighter renders column and index declarations with type names
// and constraint keywords picked out.
type SchemaHighlighter struct {
	nameStyle    lipgloss.Style
	typeStyle    lipgloss.Style
	keywordStyle lipgloss.Style
	indexStyle   lipgloss.Style
}

func NewSchemaHighlighter(p base.ColorPalette) *SchemaHighlighter {
	return &SchemaHighlighter{
		nameStyle: lipgloss.NewStyle().
			Foreground(p.Text),
		typeStyle: lipgloss.NewStyle().
			Foreground(p.Secondary),
		keywordStyle: lipgloss.NewStyle().
			Foreground(p.Warning).
			Bold(true),
		indexStyle: lipgloss.NewStyle().
			Foreground(p.Accent).
			Italic(true),
	}
}

// Column renders "name TYPE [NOT NULL]".
func (h *SchemaHighlighter) Column(c tuple.Column) string {
	parts := []string{h.nameStyle.Render(c.Name), h.typeStyle.Render(c.Type.String())}
	if !c.Nullable {
		parts = append(parts, h.keywordStyle.Render("NOT NULL"))
	}
	return strings.Join(parts, " ")
}

// Index renders "name(col, ...) [UNIQUE]".
func (h *SchemaHighlighter) Index(ix *table.Index) string {
	s := h.indexStyle.Render(fmt.Sprintf("%s(%s)", ix.Name, strings.Join(ix.Columns, ", ")))
	if ix.Unique {
		s += " " + h.keywordStyle.Render("UNIQUE")
	}
	return s
}

// Describe renders the columns of t on one line and its indexes on the
// next.
func (h *SchemaHighlighter) Describe(t *table.Table) string {
	cols := make([]string, 0, t.TupleDesc().NumFields())
	for _, c := range t.TupleDesc().Columns {
		cols = append(cols, h.Column(c))
	}
	out := strings.Join(cols, ", ")

	indexes := t.Indexes()
	if len(indexes) == 0 {
		return out
	}
	ixs := make([]string, len(indexes))
	for i, ix := range indexes {
		ixs[i] = h.Index(ix)
	}
	return out + "\n" + h.keywordStyle.Render("INDEX") + " " + strings.Join(ixs, ", ")
}
