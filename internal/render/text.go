package render

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/batchload/internal/plan"
	"github.com/rshade/batchload/pkg/batch"
)

// Color palette for text output.
const (
	ColorHeader = lipgloss.Color("12")
	ColorValue  = lipgloss.Color("15")
	ColorLabel  = lipgloss.Color("245")
	ColorMuted  = lipgloss.Color("241")
)

const indentUnit = "  "

// TextRenderer writes one line per row, children indented under their parent.
// Styles degrade to plain text when w is not a terminal.
type TextRenderer struct {
	w      *bufio.Writer
	root   *textLevel
	header lipgloss.Style
	value  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style

	lastBatch int
}

type textLevel struct {
	plan.Level
	tmpl     *template.Template
	children []*textLevel
}

// NewTextRenderer compiles the label templates of layout.
func NewTextRenderer(w io.Writer, layout plan.Level) (*TextRenderer, error) {
	root, err := compileLevel(layout)
	if err != nil {
		return nil, err
	}

	r := lipgloss.NewRenderer(w)
	return &TextRenderer{
		w:      bufio.NewWriter(w),
		root:   root,
		header: r.NewStyle().Foreground(ColorHeader).Bold(true),
		value:  r.NewStyle().Foreground(ColorValue).Bold(true),
		label:  r.NewStyle().Foreground(ColorLabel),
		muted:  r.NewStyle().Foreground(ColorMuted).Italic(true),
	}, nil
}

func compileLevel(l plan.Level) (*textLevel, error) {
	tl := &textLevel{Level: l}
	if l.Label != "" {
		tmpl, err := template.New(l.Name).Option("missingkey=zero").Parse(l.Label)
		if err != nil {
			return nil, fmt.Errorf("%s: label: %w", l.Name, err)
		}
		tl.tmpl = tmpl
	}
	for _, ch := range l.Children {
		ctl, err := compileLevel(ch)
		if err != nil {
			return nil, err
		}
		tl.children = append(tl.children, ctl)
	}
	return tl, nil
}

// Render implements Renderer.
func (t *TextRenderer) Render(_ context.Context, rec batch.Record) error {
	if rec.Batch != t.lastBatch {
		t.lastBatch = rec.Batch
		if _, err := fmt.Fprintln(t.w, t.header.Render(fmt.Sprintf("batch %d", rec.Batch))); err != nil {
			return err
		}
	}

	line, err := t.root.format(rec.Row)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(t.w, "%s %s\n", t.muted.Render(fmt.Sprintf("#%d", rec.Position+1)), t.value.Render(line)); err != nil {
		return err
	}
	return t.writeChildren(t.root, rec.Node, 1)
}

func (t *TextRenderer) writeChildren(level *textLevel, n batch.Node, depth int) error {
	indent := strings.Repeat(indentUnit, depth)
	for _, ch := range level.children {
		rows := n.Children[ch.Name]
		if len(rows) == 0 {
			if _, err := fmt.Fprintf(t.w, "%s%s\n", indent, t.muted.Render("no "+ch.Name)); err != nil {
				return err
			}
			continue
		}
		for _, child := range rows {
			line, err := ch.format(child.Row)
			if err != nil {
				return err
			}
			if _, err = fmt.Fprintf(t.w, "%s- %s\n", indent, t.label.Render(line)); err != nil {
				return err
			}
			if err = t.writeChildren(ch, child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush implements Renderer.
func (t *TextRenderer) Flush() error {
	return t.w.Flush()
}

// format renders the row label, falling back to "name id".
func (l *textLevel) format(row batch.Row) (string, error) {
	if l.tmpl == nil {
		return fmt.Sprintf("%s %v", l.Name, row[l.IDColumn]), nil
	}
	var sb strings.Builder
	if err := l.tmpl.Execute(&sb, row); err != nil {
		return "", fmt.Errorf("%s: label: %w", l.Name, err)
	}
	return sb.String(), nil
}
