// Package render writes delivered batch records as text or JSON.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rshade/batchload/internal/plan"
	"github.com/rshade/batchload/pkg/batch"
)

// Format names accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Renderer writes records in delivery order.
type Renderer interface {
	// Render writes one record.
	Render(ctx context.Context, rec batch.Record) error

	// Flush writes any buffered output.
	Flush() error
}

// New returns the renderer for format. layout describes the table tree the
// records follow.
func New(format string, w io.Writer, layout plan.Level) (Renderer, error) {
	switch strings.ToLower(format) {
	case FormatText:
		return NewTextRenderer(w, layout)
	case FormatJSON:
		return NewJSONRenderer(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (supported: %s, %s)", format, FormatText, FormatJSON)
	}
}

// Consumer adapts r to a batch.Consumer.
func Consumer(r Renderer) batch.Consumer {
	return r.Render
}
