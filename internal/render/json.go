package render

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/rshade/batchload/pkg/batch"
)

// JSONRenderer writes one JSON object per record, newline delimited.
type JSONRenderer struct {
	w   *bufio.Writer
	enc *json.Encoder
}

type jsonRecord struct {
	Batch    int                   `json:"batch"`
	Position int                   `json:"position"`
	Row      batch.Row             `json:"row"`
	Children map[string][]jsonNode `json:"children,omitempty"`
}

type jsonNode struct {
	Row      batch.Row             `json:"row"`
	Children map[string][]jsonNode `json:"children,omitempty"`
}

// NewJSONRenderer returns a renderer writing to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	bw := bufio.NewWriter(w)
	return &JSONRenderer{w: bw, enc: json.NewEncoder(bw)}
}

// Render implements Renderer.
func (j *JSONRenderer) Render(_ context.Context, rec batch.Record) error {
	return j.enc.Encode(jsonRecord{
		Batch:    rec.Batch,
		Position: rec.Position,
		Row:      rec.Row,
		Children: toJSONChildren(rec.Children),
	})
}

// Flush implements Renderer.
func (j *JSONRenderer) Flush() error {
	return j.w.Flush()
}

func toJSONChildren(children map[string][]batch.Node) map[string][]jsonNode {
	if len(children) == 0 {
		return nil
	}
	out := make(map[string][]jsonNode, len(children))
	for table, nodes := range children {
		converted := make([]jsonNode, len(nodes))
		for i, n := range nodes {
			converted[i] = jsonNode{Row: n.Row, Children: toJSONChildren(n.Children)}
		}
		out[table] = converted
	}
	return out
}
