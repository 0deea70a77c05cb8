package batch

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// ChildIndex maps parent identifiers to their ordered child rows for a single
// batch, one collection per top-level child table. It is built fresh for every
// batch and released once the batch has been delivered.
type ChildIndex struct {
	batch  int
	tables map[string]map[any][]Node
	rows   int
}

func newChildIndex(batch int) *ChildIndex {
	return &ChildIndex{batch: batch, tables: make(map[string]map[any][]Node)}
}

// Batch returns the batch number the index was built for.
func (ci *ChildIndex) Batch() int {
	return ci.batch
}

// Len returns the number of child rows held, counting every nested level.
func (ci *ChildIndex) Len() int {
	return ci.rows
}

// Children returns the children of parentID in table, or an empty slice.
// Absence is expected: not every parent has children.
func (ci *ChildIndex) Children(table string, parentID any) []Node {
	id, err := normalizeID(parentID)
	if err != nil {
		return []Node{}
	}
	if nodes, ok := ci.tables[table][id]; ok {
		return nodes
	}
	return []Node{}
}

// attach builds the children map of a primary row.
func (ci *ChildIndex) attach(parentID any, specs []ChildSpec) map[string][]Node {
	children := make(map[string][]Node, len(specs))
	for _, spec := range specs {
		children[spec.Name] = ci.Children(spec.Name, parentID)
	}
	return children
}

// Release drops every reference the index holds.
func (ci *ChildIndex) Release() {
	ci.tables = nil
	ci.rows = 0
}

// LoadStats describes the work done by one ChildLoader.Load call.
type LoadStats struct {
	Queries    int
	Rows       int
	OrphanRows int
}

// ChildLoader bulk-loads dependent tables for one batch at a time.
type ChildLoader struct {
	exec       QueryExecutor
	assignment *Assignment
	specs      []ChildSpec
}

// NewChildLoader creates a loader for the given child specs.
func NewChildLoader(exec QueryExecutor, assignment *Assignment, specs []ChildSpec) (*ChildLoader, error) {
	if exec == nil {
		return nil, invalidConfig("query executor is required")
	}
	if assignment == nil {
		return nil, invalidConfig("batch assignment is required")
	}
	validated, err := validateChildren("primary", specs)
	if err != nil {
		return nil, err
	}
	return &ChildLoader{exec: exec, assignment: assignment, specs: validated}, nil
}

// Load queries every child table once for batch and indexes the results by
// parent identifier. A batch number outside the assignment yields an empty
// index without issuing any query.
func (l *ChildLoader) Load(ctx context.Context, batch int) (*ChildIndex, error) {
	ci, _, err := l.load(ctx, l.exec, batch)
	return ci, err
}

func (l *ChildLoader) load(ctx context.Context, exec QueryExecutor, batch int) (*ChildIndex, LoadStats, error) {
	var stats LoadStats
	ci := newChildIndex(batch)

	batchIDs := l.assignment.IDs(batch)
	if len(batchIDs) == 0 || len(l.specs) == 0 {
		return ci, stats, nil
	}

	tables, err := loadLevel(ctx, exec, batch, batchIDs, batchIDs, l.specs, &stats)
	if err != nil {
		return nil, stats, err
	}
	ci.tables = tables
	ci.rows = stats.Rows

	zerolog.Ctx(ctx).Debug().
		Int("batch", batch).
		Int("queries", stats.Queries).
		Int("child_rows", stats.Rows).
		Int("orphan_rows", stats.OrphanRows).
		Msg("child index loaded")

	return ci, stats, nil
}

// loadLevel runs one query per spec, scoped to parentIDs, and recurses into
// nested specs with the identifiers of the rows just loaded.
func loadLevel(
	ctx context.Context,
	exec QueryExecutor,
	batch int,
	batchIDs, parentIDs []any,
	specs []ChildSpec,
	stats *LoadStats,
) (map[string]map[any][]Node, error) {
	parentSet := make(map[any]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parentSet[id] = struct{}{}
	}

	tables := make(map[string]map[any][]Node, len(specs))
	for _, spec := range specs {
		params := Params{
			ParamIDs:      parentIDs,
			ParamBatchIDs: batchIDs,
			ParamBatch:    batch,
		}
		rows, err := collect(ctx, exec, batch, spec.Name, spec.Query, params)
		stats.Queries++
		if err != nil {
			return nil, err
		}

		grouped := make(map[any][]Row)
		ownIDs := make([]any, 0, len(rows))
		for _, row := range rows {
			parent, err := normalizeID(row[spec.ParentColumn])
			if err != nil {
				return nil, fmt.Errorf("batch %d: %s column %q: %w", batch, spec.Name, spec.ParentColumn, err)
			}
			if _, ok := parentSet[parent]; !ok {
				stats.OrphanRows++
				continue
			}
			grouped[parent] = append(grouped[parent], row)
			stats.Rows++

			if len(spec.Children) > 0 {
				id, err := normalizeID(row[spec.IDColumn])
				if err != nil {
					return nil, fmt.Errorf("batch %d: %s column %q: %w", batch, spec.Name, spec.IDColumn, err)
				}
				ownIDs = append(ownIDs, id)
			}
		}

		var nested map[string]map[any][]Node
		if len(spec.Children) > 0 {
			nested, err = loadLevel(ctx, exec, batch, batchIDs, ownIDs, spec.Children, stats)
			if err != nil {
				return nil, err
			}
		}

		index := make(map[any][]Node, len(grouped))
		for parent, group := range grouped {
			sort.SliceStable(group, func(i, j int) bool {
				return compareRows(group[i], group[j], spec.Ordering, spec.IDColumn) < 0
			})
			nodes := make([]Node, len(group))
			for i, row := range group {
				nodes[i] = Node{Row: row, Children: nestedChildren(nested, row[spec.IDColumn], spec.Children)}
			}
			index[parent] = nodes
		}
		tables[spec.Name] = index
	}
	return tables, nil
}

func nestedChildren(nested map[string]map[any][]Node, id any, specs []ChildSpec) map[string][]Node {
	if len(specs) == 0 {
		return nil
	}
	children := make(map[string][]Node, len(specs))
	nid, err := normalizeID(id)
	for _, spec := range specs {
		nodes := []Node{}
		if err == nil {
			if found, ok := nested[spec.Name][nid]; ok {
				nodes = found
			}
		}
		children[spec.Name] = nodes
	}
	return children
}

// collect executes q and drains its result set. The cursor is closed on every
// path; a close failure is reported alongside any earlier error.
func collect(
	ctx context.Context,
	exec QueryExecutor,
	batch int,
	table string,
	q Query,
	params Params,
) (rows []Row, err error) {
	rs, err := exec.Execute(ctx, q, params)
	if err != nil {
		return nil, &QueryError{Batch: batch, Table: table, Query: q.Name, Err: err}
	}
	defer func() {
		if cerr := rs.Close(); cerr != nil {
			err = multierror.Append(err, &QueryError{Batch: batch, Table: table, Query: q.Name, Err: cerr}).ErrorOrNil()
			rows = nil
		}
	}()

	for rs.Next() {
		rows = append(rows, rs.Row())
	}
	if iterErr := rs.Err(); iterErr != nil {
		return nil, &QueryError{Batch: batch, Table: table, Query: q.Name, Err: iterErr}
	}
	return rows, nil
}
