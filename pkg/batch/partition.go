package batch

import (
	"context"
	"fmt"
	"sort"
)

// Assignment maps every primary identifier to exactly one batch number.
// It is computed once per run and read-only afterwards.
type Assignment struct {
	batchSize int

	// ranks maps a normalized identifier to its zero-based position.
	ranks map[any]int

	// ordered holds normalized identifiers in primary order.
	ordered []any
}

// Partitioner produces a deterministic identifier-to-batch mapping.
type Partitioner interface {
	Partition(ctx context.Context, keys []Row, idColumn string, ordering []SortKey, batchSize int) (*Assignment, error)
}

// SortPartitioner partitions in memory by sorting the full key list and
// slicing it into chunks of the batch size.
type SortPartitioner struct{}

// Partition implements Partitioner.
func (SortPartitioner) Partition(
	_ context.Context,
	keys []Row,
	idColumn string,
	ordering []SortKey,
	batchSize int,
) (*Assignment, error) {
	return Partition(keys, idColumn, ordering, batchSize)
}

// Partition assigns batch number rank/batchSize + 1 to each key row, where rank
// is the zero-based position after a stable sort on ordering. Ties are broken
// by the identifier, so equal inputs always produce equal assignments.
func Partition(keys []Row, idColumn string, ordering []SortKey, batchSize int) (*Assignment, error) {
	if batchSize < 1 {
		return nil, invalidConfig("batch size must be >= 1, got %d", batchSize)
	}
	if idColumn == "" {
		return nil, invalidConfig("id column is required")
	}
	if err := validateOrdering("primary", ordering); err != nil {
		return nil, err
	}

	type entry struct {
		id  any
		row Row
	}

	entries := make([]entry, 0, len(keys))
	seen := make(map[any]struct{}, len(keys))
	for i, row := range keys {
		id, err := normalizeID(row[idColumn])
		if err != nil {
			return nil, fmt.Errorf("key row %d column %q: %w", i, idColumn, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateIdentifier, id)
		}
		seen[id] = struct{}{}
		entries = append(entries, entry{id: id, row: row})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return compareRows(entries[i].row, entries[j].row, ordering, idColumn) < 0
	})

	a := &Assignment{
		batchSize: batchSize,
		ranks:     make(map[any]int, len(entries)),
		ordered:   make([]any, len(entries)),
	}
	for rank, e := range entries {
		a.ranks[e.id] = rank
		a.ordered[rank] = e.id
	}
	return a, nil
}

// BatchSize returns the batch size the assignment was computed with.
func (a *Assignment) BatchSize() int {
	return a.batchSize
}

// Len returns the number of assigned identifiers.
func (a *Assignment) Len() int {
	return len(a.ordered)
}

// Batches returns the number of batches, ceil(Len / BatchSize).
func (a *Assignment) Batches() int {
	return (len(a.ordered) + a.batchSize - 1) / a.batchSize
}

// Rank returns the zero-based position of id in the primary ordering.
func (a *Assignment) Rank(id any) (int, bool) {
	nid, err := normalizeID(id)
	if err != nil {
		return 0, false
	}
	rank, ok := a.ranks[nid]
	return rank, ok
}

// BatchOf returns the batch number of id.
func (a *Assignment) BatchOf(id any) (int, bool) {
	rank, ok := a.Rank(id)
	if !ok {
		return 0, false
	}
	return rank/a.batchSize + 1, true
}

// IDs returns the identifiers of batch in primary order, or nil when the batch
// number is outside the assignment. The returned slice is a copy.
func (a *Assignment) IDs(batch int) []any {
	if batch < 1 {
		return nil
	}
	start := (batch - 1) * a.batchSize
	if start >= len(a.ordered) {
		return nil
	}
	end := min(start+a.batchSize, len(a.ordered))

	ids := make([]any, end-start)
	copy(ids, a.ordered[start:end])
	return ids
}
