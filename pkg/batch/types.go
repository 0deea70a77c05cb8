package batch

import "context"

// Parameter names bound by the loader when it executes a query.
const (
	// ParamIDs holds the parent-level identifiers of the query: primary ids for
	// the row query and top-level children, parent child ids for nested levels.
	ParamIDs = "ids"

	// ParamBatchIDs always holds the primary identifiers of the current batch.
	ParamBatchIDs = "batch_ids"

	// ParamBatch holds the current batch number.
	ParamBatch = "batch"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Params holds named query parameters.
type Params map[string]any

// Query is a parameterized query template identified by name.
type Query struct {
	Name     string
	Template string
}

// PrimarySpec describes the outer table.
type PrimarySpec struct {
	// Name identifies the table in errors and logs.
	Name string

	// IDColumn is the column holding the unique identifier.
	IDColumn string

	// KeyQuery returns the identifier and ordering columns of every primary row.
	// It runs once per run, before partitioning.
	KeyQuery Query

	// RowQuery returns full primary rows for the identifiers bound to ParamIDs.
	RowQuery Query

	// Ordering defines both batch membership and delivery order.
	Ordering []SortKey
}

// ChildSpec describes a dependent table owned by the level above it.
type ChildSpec struct {
	// Name identifies the table and keys its collection in Node.Children.
	Name string

	// IDColumn is the child's own identifier, used for tie-breaking and as the
	// parent key of nested levels.
	IDColumn string

	// ParentColumn is the foreign key to the level above.
	ParentColumn string

	// Query returns the child rows owned by the identifiers bound to ParamIDs.
	Query Query

	// Ordering defines the order of children within one parent.
	Ordering []SortKey

	// Children are nested levels, loaded with the same batch scope.
	Children []ChildSpec
}

// Node is a row together with its loaded children, keyed by child table name.
// Every declared child table has an entry; parents without children get an
// empty slice.
type Node struct {
	Row      Row
	Children map[string][]Node
}

// Record is one primary row delivered to the consumer.
type Record struct {
	// Batch is the batch number the row belongs to.
	Batch int

	// Position is the zero-based rank of the row in the primary ordering.
	Position int

	Node
}

// Consumer receives records in primary order. Returning an error aborts the run.
type Consumer func(ctx context.Context, rec Record) error

// validate checks the primary spec and fills query names.
func (s *PrimarySpec) validate() error {
	if s.Name == "" {
		s.Name = "primary"
	}
	if s.IDColumn == "" {
		return invalidConfig("primary %s: id column is required", s.Name)
	}
	if s.KeyQuery.Template == "" {
		return invalidConfig("primary %s: key query is required", s.Name)
	}
	if s.RowQuery.Template == "" {
		return invalidConfig("primary %s: row query is required", s.Name)
	}
	if len(s.Ordering) == 0 {
		return invalidConfig("primary %s: at least one ordering key is required", s.Name)
	}
	if err := validateOrdering(s.Name, s.Ordering); err != nil {
		return err
	}
	if s.KeyQuery.Name == "" {
		s.KeyQuery.Name = s.Name + ".keys"
	}
	if s.RowQuery.Name == "" {
		s.RowQuery.Name = s.Name + ".rows"
	}
	return nil
}

// validateChildren checks a level of child specs, recursively, and returns a
// copy with query names filled so callers' slices are never mutated.
func validateChildren(parent string, specs []ChildSpec) ([]ChildSpec, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	out := make([]ChildSpec, len(specs))
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, invalidConfig("%s: child table name is required", parent)
		}
		if seen[spec.Name] {
			return nil, invalidConfig("%s: duplicate child table %q", parent, spec.Name)
		}
		seen[spec.Name] = true

		if spec.IDColumn == "" {
			return nil, invalidConfig("child %s: id column is required", spec.Name)
		}
		if spec.ParentColumn == "" {
			return nil, invalidConfig("child %s: parent column is required", spec.Name)
		}
		if spec.Query.Template == "" {
			return nil, invalidConfig("child %s: query is required", spec.Name)
		}
		if err := validateOrdering(spec.Name, spec.Ordering); err != nil {
			return nil, err
		}
		if spec.Query.Name == "" {
			spec.Query.Name = spec.Name
		}

		nested, err := validateChildren(spec.Name, spec.Children)
		if err != nil {
			return nil, err
		}
		spec.Children = nested
		out[i] = spec
	}
	return out, nil
}

func validateOrdering(table string, keys []SortKey) error {
	for i, k := range keys {
		if k.Column == "" {
			return invalidConfig("%s: ordering key %d has no column", table, i)
		}
	}
	return nil
}
