// Package plan turns a configured table tree into batch specs and the layout
// used to render delivered records.
package plan

import (
	"fmt"

	"github.com/rshade/batchload/internal/config"
	"github.com/rshade/batchload/pkg/batch"
)

const defaultPrimaryName = "primary"

// Level describes how one table of the tree is displayed.
type Level struct {
	Name     string
	IDColumn string
	Label    string
	Children []Level
}

// Tables returns the table names of the tree in depth-first order.
func (l Level) Tables() []string {
	names := []string{l.Name}
	for _, ch := range l.Children {
		names = append(names, ch.Tables()...)
	}
	return names
}

// Depth returns the number of levels, counting l.
func (l Level) Depth() int {
	deepest := 0
	for _, ch := range l.Children {
		if d := ch.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Plan is a configured run ready for batch.NewProcessor.
type Plan struct {
	Primary  batch.PrimarySpec
	Children []batch.ChildSpec
	Layout   Level
}

// Build converts pc into batch specs. Sort expressions are parsed here so a
// bad plan fails before any database work.
func Build(pc config.PlanConfig) (*Plan, error) {
	name := pc.Primary.Name
	if name == "" {
		name = defaultPrimaryName
	}

	ordering, err := batch.ParseOrdering(pc.Primary.OrderBy)
	if err != nil {
		return nil, fmt.Errorf("%s: order_by: %w", name, err)
	}

	children, layouts, err := buildChildren(pc.Children)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Primary: batch.PrimarySpec{
			Name:     name,
			IDColumn: pc.Primary.IDColumn,
			KeyQuery: batch.Query{Name: name + ".keys", Template: pc.Primary.KeyQuery},
			RowQuery: batch.Query{Name: name + ".rows", Template: pc.Primary.RowQuery},
			Ordering: ordering,
		},
		Children: children,
		Layout: Level{
			Name:     name,
			IDColumn: pc.Primary.IDColumn,
			Label:    pc.Primary.Label,
			Children: layouts,
		},
	}, nil
}

func buildChildren(cfgs []config.ChildConfig) ([]batch.ChildSpec, []Level, error) {
	if len(cfgs) == 0 {
		return nil, nil, nil
	}

	specs := make([]batch.ChildSpec, 0, len(cfgs))
	layouts := make([]Level, 0, len(cfgs))
	for _, cc := range cfgs {
		ordering, err := batch.ParseOrdering(cc.OrderBy)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: order_by: %w", cc.Name, err)
		}
		nested, nestedLayouts, err := buildChildren(cc.Children)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", cc.Name, err)
		}

		specs = append(specs, batch.ChildSpec{
			Name:         cc.Name,
			IDColumn:     cc.IDColumn,
			ParentColumn: cc.ParentColumn,
			Query:        batch.Query{Name: cc.Name, Template: cc.Query},
			Ordering:     ordering,
			Children:     nested,
		})
		layouts = append(layouts, Level{
			Name:     cc.Name,
			IDColumn: cc.IDColumn,
			Label:    cc.Label,
			Children: nestedLayouts,
		})
	}
	return specs, layouts, nil
}
