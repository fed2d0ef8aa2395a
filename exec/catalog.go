package exec

import "github.com/zhukovaskychina/grizzly/table"

// Catalog resolves a Scan's bare table name against the live set of
// tables the engine holds -- the binding step the parser deliberately
// skips (plan.NewScan's doc comment) so CREATE MODEL/VIEW bodies can
// reference tables that do not exist yet at parse time.
type Catalog interface {
	Table(name string) (*table.Table, bool)
}

// MapCatalog is the simplest Catalog: a name -> *table.Table map, which is
// exactly what engine.Database keeps for its live table registry.
type MapCatalog map[string]*table.Table

func (m MapCatalog) Table(name string) (*table.Table, bool) {
	t, ok := m[name]
	return t, ok
}
