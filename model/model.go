// Package model implements Grizzly's model registry, dependency DAG,
// topological execution ordering, and shallow lineage analysis. Cycle
// detection uses three-color DFS rather than Kahn's algorithm because
// only DFS coloring names the offending back-edge for a typed
// CircularModelDependency error.
package model

import (
	"time"

	"github.com/zhukovaskychina/grizzly/token"
)

// Model is a named SELECT whose result is a table, plus the descriptive
// metadata carried alongside it (description/tags/owner/category/
// freshness/quality, loaded from the TOML side-file config.ModelMeta
// describes).
type Model struct {
	Name     string
	SQLText  string
	// Dependencies is the ordered, duplicate-free set of table/model
	// names this model's SQL references via FROM/JOIN.
	Dependencies []string

	LastRunTimestamp  time.Time
	RowCount          int64
	ExecutionTimeMS   int64

	IsIncremental      bool
	PartitionColumn    string
	LastPartitionValue string

	Description             string
	Tags                    []string
	Owner                   string
	Category                string
	FreshnessThresholdHours float64
	DataQualityScore        float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtractDependencies performs a lightweight text scan: sql is scanned
// for FROM/JOIN token sequences and the identifier that follows is
// treated as a table/model name, deduplicated with insertion order
// preserved. This deliberately does not distinguish a real table from a
// subquery alias -- any identifier following FROM/JOIN is treated as a
// table name, since a real semantic binder is out of scope for this
// shallow dependency-extraction pass.
func ExtractDependencies(sql string) ([]string, error) {
	toks, err := token.Tokenize(sql)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != token.Keyword || (t.Text != "FROM" && t.Text != "JOIN") {
			continue
		}
		if i+1 >= len(toks) {
			continue
		}
		next := toks[i+1]
		if next.Kind != token.Ident {
			continue
		}
		name := next.Text
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}
