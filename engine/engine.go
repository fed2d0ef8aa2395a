// Package engine implements Grizzly's top-level Database handle: the
// live table/model/schedule registries, the optimizer's statistics cache,
// and the audit stream, wired together behind one statement-dispatch
// entrypoint. Everything that could have been process-global -- the
// scheduler's worker, the statistics cache, the audit stream -- is a
// field on the handle instead, so multiple Database instances coexist.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zhukovaskychina/grizzly/artifact"
	"github.com/zhukovaskychina/grizzly/audit"
	"github.com/zhukovaskychina/grizzly/config"
	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/exec"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/incremental"
	"github.com/zhukovaskychina/grizzly/model"
	"github.com/zhukovaskychina/grizzly/optimizer"
	"github.com/zhukovaskychina/grizzly/parser"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/plgrizzly"
	"github.com/zhukovaskychina/grizzly/scheduler"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
)

// Database is a single Grizzly database instance: live tables, the model
// registry and its scheduler, optimizer statistics, the audit stream, and
// attached peer databases.
type Database struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
	views  map[string]*parser.CreateViewStmt
	types  map[string]*parser.CreateTypeStmt

	models *model.Registry
	funcs  *plgrizzly.Registry
	sched  *scheduler.Scheduler
	stats  *optimizer.Stats
	cost   *optimizer.CostModel
	audit  *audit.Stream
	cfg    *config.Cfg

	attached map[string]*Database
}

// New builds a Database from cfg (nil means config.NewCfg() defaults) and
// an optional audit logger.
func New(cfg *config.Cfg, aud *audit.Stream) *Database {
	if cfg == nil {
		cfg = config.NewCfg()
	}
	db := &Database{
		tables:   map[string]*table.Table{},
		views:    map[string]*parser.CreateViewStmt{},
		types:    map[string]*parser.CreateTypeStmt{},
		models:   model.NewRegistry(),
		funcs:    plgrizzly.NewRegistry(),
		stats:    optimizer.NewStats(),
		cost:     optimizer.NewDefaultCostModel(),
		audit:    aud,
		cfg:      cfg,
		attached: map[string]*Database{},
	}
	db.cost.PageSize = int64(cfg.PageSize)
	db.sched = scheduler.New(db, aud, cfg.SchedulerTickDuration)
	return db
}

// Table implements exec.Catalog, resolving a bare table name against the
// live registry, then against every attached database by `alias.name`.
func (db *Database) Table(name string) (*table.Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if t, ok := db.tables[name]; ok {
		return t, true
	}
	for alias, other := range db.attached {
		prefix := alias + "."
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			return other.Table(name[len(prefix):])
		}
	}
	return nil, false
}

var _ exec.Catalog = (*Database)(nil)
var _ scheduler.Refresher = (*Database)(nil)

// RegisterTable installs t, overwriting any existing table of the same
// name; used both by CREATE TABLE and by model/view materialization.
func (db *Database) RegisterTable(t *table.Table) {
	db.mu.Lock()
	db.tables[t.Name] = t
	db.mu.Unlock()
	db.stats.Register(t)
}

// StartScheduler launches the background refresh worker.
func (db *Database) StartScheduler() { db.sched.Start() }

// StopScheduler stops the background refresh worker.
func (db *Database) StopScheduler() { db.sched.Stop() }

// Run parses sql (possibly several `;`-separated statements) and executes
// each in turn, returning the last statement's result table (nil for DDL/
// DML statements that produce no rows).
func (db *Database) Run(sql string) (*table.Table, error) {
	stmts, err := parser.Parse(db.funcs.Expand(sql))
	if err != nil {
		return nil, err
	}
	var last *table.Table
	for _, stmt := range stmts {
		t, err := db.Exec(stmt)
		if err != nil {
			return nil, err
		}
		last = t
	}
	return last, nil
}

// Exec dispatches a single parsed Statement.
func (db *Database) Exec(stmt *parser.Statement) (*table.Table, error) {
	switch stmt.Kind {
	case parser.StmtSelect:
		return db.runSelect(stmt.Select)
	case parser.StmtCreateTable:
		return nil, db.createTable(stmt.CreateTable)
	case parser.StmtCreateTableAsSelect:
		return db.createTableAsSelect(stmt.CreateTableAsSelect)
	case parser.StmtCreateView:
		return nil, db.createView(stmt.CreateView)
	case parser.StmtCreateModel:
		return nil, db.createModel(stmt.CreateModel)
	case parser.StmtCreateType:
		db.mu.Lock()
		db.types[stmt.CreateType.Name] = stmt.CreateType
		db.mu.Unlock()
		return nil, nil
	case parser.StmtCreateFunction:
		db.funcs.RegisterUser(stmt.CreateFunction)
		return nil, nil
	case parser.StmtCreateSchedule:
		cs := stmt.CreateSchedule
		_, err := db.sched.Add(cs.ID, cs.ModelName, cs.Cron, cs.RetryOnFailure)
		return nil, err
	case parser.StmtInsert:
		return nil, db.insert(stmt.Insert)
	case parser.StmtDropSchedule:
		db.sched.Drop(stmt.DropSchedule.ID)
		return nil, nil
	case parser.StmtRefresh:
		return nil, db.refresh(stmt.Refresh)
	case parser.StmtShow:
		return db.show(stmt.Show)
	case parser.StmtDescribeType:
		return db.describeType(stmt.DescribeType)
	case parser.StmtSaveDatabase:
		return nil, db.Save(stmt.SaveDatabase.Path, stmt.SaveDatabase.Compression)
	case parser.StmtLoadDatabase:
		return nil, db.Load(stmt.LoadDatabase.Path)
	case parser.StmtAttachDatabase:
		return nil, db.Attach(stmt.AttachDatabase.Path, stmt.AttachDatabase.Alias)
	case parser.StmtDetachDatabase:
		db.mu.Lock()
		delete(db.attached, stmt.DetachDatabase.Alias)
		db.mu.Unlock()
		return nil, nil
	}
	return nil, errs.New(errs.InvalidExpression, "unsupported statement kind %v", stmt.Kind)
}

// Explain parses and optimizes sql (one SELECT) without executing it,
// returning the optimized plan for the ExplainText/ExplainJSONString/
// ExplainMermaid emitters.
func (db *Database) Explain(sql string) (*plan.QueryPlan, error) {
	stmt, err := parser.ParseOne(db.funcs.Expand(sql))
	if err != nil {
		return nil, err
	}
	if stmt.Kind != parser.StmtSelect {
		return nil, errs.New(errs.InvalidExpression, "EXPLAIN requires a SELECT statement")
	}
	return optimizer.Optimize(stmt.Select.Root, db.stats, db.cost, db.audit), nil
}

func (db *Database) runSelect(qp *plan.QueryPlan) (*table.Table, error) {
	optimized := optimizer.Optimize(qp.Root, db.stats, db.cost, db.audit)
	return exec.Execute(optimized.Root, db)
}

func (db *Database) createTable(stmt *parser.CreateTableStmt) error {
	db.mu.RLock()
	_, exists := db.tables[stmt.Name]
	db.mu.RUnlock()
	if exists {
		if stmt.IfNotExists {
			return nil
		}
		return errs.New(errs.TableAlreadyExists, "table %q already exists", stmt.Name)
	}
	sch, err := schema.New(stmt.Columns...)
	if err != nil {
		return err
	}
	db.RegisterTable(table.New(stmt.Name, sch))
	return nil
}

func (db *Database) createTableAsSelect(stmt *parser.CreateTableAsSelectStmt) (*table.Table, error) {
	optimized := optimizer.Optimize(stmt.Query.Root, db.stats, db.cost, db.audit)
	result, err := exec.Execute(optimized.Root, db)
	if err != nil {
		return nil, err
	}
	named := result.Clone(stmt.Name)
	db.RegisterTable(named)
	return named, nil
}

func (db *Database) createView(stmt *parser.CreateViewStmt) error {
	db.mu.Lock()
	db.views[stmt.Name] = stmt
	db.mu.Unlock()
	if !stmt.Materialized {
		return nil
	}
	optimized := optimizer.Optimize(stmt.Query.Root, db.stats, db.cost, db.audit)
	result, err := exec.Execute(optimized.Root, db)
	if err != nil {
		return err
	}
	db.RegisterTable(result.Clone(stmt.Name))
	return nil
}

// createModel registers the model and immediately materializes it: a
// model is a named SELECT whose result is a table.
func (db *Database) createModel(stmt *parser.CreateModelStmt) error {
	m, err := db.models.AddModel(stmt.Name, stmt.QueryText)
	if err != nil {
		return err
	}
	m.IsIncremental = stmt.Incremental
	m.PartitionColumn = stmt.PartitionColumn

	start := time.Now()
	optimized := optimizer.Optimize(stmt.Query.Root, db.stats, db.cost, db.audit)
	result, err := exec.Execute(optimized.Root, db)
	if err != nil {
		if errs.Is(err, errs.TableNotFound) {
			// An upstream model/table is not materialized yet; keep the
			// registration and defer materialization to REFRESH.
			return nil
		}
		db.models.RemoveModel(stmt.Name)
		return err
	}
	named := result.Clone(stmt.Name)
	db.RegisterTable(named)
	db.models.MarkRefreshed(stmt.Name, int64(named.RowCount()), time.Since(start).Milliseconds())

	if m.IsIncremental && m.PartitionColumn != "" {
		if watermarkCol, err := named.ColumnValues(m.PartitionColumn); err == nil {
			if wm, ok := incremental.AdvanceWatermark(watermarkCol); ok {
				m.LastPartitionValue = wm.String()
			}
		}
	}
	return nil
}

func (db *Database) insert(stmt *parser.InsertStmt) error {
	t, ok := db.Table(stmt.Table)
	if !ok {
		return errs.New(errs.TableNotFound, "table %q not found", stmt.Table)
	}
	emptyRow := exec.NewRow(nil, map[string]int{}, map[string]int{})
	for _, rowExprs := range stmt.Rows {
		vals := make([]value.Value, len(rowExprs))
		for i, e := range rowExprs {
			v, err := gexpr.Eval(e, emptyRow)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		if err := t.AppendRow(vals); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) refresh(stmt *parser.RefreshStmt) error {
	if stmt.Materialized {
		db.mu.RLock()
		v, ok := db.views[stmt.Name]
		db.mu.RUnlock()
		if !ok {
			return errs.New(errs.TableNotFound, "materialized view %q not found", stmt.Name)
		}
		optimized := optimizer.Optimize(v.Query.Root, db.stats, db.cost, db.audit)
		result, err := exec.Execute(optimized.Root, db)
		if err != nil {
			return err
		}
		db.RegisterTable(result.Clone(stmt.Name))
		return nil
	}
	return db.RefreshModel(context.Background(), stmt.Name)
}

// RefreshModel implements scheduler.Refresher: re-runs a model's SQL
// (rewritten for its partition watermark when incremental) and updates its
// registry entry and materialized table.
func (db *Database) RefreshModel(ctx context.Context, name string) error {
	for _, dep := range db.models.RefreshOrder(name) {
		if err := db.refreshOne(dep); err != nil {
			return errs.Wrap(err, "refreshing model %q", dep)
		}
	}
	return nil
}

func (db *Database) refreshOne(name string) error {
	m, ok := db.models.Get(name)
	if !ok {
		return errs.New(errs.ModelNotFound, "model %q not found", name)
	}

	sqlText := m.SQLText
	if m.IsIncremental && m.PartitionColumn != "" && m.LastPartitionValue != "" {
		sqlText = incremental.RewriteForWatermark(sqlText, m.PartitionColumn, incremental.WatermarkValue(m.LastPartitionValue))
	}

	start := time.Now()
	stmt, err := parser.ParseOne(db.funcs.Expand(sqlText))
	if err != nil {
		return err
	}
	optimized := optimizer.Optimize(stmt.Select.Root, db.stats, db.cost, db.audit)
	result, err := exec.Execute(optimized.Root, db)
	if err != nil {
		return err
	}

	existing, hasExisting := db.Table(name)
	totalRows := result.RowCount()
	if m.IsIncremental && hasExisting {
		if err := appendRows(existing, result); err != nil {
			return err
		}
		// row_count tracks the cumulative materialized table, not the
		// delta this refresh appended.
		totalRows = existing.RowCount()
	} else {
		db.RegisterTable(result.Clone(name))
	}
	db.models.MarkRefreshed(name, int64(totalRows), time.Since(start).Milliseconds())

	if m.PartitionColumn != "" {
		if col, err := result.ColumnValues(m.PartitionColumn); err == nil {
			if wm, ok := incremental.AdvanceWatermark(col); ok {
				m.LastPartitionValue = wm.String()
			}
		}
	}
	return nil
}

func appendRows(dst, src *table.Table) error {
	for i := 0; i < src.RowCount(); i++ {
		if err := dst.AppendRow(src.Row(i)); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) show(stmt *parser.ShowStmt) (*table.Table, error) {
	switch stmt.ShowKind {
	case parser.ShowLineageForModel:
		return stringListTable("model", db.models.LineageFor(stmt.Target))
	case parser.ShowLineageForColumn:
		tbl, col, err := splitTableColumn(stmt.Target)
		if err != nil {
			return nil, err
		}
		lineage, err := model.LineageForColumn(db.models, tbl, col)
		if err != nil {
			return nil, err
		}
		return stringListTable("upstream_column", lineage.UpstreamColumns)
	case parser.ShowDependenciesForModel:
		return stringListTable("dependency", db.models.DependenciesOf(stmt.Target))
	case parser.ShowSchedules:
		var ids []string
		for _, s := range db.sched.List() {
			ids = append(ids, fmt.Sprintf("%s (%s, next=%s)", s.ID, s.State(), s.NextFire().Format(time.RFC3339)))
		}
		return stringListTable("schedule", ids)
	case parser.ShowDatabases:
		db.mu.RLock()
		defer db.mu.RUnlock()
		var names []string
		for alias := range db.attached {
			names = append(names, alias)
		}
		return stringListTable("database", names)
	case parser.ShowTypes:
		db.mu.RLock()
		defer db.mu.RUnlock()
		var names []string
		for name := range db.types {
			names = append(names, name)
		}
		return stringListTable("type", names)
	}
	return nil, errs.New(errs.InvalidExpression, "unsupported SHOW kind %v", stmt.ShowKind)
}

// describeType renders one CREATE TYPE definition as a two-column
// {field, value} table for DESCRIBE TYPE.
func (db *Database) describeType(name string) (*table.Table, error) {
	db.mu.RLock()
	ct, ok := db.types[name]
	db.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.TableNotFound, "type %q not found", name)
	}
	sch, err := schema.New(
		schema.ColumnDef{Name: "field", Type: schema.TypeString},
		schema.ColumnDef{Name: "value", Type: schema.TypeString},
	)
	if err != nil {
		return nil, err
	}
	t := table.New("", sch)
	add := func(field, val string) error {
		return t.AppendRow([]value.Value{value.NewString(field), value.NewString(val)})
	}
	if err := add("name", ct.Name); err != nil {
		return nil, err
	}
	if err := add("kind", ct.TypeKind); err != nil {
		return nil, err
	}
	switch ct.TypeKind {
	case "ENUM":
		for _, v := range ct.EnumValues {
			if err := add("enum_value", v); err != nil {
				return nil, err
			}
		}
	case "STRUCT":
		for _, f := range ct.StructFields {
			if err := add("field:"+f.Name, f.Type.String()); err != nil {
				return nil, err
			}
		}
	case "ALIAS":
		if err := add("alias_of", ct.AliasOf); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func splitTableColumn(target string) (table, column string, err error) {
	for i := len(target) - 1; i >= 0; i-- {
		if target[i] == '.' {
			return target[:i], target[i+1:], nil
		}
	}
	return "", "", errs.New(errs.InvalidExpression, "expected table.column, got %q", target)
}

func stringListTable(colName string, items []string) (*table.Table, error) {
	sch, err := schema.New(schema.ColumnDef{Name: colName, Type: schema.TypeString})
	if err != nil {
		return nil, err
	}
	t := table.New("", sch)
	for _, item := range items {
		if err := t.AppendRow([]value.Value{value.NewString(item)}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ApplyModelMeta loads a `[models.<name>]`-sectioned TOML file and copies
// each block's descriptive metadata onto the matching registered model;
// blocks naming unregistered models are ignored. Returns how many models
// were annotated.
func (db *Database) ApplyModelMeta(path string) (int, error) {
	meta, err := config.LoadModelMeta(path)
	if err != nil {
		return 0, err
	}
	applied := 0
	for name, mm := range meta.Models {
		m, ok := db.models.Get(name)
		if !ok {
			continue
		}
		m.Description = mm.Description
		m.Tags = append([]string(nil), mm.Tags...)
		m.Owner = mm.Owner
		m.Category = mm.Category
		m.FreshnessThresholdHours = mm.FreshnessThresholdHours
		m.UpdatedAt = time.Now().UTC()
		applied++
	}
	return applied, nil
}

// LineageYAML renders the named model's dependency neighborhood (direct
// deps, transitive lineage, grouped refresh order) as YAML, the structured
// export companion to SHOW LINEAGE FOR MODEL.
func (db *Database) LineageYAML(modelName string) ([]byte, error) {
	if _, ok := db.models.Get(modelName); !ok {
		return nil, errs.New(errs.ModelNotFound, "model %q not found", modelName)
	}
	return model.ExportLineageYAML(db.models, modelName)
}

// Save serializes every live table to path for SAVE DATABASE;
// artifact.SaveToFile enforces the overwrite-protection rule.
func (db *Database) Save(path, compression string) error {
	payload, err := db.snapshot()
	if err != nil {
		return err
	}
	return artifact.SaveToFile(path, compression, payload)
}

// Load installs every table in the artifact at path, replacing live
// tables of the same name; other live tables are kept.
func (db *Database) Load(path string) error {
	payload, err := artifact.LoadFromFile(path)
	if err != nil {
		return err
	}
	return db.restore(payload)
}

// Attach loads the artifact at path as a peer database reachable under
// `alias.tablename`.
func (db *Database) Attach(path, alias string) error {
	peer := New(db.cfg, db.audit)
	if err := peer.Load(path); err != nil {
		return err
	}
	db.mu.Lock()
	db.attached[alias] = peer
	db.mu.Unlock()
	if db.audit != nil {
		db.audit.Log(audit.Event{Operation: audit.OpAttach, Component: "engine", Subject: alias, Message: "attached " + path})
	}
	return nil
}

