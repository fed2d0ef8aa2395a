package parser

import (
	"github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/schema"
)

// StmtKind discriminates the DDL/DML statement surface beyond plain
// SELECT.
type StmtKind int

const (
	StmtSelect StmtKind = iota
	StmtCreateTable
	StmtCreateTableAsSelect
	StmtCreateView
	StmtCreateModel
	StmtCreateType
	StmtCreateFunction
	StmtCreateSchedule
	StmtInsert
	StmtDropSchedule
	StmtRefresh
	StmtShow
	StmtDescribeType
	StmtSaveDatabase
	StmtLoadDatabase
	StmtAttachDatabase
	StmtDetachDatabase
)

// Statement is the tagged-union result of parsing one top-level statement.
// Exactly one of the Kind-matching fields below is populated.
type Statement struct {
	Kind StmtKind

	Select *plan.QueryPlan

	CreateTable         *CreateTableStmt
	CreateTableAsSelect *CreateTableAsSelectStmt
	CreateView          *CreateViewStmt
	CreateModel         *CreateModelStmt
	CreateType          *CreateTypeStmt
	CreateFunction      *CreateFunctionStmt
	CreateSchedule      *CreateScheduleStmt
	Insert              *InsertStmt
	DropSchedule        *DropScheduleStmt
	Refresh             *RefreshStmt
	Show                *ShowStmt
	DescribeType        string
	SaveDatabase        *SaveDatabaseStmt
	LoadDatabase        *LoadDatabaseStmt
	AttachDatabase      *AttachDatabaseStmt
	DetachDatabase      *DetachDatabaseStmt
}

type CreateTableStmt struct {
	Name        string
	Columns     []schema.ColumnDef
	IfNotExists bool
}

type CreateTableAsSelectStmt struct {
	Name  string
	Query *plan.QueryPlan
}

type CreateViewStmt struct {
	Name         string
	Materialized bool
	Query        *plan.QueryPlan
	QueryText    string
}

// CreateModelStmt captures CREATE [INCREMENTAL] MODEL name
// [PARTITION BY DATE(col)] AS <select>. QueryText is kept verbatim so the
// model registry can re-extract dependencies and the incremental engine
// can rewrite it later.
type CreateModelStmt struct {
	Name            string
	Incremental     bool
	PartitionColumn string
	QueryText       string
	Query           *plan.QueryPlan
}

type CreateTypeStmt struct {
	Name         string
	TypeKind     string // "ENUM" | "STRUCT" | "ALIAS"
	EnumValues   []string
	StructFields []schema.ColumnDef
	AliasOf      string
}

// CreateFunctionStmt captures CREATE FUNCTION name(params) RETURNS type
// [AS SYNC|ASYNC] body, where Body is the raw source text after the mode
// up to the next `;` or end of input. The body is not brace-delimited:
// the tokenizer rejects `{`. Mode governs only whether the function may be
// evaluated at template-expansion time (SYNC) versus execution time
// (ASYNC); neither requires a true async runtime.
type CreateFunctionStmt struct {
	Name       string
	Params     []schema.ColumnDef
	ReturnType schema.DataType
	Mode       string // "SYNC" | "ASYNC"
	Body       string
}

type CreateScheduleStmt struct {
	ID             string
	ModelName      string
	Cron           string
	RetryOnFailure int
}

type InsertStmt struct {
	Table   string
	Columns []string
	Rows    [][]expr.Expr
}

type DropScheduleStmt struct {
	ID string
}

type RefreshStmt struct {
	Materialized bool // true => REFRESH MATERIALIZED VIEW
	Name         string
}

// ShowKind enumerates the SHOW statement variants.
type ShowKind int

const (
	ShowLineageForModel ShowKind = iota
	ShowLineageForColumn
	ShowDependenciesForModel
	ShowSchedules
	ShowDatabases
	ShowTypes
)

type ShowStmt struct {
	ShowKind ShowKind
	Target   string // model name, or "table.column" for ShowLineageForColumn
}

type SaveDatabaseStmt struct {
	Path        string
	Compression string // "none"|"snappy"|"gzip"|"lz4"|"zstd"
}

type LoadDatabaseStmt struct {
	Path string
}

type AttachDatabaseStmt struct {
	Path  string
	Alias string
}

type DetachDatabaseStmt struct {
	Alias string
}
