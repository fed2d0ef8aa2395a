package parser

import (
	"strings"

	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/token"
)

// parseDataType parses a column/parameter type name, returning its dim
// argument for the VECTOR(n) form (0 otherwise).
func (p *Parser) parseDataType() (schema.DataType, int, error) {
	name, err := p.expectIdent("type name")
	if err != nil {
		return 0, 0, err
	}
	switch strings.ToUpper(name) {
	case "INT32":
		return schema.TypeInt32, 0, nil
	case "INT64", "INT", "INTEGER":
		return schema.TypeInt64, 0, nil
	case "FLOAT32":
		return schema.TypeFloat32, 0, nil
	case "FLOAT64", "FLOAT", "DOUBLE":
		return schema.TypeFloat64, 0, nil
	case "BOOL", "BOOLEAN":
		return schema.TypeBoolean, 0, nil
	case "STRING", "TEXT", "VARCHAR":
		return schema.TypeString, 0, nil
	case "TIMESTAMP":
		return schema.TypeTimestamp, 0, nil
	case "VECTOR":
		dim := 0
		if p.eatPunct("(") {
			t := p.cur()
			if t.Kind != token.Number {
				return 0, 0, errs.NewAt(errs.UnexpectedToken, t.Pos, "vector dimension must be a number")
			}
			p.advance()
			_, i, _, err := parseNumber(t.Text)
			if err != nil {
				return 0, 0, err
			}
			dim = int(i)
			if err := p.expectPunct(")"); err != nil {
				return 0, 0, err
			}
		}
		return schema.TypeVector, dim, nil
	default:
		return 0, 0, errs.New(errs.TypeMismatch, "unknown type name %q", name)
	}
}

// parseColumnDefList parses a parenthesized `(name type, name type, ...)`
// column-definition list shared by CREATE TABLE and CREATE TYPE ... STRUCT.
func (p *Parser) parseColumnDefList() ([]schema.ColumnDef, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []schema.ColumnDef
	for {
		name, err := p.expectIdent("column name")
		if err != nil {
			return nil, err
		}
		dt, dim, err := p.parseDataType()
		if err != nil {
			return nil, err
		}
		cols = append(cols, schema.ColumnDef{Name: name, Type: dt, VectorDim: dim})
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return cols, nil
}

// captureUntilStatementEnd slices the raw source text from the current
// token through (but not including) the closing `;` or EOF, the same
// verbatim-capture technique captureParenGroup uses for CTEs -- here used
// for a CREATE FUNCTION body.
func (p *Parser) captureUntilStatementEnd() string {
	start := p.cur().Pos
	for !p.atPunct(";") && !p.atEOF() {
		p.advance()
	}
	return strings.TrimSpace(p.src[start:p.cur().Pos])
}

func (p *Parser) parseCreate() (*Statement, error) {
	p.advance() // CREATE
	switch {
	case p.atKeyword("TABLE"):
		return p.parseCreateTable()
	case p.atKeyword("MATERIALIZED"), p.atKeyword("VIEW"):
		return p.parseCreateView()
	case p.atKeyword("INCREMENTAL"), p.atKeyword("MODEL"):
		return p.parseCreateModel()
	case p.atKeyword("TYPE"):
		return p.parseCreateType()
	case p.atKeyword("FUNCTION"):
		return p.parseCreateFunction()
	case p.atKeyword("SCHEDULE"):
		return p.parseCreateSchedule()
	default:
		return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "unexpected token %q after CREATE", p.cur().Text)
	}
}

func (p *Parser) parseCreateTable() (*Statement, error) {
	p.advance() // TABLE
	ifNotExists := false
	if p.eatKeyword("IF") {
		if err := p.expectKeyword("NOT"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		ifNotExists = true
	}
	name, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	if p.eatKeyword("AS") {
		qp, err := p.parseSelectStatement()
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtCreateTableAsSelect, CreateTableAsSelect: &CreateTableAsSelectStmt{Name: name, Query: qp}}, nil
	}
	cols, err := p.parseColumnDefList()
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StmtCreateTable, CreateTable: &CreateTableStmt{Name: name, Columns: cols, IfNotExists: ifNotExists}}, nil
}

func (p *Parser) parseCreateView() (*Statement, error) {
	materialized := p.eatKeyword("MATERIALIZED")
	if err := p.expectKeyword("VIEW"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent("view name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	start := p.cur().Pos
	qp, err := p.parseSelectStatement()
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(p.src[start:p.cur().Pos])
	return &Statement{Kind: StmtCreateView, CreateView: &CreateViewStmt{Name: name, Materialized: materialized, Query: qp, QueryText: text}}, nil
}

func (p *Parser) parseCreateModel() (*Statement, error) {
	incremental := p.eatKeyword("INCREMENTAL")
	if err := p.expectKeyword("MODEL"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent("model name")
	if err != nil {
		return nil, err
	}
	partitionCol := ""
	if p.eatKeyword("PARTITION") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("DATE"); err != nil {
			return nil, err
		}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		partitionCol, err = p.expectIdent("partition column")
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	start := p.cur().Pos
	qp, err := p.parseSelectStatement()
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(p.src[start:p.cur().Pos])
	return &Statement{Kind: StmtCreateModel, CreateModel: &CreateModelStmt{
		Name: name, Incremental: incremental, PartitionColumn: partitionCol, QueryText: text, Query: qp,
	}}, nil
}

func (p *Parser) parseCreateType() (*Statement, error) {
	p.advance() // TYPE
	name, err := p.expectIdent("type name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	switch {
	case p.eatKeyword("ENUM"):
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var vals []string
		for {
			t := p.cur()
			if t.Kind != token.String && t.Kind != token.Ident {
				return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "expected enum value, got %q", t.Text)
			}
			p.advance()
			vals = append(vals, t.Text)
			if !p.eatPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtCreateType, CreateType: &CreateTypeStmt{Name: name, TypeKind: "ENUM", EnumValues: vals}}, nil
	case p.eatKeyword("STRUCT"):
		cols, err := p.parseColumnDefList()
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtCreateType, CreateType: &CreateTypeStmt{Name: name, TypeKind: "STRUCT", StructFields: cols}}, nil
	case p.eatKeyword("ALIAS"):
		dt, _, err := p.parseDataType()
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtCreateType, CreateType: &CreateTypeStmt{Name: name, TypeKind: "ALIAS", AliasOf: dt.String()}}, nil
	default:
		return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "expected ENUM, STRUCT, or ALIAS after CREATE TYPE %s AS", name)
	}
}

func (p *Parser) parseCreateFunction() (*Statement, error) {
	p.advance() // FUNCTION
	name, err := p.expectIdent("function name")
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []schema.ColumnDef
	if !p.atPunct(")") {
		for {
			pname, err := p.expectIdent("parameter name")
			if err != nil {
				return nil, err
			}
			pt, dim, err := p.parseDataType()
			if err != nil {
				return nil, err
			}
			params = append(params, schema.ColumnDef{Name: pname, Type: pt, VectorDim: dim})
			if !p.eatPunct(",") {
				break
			}
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("RETURNS"); err != nil {
		return nil, err
	}
	rt, _, err := p.parseDataType()
	if err != nil {
		return nil, err
	}
	mode := "SYNC"
	if p.eatKeyword("AS") {
		switch {
		case p.eatKeyword("SYNC"):
			mode = "SYNC"
		case p.eatKeyword("ASYNC"):
			mode = "ASYNC"
		default:
			return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "expected SYNC or ASYNC")
		}
	}
	body := p.captureUntilStatementEnd()
	return &Statement{Kind: StmtCreateFunction, CreateFunction: &CreateFunctionStmt{
		Name: name, Params: params, ReturnType: rt, Mode: mode, Body: body,
	}}, nil
}

func (p *Parser) parseCreateSchedule() (*Statement, error) {
	p.advance() // SCHEDULE
	id, err := p.expectIdent("schedule id")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FOR"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("MODEL"); err != nil {
		return nil, err
	}
	modelName, err := p.expectIdent("model name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("CRON"); err != nil {
		return nil, err
	}
	cronTok := p.cur()
	if cronTok.Kind != token.String {
		return nil, errs.NewAt(errs.UnexpectedToken, cronTok.Pos, "CRON expression must be a string literal")
	}
	p.advance()
	retry := 0
	wantRetry := false
	if p.eatKeyword("ON") {
		// ON FAILURE RETRY n (FAILURE is not reserved; it scans as an ident).
		if p.cur().Kind != token.Ident || !strings.EqualFold(p.cur().Text, "FAILURE") {
			return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "expected FAILURE after ON, got %q", p.cur().Text)
		}
		p.advance()
		if err := p.expectKeyword("RETRY"); err != nil {
			return nil, err
		}
		wantRetry = true
	} else if p.eatKeyword("RETRY") {
		wantRetry = true
	}
	if wantRetry {
		t := p.cur()
		if t.Kind != token.Number {
			return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "RETRY count must be a number")
		}
		p.advance()
		_, i, _, err := parseNumber(t.Text)
		if err != nil {
			return nil, err
		}
		retry = int(i)
		p.eatKeyword("TIMES")
	}
	return &Statement{Kind: StmtCreateSchedule, CreateSchedule: &CreateScheduleStmt{
		ID: id, ModelName: modelName, Cron: cronTok.Text, RetryOnFailure: retry,
	}}, nil
}

func (p *Parser) parseInsert() (*Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.eatPunct("(") {
		for {
			c, err := p.expectIdent("column name")
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if !p.eatPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]gexpr.Expr
	for {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []gexpr.Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if !p.eatPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if !p.eatPunct(",") {
			break
		}
	}
	return &Statement{Kind: StmtInsert, Insert: &InsertStmt{Table: table, Columns: cols, Rows: rows}}, nil
}

func (p *Parser) parseDrop() (*Statement, error) {
	p.advance() // DROP
	if err := p.expectKeyword("SCHEDULE"); err != nil {
		return nil, err
	}
	id, err := p.expectIdent("schedule id")
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StmtDropSchedule, DropSchedule: &DropScheduleStmt{ID: id}}, nil
}

func (p *Parser) parseRefresh() (*Statement, error) {
	p.advance() // REFRESH
	materialized := false
	if p.eatKeyword("MATERIALIZED") {
		if err := p.expectKeyword("VIEW"); err != nil {
			return nil, err
		}
		materialized = true
	} else {
		p.eatKeyword("MODEL")
	}
	name, err := p.expectIdent("name")
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StmtRefresh, Refresh: &RefreshStmt{Materialized: materialized, Name: name}}, nil
}

func (p *Parser) parseShow() (*Statement, error) {
	p.advance() // SHOW
	switch {
	case p.eatKeyword("LINEAGE"):
		if err := p.expectKeyword("FOR"); err != nil {
			return nil, err
		}
		if p.eatKeyword("MODEL") {
			name, err := p.expectIdent("model name")
			if err != nil {
				return nil, err
			}
			return &Statement{Kind: StmtShow, Show: &ShowStmt{ShowKind: ShowLineageForModel, Target: name}}, nil
		}
		if err := p.expectKeyword("COLUMN"); err != nil {
			return nil, err
		}
		tbl, err := p.expectIdent("table name")
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("."); err != nil {
			return nil, err
		}
		col, err := p.expectIdent("column name")
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtShow, Show: &ShowStmt{ShowKind: ShowLineageForColumn, Target: tbl + "." + col}}, nil
	case p.eatKeyword("DEPENDENCIES"):
		if err := p.expectKeyword("FOR"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("MODEL"); err != nil {
			return nil, err
		}
		name, err := p.expectIdent("model name")
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtShow, Show: &ShowStmt{ShowKind: ShowDependenciesForModel, Target: name}}, nil
	case p.eatKeyword("SCHEDULES"):
		return &Statement{Kind: StmtShow, Show: &ShowStmt{ShowKind: ShowSchedules}}, nil
	case p.eatKeyword("DATABASES"):
		return &Statement{Kind: StmtShow, Show: &ShowStmt{ShowKind: ShowDatabases}}, nil
	case p.eatKeyword("TYPES"):
		return &Statement{Kind: StmtShow, Show: &ShowStmt{ShowKind: ShowTypes}}, nil
	default:
		return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "unsupported SHOW target %q", p.cur().Text)
	}
}

func (p *Parser) parseDescribe() (*Statement, error) {
	p.advance() // DESCRIBE
	if err := p.expectKeyword("TYPE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent("type name")
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StmtDescribeType, DescribeType: name}, nil
}

func (p *Parser) expectStringLiteral(what string) (string, error) {
	t := p.cur()
	if t.Kind != token.String {
		return "", errs.NewAt(errs.UnexpectedToken, t.Pos, "expected a string literal for %s, got %q", what, t.Text)
	}
	p.advance()
	return t.Text, nil
}

func (p *Parser) parseSave() (*Statement, error) {
	p.advance() // SAVE
	if err := p.expectKeyword("DATABASE"); err != nil {
		return nil, err
	}
	path, err := p.expectStringLiteral("database path")
	if err != nil {
		return nil, err
	}
	compression := "none"
	if p.eatKeyword("WITH") {
		if err := p.expectKeyword("COMPRESSION"); err != nil {
			return nil, err
		}
		c, err := p.expectIdent("compression codec")
		if err != nil {
			return nil, err
		}
		compression = strings.ToLower(c)
	}
	return &Statement{Kind: StmtSaveDatabase, SaveDatabase: &SaveDatabaseStmt{Path: path, Compression: compression}}, nil
}

func (p *Parser) parseLoad() (*Statement, error) {
	p.advance() // LOAD
	if err := p.expectKeyword("DATABASE"); err != nil {
		return nil, err
	}
	path, err := p.expectStringLiteral("database path")
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StmtLoadDatabase, LoadDatabase: &LoadDatabaseStmt{Path: path}}, nil
}

func (p *Parser) parseAttach() (*Statement, error) {
	p.advance() // ATTACH
	if err := p.expectKeyword("DATABASE"); err != nil {
		return nil, err
	}
	path, err := p.expectStringLiteral("database path")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	alias, err := p.expectIdent("alias")
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StmtAttachDatabase, AttachDatabase: &AttachDatabaseStmt{Path: path, Alias: alias}}, nil
}

func (p *Parser) parseDetach() (*Statement, error) {
	p.advance() // DETACH
	if err := p.expectKeyword("DATABASE"); err != nil {
		return nil, err
	}
	alias, err := p.expectIdent("alias")
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StmtDetachDatabase, DetachDatabase: &DetachDatabaseStmt{Alias: alias}}, nil
}
