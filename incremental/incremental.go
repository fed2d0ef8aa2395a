// Package incremental implements Grizzly's partition-watermark refresh:
// on refresh, a model flagged incremental has its SQL rewritten to add
// (or AND into) a `partition_column > last_watermark` predicate, is
// executed against just the newer partitions, and has its watermark
// advanced to the maximum partition value observed.
//
// Like model/lineage.go, this operates with a token scan over the model's
// raw SQLText rather than its already-built plan.Node tree
// (CreateModelStmt keeps both, but the incremental rewrite must re-parse
// to take effect on the next execution).
package incremental

import (
	"strconv"
	"strings"

	"github.com/zhukovaskychina/grizzly/token"
	"github.com/zhukovaskychina/grizzly/value"
)

// RewriteForWatermark returns sql with a `partition_column > watermark`
// predicate added: AND-ed into an existing WHERE clause, or inserted as a
// new WHERE clause positioned before GROUP BY/ORDER BY/LIMIT/HAVING if the
// query has none.
func RewriteForWatermark(sql, partitionColumn string, watermark value.Value) string {
	toks, err := token.Tokenize(sql)
	if err != nil {
		// Unparseable text is passed through unchanged; the subsequent
		// real parse will surface the same error to the caller.
		return sql
	}

	predicate := partitionColumn + " > " + sqlLiteral(watermark)

	whereIdx := -1
	clauseIdx := len(toks) - 1 // EOF token position as a fallback insert point
	for i, t := range toks {
		if t.Kind != token.Keyword {
			continue
		}
		switch t.Text {
		case "WHERE":
			whereIdx = i
		case "GROUP", "ORDER", "LIMIT", "HAVING":
			if clauseIdx == len(toks)-1 {
				clauseIdx = i
			}
		}
	}

	if whereIdx >= 0 {
		end := len(toks) - 1
		if clauseIdx > whereIdx {
			end = clauseIdx
		}
		before := renderSpan(toks, 0, whereIdx+1)
		cond := renderSpan(toks, whereIdx+1, end)
		rest := renderSpan(toks, end, len(toks)-1)
		if rest == "" {
			return before + " (" + cond + ") AND " + predicate
		}
		return before + " (" + cond + ") AND " + predicate + " " + rest
	}

	before := renderSpan(toks, 0, clauseIdx)
	after := renderSpan(toks, clauseIdx, len(toks)-1)
	if after == "" {
		return before + " WHERE " + predicate
	}
	return before + " WHERE " + predicate + " " + after
}

func renderSpan(toks []token.Token, from, to int) string {
	var b strings.Builder
	for i := from; i < to && i < len(toks); i++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if toks[i].Kind == token.String {
			b.WriteString("'" + strings.ReplaceAll(toks[i].Raw, "'", "''") + "'")
			continue
		}
		b.WriteString(toks[i].Raw)
	}
	return b.String()
}

// sqlLiteral renders watermark as SQL the tokenizer/parser can read back:
// numeric kinds print bare, Timestamp prints its underlying unix-nanos
// integer (value.Value carries no independent date-literal syntax), and
// anything else is single-quoted with embedded quotes doubled.
func sqlLiteral(v value.Value) string {
	switch v.Kind() {
	case value.Int32, value.Int64, value.Timestamp:
		return strconv.FormatInt(v.Int(), 10)
	case value.Float32, value.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	}
}

// WatermarkValue parses a stored watermark string back into the most
// specific Value it round-trips from: int64, then float64, then string.
// Watermarks are persisted as strings on the model record, but a numeric
// partition column needs a numeric literal back in the rewritten
// predicate, or the comparison would order by type instead of value.
func WatermarkValue(s string) value.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.NewInt64(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.NewFloat64(f)
	}
	return value.NewString(s)
}

// AdvanceWatermark scans the partition column across the emitted result
// rows and returns the maximum value observed plus whether any row was
// seen at all -- the refresh's new watermark.
func AdvanceWatermark(values []value.Value) (value.Value, bool) {
	if len(values) == 0 {
		return value.Value{}, false
	}
	max := values[0]
	for _, v := range values[1:] {
		if v.Compare(max) > 0 {
			max = v
		}
	}
	return max, true
}
