package schema

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"
)

// Reconciled is a batch aligned to a declared column layout: every row holds
// exactly one value per column, in column order.
type Reconciled struct {
	Columns []string
	Rows    [][]Value
}

// Reconcile aligns every row of batch to the declared columns. Declared
// columns missing from a row become Null and are logged at INFO once per
// column. Undeclared columns are dropped and logged at WARN once per batch.
// Reconcile never fails.
func Reconcile(ctx context.Context, logger *slog.Logger, cols ColumnSchema, batch Batch) Reconciled {
	if logger == nil {
		logger = slog.Default()
	}
	names := cols.Names()
	declared := make(map[string]struct{}, len(names))
	for _, n := range names {
		declared[n] = struct{}{}
	}

	missing := make(map[string]int)
	extra := make(map[string]struct{})
	rows := make([][]Value, len(batch))
	for i, in := range batch {
		out := make([]Value, len(names))
		for j, n := range names {
			v, ok := in[n]
			if !ok {
				missing[n]++
				v = Null()
			}
			out[j] = v
		}
		if len(in) > 0 {
			for k := range in {
				if _, ok := declared[k]; !ok {
					extra[k] = struct{}{}
				}
			}
		}
		rows[i] = out
	}

	for _, n := range names {
		if cnt := missing[n]; cnt > 0 {
			logger.InfoContext(ctx, "reconcile: filling missing column with null",
				slog.String("column", n), slog.Int("rows", cnt))
		}
	}
	if len(extra) > 0 {
		dropped := make([]string, 0, len(extra))
		for k := range extra {
			dropped = append(dropped, k)
		}
		sort.Strings(dropped)
		logger.WarnContext(ctx, "reconcile: dropping undeclared columns",
			slog.Any("columns", dropped), slog.Int("rows", len(batch)))
	}

	return Reconciled{Columns: names, Rows: rows}
}

// Batch converts the reconciled rows back into a Batch.
func (r Reconciled) Batch() Batch {
	out := make(Batch, len(r.Rows))
	for i, vals := range r.Rows {
		row := make(Row, len(r.Columns))
		for j, c := range r.Columns {
			row[c] = vals[j]
		}
		out[i] = row
	}
	return out
}

// Tuples returns driver-ready positional rows; empty markers become nil.
func (r Reconciled) Tuples() [][]any {
	out := make([][]any, len(r.Rows))
	for i, vals := range r.Rows {
		tuple := make([]any, len(vals))
		for j, v := range vals {
			tuple[j] = v.Any()
		}
		out[i] = tuple
	}
	return out
}

// Dedupe collapses rows that share a key value so that the last row in batch
// order wins. Rows with an empty marker in any key column never collide,
// matching how unique constraints treat NULL. With no key columns the rows
// are returned unchanged.
//
// types holds the declared column types in column order. Key values are
// compared the way the destination column stores them: an integral decimal
// equals the int in an integer column, and times on the same calendar day
// are equal in a DATE column. A nil types compares by value kind only.
func (r Reconciled) Dedupe(keyIdx []int, types []ColumnType) Reconciled {
	if len(keyIdx) == 0 || len(r.Rows) < 2 {
		return r
	}
	pos := make(map[string]int, len(r.Rows))
	out := make([][]Value, 0, len(r.Rows))
	for _, vals := range r.Rows {
		key, ok := keyIdentity(vals, keyIdx, types)
		if !ok {
			out = append(out, vals)
			continue
		}
		if i, seen := pos[key]; seen {
			out[i] = vals
			continue
		}
		pos[key] = len(out)
		out = append(out, vals)
	}
	return Reconciled{Columns: r.Columns, Rows: out}
}

func keyIdentity(vals []Value, keyIdx []int, types []ColumnType) (string, bool) {
	var b []byte
	for _, i := range keyIdx {
		v := vals[i]
		if v.IsNull() {
			return "", false
		}
		id := v.Identity()
		if i < len(types) {
			id = storedIdentity(v, types[i].Kind)
		}
		b = strconv.AppendInt(b, int64(len(id)), 10)
		b = append(b, ':')
		b = append(b, id...)
	}
	return string(b), true
}

// storedIdentity is Identity after coercing v to the value the column kind
// would store.
func storedIdentity(v Value, kind Kind) string {
	switch kind {
	case KindInteger, KindBigint, KindSmallint:
		if v.Kind() == ValueDecimal {
			f := v.Decimal()
			if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
				return Int(int64(f)).Identity()
			}
		}
	case KindNumeric:
		if v.Kind() == ValueInt {
			return Decimal(float64(v.Int())).Identity()
		}
	case KindDate:
		if v.Kind() == ValueTime {
			return "date:" + v.Time().Format(time.DateOnly)
		}
	}
	return v.Identity()
}
