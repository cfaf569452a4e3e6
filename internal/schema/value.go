package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueKind enumerates the value variants a row cell may hold.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueInt
	ValueDecimal
	ValueBool
	ValueString
	ValueTime
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueInt:
		return "int"
	case ValueDecimal:
		return "decimal"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	case ValueTime:
		return "time"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is a single row cell. The zero Value is Null.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	b    bool
	s    string
	t    time.Time
}

func Null() Value                { return Value{} }
func Int(v int64) Value          { return Value{kind: ValueInt, i: v} }
func Decimal(v float64) Value    { return Value{kind: ValueDecimal, f: v} }
func Bool(v bool) Value          { return Value{kind: ValueBool, b: v} }
func String(v string) Value      { return Value{kind: ValueString, s: v} }
func Time(v time.Time) Value     { return Value{kind: ValueTime, t: v} }
func (v Value) Kind() ValueKind  { return v.kind }
func (v Value) Int() int64       { return v.i }
func (v Value) Decimal() float64 { return v.f }
func (v Value) Bool() bool       { return v.b }
func (v Value) Str() string      { return v.s }
func (v Value) Time() time.Time  { return v.t }

// IsNull reports whether the value is an empty marker: Null or a NaN decimal.
func (v Value) IsNull() bool {
	return v.kind == ValueNull || (v.kind == ValueDecimal && math.IsNaN(v.f))
}

// Any returns the driver-ready form of the value. Empty markers become nil.
func (v Value) Any() any {
	if v.IsNull() {
		return nil
	}
	switch v.kind {
	case ValueInt:
		return v.i
	case ValueDecimal:
		return v.f
	case ValueBool:
		return v.b
	case ValueString:
		return v.s
	case ValueTime:
		return v.t
	}
	return nil
}

// Equal compares two values by kind and content. Empty markers are equal to
// each other.
func (v Value) Equal(o Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueInt:
		return v.i == o.i
	case ValueDecimal:
		return v.f == o.f
	case ValueBool:
		return v.b == o.b
	case ValueString:
		return v.s == o.s
	case ValueTime:
		return v.t.Equal(o.t)
	}
	return false
}

func (v Value) String() string {
	switch {
	case v.IsNull():
		return "NULL"
	case v.kind == ValueInt:
		return strconv.FormatInt(v.i, 10)
	case v.kind == ValueDecimal:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case v.kind == ValueBool:
		return strconv.FormatBool(v.b)
	case v.kind == ValueTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return v.s
	}
}

// Identity returns a string that is equal for two values exactly when Equal
// reports true. Times compare by instant.
func (v Value) Identity() string {
	if v.IsNull() {
		return "n:"
	}
	switch v.kind {
	case ValueTime:
		return "t:" + strconv.FormatInt(v.t.UnixNano(), 10)
	case ValueDecimal:
		return "d:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return fmt.Sprintf("%d:%s", v.kind, v.String())
	}
}

// ValueOf converts a Go value into a Value. Nil pointers and nil become Null;
// json.Number becomes Int when it has no fractional part.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows int64", reasonError(ReasonUnsupportedVal), t)
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows int64", reasonError(ReasonUnsupportedVal), t)
		}
		return Int(int64(t)), nil
	case float32:
		return Decimal(float64(t)), nil
	case float64:
		return Decimal(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case time.Time:
		return Time(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: json number %q", reasonError(ReasonUnsupportedVal), t.String())
		}
		return Decimal(f), nil
	case *string:
		if t == nil {
			return Null(), nil
		}
		return String(*t), nil
	case *int64:
		if t == nil {
			return Null(), nil
		}
		return Int(*t), nil
	case *int:
		if t == nil {
			return Null(), nil
		}
		return Int(int64(*t)), nil
	case *float64:
		if t == nil {
			return Null(), nil
		}
		return Decimal(*t), nil
	case *bool:
		if t == nil {
			return Null(), nil
		}
		return Bool(*t), nil
	case *time.Time:
		if t == nil {
			return Null(), nil
		}
		return Time(*t), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", reasonError(ReasonUnsupportedVal), x)
	}
}

// Row maps column names to cell values.
type Row map[string]Value

// Batch is one load unit.
type Batch []Row

// RowOf converts a loosely typed map into a Row.
func RowOf(m map[string]any) (Row, error) {
	row := make(Row, len(m))
	for k, x := range m {
		v, err := ValueOf(x)
		if err != nil {
			return nil, &SchemaError{Column: k, Reason: ReasonUnsupportedVal, Type: fmt.Sprintf("%T", x)}
		}
		row[k] = v
	}
	return row, nil
}
