package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestReconcile_AlignsToDeclaredOrder(t *testing.T) {
	t.Parallel()

	cols := ColumnSchema{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}, {Name: "qty", Type: "INTEGER"}}
	batch := Batch{
		{"qty": Int(3), "id": Int(1), "name": String("a")},
		{"name": String("b"), "extra": String("noise")},
		{},
	}

	var buf bytes.Buffer
	got := Reconcile(context.Background(), newTestLogger(&buf), cols, batch)

	if !reflect.DeepEqual(got.Columns, []string{"id", "name", "qty"}) {
		t.Fatalf("Columns = %v", got.Columns)
	}
	if len(got.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(got.Rows))
	}
	for i, r := range got.Rows {
		if len(r) != 3 {
			t.Fatalf("row %d has %d values, want 3", i, len(r))
		}
	}
	if got.Rows[0][0].Int() != 1 || got.Rows[0][2].Int() != 3 {
		t.Fatalf("row 0 = %v", got.Rows[0])
	}
	if !got.Rows[1][0].IsNull() || got.Rows[1][1].Str() != "b" {
		t.Fatalf("row 1 = %v", got.Rows[1])
	}

	logs := buf.String()
	if !strings.Contains(logs, "level=INFO") || !strings.Contains(logs, "column=id") {
		t.Fatalf("expected INFO for missing column id, logs:\n%s", logs)
	}
	if !strings.Contains(logs, "level=WARN") || !strings.Contains(logs, "extra") {
		t.Fatalf("expected WARN for dropped column, logs:\n%s", logs)
	}
	if strings.Count(logs, "dropping undeclared columns") != 1 {
		t.Fatalf("expected a single drop warning per batch, logs:\n%s", logs)
	}
}

// TestReconcile_Idempotent verifies reconciling an already reconciled batch
// yields the same rows.
func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	cols := ColumnSchema{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}}
	batch := Batch{
		{"id": Int(7)},
		{"id": Int(8), "name": String("x"), "junk": Bool(true)},
	}

	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	once := Reconcile(context.Background(), logger, cols, batch)
	buf.Reset()
	twice := Reconcile(context.Background(), logger, cols, once.Batch())

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second reconcile changed rows:\n%v\n%v", once, twice)
	}
	if strings.Contains(buf.String(), "dropping") {
		t.Fatalf("second reconcile should not drop anything, logs:\n%s", buf.String())
	}
}

func TestReconcile_MissingColumnBecomesNull(t *testing.T) {
	t.Parallel()

	cols := ColumnSchema{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}}
	got := Reconcile(context.Background(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), cols, Batch{{"id": Int(5)}})

	tuples := got.Tuples()
	if !reflect.DeepEqual(tuples, [][]any{{int64(5), nil}}) {
		t.Fatalf("Tuples = %#v", tuples)
	}
}

func TestTuples_NormalizesEmptyMarkers(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := Reconciled{
		Columns: []string{"a", "b", "c", "d", "e"},
		Rows:    [][]Value{{Decimal(math.NaN()), Null(), String(""), Time(ts), Bool(false)}},
	}
	got := r.Tuples()[0]
	want := []any{nil, nil, "", ts, false}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tuples = %#v, want %#v", got, want)
	}
}

func TestDedupe_LastWriterWins(t *testing.T) {
	t.Parallel()

	r := Reconciled{
		Columns: []string{"id", "name"},
		Rows: [][]Value{
			{Int(1), String("A")},
			{Int(2), String("X")},
			{Int(1), String("B")},
			{Null(), String("n1")},
			{Null(), String("n2")},
		},
	}
	got := r.Dedupe([]int{0}, nil)

	if len(got.Rows) != 4 {
		t.Fatalf("len(Rows) = %d, want 4", len(got.Rows))
	}
	if got.Rows[0][1].Str() != "B" {
		t.Fatalf("id=1 kept %q, want B", got.Rows[0][1].Str())
	}
	if got.Rows[2][1].Str() != "n1" || got.Rows[3][1].Str() != "n2" {
		t.Fatalf("rows with null keys must not collapse: %v", got.Rows)
	}

	if same := r.Dedupe(nil, nil); len(same.Rows) != len(r.Rows) {
		t.Fatalf("Dedupe(nil) changed row count")
	}
}

func TestDedupe_CompositeAndTimeKeys(t *testing.T) {
	t.Parallel()

	utc := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msk := utc.In(time.FixedZone("MSK", 3*3600))
	r := Reconciled{
		Columns: []string{"k1", "k2", "v"},
		Rows: [][]Value{
			{String("a"), Time(utc), Int(1)},
			{String("a"), Time(msk), Int(2)},
			{String("a:"), Time(utc), Int(3)},
		},
	}
	got := r.Dedupe([]int{0, 1}, nil)
	if len(got.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(got.Rows))
	}
	if got.Rows[0][2].Int() != 2 {
		t.Fatalf("same instant in different zones should collide; got %v", got.Rows[0])
	}
}

func TestDedupe_ComparesKeysAsStored(t *testing.T) {
	t.Parallel()

	c := MustContract("readings", ColumnSchema{
		{Name: "id", Type: "INTEGER"},
		{Name: "d", Type: "DATE"},
		{Name: "v", Type: "TEXT"},
	}, "id", "d")

	one, err := ValueOf(json.Number("1"))
	if err != nil {
		t.Fatalf("ValueOf: %v", err)
	}
	oneDec, err := ValueOf(json.Number("1.0"))
	if err != nil {
		t.Fatalf("ValueOf: %v", err)
	}
	if oneDec.Kind() != ValueDecimal {
		t.Fatalf("json 1.0 kind = %v, want decimal", oneDec.Kind())
	}

	r := Reconciled{
		Columns: c.ColumnNames(),
		Rows: [][]Value{
			{one, Time(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), String("first")},
			{oneDec, Time(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)), String("second")},
			{Decimal(1.5), Time(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), String("fraction")},
			{Int(1), Time(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)), String("next day")},
		},
	}

	got := r.Dedupe(c.KeyIndexes(), c.Types())
	if len(got.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3: %v", len(got.Rows), got.Rows)
	}
	if got.Rows[0][2].Str() != "second" {
		t.Fatalf("key (1, 2024-01-02) kept %q, want second", got.Rows[0][2].Str())
	}

	if byKind := r.Dedupe(c.KeyIndexes(), nil); len(byKind.Rows) != 4 {
		t.Fatalf("without types len(Rows) = %d, want 4", len(byKind.Rows))
	}
}

func TestDedupe_NumericKeyMatchesInt(t *testing.T) {
	t.Parallel()

	types := []ColumnType{{Kind: KindNumeric, Params: []int{12, 2}}, {Kind: KindText}}
	r := Reconciled{
		Columns: []string{"price", "v"},
		Rows: [][]Value{
			{Int(5), String("a")},
			{Decimal(5), String("b")},
		},
	}
	got := r.Dedupe([]int{0}, types)
	if len(got.Rows) != 1 || got.Rows[0][1].Str() != "b" {
		t.Fatalf("rows = %v, want single row b", got.Rows)
	}
}

func TestValueOf(t *testing.T) {
	t.Parallel()

	s := "x"
	var nilStr *string
	ts := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in   any
		want Value
	}{
		{nil, Null()},
		{42, Int(42)},
		{int32(-1), Int(-1)},
		{uint16(9), Int(9)},
		{1.5, Decimal(1.5)},
		{true, Bool(true)},
		{"s", String("s")},
		{&s, String("x")},
		{nilStr, Null()},
		{ts, Time(ts)},
		{json.Number("12"), Int(12)},
		{json.Number("12.25"), Decimal(12.25)},
		{Int(3), Int(3)},
	}
	for _, tt := range tests {
		got, err := ValueOf(tt.in)
		if err != nil {
			t.Fatalf("ValueOf(%#v): %v", tt.in, err)
		}
		if !got.Equal(tt.want) || got.Kind() != tt.want.Kind() {
			t.Fatalf("ValueOf(%#v) = %v (%s), want %v (%s)", tt.in, got, got.Kind(), tt.want, tt.want.Kind())
		}
	}

	if _, err := ValueOf(struct{}{}); err == nil {
		t.Fatalf("ValueOf(struct{}) should fail")
	}
	if _, err := RowOf(map[string]any{"bad": []int{1}}); !IsSchemaError(err) {
		t.Fatalf("RowOf with slice value = %v, want SchemaError", err)
	}
}
