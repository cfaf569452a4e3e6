package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// fakeBackend records calls and keeps tables in memory. Tables are keyed by
// name; rows are appended as given so tests can inspect what the loader
// passed down.
type fakeBackend struct {
	mu        sync.Mutex
	tables    map[string][][]any
	creates   int
	acquired  int
	released  int
	upsertErr error
	ensureErr error
	acqErr    error
	inEnsure  int
	maxEnsure int
}

func newFakeBackend() *fakeBackend { return &fakeBackend{tables: map[string][][]any{}} }

func (f *fakeBackend) Kind() string        { return "fake" }
func (f *fakeBackend) Destination() string { return "fake://test" }
func (f *fakeBackend) Close()              {}

func (f *fakeBackend) Acquire(context.Context) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acqErr != nil {
		return nil, f.acqErr
	}
	f.acquired++
	return &fakeConn{f: f}, nil
}

type fakeConn struct{ f *fakeBackend }

func (c *fakeConn) Release() {
	c.f.mu.Lock()
	c.f.released++
	c.f.mu.Unlock()
}

func (c *fakeConn) EnsureTable(_ context.Context, ct *schema.Contract) (bool, error) {
	f := c.f
	f.mu.Lock()
	f.inEnsure++
	if f.inEnsure > f.maxEnsure {
		f.maxEnsure = f.inEnsure
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inEnsure--
		f.mu.Unlock()
	}()

	if f.ensureErr != nil {
		return false, f.ensureErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[ct.Name()]; ok {
		return false, nil
	}
	f.tables[ct.Name()] = nil
	f.creates++
	return true, nil
}

func (c *fakeConn) Upsert(_ context.Context, ct *schema.Contract, rows [][]any) error {
	f := c.f
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[ct.Name()] = append(f.tables[ct.Name()], rows...)
	return nil
}

func quietLoader(b Backend) *Loader {
	return NewLoader(b, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithLocks(NewKeyedLock()))
}

var itemsContract = schema.MustContract("items", schema.ColumnSchema{
	{Name: "id", Type: "INTEGER"},
	{Name: "name", Type: "TEXT"},
}, "id")

func TestLoad_DedupesBeforeUpsert(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	n, err := quietLoader(b).Load(context.Background(), itemsContract, schema.Batch{
		{"id": schema.Int(1), "name": schema.String("A")},
		{"id": schema.Int(2), "name": schema.String("X")},
		{"id": schema.Int(1), "name": schema.String("B")},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Fatalf("submitted = %d, want 3", n)
	}
	rows := b.tables["items"]
	if len(rows) != 2 {
		t.Fatalf("rows passed to backend = %d, want 2", len(rows))
	}
	if rows[0][0] != int64(1) || rows[0][1] != "B" {
		t.Fatalf("first row = %v, want [1 B]", rows[0])
	}
	if b.acquired != 1 || b.released != 1 {
		t.Fatalf("acquired/released = %d/%d, want 1/1", b.acquired, b.released)
	}
}

func TestLoad_DedupesByDeclaredType(t *testing.T) {
	t.Parallel()

	daily := schema.MustContract("daily", schema.ColumnSchema{
		{Name: "id", Type: "BIGINT"},
		{Name: "day", Type: "DATE"},
		{Name: "qty", Type: "INTEGER"},
	}, "id", "day")

	b := newFakeBackend()
	n, err := quietLoader(b).Load(context.Background(), daily, schema.Batch{
		{"id": schema.Int(7), "day": schema.Time(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), "qty": schema.Int(1)},
		{"id": schema.Decimal(7), "day": schema.Time(time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC)), "qty": schema.Int(2)},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("submitted = %d, want 2", n)
	}
	rows := b.tables["daily"]
	if len(rows) != 1 {
		t.Fatalf("rows passed to backend = %d, want 1", len(rows))
	}
	if rows[0][2] != int64(2) {
		t.Fatalf("qty = %v, want 2", rows[0][2])
	}
}

func TestLoad_InvalidContractTouchesNothing(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	_, err := quietLoader(b).Load(context.Background(), &schema.Contract{}, schema.Batch{{"id": schema.Int(1)}})
	if !schema.IsSchemaError(err) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if b.acquired != 0 {
		t.Fatalf("backend acquired %d connections for an invalid contract", b.acquired)
	}

	_, err = quietLoader(b).Load(context.Background(), nil, nil)
	if !schema.IsSchemaError(err) {
		t.Fatalf("nil contract err = %v, want SchemaError", err)
	}
}

func TestLoad_ErrorsWrappedAndConnReleased(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name   string
		setup  func(*fakeBackend)
		wantOp Op
	}{
		{name: "acquire", setup: func(f *fakeBackend) { f.acqErr = boom }, wantOp: OpAcquire},
		{name: "ensure", setup: func(f *fakeBackend) { f.ensureErr = boom }, wantOp: OpEnsureTable},
		{name: "upsert", setup: func(f *fakeBackend) { f.upsertErr = boom }, wantOp: OpUpsert},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := newFakeBackend()
			tt.setup(b)
			n, err := quietLoader(b).Load(context.Background(), itemsContract, schema.Batch{{"id": schema.Int(1)}})
			if n != 0 {
				t.Fatalf("n = %d on failure", n)
			}
			var se *StoreError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StoreError", err)
			}
			if se.Op != tt.wantOp || se.Table != "items" {
				t.Fatalf("StoreError = %+v, want op %s", se, tt.wantOp)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("driver error not in chain: %v", err)
			}
			if b.acquired != b.released {
				t.Fatalf("acquired %d, released %d", b.acquired, b.released)
			}
		})
	}
}

func TestLoad_SchemaErrorFromBackendNotRewrapped(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.ensureErr = &schema.SchemaError{Table: "items", Reason: schema.ReasonBadParams}
	_, err := quietLoader(b).Load(context.Background(), itemsContract, nil)
	if IsStoreError(err) || !schema.IsSchemaError(err) {
		t.Fatalf("err = %v, want bare SchemaError", err)
	}
}

func TestLoad_EmptyBatchEnsuresTable(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	n, err := quietLoader(b).Load(context.Background(), itemsContract, schema.Batch{})
	if err != nil || n != 0 {
		t.Fatalf("Load = (%d, %v), want (0, nil)", n, err)
	}
	if b.creates != 1 {
		t.Fatalf("creates = %d, want 1", b.creates)
	}
}

func TestEnsureTable_SerializedPerDestinationAndTable(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	ld := quietLoader(b)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ld.EnsureTable(context.Background(), itemsContract); err != nil {
				t.Errorf("EnsureTable: %v", err)
			}
		}()
	}
	wg.Wait()
	if b.creates != 1 {
		t.Fatalf("creates = %d, want 1", b.creates)
	}
	if b.maxEnsure != 1 {
		t.Fatalf("concurrent EnsureTable calls = %d, want 1", b.maxEnsure)
	}
}

func TestLoad_LogsCreationAndSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ld := NewLoader(newFakeBackend(), WithLogger(logger), WithLocks(NewKeyedLock()))
	if _, err := ld.Load(context.Background(), itemsContract, schema.Batch{{"id": schema.Int(1), "extra": schema.Int(2)}}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"loader: created table", "loader: batch upserted", "dropping undeclared columns"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}

func TestUpsertRows_UsesOwnConnection(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	ld := quietLoader(b)
	if err := ld.EnsureTable(context.Background(), itemsContract); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	n, err := ld.UpsertRows(context.Background(), itemsContract, schema.Batch{{"id": schema.Int(5)}})
	if err != nil || n != 1 {
		t.Fatalf("UpsertRows = (%d, %v)", n, err)
	}
	if b.acquired != 2 || b.released != 2 {
		t.Fatalf("acquired/released = %d/%d, want 2/2", b.acquired, b.released)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("expected error for unknown backend kind")
	}
}
