package storage

import "testing"

func rowsOf(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{i, "x"}
	}
	return out
}

func TestChunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rows      int
		width     int
		maxParams int
		maxRows   int
		wantSizes []int
	}{
		{name: "empty", rows: 0, width: 2, maxParams: 10, wantSizes: nil},
		{name: "fits", rows: 3, width: 2, maxParams: 10, wantSizes: []int{3}},
		{name: "param bound", rows: 7, width: 2, maxParams: 6, wantSizes: []int{3, 3, 1}},
		{name: "row bound", rows: 5, width: 2, maxParams: 100, maxRows: 2, wantSizes: []int{2, 2, 1}},
		{name: "row bound tighter than params", rows: 1200, width: 2, maxParams: 32766, maxRows: 500, wantSizes: []int{500, 500, 200}},
		{name: "unbounded", rows: 4, width: 2, wantSizes: []int{4}},
		{name: "width above limit still one row", rows: 2, width: 5, maxParams: 3, wantSizes: []int{1, 1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows := rowsOf(tt.rows)
			got := Chunk(rows, tt.width, tt.maxParams, tt.maxRows)
			if len(got) != len(tt.wantSizes) {
				t.Fatalf("chunks = %d, want %d", len(got), len(tt.wantSizes))
			}
			next := 0
			for i, c := range got {
				if len(c) != tt.wantSizes[i] {
					t.Fatalf("chunk %d size = %d, want %d", i, len(c), tt.wantSizes[i])
				}
				for _, r := range c {
					if r[0].(int) != next {
						t.Fatalf("row order broken: got %v, want %d", r[0], next)
					}
					next++
				}
			}
		})
	}
}
