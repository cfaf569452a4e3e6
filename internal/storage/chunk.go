package storage

// Chunk splits rows into consecutive groups that respect a dialect's bind
// parameter limit (maxParams) and its row limit per VALUES list (maxRows).
// A non-positive limit is treated as unbounded. Every group holds at least
// one row.
func Chunk(rows [][]any, width, maxParams, maxRows int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if maxParams > 0 && width > 0 {
		if n := maxParams / width; n < per {
			per = n
		}
	}
	if maxRows > 0 && maxRows < per {
		per = maxRows
	}
	if per < 1 {
		per = 1
	}

	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
