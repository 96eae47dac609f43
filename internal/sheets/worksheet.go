// Package sheets implements the spreadsheet-backed store: a row-oriented
// transactions table plus the DaySettings and DayStatus auxiliary tables,
// fronted by a read-through cache. The remote spreadsheet is reached through
// the narrow Client/Worksheet interfaces; an in-memory implementation backs
// offline mode and tests.
package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Worksheet is a row/cell view of a single table. Row and column indexes are
// 1-based, matching the remote API; row 1 is the header.
type Worksheet interface {
	// Rows returns every row, header included. All cells are text.
	Rows(ctx context.Context) ([][]string, error)
	// Col returns a single column, header included.
	Col(ctx context.Context, index int) ([]string, error)
	// Append adds a row after the last non-empty row.
	Append(ctx context.Context, row []string) error
	// UpdateRow overwrites the row at the given 1-based index.
	UpdateRow(ctx context.Context, index int, row []string) error
}

// Client resolves worksheets by title, creating them with the given header
// row when absent.
type Client interface {
	Worksheet(ctx context.Context, title string, headers []string) (Worksheet, error)
}

// MemoryClient is an in-process Client used for offline mode and tests.
type MemoryClient struct {
	mu         sync.Mutex
	worksheets map[string]*memoryWorksheet
}

// NewMemoryClient returns an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{worksheets: make(map[string]*memoryWorksheet)}
}

// Worksheet returns the named in-memory table, creating it with the header
// row if it does not exist yet.
func (c *MemoryClient) Worksheet(_ context.Context, title string, headers []string) (Worksheet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws, ok := c.worksheets[title]
	if !ok {
		ws = &memoryWorksheet{}
		if len(headers) > 0 {
			ws.rows = append(ws.rows, append([]string(nil), headers...))
		}
		c.worksheets[title] = ws
	}
	return ws, nil
}

type memoryWorksheet struct {
	mu   sync.Mutex
	rows [][]string
}

func (w *memoryWorksheet) Rows(context.Context) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]string, len(w.rows))
	for i, r := range w.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (w *memoryWorksheet) Col(_ context.Context, index int) ([]string, error) {
	if index < 1 {
		return nil, fmt.Errorf("sheets: column index %d out of range", index)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.rows))
	for _, r := range w.rows {
		if index <= len(r) {
			out = append(out, r[index-1])
		} else {
			out = append(out, "")
		}
	}
	return out, nil
}

func (w *memoryWorksheet) Append(_ context.Context, row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, append([]string(nil), row...))
	return nil
}

func (w *memoryWorksheet) UpdateRow(_ context.Context, index int, row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 1 || index > len(w.rows) {
		return fmt.Errorf("sheets: row index %d out of range", index)
	}
	w.rows[index-1] = append([]string(nil), row...)
	return nil
}
