package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/JonMunkholm/shopsheet/internal/core"
)

// Memory is an in-process core.SheetClient. Worksheets are created on first
// use with the catalog header; Seed and SeedCSV replace their contents.
// Used for local runs without Google credentials and in tests.
type Memory struct {
	mu     sync.Mutex
	sheets map[core.SheetRef][][]string
}

func NewMemory() *Memory {
	return &Memory{sheets: make(map[core.SheetRef][][]string)}
}

// Seed replaces the worksheet's rows, header first.
func (m *Memory) Seed(ref core.SheetRef, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[ref] = cloneRows(rows)
}

// SeedCSV replaces the worksheet's rows with the contents of a CSV file.
func (m *Memory) SeedCSV(ref core.SheetRef, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("read seed csv: %w", err)
	}
	m.Seed(ref, rows)
	return nil
}

// Rows returns a copy of the worksheet, header first.
func (m *Memory) Rows(ref core.SheetRef) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRows(m.sheets[ref])
}

func (m *Memory) FetchRows(_ context.Context, ref core.SheetRef) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.worksheet(ref)
	if err != nil {
		return nil, err
	}
	return cloneRows(rows), nil
}

func (m *Memory) AppendRow(_ context.Context, ref core.SheetRef, values []string) (core.AppendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.worksheet(ref)
	if err != nil {
		return core.AppendResult{}, err
	}
	rows = append(rows, slices.Clone(values))
	m.sheets[ref] = rows
	return core.AppendResult{RowIndex: len(rows) - 2}, nil
}

func (m *Memory) UpdateRow(_ context.Context, ref core.SheetRef, index int, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.worksheet(ref)
	if err != nil {
		return err
	}
	if index < 0 || index+1 >= len(rows) {
		return fmt.Errorf("update row %d: out of range", index)
	}
	rows[index+1] = slices.Clone(values)
	return nil
}

func (m *Memory) DeleteRow(_ context.Context, ref core.SheetRef, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.worksheet(ref)
	if err != nil {
		return err
	}
	if index < 0 || index+1 >= len(rows) {
		return fmt.Errorf("delete row %d: out of range", index)
	}
	m.sheets[ref] = slices.Delete(rows, index+1, index+2)
	return nil
}

// worksheet must be called with m.mu held.
func (m *Memory) worksheet(ref core.SheetRef) ([][]string, error) {
	if rows, ok := m.sheets[ref]; ok {
		return rows, nil
	}
	if _, err := SpreadsheetID(ref.URL); err != nil {
		return nil, err
	}
	if ref.Worksheet < 0 {
		return nil, fmt.Errorf("%w: negative worksheet index %d", ErrInvalidRef, ref.Worksheet)
	}
	rows := [][]string{core.Header()}
	m.sheets[ref] = rows
	return rows, nil
}

func cloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}
