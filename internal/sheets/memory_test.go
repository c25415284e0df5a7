package sheets

import (
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var memRef = core.SheetRef{URL: "https://docs.google.com/spreadsheets/d/mem1/edit", Worksheet: 0}

func TestMemory_NewWorksheetHasHeader(t *testing.T) {
	m := NewMemory()
	rows, err := m.FetchRows(context.Background(), memRef)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, core.Header(), rows[0])
}

func TestMemory_InvalidRef(t *testing.T) {
	m := NewMemory()
	_, err := m.FetchRows(context.Background(), core.SheetRef{URL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = m.FetchRows(context.Background(), core.SheetRef{URL: "abc", Worksheet: -1})
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestMemory_RowOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Seed(memRef, [][]string{{"Name", "record_id"}, {"A", "1"}, {"B", "2"}})

	ar, err := m.AppendRow(ctx, memRef, []string{"C", "3"})
	require.NoError(t, err)
	assert.Equal(t, 2, ar.RowIndex)

	require.NoError(t, m.UpdateRow(ctx, memRef, 0, []string{"A2", "1"}))
	require.NoError(t, m.DeleteRow(ctx, memRef, 1))

	assert.Equal(t, [][]string{{"Name", "record_id"}, {"A2", "1"}, {"C", "3"}}, m.Rows(memRef))

	assert.Error(t, m.UpdateRow(ctx, memRef, 5, nil))
	assert.Error(t, m.DeleteRow(ctx, memRef, -1))
}

func TestMemory_FetchReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Seed(memRef, [][]string{{"Name"}, {"A"}})

	rows, err := m.FetchRows(ctx, memRef)
	require.NoError(t, err)
	rows[1][0] = "changed"

	assert.Equal(t, "A", m.Rows(memRef)[1][0])
}

func TestMemory_SeedCSV(t *testing.T) {
	m := NewMemory()
	csvData := "Name,Categories,record_id\nDesk,\"Office, Furniture\",r1\nLamp\n"
	require.NoError(t, m.SeedCSV(memRef, strings.NewReader(csvData)))

	rows := m.Rows(memRef)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Desk", "Office, Furniture", "r1"}, rows[1])
	assert.Equal(t, []string{"Lamp"}, rows[2])
}

func TestMemory_WorksWithRecordStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	store := core.NewRecordStore(m, memRef)

	_, err := store.Load(ctx)
	require.NoError(t, err)

	_, err = store.Create(core.Record{Name: "Oak Desk", Status: core.StatusDraft})
	require.NoError(t, err)

	res, err := store.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].OK())

	rows := m.Rows(memRef)
	require.Len(t, rows, 2)
	layout := core.CanonicalLayout()
	assert.Equal(t, "Oak Desk", layout.Cell(rows[1], core.ColName))
	assert.Equal(t, "oak-desk", layout.Cell(rows[1], core.ColURLSlug))
	assert.NotEmpty(t, layout.Cell(rows[1], core.ColRecordID))
}
