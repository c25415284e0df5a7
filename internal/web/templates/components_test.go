package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorAlert_EscapesText(t *testing.T) {
	var buf bytes.Buffer
	err := ErrorAlert(`Bad <input>`, "Try again", "VAL001").Render(context.Background(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Bad &lt;input&gt;")
	assert.Contains(t, out, "Code: VAL001")
	assert.NotContains(t, out, "<input>")
}

func TestErrorAlert_OmitsEmptyParts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("Failed", "", "").Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "<p>")
	assert.NotContains(t, buf.String(), "Code:")
}

func TestProductTable(t *testing.T) {
	data := TableData{
		SheetKey: "sheet#0",
		Total:    2,
		Creates:  1,
		Rows: []ProductRow{
			{Key: "a1", Name: "Mug", RegularPrice: "9.5", Status: "Published", State: "persisted"},
			{Key: "draft-1", Name: `Tom & Jerry "Set"`, State: "pending_create", HasIssues: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ProductTable(data).Render(context.Background(), &buf))
	out := buf.String()

	assert.Contains(t, out, `id="row-a1"`)
	assert.Contains(t, out, "Tom &amp; Jerry &#34;Set&#34;")
	assert.Contains(t, out, "2 products, 1 to create, 0 to update, 0 to delete")
	assert.Contains(t, out, `hx-delete="/api/products/draft-1"`)
	assert.Contains(t, out, `class="badge warn"`)
}

func TestProductTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ProductTable(TableData{SheetKey: "s#0"}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No products match.")
}

func TestDashboard(t *testing.T) {
	tests := []struct {
		name     string
		data     DashboardData
		contains []string
		excludes []string
	}{
		{
			name:     "not loaded",
			data:     DashboardData{DefaultURL: "https://docs.google.com/spreadsheets/d/abc/edit", Statuses: []string{"Draft"}},
			contains: []string{"No sheet loaded.", `value="https://docs.google.com/spreadsheets/d/abc/edit"`, "Text generation is not configured."},
			excludes: []string{"<table>", "bulk-status-form"},
		},
		{
			name: "loaded with filter",
			data: DashboardData{
				Loaded:     true,
				Generation: true,
				Statuses:   []string{"Draft", "Published"},
				Table: TableData{
					Status: "published",
					Rows:   []ProductRow{{Key: "r1", Name: "Lamp"}},
					Total:  1,
				},
			},
			contains: []string{"<table>", "Lamp", `<option value="Published" selected>`, `id="bulk-status-form"`, `hx-encoding="multipart/form-data"`},
			excludes: []string{"No sheet loaded.", "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Dashboard(tt.data).Render(context.Background(), &buf))
			out := buf.String()
			assert.True(t, strings.HasPrefix(out, "<!doctype html>"))
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestEditor(t *testing.T) {
	base := ProductForm{
		Name:       `Mug "XL"`,
		Status:     "Archived",
		Statuses:   []string{"Draft", "Published", "Archived"},
		Generation: true,
	}

	var buf bytes.Buffer
	require.NoError(t, Editor(base).Render(context.Background(), &buf))
	out := buf.String()
	assert.Contains(t, out, `hx-post="/api/products"`)
	assert.Contains(t, out, `value="Mug &#34;XL&#34;"`)
	assert.Contains(t, out, `<option value="Archived" selected>`)
	assert.NotContains(t, out, "Suggest description")

	edit := base
	edit.Key = "rec-7"
	buf.Reset()
	require.NoError(t, Editor(edit).Render(context.Background(), &buf))
	out = buf.String()
	assert.Contains(t, out, `hx-patch="/api/products/rec-7"`)
	assert.Contains(t, out, `hx-vals="{&#34;recordId&#34;:&#34;rec-7&#34;}"`)

	edit.Generation = false
	buf.Reset()
	require.NoError(t, Editor(edit).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "Suggest description")
}

func TestFlash(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Flash("Changed 1 of 2 products.", []string{"rec-2: <bad>"}).Render(context.Background(), &buf))
	out := buf.String()
	assert.Contains(t, out, `<div id="alerts" hx-swap-oob="true">`)
	assert.Contains(t, out, "<li>rec-2: &lt;bad&gt;</li>")
	assert.Contains(t, out, `<section id="editor" hx-swap-oob="true"></section>`)

	buf.Reset()
	require.NoError(t, Flash("Done.", nil).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "<ul>")
}

func TestSummaryPanel(t *testing.T) {
	var buf bytes.Buffer
	err := SummaryPanel(SummaryData{
		Headline:  "2 products",
		Statuses:  []Count{{Label: "Draft", Count: 2}},
		PriceBins: []Count{{Label: "0.00-10.00", Count: 2}, {Label: "10.00-20.00", Count: 0}},
		MaxBin:    2,
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<p>2 products</p>")
	assert.Contains(t, out, "<td>Draft</td><td>2</td></tr>")
	assert.Contains(t, out, `<meter min="0" max="2" value="0">`)
	assert.Contains(t, out, `<p class="muted">None.</p>`, "no categories")
}
