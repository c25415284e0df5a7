package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/config"
	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/sheets"
	"github.com/JonMunkholm/shopsheet/internal/textgen"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSheetURL = "https://docs.google.com/spreadsheets/d/test-sheet-1/edit"

var testRef = core.SheetRef{URL: testSheetURL, Worksheet: 0}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Sheets: config.SheetsConfig{Backend: "memory", DefaultURL: testSheetURL, Timeout: 5 * time.Second},
		TextGen: config.TextGenConfig{
			Provider: "openai",
			OpenAIKey: "sk-test",
		},
		Session: config.SessionConfig{
			CookieName:  "shopsheet_session",
			IdleTimeout: time.Hour,
			MaxSessions: 10,
		},
		Rate:     config.RateLimitConfig{Enabled: false, RequestsPerMinute: 100, GenerateLimit: 10},
		Security: config.SecurityConfig{EnableCSP: true, DevMode: true},
	}
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func seedRows() [][]string {
	records := []core.Record{
		{RecordID: "rec-1", Name: "Coffee Mug", Description: "Stoneware mug", RegularPrice: price("12"), URLSlug: "coffee-mug", Categories: []string{"Kitchen"}, Status: core.StatusPublished},
		{RecordID: "rec-2", Name: "Desk Lamp", RegularPrice: price("40"), SalePrice: price("35"), URLSlug: "desk-lamp", Categories: []string{"Office", "Lighting"}, Status: core.StatusPublished},
		{RecordID: "rec-3", Name: "Notebook", RegularPrice: price("5.5"), URLSlug: "notebook", Categories: []string{"Office"}, Status: core.StatusDraft},
	}
	rows := [][]string{core.Header()}
	for _, r := range records {
		rows = append(rows, r.Values())
	}
	return rows
}

// fakeGenerator returns canned copy.
type fakeGenerator struct {
	mu        sync.Mutex
	err       error
	failTypes map[string]bool
	improved  []string
}

func (g *fakeGenerator) GenerateDescription(_ context.Context, name string, hints []string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("A fine %s (%s)", name, strings.Join(hints, ", ")), nil
}

func (g *fakeGenerator) ImproveDescription(_ context.Context, rec core.Record) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.mu.Lock()
	g.improved = append(g.improved, rec.RecordID)
	g.mu.Unlock()
	return "Better: " + rec.Description, nil
}

func (g *fakeGenerator) GenerateProduct(_ context.Context, brief textgen.ProductBrief) (core.Record, error) {
	if g.err != nil {
		return core.Record{}, g.err
	}
	if g.failTypes[brief.ProductType] {
		return core.Record{}, errors.New("generated output is not valid JSON")
	}
	return core.Record{
		Name:         "Generated " + brief.ProductType,
		RegularPrice: price("19.99"),
		URLSlug:      core.Slugify("Generated " + brief.ProductType),
		Status:       core.StatusDraft,
	}, nil
}

func (g *fakeGenerator) GenerateBatch(ctx context.Context, types []string, brief textgen.ProductBrief) []textgen.BatchItem {
	items := make([]textgen.BatchItem, len(types))
	for i, t := range types {
		b := brief
		b.ProductType = t
		items[i].ProductType = t
		items[i].Record, items[i].Err = g.GenerateProduct(ctx, b)
	}
	return items
}

// fakeAuditReader records the filter it was asked for.
type fakeAuditReader struct {
	filter  core.AuditLogFilter
	entries []core.AuditEntry
}

func (f *fakeAuditReader) GetAuditLog(_ context.Context, filter core.AuditLogFilter) ([]core.AuditEntry, error) {
	f.filter = filter
	return f.entries, nil
}

type testEnv struct {
	srv    *Server
	ts     *httptest.Server
	client *http.Client
	mem    *sheets.Memory
	gen    *fakeGenerator
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config, *Deps)) *testEnv {
	t.Helper()

	mem := sheets.NewMemory()
	mem.Seed(testRef, seedRows())
	gen := &fakeGenerator{failTypes: map[string]bool{}}

	cfg := testConfig()
	deps := Deps{Sheets: mem, Writer: gen}
	for _, m := range mutate {
		m(cfg, &deps)
	}

	srv := NewServer(cfg, deps)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		srv:    srv,
		ts:     ts,
		client: &http.Client{Jar: jar},
		mem:    mem,
		gen:    gen,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) load(t *testing.T) catalogView {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/load", loadRequest{URL: testSheetURL})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[catalogView](t, resp)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'self'")
}

func TestProductsBeforeLoad(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/products", nil)

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SHEET006", decode[ErrorResponse](t, resp).Code)
}

func TestLoad(t *testing.T) {
	env := newTestEnv(t)
	cat := env.load(t)

	assert.Equal(t, testRef.Key(), cat.Sheet)
	assert.Equal(t, 3, cat.Total)
	require.Len(t, cat.Products, 3)
	assert.Equal(t, "rec-1", cat.Products[0].RecordID)
	assert.Equal(t, "12", cat.Products[0].RegularPrice)
	assert.Equal(t, core.StatePersisted, cat.Products[0].State)
	assert.Equal(t, []string{"Office", "Lighting"}, cat.Products[1].Categories)
}

func TestLoad_FormPost(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/load",
		strings.NewReader("url="+testSheetURL+"&worksheet=0"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Coffee Mug")
	assert.Contains(t, string(body), "<table>")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantCode  int
		wantErr   string
		wantField string
	}{
		{name: "missing url", body: loadRequest{}, wantCode: http.StatusUnprocessableEntity, wantErr: "VAL001", wantField: "url"},
		{name: "negative worksheet", body: loadRequest{URL: testSheetURL, Worksheet: -1}, wantCode: http.StatusUnprocessableEntity, wantErr: "VAL001", wantField: "worksheet"},
		{name: "bad reference", body: loadRequest{URL: "not a sheet!"}, wantCode: http.StatusBadRequest, wantErr: "SHEET007"},
		{name: "unknown field", body: map[string]any{"url": testSheetURL, "sheet": 2}, wantCode: http.StatusBadRequest, wantErr: "REQ003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resp := env.do(t, http.MethodPost, "/api/load", tt.body)

			require.Equal(t, tt.wantCode, resp.StatusCode)
			got := decode[ErrorResponse](t, resp)
			assert.Equal(t, tt.wantErr, got.Code)
			if tt.wantField != "" {
				assert.Contains(t, got.Fields, tt.wantField)
			}
		})
	}
}

func TestLoad_HeaderMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.mem.Seed(testRef, [][]string{{"Name", "Price"}, {"Mug", "3"}})

	resp := env.do(t, http.MethodPost, "/api/load", loadRequest{URL: testSheetURL})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "SHEET002", decode[ErrorResponse](t, resp).Code)
}

func TestListProducts_Filter(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"rec-1", "rec-2", "rec-3"}},
		{query: "?q=MUG", want: []string{"rec-1"}},
		{query: "?q=stoneware", want: []string{"rec-1"}},
		{query: "?category=office", want: []string{"rec-2", "rec-3"}},
		{query: "?status=draft", want: []string{"rec-3"}},
		{query: "?category=office&status=published", want: []string{"rec-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/products"+tt.query, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var ids []string
			for _, p := range decode[catalogView](t, resp).Products {
				ids = append(ids, p.RecordID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	other := &http.Client{}
	resp, err := other.Get(env.ts.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	resp := env.do(t, http.MethodGet, "/api/products/rec-2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[productView](t, resp)
	assert.Equal(t, "Desk Lamp", p.Name)
	assert.Equal(t, "35", p.SalePrice)

	resp = env.do(t, http.MethodGet, "/api/products/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "REC001", decode[ErrorResponse](t, resp).Code)
}

func TestCreateAndCommit(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	resp := env.do(t, http.MethodPost, "/api/products", productInput{
		Name:         "Crème Brûlée Set",
		RegularPrice: "$24.00",
		Categories:   []string{"Kitchen"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[productView](t, resp)
	assert.Empty(t, created.RecordID)
	assert.NotEmpty(t, created.DraftRef)
	assert.Equal(t, "creme-brulee-set", created.URLSlug)
	assert.Equal(t, "Draft", created.Status)
	assert.Equal(t, core.StatePendingCreate, created.State)

	resp = env.do(t, http.MethodPost, "/api/commit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cv := decode[commitView](t, resp)
	assert.Equal(t, 1, cv.Succeeded)
	assert.Equal(t, 0, cv.Failed)
	assert.True(t, cv.Reloaded)
	require.Len(t, cv.Outcomes, 1)
	assert.Equal(t, core.OpAppend, cv.Outcomes[0].Op)
	assert.NotEmpty(t, cv.Outcomes[0].RecordID)
	assert.Equal(t, 3, cv.Outcomes[0].RowIndex)

	require.NotNil(t, cv.Catalog)
	assert.Equal(t, 4, cv.Catalog.Total)
	assert.Equal(t, stagedView{}, cv.Catalog.Staged)

	rows := env.mem.Rows(testRef)
	require.Len(t, rows, 5)
	assert.Equal(t, "Crème Brûlée Set", rows[4][0])
}

func TestCreate_Invalid(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	tests := []struct {
		name   string
		in     productInput
		fields []string
	}{
		{name: "missing name", in: productInput{RegularPrice: "3"}, fields: []string{"name"}},
		{name: "bad price", in: productInput{Name: "X", RegularPrice: "abc"}, fields: []string{"regular_price"}},
		{name: "sale above regular", in: productInput{Name: "X", RegularPrice: "3", SalePrice: "4"}, fields: []string{"sale_price"}},
		{name: "comma category", in: productInput{Name: "X", Categories: []string{"a,b"}}, fields: []string{"categories"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/products", tt.in)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			got := decode[ErrorResponse](t, resp)
			for _, f := range tt.fields {
				assert.Contains(t, got.Fields, f)
			}
		})
	}

	resp := env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, stagedView{}, decode[catalogView](t, resp).Staged)
}

func TestUpdateProduct(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	name := "Large Coffee Mug"
	resp := env.do(t, http.MethodPatch, "/api/products/rec-1", productPatch{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[productView](t, resp)
	assert.Equal(t, "Large Coffee Mug", p.Name)
	assert.Equal(t, core.StatePersistedModified, p.State)

	// Sale price above the regular price is rejected and nothing changes.
	sale := "99"
	resp = env.do(t, http.MethodPatch, "/api/products/rec-1", productPatch{SalePrice: &sale})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decode[ErrorResponse](t, resp).Fields, "sale_price")

	resp = env.do(t, http.MethodGet, "/api/products/rec-1", nil)
	p = decode[productView](t, resp)
	assert.Equal(t, "", p.SalePrice)
	assert.Equal(t, "Large Coffee Mug", p.Name)

	resp = env.do(t, http.MethodPost, "/api/commit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Large Coffee Mug", env.mem.Rows(testRef)[1][0])
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	resp := env.do(t, http.MethodDelete, "/api/products/unknown", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/products/rec-2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cat := decode[catalogView](t, resp)
	assert.Equal(t, 2, cat.Total)
	assert.Equal(t, 1, cat.Staged.Deletes)

	resp = env.do(t, http.MethodPost, "/api/commit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rows := env.mem.Rows(testRef)
	require.Len(t, rows, 3)
	for _, row := range rows[1:] {
		assert.NotEqual(t, "Desk Lamp", row[0])
	}
}

// failingAppends wraps the memory client and fails every append.
type failingAppends struct {
	*sheets.Memory
}

func (f failingAppends) AppendRow(context.Context, core.SheetRef, []string) (core.AppendResult, error) {
	return core.AppendResult{}, fmt.Errorf("append: %w", core.ErrConnectivity)
}

func TestCommit_Partial(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Sheets = failingAppends{Memory: d.Sheets.(*sheets.Memory)}
	})
	env.load(t)

	name := "Renamed"
	resp := env.do(t, http.MethodPatch, "/api/products/rec-3", productPatch{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/products", productInput{Name: "Will Fail"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/commit", nil)
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	cv := decode[commitView](t, resp)
	assert.Equal(t, 1, cv.Succeeded)
	assert.Equal(t, 1, cv.Failed)

	var failed outcomeView
	for _, o := range cv.Outcomes {
		if !o.OK {
			failed = o
		}
	}
	assert.Equal(t, core.OpAppend, failed.Op)
	assert.Equal(t, "SHEET001", failed.Code)

	require.NotNil(t, cv.Catalog)
	assert.Equal(t, 1, cv.Catalog.Staged.Creates, "failed append stays staged")
	assert.Equal(t, "Renamed", env.mem.Rows(testRef)[3][0])
}

func TestSummaryAndExport(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	resp := env.do(t, http.MethodGet, "/api/summary?bins=4", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decode[core.Summary](t, resp)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.OnSale)
	assert.Len(t, sum.PriceBins, 4)

	resp = env.do(t, http.MethodGet, "/api/summary?bins=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/export.csv?category=office", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Name,"))
	assert.Contains(t, lines[1], "Desk Lamp")
}

func TestGenerateDescription(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/generate/description", descriptionRequest{Name: "Mug", Hints: []string{"ceramic"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "A fine Mug (ceramic)", decode[map[string]string](t, resp)["description"])

	// Improving a record needs a loaded sheet.
	resp = env.do(t, http.MethodPost, "/api/generate/description", descriptionRequest{RecordID: "rec-1"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	env.load(t)
	resp = env.do(t, http.MethodPost, "/api/generate/description", descriptionRequest{RecordID: "rec-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Better: Stoneware mug", decode[map[string]string](t, resp)["description"])
	assert.Equal(t, []string{"rec-1"}, env.gen.improved)

	// Advisory only: nothing was staged.
	resp = env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, stagedView{}, decode[catalogView](t, resp).Staged)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "quota", err: fmt.Errorf("openai: %w", core.ErrQuotaExceeded), wantCode: http.StatusTooManyRequests, wantErr: "GEN001"},
		{name: "timeout", err: fmt.Errorf("openai: %w", core.ErrTimeout), wantCode: http.StatusGatewayTimeout, wantErr: "GEN002"},
		{name: "busy", err: textgen.ErrTooManyRequests, wantCode: http.StatusServiceUnavailable, wantErr: "GEN003"},
		{name: "auth", err: fmt.Errorf("gemini: %w", core.ErrAuth), wantCode: http.StatusBadGateway, wantErr: "AUTH001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.gen.err = tt.err

			resp := env.do(t, http.MethodPost, "/api/generate/description", descriptionRequest{Name: "Mug"})
			require.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, resp).Code)
		})
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, d *Deps) {
		cfg.TextGen.Provider = "none"
		d.Writer = nil
	})

	resp := env.do(t, http.MethodPost, "/api/generate/product", productRequest{ProductType: "lamp"})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "GEN005", decode[ErrorResponse](t, resp).Code)
}

func TestGenerateProduct_Stage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/generate/product", productRequest{ProductType: "lamp"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	gv := decode[generatedView](t, resp)
	require.NotNil(t, gv.Product)
	assert.Equal(t, "Generated lamp", gv.Product.Name)
	assert.False(t, gv.Staged)

	env.load(t)
	resp = env.do(t, http.MethodPost, "/api/generate/product", productRequest{ProductType: "lamp", Stage: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gv = decode[generatedView](t, resp)
	assert.True(t, gv.Staged)
	assert.NotEmpty(t, gv.Product.DraftRef)

	resp = env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, 1, decode[catalogView](t, resp).Staged.Creates)
}

func TestGenerateBatch(t *testing.T) {
	env := newTestEnv(t)
	env.gen.failTypes["broken"] = true
	env.load(t)

	resp := env.do(t, http.MethodPost, "/api/generate/batch", batchRequest{
		ProductTypes: []string{"mug", " ", "broken", "lamp"},
		Stage:        true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Items []generatedView `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Items, 3)

	assert.True(t, body.Items[0].Staged)
	assert.Equal(t, "GEN004", body.Items[1].Code)
	assert.Nil(t, body.Items[1].Product)
	assert.True(t, body.Items[2].Staged)

	resp = env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, 2, decode[catalogView](t, resp).Staged.Creates)

	resp = env.do(t, http.MethodPost, "/api/generate/batch", batchRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAudit(t *testing.T) {
	t.Run("disabled without a database", func(t *testing.T) {
		env := newTestEnv(t)
		resp := env.do(t, http.MethodGet, "/api/audit", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		av := decode[auditView](t, resp)
		assert.False(t, av.Enabled)
		assert.Empty(t, av.Entries)
	})

	t.Run("scoped to the loaded sheet", func(t *testing.T) {
		reader := &fakeAuditReader{entries: []core.AuditEntry{{ID: "a1", Action: core.ActionCommit}}}
		env := newTestEnv(t, func(_ *config.Config, d *Deps) { d.AuditLog = reader })
		env.load(t)

		resp := env.do(t, http.MethodGet, "/api/audit?limit=5000&offset=10&from=2026-01-02&to=2026-01-03", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		av := decode[auditView](t, resp)
		assert.True(t, av.Enabled)
		require.Len(t, av.Entries, 1)

		assert.Equal(t, testRef.Key(), reader.filter.SheetKey)
		assert.Equal(t, maxAuditLimit, reader.filter.Limit)
		assert.Equal(t, 10, reader.filter.Offset)
		assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), reader.filter.StartTime)
		assert.Equal(t, time.Date(2026, 1, 3, 23, 59, 59, 0, time.UTC), reader.filter.EndTime)
	})

	t.Run("bad date", func(t *testing.T) {
		env := newTestEnv(t, func(_ *config.Config, d *Deps) { d.AuditLog = &fakeAuditReader{} })
		resp := env.do(t, http.MethodGet, "/api/audit?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHTMXErrorPartial(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/products", nil, "HX-Request", "true")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "#alerts", resp.Header.Get("HX-Retarget"))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "No sheet has been loaded yet")
	assert.Contains(t, string(body), "SHEET006")
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "No sheet loaded.")
	assert.Contains(t, string(body), testSheetURL)

	env.load(t)
	resp = env.do(t, http.MethodGet, "/?q=lamp", nil)
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Desk Lamp")
	assert.NotContains(t, string(body), "Coffee Mug")
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.Security.RequireAPIKey = true
		cfg.Security.APIKeys = []string{"secret"}
	})

	resp := env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/load", loadRequest{URL: testSheetURL}, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The dashboard is not behind the key.
	resp = env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, GenerateLimit: 1}
	})

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, resp).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{&core.ValidationError{Violations: core.Violations{"name": "is required"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", core.ErrNotFound), http.StatusNotFound},
		{core.ErrNotLoaded, http.StatusConflict},
		{fmt.Errorf("%w: row 2", core.ErrStaleRow), http.StatusConflict},
		{&core.LoadError{Reason: "fetch rows", Err: core.ErrConnectivity}, http.StatusBadGateway},
		{&core.LoadError{Reason: "verify header", Err: &core.HeaderMismatchError{Missing: []string{"Status"}}}, http.StatusUnprocessableEntity},
		{&core.LoadError{Reason: "worksheet has no header row"}, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
