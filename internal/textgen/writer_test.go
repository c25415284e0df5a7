package textgen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeCompleter answers from a function and records every request.
type fakeCompleter struct {
	mu       sync.Mutex
	requests []Request
	answer   func(Request) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.answer(req)
}

func constant(text string) *fakeCompleter {
	return &fakeCompleter{answer: func(Request) (string, error) { return text, nil }}
}

// ---- Descriptions ----

func TestWriter_GenerateDescription(t *testing.T) {
	fc := constant("A sturdy desk.")
	w := NewWriter(fc)

	got, err := w.GenerateDescription(context.Background(), " Oak Desk ", []string{"solid oak", " ", "120 cm wide"})
	require.NoError(t, err)
	assert.Equal(t, "A sturdy desk.", got)

	require.Len(t, fc.requests, 1)
	req := fc.requests[0]
	assert.Equal(t, copywriterSystem, req.System)
	assert.Contains(t, req.Prompt, `"Oak Desk"`)
	assert.Contains(t, req.Prompt, "- solid oak\n- 120 cm wide\n")
	assert.Equal(t, descriptionTokens, req.MaxTokens)
}

func TestWriter_GenerateDescriptionRequiresName(t *testing.T) {
	w := NewWriter(constant("unused"))
	_, err := w.GenerateDescription(context.Background(), "  ", nil)
	require.ErrorIs(t, err, core.ErrValidation)

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name"}, ve.Violations.Fields())
}

func TestWriter_ImproveDescription(t *testing.T) {
	fc := constant("Better copy.")
	w := NewWriter(fc)

	got, err := w.ImproveDescription(context.Background(), core.Record{Name: "Lamp", Description: "It is a lamp."})
	require.NoError(t, err)
	assert.Equal(t, "Better copy.", got)
	assert.Contains(t, fc.requests[0].Prompt, "It is a lamp.")
}

func TestWriter_ImproveEmptyDescriptionGeneratesOne(t *testing.T) {
	fc := constant("Fresh copy.")
	w := NewWriter(fc)

	_, err := w.ImproveDescription(context.Background(), core.Record{Name: "Lamp", Categories: []string{"Lighting"}})
	require.NoError(t, err)
	assert.Contains(t, fc.requests[0].Prompt, "Write a compelling")
	assert.Contains(t, fc.requests[0].Prompt, "- Lighting")
}

func TestWriter_BackendErrorPassesThrough(t *testing.T) {
	quota := errors.New("openai: quota")
	w := NewWriter(&fakeCompleter{answer: func(Request) (string, error) {
		return "", errors.Join(core.ErrQuotaExceeded, quota)
	}})
	_, err := w.GenerateDescription(context.Background(), "Desk", nil)
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)
}

// ---- Products ----

const generatedDesk = "```json\n" + `{
  "Name": "Nordic Oak Desk",
  "Description": "Solid oak.",
  "Short description": "A desk.",
  "Regular price": 249.5,
  "URL Slug": "Nordic Oak Desk!",
  "Categories": "Office, Furniture",
  "Status": "Published"
}` + "\n```"

func TestWriter_GenerateProduct(t *testing.T) {
	fc := constant(generatedDesk)
	w := NewWriter(fc)

	rec, err := w.GenerateProduct(context.Background(), ProductBrief{ProductType: "desk", Audience: "home office"})
	require.NoError(t, err)

	assert.Equal(t, "Nordic Oak Desk", rec.Name)
	assert.Equal(t, "Solid oak.", rec.Description)
	assert.Equal(t, "A desk.", rec.ShortDescription)
	assert.Equal(t, "249.5", rec.RegularPrice.Decimal.String())
	assert.False(t, rec.SalePrice.Valid)
	assert.Equal(t, "nordic-oak-desk", rec.URLSlug)
	assert.Equal(t, []string{"Office", "Furniture"}, rec.Categories)
	assert.Equal(t, core.StatusDraft, rec.Status)
	assert.Empty(t, rec.RecordID)

	prompt := fc.requests[0].Prompt
	assert.Contains(t, prompt, "Product type: desk")
	assert.Contains(t, prompt, "Target audience: home office")
	assert.Contains(t, prompt, "Price range: None specified")
	assert.Contains(t, prompt, `"Short description"`)
}

func TestWriter_GenerateProductRequiresType(t *testing.T) {
	_, err := NewWriter(constant("{}")).GenerateProduct(context.Background(), ProductBrief{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestParseGeneratedProduct(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		check   func(t *testing.T, r core.Record)
		wantErr string
	}{
		{
			name: "snake case keys and list categories",
			in:   `{"name":"Lamp","regular_price":"$19.99","categories":["Lighting","","Home"]}`,
			check: func(t *testing.T, r core.Record) {
				assert.Equal(t, "Lamp", r.Name)
				assert.Equal(t, "19.99", core.FormatPrice(r.RegularPrice))
				assert.Equal(t, []string{"Lighting", "Home"}, r.Categories)
				assert.Equal(t, "lamp", r.URLSlug)
			},
		},
		{
			name: "missing prices stay empty",
			in:   `{"Name":"Rug","Sale price":""}`,
			check: func(t *testing.T, r core.Record) {
				assert.False(t, r.RegularPrice.Valid)
				assert.False(t, r.SalePrice.Valid)
			},
		},
		{name: "not json", in: "Here is your product!", wantErr: "generated output is not valid JSON"},
		{name: "missing name", in: `{"Description":"x"}`, wantErr: "generated output has no product name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseGeneratedProduct(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, "GEN004", core.MapError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, core.StatusDraft, r.Status)
			tt.check(t, r)
		})
	}
}

func TestParseGeneratedProduct_PriceRangeIsRejected(t *testing.T) {
	_, err := ParseGeneratedProduct(`{"Name":"Rug","Regular price":"$20–$30","Sale price":"18"}`)

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Violations, "regular_price")
	assert.NotContains(t, ve.Violations, "sale_price")
	assert.Equal(t, "VAL001", core.MapError(err).Code)
}

func TestWriter_GenerateBatch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fc := &fakeCompleter{answer: func(req Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "Product type: lamp"):
			return `{"Name":"Glow Lamp"}`, nil
		case strings.Contains(req.Prompt, "Product type: rug"):
			return "", core.ErrTimeout
		default:
			return `{"Name":"Oak Desk"}`, nil
		}
	}}
	w := NewWriter(fc, WithLimiter(NewLimiter(2, time.Second)))

	items := w.GenerateBatch(context.Background(), []string{"desk", "lamp", "rug"}, ProductBrief{Audience: "students"})
	require.Len(t, items, 3)

	assert.Equal(t, "desk", items[0].ProductType)
	assert.Equal(t, "Oak Desk", items[0].Record.Name)
	assert.Equal(t, "Glow Lamp", items[1].Record.Name)
	assert.ErrorIs(t, items[2].Err, core.ErrTimeout)

	assert.Len(t, fc.requests, 3)
	for _, r := range fc.requests {
		assert.Contains(t, r.Prompt, "Target audience: students")
	}
}

func TestWriter_LimiterRejectsWhenBusy(t *testing.T) {
	l := NewLimiter(1, 20*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	w := NewWriter(constant("x"), WithLimiter(l))
	_, err := w.GenerateDescription(context.Background(), "Desk", nil)
	require.ErrorIs(t, err, ErrTooManyRequests)
	assert.Equal(t, "GEN003", core.MapError(err).Code)
}

func TestDisabled(t *testing.T) {
	_, err := NewWriter(Disabled{}).GenerateDescription(context.Background(), "Desk", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
