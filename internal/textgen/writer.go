package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/shopsheet/internal/core"
)

const (
	copywriterSystem = "You are a copywriting expert who writes and improves e-commerce product descriptions. " +
		"Return only the description text, without headings or quotes."
	productSystem = "You are a product creation assistant that generates detailed e-commerce product listings. " +
		"Respond only with valid JSON."

	descriptionTokens = 500
	productTokens     = 1000
	temperature       = 0.7
)

// ProductBrief describes a product to generate.
type ProductBrief struct {
	ProductType string `json:"product_type"`
	Audience    string `json:"audience"`
	PriceRange  string `json:"price_range"`
	Features    string `json:"features"`
}

// BatchItem is one product of a GenerateBatch call.
type BatchItem struct {
	ProductType string
	Record      core.Record
	Err         error
}

type WriterOption func(*Writer)

// WithLimiter bounds concurrent calls to the backend.
func WithLimiter(l *Limiter) WriterOption {
	return func(w *Writer) { w.limiter = l }
}

// Writer produces product copy. It satisfies the description generator
// used by the web and CLI layers.
type Writer struct {
	completer Completer
	limiter   *Limiter
}

func NewWriter(c Completer, opts ...WriterOption) *Writer {
	w := &Writer{completer: c}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) complete(ctx context.Context, req Request) (string, error) {
	if w.limiter != nil {
		if err := w.limiter.Acquire(ctx); err != nil {
			return "", err
		}
		defer w.limiter.Release()
	}
	return w.completer.Complete(ctx, req)
}

// GenerateDescription writes a description for a product name. Hints are
// short facts the copy should mention.
func (w *Writer) GenerateDescription(ctx context.Context, productName string, hints []string) (string, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return "", &core.ValidationError{Violations: core.Violations{"name": "is required"}}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a compelling, SEO-friendly product description of two short paragraphs for %q.\n", productName)
	if hints := nonBlank(hints); len(hints) > 0 {
		b.WriteString("Mention these points:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	return w.complete(ctx, Request{
		System:      copywriterSystem,
		Prompt:      b.String(),
		MaxTokens:   descriptionTokens,
		Temperature: temperature,
	})
}

// ImproveDescription rewrites a record's current description. The result is
// only a suggestion; apply it with RecordStore.Update.
func (w *Writer) ImproveDescription(ctx context.Context, rec core.Record) (string, error) {
	if strings.TrimSpace(rec.Description) == "" {
		return w.GenerateDescription(ctx, rec.Name, rec.Categories)
	}

	prompt := fmt.Sprintf(`Improve the following product description for %q.

Current description:
%s

Write an enhanced, more compelling description that highlights key benefits and features,
uses persuasive language, keeps the same information, is SEO-friendly and is about the same length.`,
		rec.Name, rec.Description)

	return w.complete(ctx, Request{
		System:      copywriterSystem,
		Prompt:      prompt,
		MaxTokens:   descriptionTokens,
		Temperature: temperature,
	})
}

// GenerateProduct asks the model for a complete listing and returns it as an
// unsaved draft with status Draft. Stage it with RecordStore.Create.
func (w *Writer) GenerateProduct(ctx context.Context, brief ProductBrief) (core.Record, error) {
	if strings.TrimSpace(brief.ProductType) == "" {
		return core.Record{}, &core.ValidationError{Violations: core.Violations{"product_type": "is required"}}
	}

	text, err := w.complete(ctx, Request{
		System:      productSystem,
		Prompt:      productPrompt(brief),
		MaxTokens:   productTokens,
		Temperature: temperature,
	})
	if err != nil {
		return core.Record{}, err
	}
	return ParseGeneratedProduct(text)
}

// GenerateBatch generates one product per type, concurrently. Every other
// brief field applies to all of them. Results keep the order of types.
func (w *Writer) GenerateBatch(ctx context.Context, types []string, brief ProductBrief) []BatchItem {
	items := make([]BatchItem, len(types))
	var wg sync.WaitGroup
	for i, pt := range types {
		items[i].ProductType = pt
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := brief
			b.ProductType = pt
			items[i].Record, items[i].Err = w.GenerateProduct(ctx, b)
		}()
	}
	wg.Wait()
	return items
}

func productPrompt(b ProductBrief) string {
	orNone := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "None specified"
		}
		return s
	}

	var sb strings.Builder
	sb.WriteString("Create a detailed e-commerce product based on these specifications:\n\n")
	fmt.Fprintf(&sb, "Product type: %s\n", b.ProductType)
	fmt.Fprintf(&sb, "Target audience: %s\n", orNone(b.Audience))
	fmt.Fprintf(&sb, "Price range: %s\n", orNone(b.PriceRange))
	fmt.Fprintf(&sb, "Additional features or requirements: %s\n\n", orNone(b.Features))
	sb.WriteString("Return one JSON object with exactly these keys:\n")
	for _, key := range generatedKeys {
		fmt.Fprintf(&sb, "- %q: %s\n", core.Columns[key.col].Header, key.hint)
	}
	return sb.String()
}

var generatedKeys = []struct {
	col  core.Column
	hint string
}{
	{core.ColName, "a catchy product name"},
	{core.ColDescription, "a detailed description of two or three paragraphs"},
	{core.ColShortDescription, "a one-line summary"},
	{core.ColRegularPrice, "a plain decimal price inside the price range"},
	{core.ColURLSlug, "lowercase words joined by hyphens"},
	{core.ColCategories, "comma-separated categories"},
	{core.ColStatus, `always "Draft"`},
}

// ParseGeneratedProduct reads a model's JSON listing into a draft record.
// Markdown code fences are ignored, keys match column headers or field names
// case-insensitively, and the status is always Draft. A price that is not a
// plain number is a *core.ValidationError naming the field.
func ParseGeneratedProduct(text string) (core.Record, error) {
	dec := json.NewDecoder(strings.NewReader(stripFences(text)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return core.Record{}, fmt.Errorf("generated output is not valid JSON: %w", err)
	}

	lookup := make(map[string]any, len(fields))
	for k, v := range fields {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	row := make([]string, len(core.Columns))
	for i, spec := range core.Columns {
		if core.Column(i) == core.ColRecordID {
			continue
		}
		v, ok := lookup[strings.ToLower(spec.Header)]
		if !ok {
			v = lookup[spec.Field]
		}
		row[i] = cellText(v)
	}

	bad := core.Violations{}
	for _, c := range []core.Column{core.ColRegularPrice, core.ColSalePrice} {
		if _, err := core.ParsePrice(row[c]); err != nil {
			bad[core.Columns[c].Field] = "generated value " + err.Error()
		}
	}
	if len(bad) > 0 {
		return core.Record{}, &core.ValidationError{Violations: bad}
	}

	rec, err := core.RecordFromRow(row, core.CanonicalLayout(), -1)
	if err != nil {
		return core.Record{}, fmt.Errorf("generated output: %w", err)
	}
	if rec.Name == "" {
		return core.Record{}, fmt.Errorf("generated output has no product name")
	}

	rec.Status = core.StatusDraft
	slugSource := rec.URLSlug
	if slugSource == "" {
		slugSource = rec.Name
	}
	rec.URLSlug = core.Slugify(slugSource)
	return rec, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := cellText(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func nonBlank(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
