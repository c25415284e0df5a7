package core

import (
	"testing"
)

// ----------------------------------------------------------------------------
// ParsePrice Tests
// ----------------------------------------------------------------------------

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantErr   bool
		wantValue string
	}{
		// Valid: Basic numbers
		{name: "positive integer", input: "123", wantValid: true, wantValue: "123"},
		{name: "zero", input: "0", wantValid: true, wantValue: "0"},
		{name: "decimal number", input: "123.45", wantValid: true, wantValue: "123.45"},
		{name: "leading decimal point", input: ".99", wantValid: true, wantValue: "0.99"},
		{name: "trailing decimal point", input: "99.", wantValid: true, wantValue: "99"},
		{name: "trailing zeros kept as value", input: "12.50", wantValid: true, wantValue: "12.5"},

		// Valid: Currency symbols and separators
		{name: "dollar sign", input: "$1,234.56", wantValid: true, wantValue: "1234.56"},
		{name: "euro sign", input: "€1234.56", wantValid: true, wantValue: "1234.56"},
		{name: "pound sign", input: "£1234.56", wantValid: true, wantValue: "1234.56"},
		{name: "thousands separator", input: "1,234,567.89", wantValid: true, wantValue: "1234567.89"},

		// Valid: Accounting format
		{name: "accounting negative", input: "(123.45)", wantValid: true, wantValue: "-123.45"},
		{name: "accounting negative with currency", input: "($1,234.56)", wantValid: true, wantValue: "-1234.56"},

		// Valid: Whitespace and sign
		{name: "surrounded by whitespace", input: "  123.45  ", wantValid: true, wantValue: "123.45"},
		{name: "explicit positive sign", input: "+123", wantValid: true, wantValue: "123"},

		// Null: empty cells
		{name: "empty string", input: ""},
		{name: "only whitespace", input: "   "},

		// Errors: not numbers
		{name: "alphabetic string", input: "abc", wantErr: true},
		{name: "mixed alphanumeric", input: "12abc34", wantErr: true},
		{name: "only currency symbol", input: "$", wantErr: true},
		{name: "multiple decimal points", input: "1.2.3", wantErr: true},
		{name: "scientific notation", input: "1.5e3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got.Valid != tt.wantValid {
				t.Fatalf("ParsePrice(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid && got.Decimal.String() != tt.wantValue {
				t.Errorf("ParsePrice(%q) = %s, want %s", tt.input, got.Decimal.String(), tt.wantValue)
			}
		})
	}
}

func TestFormatPrice(t *testing.T) {
	p, err := ParsePrice("$19.90")
	if err != nil {
		t.Fatal(err)
	}
	if got := FormatPrice(p); got != "19.9" {
		t.Errorf("FormatPrice() = %q, want %q", got, "19.9")
	}

	null, _ := ParsePrice("")
	if got := FormatPrice(null); got != "" {
		t.Errorf("FormatPrice(null) = %q, want empty", got)
	}
}

// ----------------------------------------------------------------------------
// Categories
// ----------------------------------------------------------------------------

func TestSplitCategories(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"   ", nil},
		{"Home", []string{"Home"}},
		{"Home, Garden", []string{"Home", "Garden"}},
		{" Home ,, Garden ,", []string{"Home", "Garden"}},
		{",", nil},
	}

	for _, tt := range tests {
		got := SplitCategories(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("SplitCategories(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitCategories(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestJoinCategoriesRoundTrip(t *testing.T) {
	in := []string{"Home", "Garden", "Outdoor Living"}
	got := SplitCategories(JoinCategories(in))
	if len(got) != len(in) {
		t.Fatalf("round trip = %v, want %v", got, in)
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("round trip[%d] = %q, want %q", i, got[i], in[i])
		}
	}
}

// ----------------------------------------------------------------------------
// CleanCell / MakeHeaderIndex
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Mug  ", "Mug"},
		{`="00123"`, "00123"},
		{`"quoted"`, `"quoted"`},
		{`27" monitor arm`, `27" monitor arm`},
		{"Kids' Toys", "Kids' Toys"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{" Name ", "URL Slug", "name"})

	if idx["name"] != 0 {
		t.Errorf(`idx["name"] = %d, want 0 (first occurrence wins)`, idx["name"])
	}
	if idx["url slug"] != 1 {
		t.Errorf(`idx["url slug"] = %d, want 1`, idx["url slug"])
	}
}
