package sheets

import (
	"errors"
	"testing"
)

func TestSpreadsheetID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "edit url", in: "https://docs.google.com/spreadsheets/d/1AbC_d-9xYz/edit#gid=0", want: "1AbC_d-9xYz"},
		{name: "url without trailing path", in: "https://docs.google.com/spreadsheets/d/1AbC_d-9xYz", want: "1AbC_d-9xYz"},
		{name: "bare id", in: "1AbC_d-9xYz", want: "1AbC_d-9xYz"},
		{name: "surrounding whitespace", in: "  1AbC_d-9xYz\n", want: "1AbC_d-9xYz"},
		{name: "empty", in: "", wantErr: true},
		{name: "other url", in: "https://example.com/file.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SpreadsheetID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRef) {
					t.Fatalf("SpreadsheetID(%q) error = %v, want ErrInvalidRef", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SpreadsheetID(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("SpreadsheetID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDataIndexFromRange(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "'Products'!A5:J5", want: 3},
		{in: "Sheet1!A2:J2", want: 0},
		{in: "'It''s!here'!$A$12:$J$12", want: 10},
		{in: "A1:J1", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := dataIndexFromRange(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("dataIndexFromRange(%q) = %d, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("dataIndexFromRange(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestQuoteTitle(t *testing.T) {
	if got := quoteTitle("Bob's Products"); got != "'Bob''s Products'" {
		t.Errorf("quoteTitle = %q", got)
	}
}
