package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "connectivity failure",
			err:         fmt.Errorf("fetch rows: %w", ErrConnectivity),
			wantCode:    "SHEET001",
			wantMessage: "The spreadsheet service could not be reached",
		},
		{
			name:        "auth failure inside load error",
			err:         &LoadError{Reason: "fetch rows", Err: fmt.Errorf("%w: 403", ErrAuth)},
			wantCode:    "AUTH001",
			wantMessage: "Access was denied",
		},
		{
			name:        "header mismatch",
			err:         &LoadError{Reason: "verify header", Err: &HeaderMismatchError{Missing: []string{"Status"}}},
			wantCode:    "SHEET002",
			wantMessage: "The worksheet columns do not match the catalog layout",
		},
		{
			name:        "plain load failure",
			err:         &LoadError{Reason: "worksheet has no header row"},
			wantCode:    "SHEET003",
			wantMessage: "The sheet could not be loaded",
		},
		{
			name:        "bad sheet reference inside load error",
			err:         &LoadError{Reason: "fetch rows", Err: errors.New("invalid spreadsheet reference: empty spreadsheet URL")},
			wantCode:    "SHEET007",
			wantMessage: "The URL or worksheet number does not address a sheet",
		},
		{
			name:        "stale row",
			err:         fmt.Errorf("%w: row 3", ErrStaleRow),
			wantCode:    "SHEET004",
			wantMessage: "A row was changed in the sheet after it was loaded",
		},
		{
			name:        "partial commit wins over its causes",
			err:         &PartialCommitError{Failed: []Outcome{{Op: OpAppend, Err: ErrConnectivity}}},
			wantCode:    "SHEET005",
			wantMessage: "Some changes were not saved",
		},
		{
			name:        "validation failure",
			err:         &ValidationError{Violations: Violations{"name": "is required"}},
			wantCode:    "VAL001",
			wantMessage: "One or more fields are invalid",
		},
		{
			name:        "not found",
			err:         notFound("rec-9"),
			wantCode:    "REC001",
			wantMessage: "The product no longer exists in this session",
		},
		{
			name:        "quota exceeded",
			err:         fmt.Errorf("openai: %w", ErrQuotaExceeded),
			wantCode:    "GEN001",
			wantMessage: "The text generation quota is used up",
		},
		{
			name:        "deadline exceeded",
			err:         fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			wantCode:    "REQ002",
			wantMessage: "Request timed out",
		},
		{
			name:        "price pattern",
			err:         errors.New(`not a number: "abc"`),
			wantCode:    "VAL002",
			wantMessage: "A price is not a number",
		},
		{
			name:        "rate limit pattern",
			err:         errors.New("Rate Limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "generation disabled pattern",
			err:         errors.New("text generation is not configured"),
			wantCode:    "GEN005",
			wantMessage: "Text generation is not configured",
		},
		{
			name:        "malformed request pattern",
			err:         errors.New("malformed request: unexpected EOF"),
			wantCode:    "REQ003",
			wantMessage: "The request could not be read",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(notFound("rec-1"))

	expected := "The product no longer exists in this session (Code: REC001). Reload the sheet"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "sentinel error is user facing", err: ErrAuth, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("sheets: %w", ErrAuth)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Access was denied" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrAuth) {
			t.Error("Unwrap() should reach the original sentinel")
		}
	})
}

func TestLoadError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("%w: timeout", ErrConnectivity)
	err := &LoadError{Reason: "fetch rows", Err: cause}

	if !errors.Is(err, ErrLoad) || !errors.Is(err, ErrConnectivity) {
		t.Errorf("LoadError should match ErrLoad and its cause")
	}
	if err.Error() != "load failed: fetch rows: connectivity failure: timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
}
