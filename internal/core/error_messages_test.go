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
			name:        "depth detection maps correctly",
			err:         NewExtractionError(KindDepthDetectionFailed, "no depth column"),
			wantCode:    "EXT001",
			wantMessage: "No depth column could be found",
		},
		{
			name:        "fatal error maps by first kind",
			err:         &FatalError{Errors: []SemanticError{ClassifyKind(KindFileCorrupted, "zip: not a valid zip file")}},
			wantCode:    "EXT003",
			wantMessage: "The file appears to be damaged",
		},
		{
			name:        "limiter saturation maps correctly",
			err:         ErrTooManyExtractions,
			wantCode:    "EXT006",
			wantMessage: "System is busy processing other files",
		},
		{
			name:        "closed session maps correctly",
			err:         ErrSessionClosed,
			wantCode:    "REV001",
			wantMessage: "This review has already been saved or cancelled",
		},
		{
			name:        "missing acknowledgement maps correctly",
			err:         ErrReviewNotAcknowledged,
			wantCode:    "REV002",
			wantMessage: "This extraction has flagged issues that need review",
		},
		{
			name:        "edit error maps correctly",
			err:         &EditError{Op: "split", Index: 2, Reason: "outside layer"},
			wantCode:    "REV003",
			wantMessage: "That change could not be applied",
		},
		{
			name:        "validation failure maps correctly",
			err:         &ValidationFailedError{Errors: []ValidationError{{Index: 0, Field: "material", Message: "material is required"}}},
			wantCode:    "REV004",
			wantMessage: "Some layers are invalid",
		},
		{
			name:        "wrapped gate failure maps correctly",
			err:         fmt.Errorf("open review: %w", ErrInternalConsistency),
			wantCode:    "REV006",
			wantMessage: "The extraction could not be checked safely",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("store record: ERROR: duplicate key value violates unique constraint"),
			wantCode:    "SAV001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "connection refused wins over store record",
			err:         fmt.Errorf("store record: %w", errors.New("dial tcp: connection refused")),
			wantCode:    "SAV002",
			wantMessage: "Unable to connect to storage",
		},
		{
			name:        "generic store failure maps correctly",
			err:         errors.New("store record: disk full"),
			wantCode:    "SAV004",
			wantMessage: "The record could not be saved",
		},
		{
			name:        "file too large maps correctly",
			err:         errors.New("file too large: 40MB exceeds limit"),
			wantCode:    "UPL001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "cancelled request maps correctly",
			err:         context.Canceled,
			wantCode:    "UPL005",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "bad form value maps correctly",
			err:         errors.New("invalid request: totalDepth must be a number"),
			wantCode:    "UPL007",
			wantMessage: "Some request fields are missing or invalid",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "SAV001",
			wantMessage: "A record with this ID already exists",
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
	result := FormatUserError(errors.New("rate limit exceeded"))
	want := "Too many requests (Code: RATE001). " + MapError(errors.New("rate limit")).Action
	if result != want {
		t.Errorf("FormatUserError() = %q, want %q", result, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrSessionClosed, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
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
		techErr := fmt.Errorf("store record: %w", errors.New("duplicate key value"))
		userErr := NewUserError(techErr)

		if userErr.Error() != "A record with this ID already exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, techErr) {
			t.Error("Unwrap() should return original error")
		}
	})
}
