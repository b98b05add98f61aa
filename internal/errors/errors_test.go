// Package errors tests for error code handling.
package errors

import (
	"errors"
	"fmt"
	"testing"
)

// TestAppErrorMessage verifies the formatted error string.
func TestAppErrorMessage(t *testing.T) {
	err := New(ErrSyncFailed, "pass aborted")

	want := "[SYNC_FAILED] pass aborted"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestAppErrorWrap verifies wrapping preserves the cause.
func TestAppErrorWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrSyncOffline, "server unreachable", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected wrapped error to match cause via errors.Is")
	}

	want := "[SYNC_OFFLINE] server unreachable: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestIs verifies code matching.
func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{
			name: "matching code",
			err:  New(ErrSyncRetryExhausted, "gave up"),
			code: ErrSyncRetryExhausted,
			want: true,
		},
		{
			name: "different code",
			err:  New(ErrSyncConflict, "server has newer version"),
			code: ErrSyncFailed,
			want: false,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("plain"),
			code: ErrSyncFailed,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCode verifies code extraction with fallback.
func TestCode(t *testing.T) {
	if got := Code(New(ErrDraftExpired, "stale")); got != ErrDraftExpired {
		t.Errorf("Code() = %v, want %v", got, ErrDraftExpired)
	}

	if got := Code(fmt.Errorf("plain")); got != ErrInternal {
		t.Errorf("Code() = %v, want %v", got, ErrInternal)
	}
}
