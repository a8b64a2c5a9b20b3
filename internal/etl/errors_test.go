package etl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil", nil, ""},
		{"duplicate id", fmt.Errorf("upsert lead DO-1: %w", store.ErrDuplicateID), "DB001"},
		{"pg unique", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"missing id", booking.ErrMissingID, "VAL003"},
		{"negative amount", fmt.Errorf("%w: paidAmount is -1", booking.ErrNegativeAmount), "VAL004"},
		{"invalid package", booking.ErrInvalidPackage, "VAL005"},
		{"empty input", ErrEmptyInput, "IMP001"},
		{"invalid payload", fmt.Errorf("%w: order id missing", ErrInvalidPayload), "IMP002"},
		{"import busy", ErrImportBusy, "IMP003"},
		{"unknown source", ErrUnknownSource, "IMP004"},
		{"too large", ErrInputTooLarge, "IMP005"},
		{"cancelled", context.Canceled, "IMP006"},
		{"signature", ErrInvalidSignature, "IMP007"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrImportBusy)
	want := "Another import is in progress (Code: IMP003). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if !IsUserFacing(ErrEmptyInput) || IsUserFacing(errors.New("x")) || IsUserFacing(nil) {
		t.Error("IsUserFacing mismatch")
	}
}
