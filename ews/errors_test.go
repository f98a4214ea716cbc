package ews

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{200, nil},
		{204, nil},
		{299, nil},
		{301, ErrMalformedResponse},
		{400, ErrMalformedResponse},
		{401, ErrInvalidCredentials},
		{403, ErrInvalidCredentials},
		{404, ErrMalformedResponse},
		{429, ErrRateLimited},
		{500, ErrInternal},
		{503, ErrInternal},
	}

	for _, tt := range tests {
		err := ErrorFromStatus(tt.code)
		if tt.want == nil {
			if err != nil {
				t.Errorf("ErrorFromStatus(%d) expected nil, got %v", tt.code, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("ErrorFromStatus(%d) expected %v, got %v", tt.code, tt.want, err)
		}
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Field: "tariff", Err: errMissing}
	if !strings.Contains(err.Error(), `"tariff"`) {
		t.Errorf("expected field in message, got %q", err.Error())
	}
	if !errors.Is(err, errMissing) || !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ParseError to match both its cause and ErrMalformedResponse")
	}
}
