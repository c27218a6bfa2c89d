package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestStatusError_Unwrap(t *testing.T) {
	notFound := NewStatusError("lookup", "https://keys.example/api-keys/", http.StatusNotFound, nil)
	if !errors.Is(notFound, ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}
	if errors.Is(notFound, ErrUpstream) {
		t.Error("404 should not match ErrUpstream")
	}
	if got, want := notFound.Error(), "https://keys.example/api-keys/ not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	unavailable := NewStatusError("create", "https://keys.example/api-keys", http.StatusServiceUnavailable, []byte("try later"))
	if !errors.Is(unavailable, ErrUpstream) {
		t.Error("503 should match ErrUpstream")
	}
	if !strings.Contains(unavailable.Error(), "503") || !strings.Contains(unavailable.Error(), "try later") {
		t.Errorf("Error() = %q, want status and body", unavailable.Error())
	}
}

func TestNewStatusError_TruncatesBody(t *testing.T) {
	err := NewStatusError("lookup", "u", http.StatusBadGateway, []byte(strings.Repeat("x", 1000)))
	if len(err.Body) != maxErrorBody+len("...") {
		t.Errorf("Body length = %d, want %d", len(err.Body), maxErrorBody+3)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: issuer is required", ErrBadRequest), KindBadRequest},
		{NewStatusError("create", "u", http.StatusNotFound, nil), KindNotFound},
		{fmt.Errorf("resolve: %w", NewStatusError("lookup", "u", http.StatusInternalServerError, nil)), KindUpstream},
		{fmt.Errorf("%w: dial tcp: connection refused", ErrTransport), KindTransport},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
