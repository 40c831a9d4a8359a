package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"stock", InsufficientStock(3, 5), http.StatusConflict},
		{"auth", NotAuthenticated(), http.StatusUnauthorized},
		{"forbidden", Forbidden("no"), http.StatusForbidden},
		{"not found wrapped", fmt.Errorf("load item: %w", NotFound("item")), http.StatusNotFound},
		{"conflict", Conflict("in use"), http.StatusConflict},
		{"storage", Storage("upload", "a/b.png", errors.New("boom")), http.StatusBadGateway},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInsufficientStockMessage(t *testing.T) {
	err := InsufficientStock(6, 10)
	if err.Available != 6 {
		t.Fatalf("Available = %d, want 6", err.Available)
	}
	if got := PublicMessage(fmt.Errorf("allocate: %w", err)); got != "only 6 units available, 10 requested" {
		t.Fatalf("PublicMessage() = %q", got)
	}
	if !Is(err, KindInsufficientStock) {
		t.Fatal("expected insufficient stock kind")
	}
}

func TestPublicMessageHidesInternalErrors(t *testing.T) {
	if got := PublicMessage(errors.New("pq: connection refused")); got != "unexpected server error" {
		t.Fatalf("PublicMessage() = %q", got)
	}
}
