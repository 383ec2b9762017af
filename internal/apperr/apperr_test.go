package apperr

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
		code int
	}{
		{"validation", New(Validation, "bad"), Validation, http.StatusBadRequest},
		{"wrapped conflict", fmt.Errorf("outer: %w", New(Conflict, "dup")), Conflict, http.StatusConflict},
		{"foreign", sql.ErrNoRows, Internal, http.StatusInternalServerError},
		{"not found with cause", Wrap(NotFound, "booking not found", sql.ErrNoRows), NotFound, http.StatusNotFound},
	}
	for _, tt := range cases {
		if got := KindOf(tt.err); got != tt.kind {
			t.Fatalf("%s: KindOf=%v, want %v", tt.name, got, tt.kind)
		}
		if got := KindOf(tt.err).Status(); got != tt.code {
			t.Fatalf("%s: Status=%d, want %d", tt.name, got, tt.code)
		}
	}
}

func TestMessageHidesCause(t *testing.T) {
	err := Wrap(Internal, "failed to load bookings", fmt.Errorf("dial tcp: refused"))
	if got := Message(err); got != "failed to load bookings" {
		t.Fatalf("Message=%q", got)
	}
	if got := Message(fmt.Errorf("raw")); got != "internal error" {
		t.Fatalf("Message(raw)=%q", got)
	}
}
