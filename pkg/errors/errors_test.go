package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"not found", NewNotFound("doctor", nil), http.StatusNotFound},
		{"validation", NewValidation("diagnosis is required"), http.StatusBadRequest},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
		{"forbidden", NewForbidden(""), http.StatusForbidden},
		{"conflict", NewSlotConflict(), http.StatusConflict},
		{"storage", NewStorage("create appointment", fmt.Errorf("boom")), http.StatusInternalServerError},
		{"notification", NewNotification(fmt.Errorf("smtp down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("booking: %w", NewSlotConflict())

	assert.Equal(t, ErrConflict, CodeOf(err))
	assert.True(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrForbidden))
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
}

func TestStorageErrorHidesCause(t *testing.T) {
	cause := fmt.Errorf("pq: connection refused")
	err := NewStorage("load timeline", cause)

	assert.Equal(t, "failed to load timeline", err.Message)
	assert.ErrorIs(t, err, cause)
}
