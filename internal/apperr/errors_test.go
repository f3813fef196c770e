package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = NotFound("SAMPLE_NOT_FOUND", "sample not found")

func TestWrapf_KeepsSentinel(t *testing.T) {
	err := Wrapf(errSample, "sample %s not found", "s-1")

	assert.ErrorIs(t, err, errSample)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "SAMPLE_NOT_FOUND", CodeOf(err))
	assert.Equal(t, "sample s-1 not found", err.Error())
}

func TestKindOf_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("load: %w", Wrapf(errSample, "missing"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "INTERNAL", CodeOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("X", "x"), http.StatusNotFound},
		{"status conflict", StatusConflict("X", "x"), http.StatusConflict},
		{"validation", Validation("X", "x"), http.StatusBadRequest},
		{"concurrency", ConcurrencyConflict("locked", nil), http.StatusConflict},
		{"unauthorized", Unauthorized("X", "x"), http.StatusUnauthorized},
		{"forbidden", Forbidden("X", "x"), http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ConcurrencyConflict("lock timeout", errors.New("55P03"))))
	assert.False(t, IsRetryable(StatusConflict("X", "x")))
	assert.False(t, IsRetryable(Validation("X", "x")))
	assert.False(t, IsRetryable(NotFound("X", "x")))
}

func TestConcurrencyConflict_Unwraps(t *testing.T) {
	cause := errors.New("driver: lock not available")
	err := ConcurrencyConflict("order is locked", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeConcurrentModification, CodeOf(err))
}
