package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad %s", "input"), KindValidation},
		{"authentication", Authentication("no token"), KindAuthentication},
		{"forbidden", Forbidden("nope"), KindForbidden},
		{"not found", NotFound("missing"), KindNotFound},
		{"conflict", Conflict("dup"), KindConflict},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("inner")), KindNotFound},
		{"plain error", errors.New("boom"), KindService},
		{"service", Service("db down", context.DeadlineExceeded), KindService},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestServiceUnwrapsCause(t *testing.T) {
	err := Service("lookup failed", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "lookup failed", Message(err))
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestMessageHidesUntaggedErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("secret detail")))
	assert.Equal(t, "bad id", Message(Validation("bad id")))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Forbidden("x"), KindForbidden))
	assert.False(t, Is(Forbidden("x"), KindNotFound))
	assert.False(t, Is(nil, KindService))
}
