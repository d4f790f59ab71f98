package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("object type %q", "Player"), KindNotFound},
		{"forbidden", Forbidden("no rule found for role player"), KindForbidden},
		{"invalid", InvalidRequest("end must be greater than start"), KindInvalidRequest},
		{"conflict", Conflict("version %s already exists", "1.0"), KindConflict},
		{"backend", Backend(errors.New("connection refused"), "query players"), KindBackendError},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindTimeout},
		{"plain error", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	// Classification survives fmt.Errorf wrapping.
	err := fmt.Errorf("mediator: get object: %w", NotFound("object type %q", "Player"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsForbidden(err))
}

func TestBackend_PreservesCause(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Backend(cause, "query %s", "players")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "pq: relation does not exist")
	assert.True(t, IsBackendError(err))
}

func TestFault_ReasonSurfaced(t *testing.T) {
	err := Forbidden("no rule found for role player")
	assert.Contains(t, err.Error(), "no rule found for role player")

	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "no rule found for role player", f.Reason)
}

func TestWrap(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := Wrap(Conflict("version 1.0 already exists"), cause)

	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, cause)
}
