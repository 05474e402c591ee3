package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from RequestState
		to   RequestState
		want bool
	}{
		{RequestStateReceived, RequestStateDeferred, true},
		{RequestStateReceived, RequestStateCompletedFailure, true},
		{RequestStateReceived, RequestStateCompletedSuccess, false},
		{RequestStateDeferred, RequestStateCompletedSuccess, true},
		{RequestStateDeferred, RequestStateCompletedFailure, true},
		{RequestStateDeferred, RequestStateDeferred, false},
		{RequestStateCompletedSuccess, RequestStateCompletedFailure, false},
		{RequestStateCompletedFailure, RequestStateDeferred, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRequestLifecycle_Transition(t *testing.T) {
	lc := NewRequestLifecycle("req-1")
	assert.Equal(t, "req-1", lc.ID())
	assert.Equal(t, RequestStateReceived, lc.State())

	require.NoError(t, lc.Transition(RequestStateDeferred))
	select {
	case <-lc.Done():
		t.Fatal("終端状態の前に Done が閉じられました")
	default:
	}

	require.NoError(t, lc.Transition(RequestStateCompletedSuccess))
	select {
	case <-lc.Done():
	default:
		t.Fatal("終端状態で Done が閉じられていません")
	}

	err := lc.Transition(RequestStateCompletedFailure)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStateTransition))

	assert.Equal(t, []RequestState{
		RequestStateReceived,
		RequestStateDeferred,
		RequestStateCompletedSuccess,
	}, lc.History())
	assert.True(t, lc.State().IsTerminal())
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("CUDA out of memory")
	err := error(&EngineError{Index: 1, Seed: 42, Err: cause})

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "seed=42")
	assert.Contains(t, err.Error(), "2枚目")

	var engineErr *EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, uint32(42), engineErr.Seed)
}
