package domain

import (
	"fmt"
	"sync"
)

// RequestState は、1つのコマンドイベントに紐づくライフサイクルの状態です
type RequestState int

const (
	RequestStateReceived RequestState = iota
	RequestStateDeferred
	RequestStateCompletedSuccess
	RequestStateCompletedFailure
)

var requestStateNames = []string{
	"received",
	"deferred",
	"completed_success",
	"completed_failure",
}

// String は状態名を返します
func (s RequestState) String() string {
	if int(s) >= 0 && int(s) < len(requestStateNames) {
		return requestStateNames[s]
	}
	return "unknown"
}

// IsTerminal は、終端状態かどうかを返します
func (s RequestState) IsTerminal() bool {
	return s == RequestStateCompletedSuccess || s == RequestStateCompletedFailure
}

// CanTransitionTo は、next への遷移が許可されているかを返します
// Received から直接 CompletedFailure へ遷移できるのは、キュー満杯などで作業を受け付けなかった場合です
func (s RequestState) CanTransitionTo(next RequestState) bool {
	switch s {
	case RequestStateReceived:
		return next == RequestStateDeferred || next == RequestStateCompletedFailure
	case RequestStateDeferred:
		return next.IsTerminal()
	default:
		return false
	}
}

// RequestLifecycle は、1つのリクエストの状態遷移を記録します
type RequestLifecycle struct {
	id      string
	mu      sync.Mutex
	state   RequestState
	history []RequestState
	done    chan struct{}
}

// NewRequestLifecycle は、Received 状態のライフサイクルを作成します
func NewRequestLifecycle(id string) *RequestLifecycle {
	return &RequestLifecycle{
		id:      id,
		state:   RequestStateReceived,
		history: []RequestState{RequestStateReceived},
		done:    make(chan struct{}),
	}
}

// ID はリクエストIDを返します
func (l *RequestLifecycle) ID() string {
	return l.id
}

// State は現在の状態を返します
func (l *RequestLifecycle) State() RequestState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// History は、これまでに通過した状態を順に返します
func (l *RequestLifecycle) History() []RequestState {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]RequestState, len(l.history))
	copy(result, l.history)
	return result
}

// Transition は、状態を next に遷移させます
func (l *RequestLifecycle) Transition(next RequestState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, l.state, next)
	}
	l.state = next
	l.history = append(l.history, next)
	if next.IsTerminal() {
		close(l.done)
	}
	return nil
}

// Done は、終端状態に到達したときに閉じられるチャネルを返します
func (l *RequestLifecycle) Done() <-chan struct{} {
	return l.done
}
