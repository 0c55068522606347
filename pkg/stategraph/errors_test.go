package stategraph

import (
	"context"
	"errors"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&DuplicateIDError{NodeID: "a"}, `duplicate node id "a"`},
		{&UnknownNodeError{NodeID: "x", From: "a", To: "x"}, `edge a -> x references unknown node "x"`},
		{&NodeError{NodeID: "a", Op: "execute", Err: errors.New("boom")}, "node a: execute: boom"},
		{&PanicError{NodeID: "a", Value: "oops"}, "node a panicked: oops"},
		{&PanicError{Value: "oops"}, "panic: oops"},
		{&InputError{Err: ErrUndeclaredKey}, "invalid input: " + ErrUndeclaredKey.Error()},
		{&CancellationError{NodeID: "a", Cause: context.Canceled}, "cancelled before node a: context canceled"},
		{&CancellationError{NodeID: "a", Cause: context.Canceled, WasExecuting: true}, "cancelled during node a: context canceled"},
		{&RouterError{FromNode: "a", Label: "x", Err: ErrUnmappedLabel}, `router from a returned "x": router returned unmapped label`},
		{&MaxIterationsError{Max: 3, NextNodeID: "b"}, "exceeded maximum iterations (3) before node b"},
		{&GraphValidationError{Violations: []error{ErrNoEntryPoint}}, "invalid graph: " + ErrNoEntryPoint.Error()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestRetryExhaustedThroughNodeError(t *testing.T) {
	last := &retry.HTTPError{StatusCode: 503, Endpoint: "http://x"}
	err := error(&NodeError{NodeID: "fetch", Op: "execute", Err: &RetryExhaustedError{Attempts: 3, Last: last}})

	var re *RetryExhaustedError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.Attempts)
	assert.ErrorIs(t, err, ErrRetryExhausted)

	var httpErr *retry.HTTPError
	assert.ErrorAs(t, err, &httpErr)
}

func TestGraphValidationError_Unwrap(t *testing.T) {
	err := &GraphValidationError{Violations: []error{ErrNoEntryPoint, ErrEdgeFromEnd}}
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.ErrorIs(t, err, ErrEdgeFromEnd)
	assert.NotErrorIs(t, err, ErrDanglingRoute)
	assert.Contains(t, err.Error(), "2 violations")
}
