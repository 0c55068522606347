package stategraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
)

// Sentinel errors for graph building.
var (
	// ErrInvalidNodeID indicates an empty, reserved or whitespace-padded id.
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrNilNode indicates AddNode was called with a nil node.
	ErrNilNode = errors.New("node cannot be nil")

	// ErrNilRouter indicates AddConditionalEdges was called with a nil router.
	ErrNilRouter = errors.New("router cannot be nil")

	// ErrEmptyRoutes indicates AddConditionalEdges was called without labels.
	ErrEmptyRoutes = errors.New("conditional edge needs at least one route")

	// ErrAlreadyCompiled indicates the builder was used after Compile.
	ErrAlreadyCompiled = errors.New("graph already compiled")
)

// Sentinel errors for compile-time validation. Each violation inside a
// GraphValidationError matches exactly one of these with errors.Is.
var (
	// ErrNoEntryPoint indicates there is no edge out of START.
	ErrNoEntryPoint = errors.New("no entry point: START has no outgoing edge")

	// ErrMultipleEntries indicates more than one unconditional edge out of START.
	ErrMultipleEntries = errors.New("multiple entry points")

	// ErrUnreachableNode indicates a node cannot be reached from START.
	ErrUnreachableNode = errors.New("node unreachable from START")

	// ErrDanglingRoute indicates a route label maps to an undeclared node.
	ErrDanglingRoute = errors.New("route target is not a declared node")

	// ErrEdgeFromEnd indicates an edge leaving END.
	ErrEdgeFromEnd = errors.New("END cannot have outgoing edges")

	// ErrEdgeToStart indicates an edge entering START.
	ErrEdgeToStart = errors.New("START cannot have incoming edges")

	// ErrNoTransition indicates a node with no outgoing edge.
	ErrNoTransition = errors.New("node has no outgoing transition")

	// ErrMixedEdges indicates a node with both conditional and plain edges, or
	// more than one plain edge.
	ErrMixedEdges = errors.New("node has conflicting outgoing edges")

	// ErrNoPathToEnd indicates END cannot be reached from START.
	ErrNoPathToEnd = errors.New("no path from START to END")

	// ErrUndeclaredKey indicates a state key without a merge strategy.
	ErrUndeclaredKey = errors.New("state key has no declared merge strategy")
)

// Sentinel errors for execution.
var (
	// ErrMaxIterations is matched by every *MaxIterationsError.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrNilContext indicates Invoke or Stream was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router returned an empty label.
	ErrInvalidRouterResult = errors.New("router returned empty label")

	// ErrUnmappedLabel indicates a router returned a label with no route.
	ErrUnmappedLabel = errors.New("router returned unmapped label")

	// ErrUnexpectedOutputKey indicates a node wrote a key it did not declare
	// in OutputKeys.
	ErrUnexpectedOutputKey = errors.New("node wrote undeclared output key")

	// ErrStreamConsumed indicates a Stream sequence was ranged more than once.
	ErrStreamConsumed = errors.New("stream already consumed")

	// ErrRetryExhausted is matched by every *RetryExhaustedError.
	ErrRetryExhausted = retry.ErrExhausted
)

// RetryExhaustedError reports that a node used up its retry budget.
// Attempts is the number of attempts made and Last the final failure.
type RetryExhaustedError = retry.ExhaustedError

// DuplicateIDError reports a node id that was added twice.
type DuplicateIDError struct {
	NodeID string
}

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate node id %q", e.NodeID)
}

// UnknownNodeError reports an edge referencing a node that was never added.
type UnknownNodeError struct {
	// NodeID is the missing node.
	NodeID string
	// From and To describe the edge being added.
	From, To string
}

// Error implements the error interface.
func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge %s -> %s references unknown node %q", e.From, e.To, e.NodeID)
}

// GraphValidationError lists every violation Compile found.
type GraphValidationError struct {
	Violations []error
}

// Error implements the error interface.
func (e *GraphValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "invalid graph: " + e.Violations[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid graph: %d violations", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.Error())
	}
	return b.String()
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *GraphValidationError) Unwrap() []error {
	return e.Violations
}

// NodeError wraps a failure inside a node with the node's id.
type NodeError struct {
	// NodeID is the node that failed.
	NodeID string
	// Op is what was being done: "execute" or "merge".
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic recovered from a node, a router or a Custom
// merge function. NodeID is empty when the panic came from a merge function
// outside any node, such as while seeding the input.
type PanicError struct {
	NodeID string
	Value  any
	Stack  string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports that the execution's context ended.
type CancellationError struct {
	// NodeID is the node that was about to run or was running.
	NodeID string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
	// WasExecuting is true when the node was already running.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during node %s: %v", e.NodeID, e.Cause)
	}
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the cancellation cause.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError reports a conditional edge that could not pick a target.
type RouterError struct {
	// FromNode is the node owning the conditional edge.
	FromNode string
	// Label is what the router returned.
	Label string
	// Err is ErrInvalidRouterResult, ErrUnmappedLabel or a *PanicError.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Label, e.Err)
}

// Unwrap returns the underlying error.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError reports that the iteration cap stopped an execution.
type MaxIterationsError struct {
	// Max is the cap that was hit.
	Max int
	// NextNodeID is the node that would have run next.
	NextNodeID string
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) before node %s", e.Max, e.NextNodeID)
}

// Unwrap returns ErrMaxIterations.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// InputError reports an initial state that could not be seeded: a key
// without a declared strategy or a failed merge.
type InputError struct {
	Err error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *InputError) Unwrap() error {
	return e.Err
}

// HistoryError reports a failed history write when failures are fatal.
type HistoryError struct {
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *HistoryError) Error() string {
	return fmt.Sprintf("history at node %s: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error.
func (e *HistoryError) Unwrap() error {
	return e.Err
}
