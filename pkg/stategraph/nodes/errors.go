package nodes

import "errors"

// Configuration errors returned by the constructors.
var (
	ErrMissingKey        = errors.New("state key is required")
	ErrNoCategories      = errors.New("at least one category is required")
	ErrNoCollaborator    = errors.New("collaborator is required")
	ErrNoValues          = errors.New("at least one value is required")
	ErrNoURL             = errors.New("url is required")
	ErrNoGraph           = errors.New("compiled graph is required")
	ErrNoOutputs         = errors.New("at least one output mapping is required")
	ErrDuplicateTool     = errors.New("duplicate tool name")
	ErrInvalidConditions = errors.New("invalid route conditions")
	ErrNoBranches        = errors.New("at least one branch is required")
	ErrDuplicateBranch   = errors.New("duplicate branch id")
	ErrUndeclaredBranch  = errors.New("branch node must declare its keys")
	ErrBranchConflict    = errors.New("branches write the same replace key")
)

// Execution errors.
var (
	// ErrUnknownTool is returned when a model asks for a tool the agent does
	// not have.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrAgentIncomplete is returned when an agent hits its iteration bound
	// without producing an answer.
	ErrAgentIncomplete = errors.New("agent did not produce an answer")

	// ErrBodyTooLarge is returned when a response body exceeds the HTTP
	// node's MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body too large")
)
