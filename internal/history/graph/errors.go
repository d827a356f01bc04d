package graph

import "errors"

// Common errors for graph operations.
var (
	ErrDuplicateBranch = errors.New("branch already exists")
	ErrUnknownBranch   = errors.New("unknown branch")
	ErrUnknownNode     = errors.New("unknown node")
	ErrCorrupt         = errors.New("corrupt history graph")
)
