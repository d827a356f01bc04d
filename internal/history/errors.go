package history

import (
	"errors"
	"fmt"

	"github.com/dshills/histree/internal/history/graph"
	"github.com/dshills/histree/internal/history/op"
)

// State errors are expected and recoverable; callers use them to drive UI
// affordances (greying out menu items), not to surface failures.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrAmbiguousRedo = errors.New("ambiguous redo: branch head not reachable from cursor")
	ErrInvalidState  = errors.New("invalid history state")
)

// Structural errors are caller-input mistakes, surfaced directly.
var (
	ErrDuplicateBranch = graph.ErrDuplicateBranch
	ErrUnknownBranch   = graph.ErrUnknownBranch
	ErrUnknownNode     = graph.ErrUnknownNode
	ErrProtectedBranch = errors.New("branch is protected")
)

// Engine-integrity errors.
var (
	// ErrReentrantCall is returned when an observer callback calls back
	// into the manager.
	ErrReentrantCall = errors.New("reentrant call into history manager")

	// ErrInconsistent is returned once compensation after an applier
	// failure has itself failed; undo/redo stay disabled until the
	// caller reloads the project or clears history.
	ErrInconsistent = errors.New("history inconsistent: reload or clear history")

	// ErrNoApplier is the cause inside an ApplierError when no handler
	// is registered for an operation's kind.
	ErrNoApplier = errors.New("no applier registered")
)

// ApplierError reports a failed forward or inverse handler. It is the only
// error class that can leave a multi-step operation partially attempted;
// the manager compensates back to the last fully-applied position before
// surfacing it.
type ApplierError struct {
	Kind    op.Kind
	Target  string
	Forward bool
	Err     error
}

func (e *ApplierError) Error() string {
	dir := "inverse"
	if e.Forward {
		dir = "forward"
	}
	return fmt.Sprintf("apply %s %s on %q: %v", dir, e.Kind, e.Target, e.Err)
}

func (e *ApplierError) Unwrap() error { return e.Err }
