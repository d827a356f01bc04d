// Package history provides the branching operation-history engine: it
// records reversible edits, organizes them into a tree of alternate
// futures, and replays them through caller-supplied appliers.
//
// # Operations
//
// An Operation captures one edit as whole before/after snapshots plus a
// kind, a target id, and a timestamp. The engine never computes deltas
// and never touches external state; appliers registered per kind do that.
//
// # The tree
//
// Unlike a classic undo/redo stack pair, history is a tree: undo moves a
// cursor toward the root without discarding the future, and recording
// from a rewound cursor forks a new line of edits. Branches are named
// pointers into the tree, managed like a revision-control system manages
// heads:
//
//	m := history.NewManager(registry, history.WithStore(st))
//	id, _ := m.Record(history.NewOperation(...))
//	m.Undo()
//	m.CreateBranch("rewrite-ch3")
//	m.SwitchBranch("main")
//
// # Coalescing and groups
//
// Two same-kind edits to the same target within the merge window collapse
// into one node, so fine-grained typing does not flood history. Explicit
// macro operations group several edits into one atomic undo unit:
//
//	m.BeginGroup("Batch replace")
//	// ... record several operations ...
//	m.EndGroup()
//
// # Durability
//
// With a store attached, every structural mutation is persisted to one
// SQLite file per project. Persistence is best-effort: a failed write is
// logged and retried, and a corrupt file loads as an empty history
// rather than failing project open. In-memory correctness never depends
// on the durable copy.
package history
