package graph

import "github.com/dshills/histree/internal/history/op"

// Node is one entry in the arena. Navigation is id lookup: each node holds
// its parent id and child ids in creation order, never raw pointers.
type Node struct {
	ID       uint64
	ParentID uint64 // 0 only for the root sentinel
	Children []uint64
	Branch   string   // active branch when the node was created
	Payload  op.Entry // nil only for the root sentinel
}

// IsRoot reports whether the node is the (possibly synthetic) root sentinel.
func (n *Node) IsRoot() bool { return n.ParentID == 0 }
