// Package graph implements the in-memory history tree: an id-addressed
// arena of nodes, the branch table, the cursor, path computation, and
// retention pruning.
package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/dshills/histree/internal/history/op"
)

// MainBranch always exists, is rooted at the tree root, and can never be
// deleted.
const MainBranch = "main"

// Branch is a named pointer to a head node.
type Branch struct {
	Name        string
	Head        uint64
	CreatedFrom uint64
	CreatedAt   int64 // Unix milliseconds
}

// Graph owns all history nodes. The tree is rooted at a single sentinel
// node with no payload; every other node has exactly one parent. The
// cursor is the engine's current position and is independent of any
// branch head.
type Graph struct {
	nodes    map[uint64]*Node
	branches map[string]*Branch
	rootID   uint64
	nextID   uint64

	curBranch string
	curNode   uint64
}

// New creates a graph holding only the root sentinel, with "main" pointing
// at it and the cursor on it.
func New() *Graph {
	root := &Node{ID: 1, Branch: MainBranch}
	return &Graph{
		nodes: map[uint64]*Node{root.ID: root},
		branches: map[string]*Branch{
			MainBranch: {
				Name:        MainBranch,
				Head:        root.ID,
				CreatedFrom: root.ID,
				CreatedAt:   time.Now().UnixMilli(),
			},
		},
		rootID:    root.ID,
		nextID:    root.ID + 1,
		curBranch: MainBranch,
		curNode:   root.ID,
	}
}

// Build reconstructs a graph from persisted rows. Child lists are rebuilt
// from parent ids in id order (ids are monotonic, so id order is creation
// order). Any structural violation returns ErrCorrupt.
func Build(nodes []*Node, branches []*Branch, rootID, nextID uint64, curBranch string, curNode uint64) (*Graph, error) {
	g := &Graph{
		nodes:     make(map[uint64]*Node, len(nodes)),
		branches:  make(map[string]*Branch, len(branches)),
		rootID:    rootID,
		nextID:    nextID,
		curBranch: curBranch,
		curNode:   curNode,
	}
	for _, n := range nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrCorrupt, n.ID)
		}
		n.Children = nil
		g.nodes[n.ID] = n
	}
	root, ok := g.nodes[rootID]
	if !ok {
		return nil, fmt.Errorf("%w: missing root node %d", ErrCorrupt, rootID)
	}
	if root.ParentID != 0 || root.Payload != nil {
		return nil, fmt.Errorf("%w: node %d is not a valid root", ErrCorrupt, rootID)
	}

	ids := make([]uint64, 0, len(nodes))
	for id := range g.nodes {
		ids = append(ids, id)
		if id >= nextID {
			return nil, fmt.Errorf("%w: node id %d beyond next id %d", ErrCorrupt, id, nextID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		n := g.nodes[id]
		if n.ID == rootID {
			continue
		}
		parent, ok := g.nodes[n.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: node %d has unknown parent %d", ErrCorrupt, n.ID, n.ParentID)
		}
		parent.Children = append(parent.Children, n.ID)
	}

	for _, b := range branches {
		if _, ok := g.nodes[b.Head]; !ok {
			return nil, fmt.Errorf("%w: branch %q head %d missing", ErrCorrupt, b.Name, b.Head)
		}
		if _, ok := g.nodes[b.CreatedFrom]; !ok {
			return nil, fmt.Errorf("%w: branch %q created-from %d missing", ErrCorrupt, b.Name, b.CreatedFrom)
		}
		g.branches[b.Name] = b
	}
	if _, ok := g.branches[MainBranch]; !ok {
		return nil, fmt.Errorf("%w: missing %q branch", ErrCorrupt, MainBranch)
	}
	if _, ok := g.branches[curBranch]; !ok {
		return nil, fmt.Errorf("%w: cursor branch %q missing", ErrCorrupt, curBranch)
	}
	if _, ok := g.nodes[curNode]; !ok {
		return nil, fmt.Errorf("%w: cursor node %d missing", ErrCorrupt, curNode)
	}
	return g, nil
}

// Root returns the id of the (possibly synthetic) root sentinel.
func (g *Graph) Root() uint64 { return g.rootID }

// NextID returns the persisted monotonic id counter.
func (g *Graph) NextID() uint64 { return g.nextID }

// Len returns the total node count, including the root sentinel.
func (g *Graph) Len() int { return len(g.nodes) }

// Cursor returns the current branch name and node id.
func (g *Graph) Cursor() (branch string, node uint64) { return g.curBranch, g.curNode }

// CursorNode returns the current node id.
func (g *Graph) CursorNode() uint64 { return g.curNode }

// ActiveBranch returns the current branch name.
func (g *Graph) ActiveBranch() string { return g.curBranch }

// Node looks up a node by id.
func (g *Graph) Node(id uint64) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Branch looks up a branch by name.
func (g *Graph) Branch(name string) (*Branch, bool) {
	b, ok := g.branches[name]
	return b, ok
}

// Branches returns all branches ordered by creation time, then name.
func (g *Graph) Branches() []*Branch {
	out := make([]*Branch, 0, len(g.branches))
	for _, b := range g.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Nodes returns all nodes in id order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Append creates a new node under the cursor on the active branch and
// advances both the cursor and the branch head to it.
func (g *Graph) Append(payload op.Entry) *Node {
	parent := g.nodes[g.curNode]
	n := &Node{
		ID:       g.nextID,
		ParentID: parent.ID,
		Branch:   g.curBranch,
		Payload:  payload,
	}
	g.nextID++
	g.nodes[n.ID] = n
	parent.Children = append(parent.Children, n.ID)
	g.curNode = n.ID

	b := g.branches[g.curBranch]
	b.Head = n.ID
	// Recording above the fork after an undo can leave the old
	// created_from below the new head; repoint it to keep the head a
	// descendant of its fork node.
	if !g.IsAncestor(b.CreatedFrom, b.Head) {
		b.CreatedFrom = parent.ID
	}
	return n
}

// ReplacePayload swaps the stored payload of an existing node, keeping its
// id and position. Used by merge coalescing.
func (g *Graph) ReplacePayload(id uint64, payload op.Entry) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	n.Payload = payload
	return nil
}

// AddBranch creates a branch at the current cursor position. The cursor is
// unchanged.
func (g *Graph) AddBranch(name string) (*Branch, error) {
	if _, exists := g.branches[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateBranch, name)
	}
	b := &Branch{
		Name:        name,
		Head:        g.curNode,
		CreatedFrom: g.curNode,
		CreatedAt:   time.Now().UnixMilli(),
	}
	g.branches[name] = b
	return b, nil
}

// RemoveBranch drops a branch pointer. Nodes are never removed here;
// retention handles unreachable subtrees.
func (g *Graph) RemoveBranch(name string) error {
	if _, ok := g.branches[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBranch, name)
	}
	delete(g.branches, name)
	return nil
}

// SetCursorNode moves the cursor within the current branch.
func (g *Graph) SetCursorNode(id uint64) { g.curNode = id }

// SetActive moves the cursor to a node on another branch.
func (g *Graph) SetActive(branch string, node uint64) {
	g.curBranch = branch
	g.curNode = node
}

// Clear resets the graph to the root sentinel only. All branches are
// repointed at the root and the cursor moves there; the id counter keeps
// counting (ids are unique for the project's lifetime).
func (g *Graph) Clear() {
	root := g.nodes[g.rootID]
	root.Children = nil
	g.nodes = map[uint64]*Node{g.rootID: root}
	for _, b := range g.branches {
		b.Head = g.rootID
		b.CreatedFrom = g.rootID
	}
	g.curNode = g.rootID
}
