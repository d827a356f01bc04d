package graph

// PathFromRoot returns the node ids from the root to id, inclusive.
// Returns nil for an unknown id.
func (g *Graph) PathFromRoot(id uint64) []uint64 {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var rev []uint64
	for {
		rev = append(rev, n.ID)
		if n.ID == g.rootID {
			break
		}
		parent, ok := g.nodes[n.ParentID]
		if !ok {
			return nil
		}
		n = parent
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// Depth returns the number of payload nodes between the root and id,
// inclusive of id itself. The root has depth 0.
func (g *Graph) Depth(id uint64) int {
	path := g.PathFromRoot(id)
	if path == nil {
		return 0
	}
	return len(path) - 1
}

// IsAncestor reports whether anc lies on the path from the root to id,
// including id itself.
func (g *Graph) IsAncestor(anc, id uint64) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	for {
		if n.ID == anc {
			return true
		}
		if n.ID == g.rootID {
			return false
		}
		parent, ok := g.nodes[n.ParentID]
		if !ok {
			return false
		}
		n = parent
	}
}

// LCA returns the lowest common ancestor of a and b, or the root id if
// either is unknown.
func (g *Graph) LCA(a, b uint64) uint64 {
	seen := make(map[uint64]bool)
	n, ok := g.nodes[a]
	if !ok {
		return g.rootID
	}
	for {
		seen[n.ID] = true
		if n.ID == g.rootID {
			break
		}
		n = g.nodes[n.ParentID]
	}
	m, ok := g.nodes[b]
	if !ok {
		return g.rootID
	}
	for {
		if seen[m.ID] {
			return m.ID
		}
		if m.ID == g.rootID {
			return g.rootID
		}
		m = g.nodes[m.ParentID]
	}
}

// NextToward returns the child of from that lies on the path toward the
// descendant to. Reports false when to is not a strict descendant of from.
func (g *Graph) NextToward(from, to uint64) (uint64, bool) {
	n, ok := g.nodes[to]
	if !ok || to == from {
		return 0, false
	}
	for {
		if n.ParentID == from {
			return n.ID, true
		}
		if n.ID == g.rootID {
			return 0, false
		}
		parent, ok := g.nodes[n.ParentID]
		if !ok {
			return 0, false
		}
		n = parent
	}
}

// SwitchPath computes the node ids crossed when moving the cursor from one
// node to another through their lowest common ancestor. ups are inverted
// first, in order from the starting node down to (but excluding) the
// ancestor; downs are then applied forward, in order from just below the
// ancestor out to the destination.
func (g *Graph) SwitchPath(from, to uint64) (ups, downs []uint64) {
	lca := g.LCA(from, to)

	for id := from; id != lca; {
		n := g.nodes[id]
		ups = append(ups, id)
		id = n.ParentID
	}

	var rev []uint64
	for id := to; id != lca; {
		n := g.nodes[id]
		rev = append(rev, id)
		id = n.ParentID
	}
	for i := len(rev) - 1; i >= 0; i-- {
		downs = append(downs, rev[i])
	}
	return ups, downs
}
