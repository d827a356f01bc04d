package graph

import "sort"

// Prune enforces the retention ceiling after a structural mutation.
// Subtrees that no longer lead to any branch head or the cursor are swept
// first; the remaining excess is trimmed by re-rooting: the oldest
// surviving node on the shared chain becomes a synthetic root and the
// payloads above it are discarded. Branch heads, the cursor, and fork
// points for surviving heads are never removed. When no safe candidate
// exists the prune is a no-op.
//
// Returns the ids of removed nodes.
func (g *Graph) Prune(ceiling int) []uint64 {
	if ceiling <= 0 || len(g.nodes) <= ceiling {
		return nil
	}
	protected := g.protectedSet()
	removed := g.sweepDead(ceiling, protected)
	for len(g.nodes) > ceiling {
		id, ok := g.reroot(protected)
		if !ok {
			break
		}
		removed = append(removed, id)
	}
	return removed
}

// protectedSet returns the nodes retention must keep addressable: every
// branch head plus the cursor.
func (g *Graph) protectedSet() map[uint64]bool {
	p := map[uint64]bool{g.curNode: true}
	for _, b := range g.branches {
		p[b.Head] = true
	}
	return p
}

// sweepDead removes subtrees containing no protected node, oldest first,
// stopping as soon as the ceiling is met.
func (g *Graph) sweepDead(ceiling int, protected map[uint64]bool) []uint64 {
	live := make(map[uint64]bool, len(g.nodes))
	for id := range protected {
		for _, pid := range g.PathFromRoot(id) {
			live[pid] = true
		}
	}

	var deadRoots []uint64
	for id, n := range g.nodes {
		if !live[id] {
			continue
		}
		for _, c := range n.Children {
			if !live[c] {
				deadRoots = append(deadRoots, c)
			}
		}
	}
	sort.Slice(deadRoots, func(i, j int) bool { return deadRoots[i] < deadRoots[j] })

	var removed []uint64
	for _, id := range deadRoots {
		if len(g.nodes) <= ceiling {
			break
		}
		removed = append(removed, g.removeSubtree(id)...)
	}
	return removed
}

// removeSubtree detaches id from its parent and deletes the whole subtree.
func (g *Graph) removeSubtree(id uint64) []uint64 {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	if parent, ok := g.nodes[n.ParentID]; ok {
		kept := parent.Children[:0]
		for _, c := range parent.Children {
			if c != id {
				kept = append(kept, c)
			}
		}
		parent.Children = kept
	}

	var removed []uint64
	stack := []uint64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := g.nodes[cur]
		if !ok {
			continue
		}
		stack = append(stack, node.Children...)
		delete(g.nodes, cur)
		removed = append(removed, cur)
	}
	return removed
}

// reroot removes the current root sentinel and turns its only child into a
// new synthetic root, discarding that child's payload. Reports false when
// the root is a fork, still carries the cursor or a head, or the child is
// itself a branch head.
func (g *Graph) reroot(protected map[uint64]bool) (uint64, bool) {
	root := g.nodes[g.rootID]
	if len(root.Children) != 1 {
		return 0, false
	}
	if protected[g.rootID] {
		return 0, false
	}
	child := g.nodes[root.Children[0]]
	for _, b := range g.branches {
		if b.Head == child.ID {
			return 0, false
		}
	}

	old := g.rootID
	delete(g.nodes, old)
	child.ParentID = 0
	child.Payload = nil
	g.rootID = child.ID
	for _, b := range g.branches {
		if b.CreatedFrom == old {
			b.CreatedFrom = child.ID
		}
	}
	return old, true
}
