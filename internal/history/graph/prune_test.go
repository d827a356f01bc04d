package graph

import (
	"strconv"
	"testing"
)

func TestPruneUnderCeilingIsNoop(t *testing.T) {
	g := New()
	for i := 0; i < 10; i++ {
		g.Append(testOp(strconv.Itoa(i)))
	}
	if removed := g.Prune(100); removed != nil {
		t.Errorf("prune under ceiling removed %v", removed)
	}
	if g.Len() != 11 {
		t.Errorf("node count changed to %d", g.Len())
	}
}

func TestPruneRerootsLongChain(t *testing.T) {
	g := New()
	var head uint64
	for i := 0; i < 1500; i++ {
		head = g.Append(testOp(strconv.Itoa(i))).ID
	}

	removed := g.Prune(1000)

	if g.Len() != 1000 {
		t.Fatalf("pruned graph has %d nodes, want 1000", g.Len())
	}
	if len(removed) != 501 {
		t.Errorf("removed %d nodes, want 501", len(removed))
	}
	b, _ := g.Branch(MainBranch)
	if b.Head != head {
		t.Error("head must survive pruning")
	}
	if g.CursorNode() != head {
		t.Error("cursor must survive pruning")
	}
	root, _ := g.Node(g.Root())
	if root.Payload != nil {
		t.Error("synthetic root must carry no payload")
	}
	if g.Depth(head) != 999 {
		t.Errorf("head depth after prune = %d, want 999", g.Depth(head))
	}
	// The surviving chain must still be walkable root-to-head.
	if path := g.PathFromRoot(head); len(path) != 1000 {
		t.Errorf("root-to-head path has %d nodes, want 1000", len(path))
	}
}

func TestPruneStopsAtCursor(t *testing.T) {
	g := New()
	ids := make([]uint64, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, g.Append(testOp(strconv.Itoa(i))).ID)
	}
	g.SetCursorNode(ids[4])

	g.Prune(3)

	if _, ok := g.Node(ids[4]); !ok {
		t.Fatal("cursor node was pruned")
	}
	if g.Root() != ids[4] {
		t.Errorf("new root = %d, want cursor node %d", g.Root(), ids[4])
	}
	// Everything from the cursor down to the head survives even though the
	// ceiling is still exceeded.
	if g.Len() != 6 {
		t.Errorf("node count = %d, want 6", g.Len())
	}
}

func TestPruneSweepsDeadSubtreeFirst(t *testing.T) {
	g := New()
	n1 := g.Append(testOp("1"))
	dead1 := g.Append(testOp("dead"))
	g.Append(testOp("dead-child"))
	g.SetCursorNode(n1.ID)
	live := g.Append(testOp("live")) // fork: head follows here, old chain dies

	g.Prune(3)

	if _, ok := g.Node(dead1.ID); ok {
		t.Error("abandoned subtree should be swept")
	}
	if _, ok := g.Node(live.ID); !ok {
		t.Error("head chain was removed")
	}
	b, _ := g.Branch(MainBranch)
	if b.Head != live.ID {
		t.Error("head moved during prune")
	}
}

func TestPruneNoSafeCandidate(t *testing.T) {
	g := New()
	n1 := g.Append(testOp("1"))
	g.SetCursorNode(g.Root())
	if _, err := g.AddBranch("alt"); err != nil {
		t.Fatal(err)
	}
	g.SetActive("alt", g.Root())
	n2 := g.Append(testOp("2"))

	// Root is a fork with a branch head in each arm; nothing can go.
	if removed := g.Prune(1); removed != nil {
		t.Errorf("prune removed %v with no safe candidate", removed)
	}
	if g.Len() != 3 {
		t.Errorf("node count = %d, want 3", g.Len())
	}
	for _, id := range []uint64{n1.ID, n2.ID} {
		if _, ok := g.Node(id); !ok {
			t.Errorf("protected node %d removed", id)
		}
	}
}
