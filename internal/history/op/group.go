package op

import "fmt"

// Group is an ordered batch of operations treated as one atomic leaf:
// undone member-by-member in reverse order, redone in forward order.
type Group struct {
	Description string       `json:"desc,omitempty"`
	Ops         []*Operation `json:"ops"`
	Timestamp   int64        `json:"ts"` // timestamp of the first member
}

// NewGroup creates an empty group.
func NewGroup(description string) *Group {
	return &Group{Description: description}
}

// Add appends an operation. The group timestamp is taken from the first
// member added.
func (g *Group) Add(o *Operation) {
	if len(g.Ops) == 0 {
		g.Timestamp = o.Timestamp
	}
	g.Ops = append(g.Ops, o)
}

// Empty reports whether the group has no members.
func (g *Group) Empty() bool { return len(g.Ops) == 0 }

// Len returns the number of member operations.
func (g *Group) Len() int { return len(g.Ops) }

// EntryDescription implements Entry.
func (g *Group) EntryDescription() string {
	if g.Description != "" {
		return g.Description
	}
	if len(g.Ops) == 1 {
		return g.Ops[0].EntryDescription()
	}
	return fmt.Sprintf("%d operations", len(g.Ops))
}

// EntryTimestamp implements Entry.
func (g *Group) EntryTimestamp() int64 { return g.Timestamp }
