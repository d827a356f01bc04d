package history

import (
	"github.com/google/uuid"

	"github.com/dshills/histree/internal/history/op"
)

// groupBuilder accumulates operations while a group is open. Groups do not
// nest; recording while open buffers here instead of touching the graph.
type groupBuilder struct {
	open bool
	desc string
	ops  []*op.Operation
}

func (b *groupBuilder) begin(desc string) {
	b.open = true
	b.desc = desc
	b.ops = nil
}

func (b *groupBuilder) add(o *op.Operation) {
	b.ops = append(b.ops, o)
}

// flush closes the builder and returns the accumulated group, or nil when
// nothing was buffered. Members are stamped with a shared group id.
func (b *groupBuilder) flush() *op.Group {
	b.open = false
	if len(b.ops) == 0 {
		b.ops = nil
		return nil
	}
	g := op.NewGroup(b.desc)
	id := uuid.NewString()
	for _, o := range b.ops {
		o.GroupID = id
		g.Add(o)
	}
	b.ops = nil
	return g
}

// cancel drops the buffer without creating a node. Operations already
// applied by the caller still affect external state.
func (b *groupBuilder) cancel() {
	b.open = false
	b.ops = nil
}
