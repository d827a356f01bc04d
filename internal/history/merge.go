package history

// DefaultMergeWindow is the coalescing window in milliseconds: two edits
// of the same kind and target this close together collapse into one node.
const DefaultMergeWindow int64 = 2000

// merger decides whether an incoming operation coalesces with the node the
// cursor sits on, instead of creating a new node. Coalescing bounds
// history growth from fine-grained typing while a >=2s pause, a different
// target, or a different kind keeps a distinct undo step.
type merger struct {
	window  int64 // milliseconds
	enabled bool
}

// canMerge reports whether incoming should replace prev. Groups never
// merge, in either position; the manager additionally requires that no
// group is open and that the cursor sits at the active branch head.
func (mg merger) canMerge(prev Entry, incoming *Operation) bool {
	if !mg.enabled {
		return false
	}
	po, ok := prev.(*Operation)
	if !ok {
		return false
	}
	if po.Kind != incoming.Kind || po.Target != incoming.Target {
		return false
	}
	dt := incoming.Timestamp - po.Timestamp
	return dt >= 0 && dt < mg.window
}

// merge builds the replacement payload: the old value of the first edit,
// the new value and timestamp of the incoming one.
func (mg merger) merge(prev, incoming *Operation) *Operation {
	out := incoming.Clone()
	out.Old = nil
	if prev.Old != nil {
		out.Old = append([]byte(nil), prev.Old...)
	}
	return out
}
