package history

// Applier moves external state across one operation kind. The engine never
// touches buffers, chapter files, or configuration itself; it only calls
// the registered applier with whole-value snapshots.
type Applier interface {
	// ApplyForward moves the target to the operation's new value.
	ApplyForward(target string, value []byte) error

	// ApplyInverse restores the target to the operation's old value.
	ApplyInverse(target string, value []byte) error
}

// ApplierFuncs adapts a pair of functions to the Applier interface. A nil
// function is a no-op, for kinds with a one-way direction.
type ApplierFuncs struct {
	Forward func(target string, value []byte) error
	Inverse func(target string, value []byte) error
}

// ApplyForward implements Applier.
func (a ApplierFuncs) ApplyForward(target string, value []byte) error {
	if a.Forward == nil {
		return nil
	}
	return a.Forward(target, value)
}

// ApplyInverse implements Applier.
func (a ApplierFuncs) ApplyInverse(target string, value []byte) error {
	if a.Inverse == nil {
		return nil
	}
	return a.Inverse(target, value)
}

// Registry maps operation kinds to their appliers. It is supplied by the
// integration layer at construction and read-only afterwards.
type Registry map[Kind]Applier

func (r Registry) forward(o *Operation) error {
	a, ok := r[o.Kind]
	if !ok {
		return &ApplierError{Kind: o.Kind, Target: o.Target, Forward: true, Err: ErrNoApplier}
	}
	if err := a.ApplyForward(o.Target, o.New); err != nil {
		return &ApplierError{Kind: o.Kind, Target: o.Target, Forward: true, Err: err}
	}
	return nil
}

func (r Registry) inverse(o *Operation) error {
	a, ok := r[o.Kind]
	if !ok {
		return &ApplierError{Kind: o.Kind, Target: o.Target, Err: ErrNoApplier}
	}
	if err := a.ApplyInverse(o.Target, o.Old); err != nil {
		return &ApplierError{Kind: o.Kind, Target: o.Target, Err: err}
	}
	return nil
}
