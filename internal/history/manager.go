package history

import (
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dshills/histree/internal/config"
	"github.com/dshills/histree/internal/history/graph"
	"github.com/dshills/histree/internal/history/op"
)

// Aliases for the payload types, so integration code only imports this
// package.
type (
	Kind      = op.Kind
	Operation = op.Operation
	Group     = op.Group
	Entry     = op.Entry
)

// NewOperation creates an operation stamped with the current time.
func NewOperation(kind Kind, target string, old, new []byte) *Operation {
	return op.New(kind, target, old, new)
}

// DefaultMaxNodes is the retention ceiling on total node count.
const DefaultMaxNodes = 1000

// Store is the persistence boundary. Writes are best-effort: a failure is
// logged and retried as a full rewrite on the next mutation, never
// blocking the in-memory operation.
type Store interface {
	AppendNode(n *graph.Node, b graph.Branch, curBranch string, curNode, nextID uint64) error
	ReplacePayload(id uint64, e op.Entry) error
	SetCursor(branch string, node uint64) error
	PutBranch(b graph.Branch) error
	DeleteBranch(name string) error
	Rewrite(g *graph.Graph) error
	Load() (*graph.Graph, error)
	Close() error
}

// Manager is the public façade over one project's history tree: record,
// undo/redo, branches, queries, and observer dispatch. One manager per
// open project, passed explicitly to callers; all public operations are
// mutually exclusive critical sections.
type Manager struct {
	mu sync.Mutex

	graph *graph.Graph
	store Store
	reg   Registry

	mg       merger
	gb       groupBuilder
	maxNodes int

	log       *slog.Logger
	observers []registeredObserver
	inNotify  atomic.Bool

	// inconsistent is set when compensation after an applier failure
	// itself failed; navigation stays disabled until ClearHistory or a
	// reload.
	inconsistent bool
	storeDirty   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore attaches a persistence backend. Without one the manager is
// memory-only.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMaxNodes sets the retention ceiling on total node count.
func WithMaxNodes(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxNodes = n
		}
	}
}

// WithMergeWindow sets the coalescing window in milliseconds.
func WithMergeWindow(ms int64) Option {
	return func(m *Manager) {
		if ms >= 0 {
			m.mg.window = ms
		}
	}
}

// WithAutoMerge enables or disables coalescing.
func WithAutoMerge(enabled bool) Option {
	return func(m *Manager) { m.mg.enabled = enabled }
}

// WithConfig applies the engine tunables from a loaded configuration.
func WithConfig(cfg config.Config) Option {
	return func(m *Manager) {
		WithMaxNodes(cfg.MaxNodes)(m)
		WithMergeWindow(cfg.MergeWindowMS)(m)
		WithAutoMerge(cfg.AutoMerge)(m)
	}
}

// NewManager creates a manager for one project. When a store is attached,
// the persisted tree is loaded; a read failure is logged and the manager
// starts from an empty graph rather than failing project load.
func NewManager(reg Registry, opts ...Option) *Manager {
	m := &Manager{
		graph:    graph.New(),
		reg:      reg,
		mg:       merger{window: DefaultMergeWindow, enabled: true},
		maxNodes: DefaultMaxNodes,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store != nil {
		g, err := m.store.Load()
		switch {
		case err != nil:
			m.log.Warn("history load failed, starting empty", "err", err)
			m.storeDirty = true
		case g != nil:
			m.graph = g
		default:
			// Fresh database: seed the durable copy so deltas have
			// a base to build on.
			if err := m.store.Rewrite(m.graph); err != nil {
				m.log.Warn("history init write failed", "err", err)
				m.storeDirty = true
			}
		}
	}
	return m
}

// Close flushes a dirty durable copy and closes the store.
func (m *Manager) Close() error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	if m.storeDirty {
		if err := m.store.Rewrite(m.graph); err != nil {
			m.log.Warn("history flush on close failed", "err", err)
		} else {
			m.storeDirty = false
		}
	}
	return m.store.Close()
}

// Record adds an operation to history. Inside an open group it buffers;
// otherwise it either coalesces into the node under the cursor or appends
// a new node on the active branch, moving cursor and branch head there.
// Returns the affected node id (0 while buffering into a group).
func (m *Manager) Record(o *Operation) (uint64, error) {
	if m.inNotify.Load() {
		return 0, ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if o == nil {
		return 0, fmt.Errorf("%w: nil operation", ErrInvalidState)
	}
	if o.Description == "" {
		o.Description = o.Describe()
	}

	if m.gb.open {
		m.gb.add(o)
		return 0, nil
	}

	branch := m.graph.ActiveBranch()
	cur := m.graph.CursorNode()
	if b, _ := m.graph.Branch(branch); b.Head == cur && cur != m.graph.Root() {
		if n, _ := m.graph.Node(cur); m.mg.canMerge(n.Payload, o) {
			merged := m.mg.merge(n.Payload.(*Operation), o)
			if err := m.graph.ReplacePayload(cur, merged); err != nil {
				return 0, err
			}
			m.persist(func(s Store) error { return s.ReplacePayload(cur, merged) })
			m.notifyLocked(Event{
				Type:        EventRecorded,
				Description: merged.Description,
				Branch:      branch,
				NodeID:      cur,
			})
			return cur, nil
		}
	}

	id := m.appendLocked(o)
	return id, nil
}

// appendLocked appends a payload under the cursor, prunes, persists, and
// notifies. Caller holds the lock.
func (m *Manager) appendLocked(payload Entry) uint64 {
	n := m.graph.Append(payload)
	branch := m.graph.ActiveBranch()
	b, _ := m.graph.Branch(branch)
	headCopy := *b

	if removed := m.graph.Prune(m.maxNodes); len(removed) > 0 {
		m.log.Debug("history pruned", "removed", len(removed), "total", m.graph.Len())
		m.persistRewrite()
	} else {
		curBranch, curNode := m.graph.Cursor()
		next := m.graph.NextID()
		m.persist(func(s Store) error {
			return s.AppendNode(n, headCopy, curBranch, curNode, next)
		})
	}

	m.notifyLocked(Event{
		Type:        EventRecorded,
		Description: payload.EntryDescription(),
		Branch:      branch,
		NodeID:      n.ID,
	})
	return n.ID
}

// BeginGroup opens a macro group. Groups do not nest.
func (m *Manager) BeginGroup(description string) error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gb.open {
		return fmt.Errorf("%w: group already open", ErrInvalidState)
	}
	m.gb.begin(description)
	return nil
}

// EndGroup closes the open group and flushes its buffer as one atomic
// node. An empty group is a silent no-op.
func (m *Manager) EndGroup() error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.gb.open {
		return fmt.Errorf("%w: no group open", ErrInvalidState)
	}
	g := m.gb.flush()
	if g == nil {
		return nil
	}
	m.appendLocked(g)
	return nil
}

// CancelGroup drops the open group without creating a node. Operations
// already applied by the caller still affect external state.
func (m *Manager) CancelGroup() error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.gb.open {
		return fmt.Errorf("%w: no group open", ErrInvalidState)
	}
	m.gb.cancel()
	return nil
}

// IsGrouping reports whether a group is currently open.
func (m *Manager) IsGrouping() bool {
	if m.inNotify.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gb.open
}

// Undo applies the inverse of the node under the cursor and moves the
// cursor to its parent. The branch head is left unchanged: undo moves
// only the cursor, which is what lets CreateBranch fork a new future from
// mid-history.
func (m *Manager) Undo() error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inconsistent {
		return ErrInconsistent
	}
	if m.gb.open {
		return fmt.Errorf("%w: group open", ErrInvalidState)
	}
	cur := m.graph.CursorNode()
	if cur == m.graph.Root() {
		return ErrNothingToUndo
	}
	n, _ := m.graph.Node(cur)
	if err := m.applyInverse(n.Payload); err != nil {
		return err
	}

	m.graph.SetCursorNode(n.ParentID)
	m.persistCursor()
	m.notifyLocked(Event{
		Type:        EventUndone,
		Description: n.Payload.EntryDescription(),
		Branch:      m.graph.ActiveBranch(),
		NodeID:      n.ID,
	})
	return nil
}

// Redo re-applies the next node below the cursor. With one child it
// re-enters it; with several it follows the child on the active branch's
// path toward its head. A fork whose head is not a descendant of the
// cursor fails with ErrAmbiguousRedo.
func (m *Manager) Redo() error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inconsistent {
		return ErrInconsistent
	}
	if m.gb.open {
		return fmt.Errorf("%w: group open", ErrInvalidState)
	}
	next, err := m.redoTargetLocked()
	if err != nil {
		return err
	}
	n, _ := m.graph.Node(next)
	if err := m.applyForward(n.Payload); err != nil {
		return err
	}

	m.graph.SetCursorNode(next)
	m.persistCursor()
	m.notifyLocked(Event{
		Type:        EventRedone,
		Description: n.Payload.EntryDescription(),
		Branch:      m.graph.ActiveBranch(),
		NodeID:      n.ID,
	})
	return nil
}

// redoTargetLocked resolves the node a redo would enter.
func (m *Manager) redoTargetLocked() (uint64, error) {
	cur := m.graph.CursorNode()
	b, _ := m.graph.Branch(m.graph.ActiveBranch())
	if cur == b.Head {
		return 0, ErrNothingToRedo
	}
	n, _ := m.graph.Node(cur)
	switch len(n.Children) {
	case 0:
		return 0, ErrNothingToRedo
	case 1:
		return n.Children[0], nil
	default:
		next, ok := m.graph.NextToward(cur, b.Head)
		if !ok {
			return 0, ErrAmbiguousRedo
		}
		return next, nil
	}
}

// CanUndo reports whether Undo would succeed. Pure predicate, no side
// effects; false from inside an observer callback.
func (m *Manager) CanUndo() bool {
	if m.inNotify.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inconsistent || m.gb.open {
		return false
	}
	return m.graph.CursorNode() != m.graph.Root()
}

// CanRedo reports whether Redo would succeed.
func (m *Manager) CanRedo() bool {
	if m.inNotify.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inconsistent || m.gb.open {
		return false
	}
	_, err := m.redoTargetLocked()
	return err == nil
}

// CreateBranch creates a named branch at the current cursor position. The
// cursor does not move.
func (m *Manager) CreateBranch(name string) error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return fmt.Errorf("%w: empty branch name", ErrInvalidState)
	}
	b, err := m.graph.AddBranch(name)
	if err != nil {
		return err
	}
	branchCopy := *b
	m.persist(func(s Store) error { return s.PutBranch(branchCopy) })
	m.notifyLocked(Event{
		Type:        EventBranchCreated,
		Description: fmt.Sprintf("Created branch %q", name),
		Branch:      name,
		NodeID:      b.Head,
	})
	return nil
}

// SwitchBranch moves the cursor to another branch's head by undoing back
// to the lowest common ancestor and redoing out to the head, strictly in
// that order. Switching to the active branch is a no-op.
func (m *Manager) SwitchBranch(name string) error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inconsistent {
		return ErrInconsistent
	}
	if m.gb.open {
		return fmt.Errorf("%w: group open", ErrInvalidState)
	}
	from := m.graph.ActiveBranch()
	if name == from {
		return nil
	}
	b, ok := m.graph.Branch(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBranch, name)
	}

	if err := m.walkLocked(m.graph.CursorNode(), b.Head); err != nil {
		return err
	}
	m.graph.SetActive(name, b.Head)
	m.persistCursor()
	m.notifyLocked(Event{
		Type:        EventBranchSwitched,
		Description: fmt.Sprintf("Switched to branch %q", name),
		Branch:      name,
		FromBranch:  from,
		NodeID:      b.Head,
	})
	return nil
}

// DeleteBranch drops a branch pointer. "main" and the active branch are
// protected; nodes are never deleted here.
func (m *Manager) DeleteBranch(name string) error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == graph.MainBranch || name == m.graph.ActiveBranch() {
		return fmt.Errorf("%w: %q", ErrProtectedBranch, name)
	}
	if err := m.graph.RemoveBranch(name); err != nil {
		return err
	}
	m.persist(func(s Store) error { return s.DeleteBranch(name) })
	m.notifyLocked(Event{
		Type:        EventBranchDeleted,
		Description: fmt.Sprintf("Deleted branch %q", name),
		Branch:      name,
	})
	return nil
}

// JumpTo moves the cursor to an arbitrary node, crossing the lowest
// common ancestor as SwitchBranch does. The active branch and its head
// are unchanged; no event is fired.
func (m *Manager) JumpTo(id uint64) error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inconsistent {
		return ErrInconsistent
	}
	if m.gb.open {
		return fmt.Errorf("%w: group open", ErrInvalidState)
	}
	if _, ok := m.graph.Node(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if err := m.walkLocked(m.graph.CursorNode(), id); err != nil {
		return err
	}
	m.graph.SetCursorNode(id)
	m.persistCursor()
	return nil
}

// walkLocked applies inverses from the starting node up to the lowest
// common ancestor, then forwards down to the destination. On an applier
// failure it re-applies compensating steps to restore the starting
// position; if compensation itself fails the manager degrades to the
// inconsistent state.
func (m *Manager) walkLocked(from, to uint64) error {
	ups, downs := m.graph.SwitchPath(from, to)

	for i, id := range ups {
		n, _ := m.graph.Node(id)
		if err := m.applyInverse(n.Payload); err != nil {
			m.compensateUps(ups[:i])
			return err
		}
	}
	for i, id := range downs {
		n, _ := m.graph.Node(id)
		if err := m.applyForward(n.Payload); err != nil {
			m.compensateDowns(downs[:i])
			if !m.inconsistent {
				m.compensateUps(ups)
			}
			return err
		}
	}
	return nil
}

// compensateUps re-applies forwards for nodes that were just inverted,
// walking back out to the original cursor.
func (m *Manager) compensateUps(inverted []uint64) {
	for i := len(inverted) - 1; i >= 0; i-- {
		n, _ := m.graph.Node(inverted[i])
		if err := m.applyForward(n.Payload); err != nil {
			m.degradeLocked(err)
			return
		}
	}
}

// compensateDowns re-inverts nodes that were just applied forward.
func (m *Manager) compensateDowns(applied []uint64) {
	for i := len(applied) - 1; i >= 0; i-- {
		n, _ := m.graph.Node(applied[i])
		if err := m.applyInverse(n.Payload); err != nil {
			m.degradeLocked(err)
			return
		}
	}
}

// degradeLocked marks history inconsistent after a failed compensation.
func (m *Manager) degradeLocked(err error) {
	m.inconsistent = true
	m.log.Error("history compensation failed, disabling undo/redo", "err", err)
}

// applyInverse reverses one payload. Group members are inverted in
// reverse order; a mid-group failure re-applies the already-inverted
// members before returning.
func (m *Manager) applyInverse(e Entry) error {
	switch v := e.(type) {
	case *Operation:
		return m.reg.inverse(v)
	case *Group:
		for i := len(v.Ops) - 1; i >= 0; i-- {
			if err := m.reg.inverse(v.Ops[i]); err != nil {
				for j := i + 1; j < len(v.Ops); j++ {
					if ferr := m.reg.forward(v.Ops[j]); ferr != nil {
						m.degradeLocked(ferr)
						break
					}
				}
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown payload %T", ErrInvalidState, e)
	}
}

// applyForward applies one payload. Group members run in order; a
// mid-group failure re-inverts the already-applied members.
func (m *Manager) applyForward(e Entry) error {
	switch v := e.(type) {
	case *Operation:
		return m.reg.forward(v)
	case *Group:
		for i, o := range v.Ops {
			if err := m.reg.forward(o); err != nil {
				for j := i - 1; j >= 0; j-- {
					if ierr := m.reg.inverse(v.Ops[j]); ierr != nil {
						m.degradeLocked(ierr)
						break
					}
				}
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown payload %T", ErrInvalidState, e)
	}
}

// ClearHistory resets the tree to the root sentinel, repoints every branch
// at it, and clears the degraded flag. Irreversible.
func (m *Manager) ClearHistory() error {
	if m.inNotify.Load() {
		return ErrReentrantCall
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gb.cancel()
	m.graph.Clear()
	m.inconsistent = false
	m.persistRewrite()
	m.notifyLocked(Event{
		Type:        EventCleared,
		Description: "History cleared",
		Branch:      m.graph.ActiveBranch(),
	})
	return nil
}

// EntryInfo is a read-only view of one history entry, for listings and
// export.
type EntryInfo struct {
	NodeID      uint64
	Kind        Kind
	Target      string
	Description string
	Timestamp   int64 // Unix milliseconds
	Grouped     bool
	Members     int
}

// GroupKind is the Kind reported for group entries in listings.
const GroupKind Kind = "group"

func entryInfo(n *graph.Node) EntryInfo {
	info := EntryInfo{NodeID: n.ID}
	switch v := n.Payload.(type) {
	case *Operation:
		info.Kind = v.Kind
		info.Target = v.Target
		info.Description = v.Description
		info.Timestamp = v.Timestamp
	case *Group:
		info.Kind = GroupKind
		info.Description = v.EntryDescription()
		info.Timestamp = v.Timestamp
		info.Grouped = true
		info.Members = v.Len()
	}
	return info
}

// History returns the most recent entries on the active branch's
// root-to-head path, newest first, bounded by limit (limit <= 0 means
// unbounded). The sequence is finite and restartable; each iteration
// snapshots under the lock. Iterating from inside an observer callback
// yields nothing.
func (m *Manager) History(limit int) iter.Seq[EntryInfo] {
	return func(yield func(EntryInfo) bool) {
		if m.inNotify.Load() {
			return
		}
		m.mu.Lock()
		b, _ := m.graph.Branch(m.graph.ActiveBranch())
		var infos []EntryInfo
		for id := b.Head; id != m.graph.Root(); {
			n, ok := m.graph.Node(id)
			if !ok {
				break
			}
			infos = append(infos, entryInfo(n))
			if limit > 0 && len(infos) >= limit {
				break
			}
			id = n.ParentID
		}
		m.mu.Unlock()

		for _, info := range infos {
			if !yield(info) {
				return
			}
		}
	}
}

// LastEntry returns the entry under the cursor, if the cursor is not at
// the root.
func (m *Manager) LastEntry() (EntryInfo, bool) {
	if m.inNotify.Load() {
		return EntryInfo{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.graph.CursorNode()
	if cur == m.graph.Root() {
		return EntryInfo{}, false
	}
	n, _ := m.graph.Node(cur)
	return entryInfo(n), true
}

// UndoCount returns the number of undo steps available from the cursor.
func (m *Manager) UndoCount() int {
	if m.inNotify.Load() {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.Depth(m.graph.CursorNode())
}

// RedoCount returns the number of redo steps between the cursor and the
// active branch head, or 0 when the head is not a descendant of the
// cursor.
func (m *Manager) RedoCount() int {
	if m.inNotify.Load() {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redoCountLocked()
}

func (m *Manager) redoCountLocked() int {
	cur := m.graph.CursorNode()
	b, _ := m.graph.Branch(m.graph.ActiveBranch())
	if !m.graph.IsAncestor(cur, b.Head) {
		return 0
	}
	return m.graph.Depth(b.Head) - m.graph.Depth(cur)
}

// BranchInfo is a read-only view of one branch.
type BranchInfo struct {
	Name        string
	Head        uint64
	CreatedFrom uint64
	CreatedAt   int64 // Unix milliseconds
	Active      bool
}

// Branches returns all branches ordered by creation time.
func (m *Manager) Branches() []BranchInfo {
	if m.inNotify.Load() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	active := m.graph.ActiveBranch()
	var out []BranchInfo
	for _, b := range m.graph.Branches() {
		out = append(out, BranchInfo{
			Name:        b.Name,
			Head:        b.Head,
			CreatedFrom: b.CreatedFrom,
			CreatedAt:   b.CreatedAt,
			Active:      b.Name == active,
		})
	}
	return out
}

// ActiveBranch returns the current branch name.
func (m *Manager) ActiveBranch() string {
	if m.inNotify.Load() {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.ActiveBranch()
}

// Stats summarizes the manager state for status displays.
type Stats struct {
	UndoDepth    int
	RedoDepth    int
	Branches     int
	Nodes        int
	ActiveBranch string
	Inconsistent bool
}

// Stats returns a snapshot of the manager state.
func (m *Manager) Stats() Stats {
	if m.inNotify.Load() {
		return Stats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		UndoDepth:    m.graph.Depth(m.graph.CursorNode()),
		RedoDepth:    m.redoCountLocked(),
		Branches:     len(m.graph.Branches()),
		Nodes:        m.graph.Len(),
		ActiveBranch: m.graph.ActiveBranch(),
		Inconsistent: m.inconsistent,
	}
}

// persist runs one delta write, or a full rewrite when a previous write
// failed. Persistence never blocks the in-memory mutation.
func (m *Manager) persist(delta func(Store) error) {
	if m.store == nil {
		return
	}
	if m.storeDirty {
		m.persistRewrite()
		return
	}
	if err := delta(m.store); err != nil {
		m.log.Warn("history persist failed", "err", err)
		m.storeDirty = true
	}
}

func (m *Manager) persistRewrite() {
	if m.store == nil {
		return
	}
	if err := m.store.Rewrite(m.graph); err != nil {
		m.log.Warn("history rewrite failed", "err", err)
		m.storeDirty = true
		return
	}
	m.storeDirty = false
}

func (m *Manager) persistCursor() {
	branch, node := m.graph.Cursor()
	m.persist(func(s Store) error { return s.SetCursor(branch, node) })
}
