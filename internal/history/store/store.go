// Package store persists one project's history tree in a single SQLite
// file: the node arena, the branch table, the cursor, and the id counter.
// Writes are deltas in one transaction per mutation; Load rebuilds the
// full graph and must round-trip exactly.
package store

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/dshills/histree/internal/history/codec"
	"github.com/dshills/histree/internal/history/graph"
	"github.com/dshills/histree/internal/history/op"
)

const formatVersion = 1

// Store is the SQLite-backed history persistence layer.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the history database and initializes the schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One logical owner per project; a single connection keeps writes
	// strictly ordered.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id        INTEGER PRIMARY KEY,
		parent_id INTEGER NOT NULL,
		branch    TEXT NOT NULL,
		payload   BLOB
	);

	CREATE TABLE IF NOT EXISTS branches (
		name         TEXT PRIMARY KEY,
		head_id      INTEGER NOT NULL,
		created_from INTEGER NOT NULL,
		created_at   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AppendNode persists a record delta: the new node, its branch's moved
// head, the cursor, and the id counter, in one transaction.
func (s *Store) AppendNode(n *graph.Node, b graph.Branch, curBranch string, curNode, nextID uint64) error {
	payload, err := codec.Encode(n.Payload)
	if err != nil {
		return err
	}
	return s.tx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO nodes (id, parent_id, branch, payload) VALUES (?, ?, ?, ?)`,
			n.ID, n.ParentID, n.Branch, payload,
		); err != nil {
			return err
		}
		if err := upsertBranch(tx, b); err != nil {
			return err
		}
		if err := setMeta(tx, "cursor_branch", curBranch); err != nil {
			return err
		}
		if err := setMeta(tx, "cursor_node", strconv.FormatUint(curNode, 10)); err != nil {
			return err
		}
		return setMeta(tx, "next_id", strconv.FormatUint(nextID, 10))
	})
}

// ReplacePayload persists a merge: the same node id with a new payload.
func (s *Store) ReplacePayload(id uint64, e op.Entry) error {
	payload, err := codec.Encode(e)
	if err != nil {
		return err
	}
	return s.tx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE nodes SET payload = ? WHERE id = ?`, payload, id)
		return err
	})
}

// SetCursor persists a cursor move (undo, redo, branch switch, jump).
func (s *Store) SetCursor(branch string, node uint64) error {
	return s.tx(func(tx *sql.Tx) error {
		if err := setMeta(tx, "cursor_branch", branch); err != nil {
			return err
		}
		return setMeta(tx, "cursor_node", strconv.FormatUint(node, 10))
	})
}

// PutBranch persists a created or repointed branch.
func (s *Store) PutBranch(b graph.Branch) error {
	return s.tx(func(tx *sql.Tx) error { return upsertBranch(tx, b) })
}

// DeleteBranch removes a branch row. Nodes are untouched.
func (s *Store) DeleteBranch(name string) error {
	return s.tx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM branches WHERE name = ?`, name)
		return err
	})
}

// Rewrite replaces the entire durable copy with the given graph. Used
// after pruning, clear, and to resync after a failed delta write.
func (s *Store) Rewrite(g *graph.Graph) error {
	return s.tx(func(tx *sql.Tx) error {
		for _, table := range []string{"nodes", "branches", "meta"} {
			if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
				return err
			}
		}
		for _, n := range g.Nodes() {
			var payload []byte
			if n.Payload != nil {
				var err error
				payload, err = codec.Encode(n.Payload)
				if err != nil {
					return err
				}
			}
			if _, err := tx.Exec(
				`INSERT INTO nodes (id, parent_id, branch, payload) VALUES (?, ?, ?, ?)`,
				n.ID, n.ParentID, n.Branch, payload,
			); err != nil {
				return err
			}
		}
		for _, b := range g.Branches() {
			if err := upsertBranch(tx, *b); err != nil {
				return err
			}
		}
		curBranch, curNode := g.Cursor()
		metas := map[string]string{
			"version":       strconv.Itoa(formatVersion),
			"root_id":       strconv.FormatUint(g.Root(), 10),
			"next_id":       strconv.FormatUint(g.NextID(), 10),
			"cursor_branch": curBranch,
			"cursor_node":   strconv.FormatUint(curNode, 10),
		}
		for k, v := range metas {
			if err := setMeta(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load rebuilds the graph from the durable copy. A fresh database returns
// (nil, nil); any corruption returns an error so the caller can fall back
// to an empty graph.
func (s *Store) Load() (*graph.Graph, error) {
	meta, err := s.loadMeta()
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, nil
	}
	rootID, err := metaUint(meta, "root_id")
	if err != nil {
		return nil, err
	}
	nextID, err := metaUint(meta, "next_id")
	if err != nil {
		return nil, err
	}
	curNode, err := metaUint(meta, "cursor_node")
	if err != nil {
		return nil, err
	}
	curBranch, ok := meta["cursor_branch"]
	if !ok {
		return nil, fmt.Errorf("history db: missing cursor_branch")
	}

	rows, err := s.db.Query(`SELECT id, parent_id, branch, payload FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*graph.Node
	for rows.Next() {
		var n graph.Node
		var payload []byte
		if err := rows.Scan(&n.ID, &n.ParentID, &n.Branch, &payload); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			entry, err := codec.Decode(payload)
			if err != nil {
				return nil, fmt.Errorf("history db: node %d: %w", n.ID, err)
			}
			n.Payload = entry
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	brows, err := s.db.Query(`SELECT name, head_id, created_from, created_at FROM branches`)
	if err != nil {
		return nil, err
	}
	defer brows.Close()

	var branches []*graph.Branch
	for brows.Next() {
		var b graph.Branch
		if err := brows.Scan(&b.Name, &b.Head, &b.CreatedFrom, &b.CreatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, &b)
	}
	if err := brows.Err(); err != nil {
		return nil, err
	}

	return graph.Build(nodes, branches, rootID, nextID, curBranch, curNode)
}

func (s *Store) loadMeta() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func metaUint(meta map[string]string, key string) (uint64, error) {
	v, ok := meta[key]
	if !ok {
		return 0, fmt.Errorf("history db: missing meta %q", key)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("history db: bad meta %q: %w", key, err)
	}
	return n, nil
}

func (s *Store) tx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func upsertBranch(tx *sql.Tx, b graph.Branch) error {
	_, err := tx.Exec(
		`INSERT INTO branches (name, head_id, created_from, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   head_id = excluded.head_id,
		   created_from = excluded.created_from`,
		b.Name, b.Head, b.CreatedFrom, b.CreatedAt,
	)
	return err
}

func setMeta(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
