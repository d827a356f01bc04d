// Package op defines the payload types stored in history nodes: single
// operations and atomic operation groups.
package op

import (
	"fmt"
	"time"
)

// Entry is a history node payload: a single Operation or a Group.
type Entry interface {
	// EntryDescription returns the summary shown in history listings.
	EntryDescription() string

	// EntryTimestamp returns the payload timestamp in Unix milliseconds.
	EntryTimestamp() int64
}

// Operation records one reversible edit as whole before/after snapshots.
// Operations are immutable once recorded; coalescing replaces a node's
// stored payload with a new Operation rather than mutating the old one.
type Operation struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target"` // stable id of the changed entity

	// Whole-value snapshots, not deltas. Old is nil for pure additions,
	// New is nil for pure deletions.
	Old []byte `json:"old,omitempty"`
	New []byte `json:"new,omitempty"`

	Timestamp   int64             `json:"ts"` // Unix milliseconds
	Metadata    map[string]string `json:"meta,omitempty"`
	Description string            `json:"desc,omitempty"`

	// GroupID is set when the operation was flushed as part of a group.
	GroupID string `json:"group_id,omitempty"`
}

// New creates an operation stamped with the current time and a description
// generated from the kind.
func New(kind Kind, target string, old, new []byte) *Operation {
	o := &Operation{
		Kind:      kind,
		Target:    target,
		Old:       old,
		New:       new,
		Timestamp: time.Now().UnixMilli(),
	}
	o.Description = o.Describe()
	return o
}

// Describe generates a human-readable description from the operation kind.
func (o *Operation) Describe() string {
	switch o.Kind {
	case ChapterEdit:
		return fmt.Sprintf("Edit chapter %s", o.Target)
	case ChapterAdd:
		return fmt.Sprintf("Add chapter %s", o.Target)
	case ChapterDelete:
		return fmt.Sprintf("Delete chapter %s", o.Target)
	case ChapterGenerate:
		if wc, ok := o.Metadata["word_count"]; ok {
			return fmt.Sprintf("Generate chapter %s (%s words)", o.Target, wc)
		}
		return fmt.Sprintf("Generate chapter %s", o.Target)
	case ChapterMove:
		return fmt.Sprintf("Move chapter %s", o.Target)
	case BatchReplace:
		if n, ok := o.Metadata["count"]; ok {
			return fmt.Sprintf("Batch replace in %s (%s matches)", o.Target, n)
		}
		return fmt.Sprintf("Batch replace in %s", o.Target)
	case VolumeDelete:
		return fmt.Sprintf("Delete volume %s", o.Target)
	case VolumeRestore:
		return fmt.Sprintf("Restore volume %s", o.Target)
	case ConfigEdit:
		return fmt.Sprintf("Edit configuration %s", o.Target)
	case CharacterEdit:
		return fmt.Sprintf("Edit character %s", o.Target)
	case StyleEdit:
		return fmt.Sprintf("Edit style profile %s", o.Target)
	case TagEdit:
		return fmt.Sprintf("Edit tags on %s", o.Target)
	case Reorder:
		return fmt.Sprintf("Reorder %s", o.Target)
	case KnowledgeImport:
		return fmt.Sprintf("Import knowledge into %s", o.Target)
	case VectorClear:
		if o.Target == "" {
			return "Clear vector store"
		}
		return fmt.Sprintf("Clear vector store %s", o.Target)
	default:
		return fmt.Sprintf("%s: %s", o.Kind, o.Target)
	}
}

// EntryDescription implements Entry.
func (o *Operation) EntryDescription() string { return o.Description }

// EntryTimestamp implements Entry.
func (o *Operation) EntryTimestamp() int64 { return o.Timestamp }

// Clone creates a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	clone := &Operation{
		Kind:        o.Kind,
		Target:      o.Target,
		Timestamp:   o.Timestamp,
		Description: o.Description,
		GroupID:     o.GroupID,
	}
	if o.Old != nil {
		clone.Old = append([]byte(nil), o.Old...)
	}
	if o.New != nil {
		clone.New = append([]byte(nil), o.New...)
	}
	if o.Metadata != nil {
		clone.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}
