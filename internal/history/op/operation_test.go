package op

import "testing"

func TestNewOperation(t *testing.T) {
	o := New(ChapterEdit, "3", []byte("A"), []byte("B"))
	if o.Kind != ChapterEdit || o.Target != "3" {
		t.Error("wrong kind or target")
	}
	if string(o.Old) != "A" || string(o.New) != "B" {
		t.Error("wrong snapshots")
	}
	if o.Timestamp == 0 {
		t.Error("timestamp not set")
	}
	if o.Description == "" {
		t.Error("description not generated")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		op   *Operation
		want string
	}{
		{"edit", &Operation{Kind: ChapterEdit, Target: "3"}, "Edit chapter 3"},
		{"add", &Operation{Kind: ChapterAdd, Target: "4"}, "Add chapter 4"},
		{"delete", &Operation{Kind: ChapterDelete, Target: "5"}, "Delete chapter 5"},
		{
			"generate with word count",
			&Operation{Kind: ChapterGenerate, Target: "6", Metadata: map[string]string{"word_count": "2100"}},
			"Generate chapter 6 (2100 words)",
		},
		{
			"batch replace with count",
			&Operation{Kind: BatchReplace, Target: "volume-1", Metadata: map[string]string{"count": "12"}},
			"Batch replace in volume-1 (12 matches)",
		},
		{"character", &Operation{Kind: CharacterEdit, Target: "elena"}, "Edit character elena"},
		{"reorder", &Operation{Kind: Reorder, Target: "volume-2"}, "Reorder volume-2"},
		{"knowledge import", &Operation{Kind: KnowledgeImport, Target: "lore"}, "Import knowledge into lore"},
		{"vector clear without target", &Operation{Kind: VectorClear}, "Clear vector store"},
		{"vector clear with target", &Operation{Kind: VectorClear, Target: "lore"}, "Clear vector store lore"},
		{"unknown kind", &Operation{Kind: Kind("custom_thing"), Target: "x"}, "custom_thing: x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Describe(); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperationClone(t *testing.T) {
	o := New(ChapterEdit, "3", []byte("old"), []byte("new"))
	o.Metadata = map[string]string{"k": "v"}

	clone := o.Clone()

	o.Old[0] = 'X'
	o.Metadata["k"] = "changed"

	if string(clone.Old) != "old" {
		t.Error("clone snapshot was modified through original")
	}
	if clone.Metadata["k"] != "v" {
		t.Error("clone metadata was modified through original")
	}
}

func TestGroupTimestampFromFirstMember(t *testing.T) {
	g := NewGroup("batch")
	if !g.Empty() {
		t.Error("new group should be empty")
	}

	a := &Operation{Kind: ChapterEdit, Target: "1", Timestamp: 100}
	b := &Operation{Kind: ChapterEdit, Target: "2", Timestamp: 200}
	g.Add(a)
	g.Add(b)

	if g.Empty() || g.Len() != 2 {
		t.Errorf("group has %d members, want 2", g.Len())
	}
	if g.Timestamp != 100 {
		t.Errorf("group timestamp = %d, want first member's 100", g.Timestamp)
	}
}

func TestGroupDescription(t *testing.T) {
	g := NewGroup("")
	g.Add(&Operation{Kind: ChapterEdit, Target: "1", Description: "Edit chapter 1"})
	if got := g.EntryDescription(); got != "Edit chapter 1" {
		t.Errorf("single-member group description = %q", got)
	}

	g.Add(&Operation{Kind: ChapterEdit, Target: "2"})
	if got := g.EntryDescription(); got != "2 operations" {
		t.Errorf("multi-member group description = %q", got)
	}

	named := NewGroup("Batch replace")
	named.Add(&Operation{})
	if got := named.EntryDescription(); got != "Batch replace" {
		t.Errorf("named group description = %q", got)
	}
}
