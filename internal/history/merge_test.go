package history

import (
	"testing"

	"github.com/dshills/histree/internal/history/op"
)

func TestCanMerge(t *testing.T) {
	mg := merger{window: 2000, enabled: true}
	prev := &Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 1000}

	tests := []struct {
		name     string
		mg       merger
		prev     Entry
		incoming *Operation
		want     bool
	}{
		{
			"same kind and target inside window",
			mg, prev,
			&Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 1500},
			true,
		},
		{
			"zero elapsed",
			mg, prev,
			&Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 1000},
			true,
		},
		{
			"window boundary is exclusive",
			mg, prev,
			&Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 3000},
			false,
		},
		{
			"different target",
			mg, prev,
			&Operation{Kind: op.ChapterEdit, Target: "4", Timestamp: 1500},
			false,
		},
		{
			"different kind",
			mg, prev,
			&Operation{Kind: op.ConfigEdit, Target: "3", Timestamp: 1500},
			false,
		},
		{
			"incoming older than previous",
			mg, prev,
			&Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 900},
			false,
		},
		{
			"previous is a group",
			mg, func() Entry {
				g := op.NewGroup("")
				g.Add(&Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 1000})
				return g
			}(),
			&Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 1500},
			false,
		},
		{
			"disabled",
			merger{window: 2000, enabled: false}, prev,
			&Operation{Kind: op.ChapterEdit, Target: "3", Timestamp: 1500},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mg.canMerge(tt.prev, tt.incoming); got != tt.want {
				t.Errorf("canMerge = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeKeepsFirstOldAndLastNew(t *testing.T) {
	mg := merger{window: 2000, enabled: true}
	prev := &Operation{Kind: op.ChapterEdit, Target: "3", Old: []byte("A"), New: []byte("B"), Timestamp: 1000}
	incoming := &Operation{Kind: op.ChapterEdit, Target: "3", Old: []byte("B"), New: []byte("C"), Timestamp: 1500}

	out := mg.merge(prev, incoming)

	if string(out.Old) != "A" {
		t.Errorf("merged Old = %q, want the first edit's %q", out.Old, "A")
	}
	if string(out.New) != "C" {
		t.Errorf("merged New = %q, want the last edit's %q", out.New, "C")
	}
	if out.Timestamp != 1500 {
		t.Errorf("merged timestamp = %d, want the incoming 1500", out.Timestamp)
	}
	if out == incoming {
		t.Error("merge must not alias the incoming operation")
	}
}
