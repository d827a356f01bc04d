package history

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// Export writes a plain-text dump of the most recent history entries,
// newest first, bounded by limit. The format is one tab-separated line
// per entry (time, kind, target, description); it is one-way and not
// re-importable.
func (m *Manager) Export(w io.Writer, limit int) error {
	bw := bufio.NewWriter(w)
	for info := range m.History(limit) {
		ts := time.UnixMilli(info.Timestamp).UTC().Format(time.RFC3339)
		target := info.Target
		if target == "" {
			target = "-"
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\n", ts, info.Kind, target, info.Description); err != nil {
			return err
		}
	}
	return bw.Flush()
}
