// Package main provides the histree CLI: a read-only inspector for a
// project's history database.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/histree/internal/config"
	"github.com/dshills/histree/internal/history"
	"github.com/dshills/histree/internal/history/store"
)

var (
	historyFile string
	limit       int
)

var rootCmd = &cobra.Command{
	Use:   "histree",
	Short: "Inspect a project's branching edit history",
	Long:  `histree reads the history database a project keeps next to its files and prints the recorded operations, the branch table, or a plain-text export.`,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List recent operations on the active branch",
	RunE:  runLog,
}

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List branches",
	RunE:  runBranches,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump history as plain text",
	RunE:  runExport,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&historyFile, "file", "f", config.Default().HistoryFile, "history database file")
	logCmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries to list")
	exportCmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to export (0 = all)")
	rootCmd.AddCommand(logCmd, branchesCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openManager loads the history file into a manager with no appliers; the
// CLI only reads, never navigates.
func openManager() (*history.Manager, error) {
	if _, err := os.Stat(historyFile); err != nil {
		return nil, fmt.Errorf("no history file at %s", historyFile)
	}
	st, err := store.Open(historyFile)
	if err != nil {
		return nil, err
	}
	return history.NewManager(nil, history.WithStore(st)), nil
}

func runLog(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	defer m.Close()

	fmt.Printf("Branch %s:\n", m.ActiveBranch())
	count := 0
	for info := range m.History(limit) {
		when := humanize.Time(time.UnixMilli(info.Timestamp))
		fmt.Printf("  %4d  %-18s %-12s %s (%s)\n", info.NodeID, info.Kind, info.Target, info.Description, when)
		count++
	}
	if count == 0 {
		fmt.Println("  (empty)")
	}
	return nil
}

func runBranches(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	defer m.Close()

	for _, b := range m.Branches() {
		marker := " "
		if b.Active {
			marker = "*"
		}
		created := humanize.Time(time.UnixMilli(b.CreatedAt))
		fmt.Printf("%s %-20s head %-6d created %s\n", marker, b.Name, b.Head, created)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Export(os.Stdout, limit)
}
