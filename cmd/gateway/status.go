package main

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// statusCmd is a standalone/offline operator tool: it builds its own
// fresh in-memory repository and reports only what this single process
// invocation creates. It has no channel into a running `serve`
// process's repository (SPEC_FULL.md "SUPPLEMENTED FEATURES").
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List known terminals and their current key state (standalone, not the live gateway's store)",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	application, err := newApp(configPath)
	if err != nil {
		return err
	}

	terminals := application.repo.ActiveTerminals()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Terminal", "Merchant", "Status", "Key KCV", "Key Changes", "Last Activity"})

	for _, term := range terminals {
		keyRef := "-"
		if term.CurrentKeyID != "" {
			if key, ok := application.repo.FindKey(term.CurrentKeyID); ok {
				keyRef = key.KCV
			}
		}
		lastActivity := "never"
		if !term.LastActivity.IsZero() {
			lastActivity = term.LastActivity.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{term.TerminalID, term.MerchantID, term.Status, keyRef, term.KeyChangeCount, lastActivity})
	}

	t.Render()
	return nil
}
