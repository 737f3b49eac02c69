package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevshake/mastergateway/internal/keychange"
)

var (
	kcTerminalID string
	kcMerchantID string
)

// keychangeCmd is a standalone/offline operator tool: like statusCmd it
// builds its own fresh in-memory repository and does not reach into a
// running `serve` process (SPEC_FULL.md "SUPPLEMENTED FEATURES").
var keychangeCmd = &cobra.Command{
	Use:   "keychange",
	Short: "Run the key-change protocol standalone, against a fresh in-memory store (spec.md §4.7)",
	RunE:  runKeychange,
}

func init() {
	keychangeCmd.Flags().StringVar(&kcTerminalID, "terminal-id", "", "terminal to rotate a key for (required)")
	keychangeCmd.Flags().StringVar(&kcMerchantID, "merchant-id", "", "merchant id (optional)")
	_ = keychangeCmd.MarkFlagRequired("terminal-id")
	rootCmd.AddCommand(keychangeCmd)
}

func runKeychange(cmd *cobra.Command, args []string) error {
	application, err := newApp(configPath)
	if err != nil {
		return err
	}

	result := application.kc.Change(keychange.Request{
		TerminalID: kcTerminalID,
		MerchantID: kcMerchantID,
	})
	if !result.Success {
		return fmt.Errorf("keychange: %s", result.Reason)
	}

	fmt.Printf("terminal:   %s\n", result.Terminal.TerminalID)
	fmt.Printf("key ref:    %s\n", result.KeyRef)
	fmt.Printf("key value:  %s\n", result.MaskedValue)
	fmt.Printf("kcv:        %s\n", result.Key.KCV)
	return nil
}
