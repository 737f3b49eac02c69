// Command gateway is the payment gateway process: it terminates POS
// sessions, dispatches to a bank host, and serves a handful of local
// operator subcommands. Structured like the teacher's binaries (one
// main per concern) but, because the gateway exposes multiple
// operational subcommands rather than one flat flag set, it adopts
// the broader pack's multi-command shape
// (1ph-sim_reader/cmd/root.go: cobra root + persistent flags +
// subcommands) instead of the teacher's bare `flag` package.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	verbose    bool
	logFormat  string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "gateway",
	Short:   "ISO 8583 payment gateway",
	Version: version,
	Long: `gateway terminates ISO 8583 card-transaction sessions from POS
terminals, performs PIN-block re-encryption and card validation,
dispatches requests to an acquiring/issuing bank host, and returns
responses to the originating terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "v", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")
}

// configureLogging sets the default slog logger the same way every
// teacher main.go does: a -v/-log-format pair selecting level and
// handler.
func configureLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
