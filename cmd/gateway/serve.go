package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevshake/mastergateway/internal/framing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway: accept POS sessions, dispatch to the bank host",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires up the POS listener and bank dispatcher and runs
// until interrupted. On shutdown it stops accepting and waits up to 5s
// for in-flight sessions to finish. The bank dispatcher shares the same
// context, so it stops and closes the bank connection as soon as the
// signal arrives; submissions still queued are not drained.
func runServe(cmd *cobra.Command, args []string) error {
	application, err := newApp(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go application.dispr.Run(ctx)

	addr := fmt.Sprintf(":%d", application.cfg.POS.Port)
	listener := &framing.POSListener{
		Addr:    addr,
		Handler: application.rtr.Handle,
		OnDecodeError: func(remote string, err error) {
			slog.Warn("pos session closed on decode error", "remote", remote, "error", err)
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", addr, "bank_host", application.cfg.Bank.Host, "bank_port", application.cfg.Bank.Port)
		serveErr <- listener.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown requested, draining sessions")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	drained := make(chan struct{})
	go func() {
		listener.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		slog.Warn("shutdown: sessions did not drain within 5s")
	}

	return nil
}
