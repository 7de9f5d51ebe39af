// Command supervisord runs the multiplexing supervisor: a host-facing
// control plane over stdio, spawning and managing child processes that
// each speak their own JSON-RPC 2.0 dialect.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvidlabs/agentsup"
	"github.com/corvidlabs/agentsup/internal/config"
	"github.com/corvidlabs/agentsup/internal/hostapi"
	"github.com/corvidlabs/agentsup/internal/logging"
	"github.com/corvidlabs/agentsup/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	childBinFlag string
	verboseFlag  bool
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supervisord",
		Short: "Run the agent supervisor control plane over stdio",
		RunE:  runServe,
	}
	cmd.PersistentFlags().StringVar(&childBinFlag, "child-bin", "", "Path to the child agent binary (overrides SUPERVISOR_CHILD_BIN)")
	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if childBinFlag != "" {
		cfg.ChildBin = childBinFlag
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if verboseFlag {
		level = 0 // zerolog.DebugLevel
	}
	logging.Init(level)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logging.Warnf("metrics server stopped: %v", err)
		}
	}()

	var handshakeParams json.RawMessage
	if cfg.HandshakeParams != "" {
		handshakeParams = json.RawMessage(cfg.HandshakeParams)
	}
	defaultOpts := agentsup.ChildOptions{
		BinaryPath: cfg.ChildBin,
		Args:       cfg.ChildArgs,
		Handshake: agentsup.HandshakeConfig{
			RequestMethod: cfg.HandshakeMethod,
			RequestParams: handshakeParams,
			Timeout:       cfg.HandshakeTimeout,
		},
	}
	var defaultDecision json.RawMessage = []byte(`"deny"`)
	mediator := agentsup.NewApprovalMediator(cfg.ApprovalTimeout, defaultDecision)
	forwarder := agentsup.NewForwarder()
	sup := agentsup.NewSupervisor(defaultOpts, mediator, forwarder)

	writer := agentsup.NewFrameWriter(os.Stdout, agentsup.FrameModeAuto)
	reader := agentsup.NewFrameReader(os.Stdin, agentsup.FrameModeAuto)

	srv, err := hostapi.NewServer(sup, writer)
	if err != nil {
		return fmt.Errorf("start host api: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, reader) }()

	select {
	case <-ctx.Done():
		logging.Infof("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HandshakeTimeout)
		defer shutdownCancel()
		return sup.Shutdown(shutdownCtx)
	case err := <-serveErr:
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HandshakeTimeout)
		defer shutdownCancel()
		_ = sup.Shutdown(shutdownCtx)
		return err
	}
}
