package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mapshock/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis service",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}
		defer comps.close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// A typed nil *store.Store must not become a non-nil interface.
		var sessions server.SessionReader
		if comps.sessions != nil {
			sessions = comps.sessions
		}
		srv := server.New(cfg.Server.Addr, comps.catalog, comps.orchestrator, sessions)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
