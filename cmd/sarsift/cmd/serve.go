package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sarsift/sarsift/internal/config"
	"github.com/sarsift/sarsift/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server. Indexing jobs started over the API run in the
background and survive client disconnects; their artifacts persist to the
configured database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(svc, slog.Default())
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
	return srv.Run(addr)
}
