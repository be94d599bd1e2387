// Package httpd implements the HTTP server command: the API plus the
// background audit poller.
package httpd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/seo-audit/cmd/common"
	"github.com/jonesrussell/seo-audit/internal/api"
	"github.com/jonesrussell/seo-audit/internal/database"
)

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the audit API server and background poller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	deps, err := common.Build()
	if err != nil {
		return err
	}
	defer deps.Close()

	// Safe on every start; a no-change run is not an error.
	if err = database.MigrateUp(deps.Config.Database); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if err = deps.Poller.Start(); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	defer deps.Poller.Stop()

	router := api.SetupRouter(deps.Log, deps.Handler)
	server := api.NewServer(deps.Config.Server.Address, router, deps.Log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		deps.Log.Info("shutting down", "signal", sig.String())
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	return server.Stop(context.Background())
}
