// Package auditcmd implements the one-shot audit CLI commands.
package auditcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/seo-audit/cmd/common"
)

// betweenInvocations is the pause between bounded update invocations when
// running an audit to completion from the CLI.
const betweenInvocations = time.Second

// Command returns the audit command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run and inspect content audits",
	}
	cmd.AddCommand(runCommand(), statusCommand())
	return cmd
}

func runCommand() *cobra.Command {
	var scheduled bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an audit and process it to completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd.Context(), scheduled)
		},
	}
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "record the audit as a scheduled run")
	return cmd
}

func runAudit(ctx context.Context, scheduled bool) error {
	deps, err := common.Build()
	if err != nil {
		return err
	}
	defer deps.Close()

	id, err := deps.Orchestrator.StartAudit(ctx, scheduled)
	if err != nil {
		return fmt.Errorf("failed to start audit: %w", err)
	}
	deps.Log.Info("audit started", "snapshot_id", id)

	for {
		moreWork, updErr := deps.Orchestrator.UpdateTable(ctx, true)
		if updErr != nil {
			return fmt.Errorf("audit update failed: %w", updErr)
		}
		if !moreWork {
			break
		}

		status, statusErr := deps.Orchestrator.Status(ctx)
		if statusErr == nil {
			deps.Log.Info("audit progress",
				"unprocessed_percent", status.UnprocessedPercent,
				"waiting_seconds", status.WaitingSeconds,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(betweenInvocations):
		}
	}

	deps.Log.Info("audit finished", "snapshot_id", id)
	return nil
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the audit status as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			status, err := deps.Orchestrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read audit status: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}
