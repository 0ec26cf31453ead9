package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sarsift/sarsift/internal/config"
	"github.com/sarsift/sarsift/internal/store"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show persisted job status",
		Long: `Show the persisted status of one job, or list all known jobs when no
id is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := ""
			if len(args) == 1 {
				jobID = args[0]
			}
			return runStatus(cmd, jobID, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jobID string, jsonOutput bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath(), slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if jobID == "" {
		ids, err := st.JobIDs(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no jobs recorded")
			return nil
		}
		for _, id := range ids {
			snap, err := st.LoadJob(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-7s  %d/%d processed, %d skipped\n",
				id, snap.Status, snap.Processed, snap.Total, snap.Skipped)
		}
		return nil
	}

	snap, err := st.LoadJob(ctx, jobID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "job:       %s\n", jobID)
	fmt.Fprintf(cmd.OutOrStdout(), "status:    %s\n", snap.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "processed: %d of %d (%d skipped)\n",
		snap.Processed, snap.Total, snap.Skipped)
	if snap.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "error:     %s\n", snap.Error)
	}
	return nil
}
