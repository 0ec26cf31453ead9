package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarsift/sarsift/internal/config"
	"github.com/sarsift/sarsift/internal/job"
	"github.com/sarsift/sarsift/internal/message"
)

func newIndexCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "index <archive.jsonl>",
		Short: "Index an email archive into clusters and postings",
		Long: `Read a JSONL archive (one raw message object per line), normalize the
messages, extract identifier occurrences, cluster identities, and build
the postings index. Artifacts are persisted under the data directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0], wait)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", true, "Block until the job reaches a terminal state")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, wait bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := message.OpenJSONLFile(path)
	if err != nil {
		return err
	}

	id := svc.StartIndex(cmd.Context(), src)
	fmt.Fprintf(cmd.OutOrStdout(), "job %s started\n", id)
	if !wait {
		return nil
	}

	for {
		snap, err := svc.JobStatus(id)
		if err != nil {
			return err
		}
		switch snap.Status {
		case job.StatusDone:
			fmt.Fprintf(cmd.OutOrStdout(),
				"done: %d processed, %d skipped of %d in %ds\n",
				snap.Processed, snap.Skipped, snap.Total, snap.ElapsedSeconds)
			return nil
		case job.StatusError:
			return fmt.Errorf("job %s failed: %s", id, snap.Error)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
