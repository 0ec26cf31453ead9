package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarsift/sarsift/internal/config"
	"github.com/sarsift/sarsift/internal/store"
)

func newClustersCmd() *cobra.Command {
	var jsonOutput bool
	var showMembers bool

	cmd := &cobra.Command{
		Use:   "clusters <job-id>",
		Short: "List a job's identity clusters",
		Long: `List the identity clusters of a finished job, largest first. Each line
shows the cluster id, gold label, and member count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClusters(cmd, args[0], jsonOutput, showMembers)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showMembers, "members", false, "Show cluster members")

	return cmd
}

type clusterLine struct {
	ClusterID string   `json:"cluster_id"`
	Label     string   `json:"label"`
	Size      int      `json:"size"`
	Members   []string `json:"members,omitempty"`
}

func runClusters(cmd *cobra.Command, jobID string, jsonOutput, showMembers bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath(), slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := loadDoneArtifacts(cmd.Context(), st, jobID)
	if err != nil {
		return err
	}

	lines := make([]clusterLine, 0, len(a.State.Clusters))
	for _, c := range a.State.Clusters {
		line := clusterLine{ClusterID: c.ID, Label: c.Label, Size: len(c.Members)}
		if showMembers {
			line.Members = c.Members
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Size != lines[j].Size {
			return lines[i].Size > lines[j].Size
		}
		return lines[i].Label < lines[j].Label
	})

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}

	for _, line := range lines {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s  %d members\n",
			line.ClusterID, line.Label, line.Size)
		if showMembers {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", strings.Join(line.Members, ", "))
		}
	}
	return nil
}
