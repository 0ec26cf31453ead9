package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarsift/sarsift/internal/config"
	sifterr "github.com/sarsift/sarsift/internal/errors"
	"github.com/sarsift/sarsift/internal/search"
	"github.com/sarsift/sarsift/internal/store"
)

func newSearchCmd() *cobra.Command {
	var jsonOutput bool
	var ruleSpecs []string

	cmd := &cobra.Command{
		Use:   "search <job-id>",
		Short: "Search a job's messages by identity role",
		Long: `Search the messages of a finished job with role rules. Each --rule names a
cluster and constrains the roles its identities may hold:

  sarsift search JOB --rule "cluster=ab12cd34ef56,from=yes,to=no"

Roles left out of a rule are unconstrained. Matching messages print in
date order, oldest first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], ruleSpecs, jsonOutput)
		},
	}

	cmd.Flags().StringArrayVar(&ruleSpecs, "rule", nil, "Role rule, repeatable (cluster=ID[,from=yes|no][,to=yes|no][,body=yes|no])")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func parseRule(spec string) (search.Rule, error) {
	var r search.Rule
	for _, field := range strings.Split(spec, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			return r, sifterr.Newf(sifterr.ErrCodeEmptyRule, "malformed rule field %q", field)
		}
		switch key {
		case "cluster":
			r.ClusterID = value
		case "from":
			r.From = search.Match(value)
		case "to":
			r.To = search.Match(value)
		case "body":
			r.Body = search.Match(value)
		default:
			return r, sifterr.Newf(sifterr.ErrCodeEmptyRule, "unknown rule field %q", key)
		}
	}
	if r.ClusterID == "" {
		return r, sifterr.Newf(sifterr.ErrCodeEmptyRule, "rule %q names no cluster", spec)
	}
	return r, nil
}

func runSearch(cmd *cobra.Command, jobID string, ruleSpecs []string, jsonOutput bool) error {
	rules := make([]search.Rule, 0, len(ruleSpecs))
	for _, spec := range ruleSpecs {
		r, err := parseRule(spec)
		if err != nil {
			return err
		}
		rules = append(rules, r)
	}

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

	ev := search.NewEvaluator(a.Index, a.Parts, slog.Default())
	hits := ev.Evaluate(rules)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	for _, p := range hits {
		date := "          "
		if p.HasDate {
			date = p.Date.Format("2006-01-02")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-40s  %s\n", date, p.From, p.Subject)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d matching messages\n", len(hits))
	return nil
}
