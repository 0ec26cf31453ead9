// Package cmd provides the CLI commands for sarsift.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sarsift/sarsift/internal/cluster"
	"github.com/sarsift/sarsift/internal/config"
	"github.com/sarsift/sarsift/internal/extract"
	"github.com/sarsift/sarsift/internal/job"
	"github.com/sarsift/sarsift/internal/logging"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/service"
	"github.com/sarsift/sarsift/internal/store"
	"github.com/sarsift/sarsift/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the sarsift CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sarsift",
		Short: "Identity-aware email archive sifter",
		Long: `sarsift indexes email archives into identity clusters and a
role-partitioned postings index, then answers tri-state boolean questions
such as "every message where this person is sender but not recipient".

Point it at a JSONL archive with 'sarsift index', inspect clusters with
'sarsift clusters', query with 'sarsift search', or run the HTTP surface
with 'sarsift serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("sarsift version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.sarsift/logs/")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newClustersCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", "log_file", logging.DefaultLogPath())
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// buildService assembles the pipeline and service from configuration.
// The returned cleanup closes the store.
func buildService(cfg *config.Config) (*service.Service, func(), error) {
	st, err := store.Open(cfg.DBPath(), slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact store: %w", err)
	}

	var extractorClient message.TextExtractor = message.PassthroughExtractor{}
	var pinger service.Pinger
	if cfg.Extractor.TikaURL != "" {
		tika := message.NewTikaClient(cfg.Extractor.TikaURL, cfg.Extractor.Timeout)
		extractorClient = tika
		pinger = tika
	}

	normalizer := message.NewNormalizer(extractorClient, slog.Default())
	identExtractor := extract.NewExtractor(extract.RegexRecognizer{}, slog.Default())
	engine := cluster.NewEngine(
		cluster.NewLexicalScorer(cfg.Cluster.ParseCacheSize),
		cfg.Cluster.MergeThreshold,
		slog.Default())

	runner := job.NewRunner(job.RunnerConfig{
		DataDir: filepath.Join(cfg.DataDir, "jobs"),
		Workers: cfg.Pipeline.Workers,
	}, normalizer, identExtractor, engine, st, slog.Default())

	manager := job.NewManager(runner, slog.Default())

	opts := []service.Option{service.WithStore(st)}
	if pinger != nil {
		opts = append(opts, service.WithExtractorPing(pinger))
	}
	svc := service.New(manager, slog.Default(), opts...)
	return svc, func() { _ = st.Close() }, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
