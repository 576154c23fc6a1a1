// Package main provides the ingest CLI for loading documents into the index
// and inspecting jobs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/bull/pdf-ingest/internal/app"
	"github.com/bull/pdf-ingest/internal/config"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "ingest",
	Short:         "Deduplicating document ingestion tool",
	Long:          "CLI tool for loading PDF, Markdown and text documents into a vector index without duplicates.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		var err error
		cfg, err = config.Load(configPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().Bool("clear", false, "empty the index before ingesting")
	runCmd.Flags().String("data-dir", "", "also ingest every PDF in this directory")

	jobsListCmd.Flags().Int("limit", 20, "maximum number of jobs to show")
	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd)

	queryCmd.Flags().IntP("k", "k", 5, "number of hits to return")

	configCmd.AddCommand(configShowCmd, configInitCmd)

	rootCmd.AddCommand(runCmd, jobsCmd, countCmd, queryCmd, configCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

var runCmd = &cobra.Command{
	Use:   "run [paths or globs...]",
	Short: "Ingest documents into the index",
	Long: `Extracts, normalizes and deduplicates the given documents and stores the
new segments in the index. Re-running with the same inputs stores nothing new.

Globs support ** (e.g. "docs/**/*.pdf").`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()

	clearIndex, _ := cmd.Flags().GetBool("clear")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	paths, err := expandInputs(args, dataDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 && !clearIndex {
		return fmt.Errorf("no input paths: pass files, globs or --data-dir")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if clearIndex {
		fmt.Println("Clearing index...")
		if err := a.Pipeline.Rebuild(ctx); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
		if len(paths) == 0 {
			fmt.Println("Index cleared")
			return nil
		}
	}

	var bar *progressbar.ProgressBar
	a.Pipeline.OnProgress(func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Storing segments"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	})

	fmt.Printf("Ingesting %d input(s)...\n", len(paths))
	result, err := a.Pipeline.Ingest(ctx, paths)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	if result.NoDocuments {
		fmt.Println("No documents produced.")
	} else {
		fmt.Println("Ingestion complete!")
	}
	fmt.Printf("  Segments: %d\n", result.Segments)
	fmt.Printf("  Inserted: %d\n", result.Inserted)
	fmt.Printf("  Skipped duplicates: %d\n", result.SkippedDuplicates)

	if len(result.FailedPaths) > 0 {
		fmt.Println()
		fmt.Println("Failed inputs:")
		for _, failed := range result.FailedPaths {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect ingestion jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := app.OpenStore(ctx, cfg.Jobs)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(ctx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No jobs.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tSTATE\tCREATED\tINPUTS\tREASON")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Kind, r.State, r.CreatedAt.Local().Format(time.DateTime),
				summarizeInputs(r.Inputs), r.Reason)
		}
		return tw.Flush()
	},
}

func summarizeInputs(inputs []string) string {
	switch len(inputs) {
	case 0:
		return "-"
	case 1:
		return inputs[0]
	default:
		return fmt.Sprintf("%s (+%d more)", inputs[0], len(inputs)-1)
	}
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the state and result of one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		store, err := app.OpenStore(ctx, cfg.Jobs)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:      %s\n", rec.ID)
		fmt.Printf("Kind:    %s\n", rec.Kind)
		fmt.Printf("State:   %s\n", rec.State)
		fmt.Printf("Inputs:  %s\n", strings.Join(rec.Inputs, ", "))
		fmt.Printf("Created: %s\n", rec.CreatedAt.Local().Format(time.DateTime))
		if rec.StartedAt != nil {
			fmt.Printf("Started: %s\n", rec.StartedAt.Local().Format(time.DateTime))
		}
		if rec.DoneAt != nil {
			fmt.Printf("Done:    %s\n", rec.DoneAt.Local().Format(time.DateTime))
		}
		if rec.Reason != "" {
			fmt.Printf("Reason:  %s\n", rec.Reason)
			fmt.Printf("Detail:  %s\n", rec.Detail)
		}
		if len(rec.Result) > 0 {
			fmt.Printf("Result:  %s\n", rec.Result)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored segments",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Index.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		k, _ := cmd.Flags().GetInt("k")

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		hits, err := a.Index.Query(ctx, strings.Join(args, " "), k)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for i, h := range hits {
			fmt.Printf("%d. %s  (score %.3f)\n", i+1, h.ID, h.Score)
			fmt.Printf("   %s\n\n", preview(h.Content, 160))
		}
		return nil
	},
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yamlv3.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}
