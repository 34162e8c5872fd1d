package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-audience/internal/config"
	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/gateway"
	"github.com/naka-gawa/github-audience/internal/sink"
	"github.com/naka-gawa/github-audience/internal/usecase"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Builds one audience report and publishes it",
	Long: `Collects the recent forks and stargazers of a repository together with its
watchers, resolves contact info for every account and publishes the merged
report to the configured sink (stdout by default).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(cmd)
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(cfg.GitHubToken, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		out, err := newSink(ctx, cfg, githubGateway, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create report sink: %v\n", err)
			os.Exit(1)
		}
		defer out.Close()

		pipeline := usecase.NewPipeline(githubGateway, logger, cfg.PipelineOptions())
		where, rep, err := runAndPublish(ctx, pipeline, out, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build audience report: %v\n", err)
			out.Close()
			os.Exit(1)
		}
		if where != "stdout" {
			fmt.Fprintf(os.Stderr, "Published %d accounts of %s to %s\n", len(rep.Records), rep.Repo, where)
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("owner", "o", "", "Repository owner (defaults to GITHUB_REPO)")
	reportCmd.Flags().StringP("repo", "r", "", "Repository name, or owner/name")
	addRunFlags(reportCmd)
}

func newSink(ctx context.Context, cfg *config.Config, gists gateway.GistCreator, logger *log.Logger) (sink.Sink, error) {
	return sink.New(ctx, cfg.Sink, sink.Options{
		Format:      cfg.ReportFormat(),
		Stdout:      os.Stdout,
		Gists:       gists,
		GistPublic:  cfg.GistPublic,
		DatabaseURL: cfg.DatabaseURL,
		Logger:      logger,
	})
}

// runAndPublish runs the pipeline for the configured repository and window
// and hands the report to the sink.
func runAndPublish(ctx context.Context, pipeline *usecase.Pipeline, out sink.Sink, cfg *config.Config, logger *log.Logger) (string, *domain.Report, error) {
	rep, err := pipeline.Run(ctx, usecase.RunRequest{Repo: cfg.Repo(), Days: cfg.WindowDays})
	if err != nil {
		return "", nil, err
	}
	if len(rep.Summary.PartialRelations) > 0 {
		logger.Printf("Report %s is partial: %v", rep.RunID, rep.Summary.PartialRelations)
	}
	where, err := out.Publish(ctx, rep)
	if err != nil {
		return "", rep, fmt.Errorf("failed to publish report: %w", err)
	}
	logger.Printf("Report %s published to %s", rep.RunID, where)
	return where, rep, nil
}
