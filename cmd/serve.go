package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-audience/internal/api"
	"github.com/naka-gawa/github-audience/internal/config"
	"github.com/naka-gawa/github-audience/internal/gateway"
	"github.com/naka-gawa/github-audience/internal/scheduler"
	"github.com/naka-gawa/github-audience/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves reports over HTTP and publishes one on a schedule",
	Long: `Starts an HTTP server exposing /api/report, /api/health and /metrics, and
runs the report for GITHUB_REPO every --interval, publishing it to the
configured sink.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

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
		pipeline := usecase.NewPipeline(githubGateway, logger, cfg.PipelineOptions())

		sched := scheduler.New(cfg.ScheduleInterval, func(ctx context.Context) error {
			_, _, err := runAndPublish(ctx, pipeline, out, cfg, logger)
			return err
		}, logger)
		sched.Run(ctx)

		routerCfg := &api.RouterConfig{
			Runner:      pipeline,
			Scheduler:   sched,
			DefaultDays: cfg.WindowDays,
			Logger:      logger,
		}
		if db, ok := out.(interface{ Health(context.Context) error }); ok {
			routerCfg.Database = db
		}
		srv := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      api.NewRouter(routerCfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: cfg.RunTimeout + 30*time.Second, // Must exceed the run deadline
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			fmt.Fprintf(os.Stderr, "Serving %s reports on :%s\n", cfg.GitHubRepo, cfg.Port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
				os.Exit(1)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		fmt.Fprintln(os.Stderr, "Shutting down server...")
		cancel()
		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Server forced to shutdown: %v\n", err)
		}
		if err := out.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close report sink: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", config.DefaultPort, "HTTP port")
	serveCmd.Flags().Duration("interval", config.DefaultScheduleInterval, "Time between scheduled reports")
	serveCmd.Flags().StringP("repo", "r", "", "Scheduled repository as owner/name (defaults to GITHUB_REPO)")
	addRunFlags(serveCmd)
}
