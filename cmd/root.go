// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-audience/internal/config"
	"github.com/naka-gawa/github-audience/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "github-audience",
	Short: "A CLI tool to track who forks, stars and watches a GitHub repository.",
	Long: `github-audience walks the forks, stargazers and watchers of a GitHub
repository, keeps the ones that arrived within a recent window, merges them
into one record per account and resolves each account's public email and
Twitter handle. Reports are written as Markdown, CSV or JSON to stdout, a
file, a gist or a database table.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
}

// newLogger discards everything unless --verbose is set.
func newLogger(cmd *cobra.Command) *log.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags)
	if verbose {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

// addRunFlags registers the flags shared by every command that runs the pipeline.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("days", config.Default().WindowDays, "Only keep forks and stars from the last N days")
	cmd.Flags().Int("page-size", config.DefaultPageSize, "Edges requested per GraphQL page (1-100)")
	cmd.Flags().Int("early-stop", config.Default().EarlyStopThreshold, "Stop a traversal after N consecutive out-of-window entries (0 or negative disables)")
	cmd.Flags().Int("profile-concurrency", config.Default().ProfileConcurrency, "Parallel profile lookups")
	cmd.Flags().Bool("inline-profiles", false, "Take contact info from the relation pages instead of separate lookups")
	cmd.Flags().Bool("cross-reference-watchers", false, "Only flag watchers that also forked or starred")
	cmd.Flags().Bool("require-watchers", false, "Fail when the repository has no watchers")
	cmd.Flags().String("sink", config.DefaultSink, "Where reports go: stdout, file:<path>, gist, postgres[:<url>], sqlite:<path>")
	cmd.Flags().String("format", config.DefaultFormat, "Report format: markdown, csv or json")
}

// loadConfig reads .env, the config file and the environment, then applies
// the flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Load()

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("owner") || flags.Changed("repo") {
		owner, _ := flags.GetString("owner")
		name, _ := flags.GetString("repo")
		repo, err := domain.ResolveRepoRef(owner, name)
		if err != nil {
			return nil, err
		}
		cfg.GitHubRepo = repo.String()
	}
	intFlags := map[string]*int{
		"days":                &cfg.WindowDays,
		"page-size":           &cfg.PageSize,
		"early-stop":          &cfg.EarlyStopThreshold,
		"profile-concurrency": &cfg.ProfileConcurrency,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	boolFlags := map[string]*bool{
		"inline-profiles":          &cfg.InlineProfiles,
		"cross-reference-watchers": &cfg.CrossReferenceWatchers,
		"require-watchers":         &cfg.RequireWatchers,
	}
	for name, dst := range boolFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}
	stringFlags := map[string]*string{
		"sink":   &cfg.Sink,
		"format": &cfg.Format,
		"port":   &cfg.Port,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("interval") {
		cfg.ScheduleInterval, _ = flags.GetDuration("interval")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GitHubToken == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
	}
	return cfg, nil
}
