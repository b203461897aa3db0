package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/config"
	"github.com/vinothpandian/inkdash/internal/logger"
)

var (
	cfgFile  string
	cacheDir string
	verbose  bool
	store    *config.FileStore

	// Version information
	version    string
	commitHash string
	buildTime  string
)

var rootCmd = &cobra.Command{
	Use:   "inkdash",
	Short: "Personal information dashboard for e-ink displays",
	Long: `inkdash aggregates the data a personal dashboard needs into clean JSON:
Google Calendar events across multiple calendars, weather, stock quotes,
TickTick tasks and a configurable day timeline.

Authentication with Google Calendar uses the OAuth 2.0 authorization code
flow with a local callback listener, so a single 'inkdash auth' in a browser
is all the setup the calendar integration needs.`,
}

func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, commit, buildTimeStr string) {
	version = v
	commitHash = commit
	buildTime = buildTimeStr

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commitHash, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/inkdash/config.toml)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default: ~/.cache/inkdash)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	// Initialize logger with verbose flag
	logger.Init(verbose)

	var err error
	store, err = config.NewFileStore(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving config location: %v\n", err)
		os.Exit(1)
	}

	// Materializes the default config on first run
	if _, err := store.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
