package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/yildizm/nginx-config-viewer/internal/config"
	"github.com/yildizm/nginx-config-viewer/internal/emoji"
	"github.com/yildizm/nginx-config-viewer/internal/logger"
	"github.com/yildizm/nginx-config-viewer/internal/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	noEmoji bool
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nginx-config-viewer",
		Short: "Live-reloading read-only nginx configuration viewer",
		Long: `nginx-config-viewer serves a single nginx configuration file over HTTP and
shows it in a read-only, syntax highlighted view that reloads itself whenever
the file changes on disk.

Run "serve" next to the file and "view" (terminal) or a browser anywhere
that can reach the server.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Auto-disable emojis on Windows if not explicitly set
			if runtime.GOOS == "windows" && !cmd.Flag("no-emoji").Changed {
				noEmoji = true
			}
			emoji.SetEmojiDisabled(noEmoji)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noEmoji, "no-emoji", false, "disable emoji output (useful for Windows terminals)")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newViewCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version number, build commit, date, and runtime information",
		Run: func(cmd *cobra.Command, args []string) {
			displayVersion := version
			displayCommit := commit
			displayDate := date

			if version == "dev" || version == "" {
				displayVersion = "development"
			}
			if commit == "none" || commit == "" {
				displayCommit = "local-build"
			}
			if date == "unknown" || date == "" {
				displayDate = "local-build"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nginx-config-viewer %s (%s) built on %s\n", displayVersion, displayCommit, displayDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig loads the effective configuration for a command. Flags the
// user set are applied by the command afterwards.
// loadConfig reads the configuration and checks the output section every
// command shares. Commands validate the other sections they use.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateOutput(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Output.Verbose {
		verbose = true
	}
	return cfg, nil
}

// Global helpers
func isVerbose() bool {
	return verbose
}

// useColor resolves --no-color, NO_COLOR and output.color_mode.
func useColor(cfg *config.Config) bool {
	if noColor || ui.IsColorDisabled() {
		return false
	}
	return cfg.Output.ColorMode != "never"
}

func newLogger(component string) *logger.Logger {
	return logger.NewWithCallback(component, isVerbose)
}
