package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yildizm/nginx-config-viewer/internal/config"
	"github.com/yildizm/nginx-config-viewer/internal/ui"
	"github.com/yildizm/nginx-config-viewer/internal/viewer"
)

var (
	viewURL        string
	viewColorMode  string
	viewRetryDelay time.Duration
	viewLogFile    string
	viewTitle      string
)

func newViewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the live configuration viewer in the terminal",
		Long: `Show the configuration served by a running "serve" command in a read-only,
syntax highlighted terminal view. The view reloads whenever the server
announces a change and reconnects on its own if the stream drops.

The color scheme starts from --color-mode (or viewer.color_mode, or
NGXVIEW_COLOR_MODE); an empty value means dark. Press t to toggle it.

Examples:
  nginx-config-viewer view
  nginx-config-viewer view --url http://proxy.internal:8080 --color-mode light
  nginx-config-viewer view --log-file /tmp/viewer.log -v`,
		Args: cobra.NoArgs,
		RunE: runView,
	}

	cmd.Flags().StringVarP(&viewURL, "url", "u", "", "base URL of the server (default from config, http://localhost:8080)")
	cmd.Flags().StringVar(&viewColorMode, "color-mode", "", "initial color scheme: dark, light or empty")
	cmd.Flags().DurationVar(&viewRetryDelay, "retry-delay", 0, "delay before reconnecting a dropped stream")
	cmd.Flags().StringVar(&viewLogFile, "log-file", "", "write logs to this file while the viewer runs")
	cmd.Flags().StringVar(&viewTitle, "title", "", "title shown in the header")

	return cmd
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyViewFlags(cmd, &cfg.Viewer)
	if err := cfg.ValidateViewer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The terminal belongs to the view while it runs.
	logOut, closeLog, err := openViewerLog(cfg.Viewer.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	log := newLogger("viewer")
	log.SetOutput(logOut)

	loader, err := viewer.NewLoader(cfg.Viewer.URL, viewer.WithLoaderLogger(log.WithComponent("loader")))
	if err != nil {
		return err
	}
	listener, err := viewer.NewListener(cfg.Viewer.URL,
		viewer.WithRetryDelay(cfg.Viewer.RetryDelay),
		viewer.WithListenerLogger(log.WithComponent("listener")),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return ui.Run(ctx, ui.Options{
		Loader:   loader,
		Listener: listener,
		Theme:    viewer.NewThemeContext(cfg.Viewer.ColorMode),
		Title:    viewTitle,
		NoColor:  !useColor(cfg),
	})
}

// applyViewFlags overrides the loaded config with the flags the user set.
func applyViewFlags(cmd *cobra.Command, cfg *config.ViewerConfig) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = viewURL
	}
	if flags.Changed("color-mode") {
		cfg.ColorMode = viewColorMode
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay = viewRetryDelay
	}
	if flags.Changed("log-file") {
		cfg.LogFile = viewLogFile
	}
}

// openViewerLog returns the log destination for the viewer: the given file
// opened for appending, or a discarding writer when path is empty.
func openViewerLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
