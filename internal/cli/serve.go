package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yildizm/nginx-config-viewer/internal/config"
	"github.com/yildizm/nginx-config-viewer/internal/emoji"
	"github.com/yildizm/nginx-config-viewer/internal/server"
)

var (
	serveAddr      string
	servePath      string
	serveCORS      bool
	serveDebounce  time.Duration
	serveHeartbeat time.Duration
	serveRetry     time.Duration
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an nginx configuration file with live reload",
		Long: `Serve a single nginx configuration file over HTTP.

GET /raw returns the file as plain text, GET /events is an event stream that
sends "reload" whenever the file changes, GET /stats reports server counters
and / hosts a browser viewer. Press Ctrl+C to stop.

Examples:
  nginx-config-viewer serve
  nginx-config-viewer serve --path ./nginx.conf --addr 127.0.0.1:9000
  nginx-config-viewer serve --cors`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVarP(&servePath, "path", "p", "", "nginx configuration file to serve")
	cmd.Flags().BoolVar(&serveCORS, "cors", false, "allow cross-origin requests to /raw")
	cmd.Flags().DurationVar(&serveDebounce, "debounce", 0, "quiet period before a change is announced")
	cmd.Flags().DurationVar(&serveHeartbeat, "heartbeat", 0, "event stream keep-alive interval")
	cmd.Flags().DurationVar(&serveRetry, "retry", 0, "reconnect delay advertised to viewers (0 keeps theirs)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg.Server)
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger("server")
	log.SetOutput(cmd.ErrOrStderr())

	s, err := server.New(cfg.Server, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "%s Serving %s on %s\n", emoji.GetEmoji("server"), s.Path(), cfg.Server.Addr)
	if err := s.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Stopped\n", emoji.GetEmoji("stop"))
	}
	return nil
}

// applyServeFlags overrides the loaded config with the flags the user set.
func applyServeFlags(cmd *cobra.Command, cfg *config.ServerConfig) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = serveAddr
	}
	if flags.Changed("path") {
		cfg.Path = servePath
	}
	if flags.Changed("cors") {
		cfg.CORS = serveCORS
	}
	if flags.Changed("debounce") {
		cfg.Debounce = serveDebounce
	}
	if flags.Changed("heartbeat") {
		cfg.Heartbeat = serveHeartbeat
	}
	if flags.Changed("retry") {
		cfg.Retry = serveRetry
	}
}
