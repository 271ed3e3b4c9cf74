package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/yildizm/nginx-config-viewer/internal/formatter"
	"github.com/yildizm/nginx-config-viewer/internal/monitor"
)

var (
	statsURL     string
	statsOutput  string
	statsTimeout time.Duration
)

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show counters of a running server",
		Long: `Fetch /stats from a running server and print request, stream and runtime
counters.

Examples:
  nginx-config-viewer stats
  nginx-config-viewer stats --url http://proxy.internal:8080 -o json`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}

	cmd.Flags().StringVarP(&statsURL, "url", "u", "", "base URL of the server (default from config)")
	cmd.Flags().StringVarP(&statsOutput, "output", "o", "text", "output format (text, json)")
	cmd.Flags().DurationVar(&statsTimeout, "timeout", 10*time.Second, "request timeout")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	base := cfg.Viewer.URL
	if cmd.Flags().Changed("url") {
		base = statsURL
	}

	f, err := formatter.New(statsOutput, useColor(cfg))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statsTimeout)
	defer cancel()

	snap, err := fetchStats(ctx, http.DefaultClient, base)
	if err != nil {
		return err
	}

	out, err := f.Format(snap)
	if err != nil {
		return fmt.Errorf("failed to format stats: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// fetchStats reads the counter snapshot of the server at base.
func fetchStats(ctx context.Context, client *http.Client, base string) (*monitor.Snapshot, error) {
	endpoint, err := url.JoinPath(base, "stats")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", base, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch stats: %s", resp.Status)
	}

	var snap monitor.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return &snap, nil
}
