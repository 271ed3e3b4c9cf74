// Package formatter renders /stats snapshots for the terminal.
package formatter

import (
	"fmt"

	"github.com/yildizm/nginx-config-viewer/internal/monitor"
)

// Formatter defines the interface for output formatting
type Formatter interface {
	Format(snap *monitor.Snapshot) ([]byte, error)
}

// New returns the formatter for format ("text" or "json").
func New(format string, color bool) (Formatter, error) {
	switch format {
	case "", "text":
		return NewTerminal(color), nil
	case "json":
		return NewJSON(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (must be one of: text, json)", format)
	}
}
