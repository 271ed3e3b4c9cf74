package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/yildizm/go-termfmt"

	"github.com/yildizm/nginx-config-viewer/internal/monitor"
)

// terminalFormatter formats output as plain text for terminal display using go-termfmt
type terminalFormatter struct {
	opts *termfmt.TerminalOptions
}

// NewTerminal creates a new terminal formatter with optional color support
func NewTerminal(color bool) Formatter {
	opts := termfmt.DefaultOptions()
	opts.Color = color
	opts.Emoji = true
	return &terminalFormatter{opts: opts}
}

func (f *terminalFormatter) Format(snap *monitor.Snapshot) ([]byte, error) {
	var b strings.Builder

	f.writeHeader(&b, snap)
	f.writeRaw(&b, snap.Raw)
	f.writeEvents(&b, snap.Events)
	f.writeRuntime(&b, snap.Runtime)

	return []byte(b.String()), nil
}

func (f *terminalFormatter) writeHeader(b *strings.Builder, snap *monitor.Snapshot) {
	header := "nginx config viewer stats"
	headerLen := len(header)

	b.WriteString("╔" + strings.Repeat("═", headerLen+2) + "╗\n")
	b.WriteString("║ " + header + " ║\n")
	b.WriteString("╚" + strings.Repeat("═", headerLen+2) + "╝\n")
	if snap.Path != "" {
		fmt.Fprintf(b, "File:   %s\n", snap.Path)
	}
	fmt.Fprintf(b, "Uptime: %s\n\n", formatDuration(snap.Uptime()))
}

// writeRaw writes /raw statistics with tree-style formatting
func (f *terminalFormatter) writeRaw(b *strings.Builder, raw monitor.RawStats) {
	symbol := termfmt.GetEmoji("statistics", f.opts)
	b.WriteString(symbol + " /raw\n")

	hitRate := 0.0
	if raw.Requests > 0 {
		hitRate = float64(raw.NotModified) / float64(raw.Requests) * 100
	}

	items := []termfmt.TreeItem{
		{Label: "Requests", Value: formatNumber(raw.Requests)},
		{Label: "Not Modified", Value: fmt.Sprintf("%s (%.1f%%)", formatNumber(raw.NotModified), hitRate)},
		{Label: "Errors", Value: formatNumber(raw.Errors)},
		{Label: "Latency", Value: fmt.Sprintf("min %s, avg %s, max %s",
			formatDuration(time.Duration(raw.MinLatencyNs)),
			formatDuration(time.Duration(raw.AvgLatencyNs)),
			formatDuration(time.Duration(raw.MaxLatencyNs))), Last: true},
	}

	b.WriteString(termfmt.TreeViewWithOptions(items, f.opts) + "\n\n")
}

// writeEvents writes the event stream figures. A non-zero drop count gets
// a warning marker since it means some viewer missed a reload.
func (f *terminalFormatter) writeEvents(b *strings.Builder, events monitor.EventStats) {
	symbol := termfmt.GetEmoji("info", f.opts)
	b.WriteString(symbol + " /events\n")

	dropped := formatNumber(events.Dropped)
	if events.Dropped > 0 {
		dropped = termfmt.GetEmoji("warning", f.opts) + " " + dropped
	}

	items := []termfmt.TreeItem{
		{Label: "Connected Clients", Value: formatNumber(events.Clients)},
		{Label: "File Changes", Value: formatNumber(events.FileChanges)},
		{Label: "Broadcasts", Value: formatNumber(events.Broadcasts)},
		{Label: "Dropped", Value: dropped, Last: true},
	}

	b.WriteString(termfmt.TreeViewWithOptions(items, f.opts) + "\n\n")
}

func (f *terminalFormatter) writeRuntime(b *strings.Builder, rt monitor.RuntimeStats) {
	opts := termfmt.DefaultOptions()
	opts.Color = f.opts.Color
	opts.Emoji = false
	symbol := termfmt.GetEmoji("summary", opts)
	b.WriteString(symbol + " Runtime\n")

	items := []termfmt.TreeItem{
		{Label: "Goroutines", Value: formatNumber(int64(rt.Goroutines))},
		{Label: "Heap", Value: formatBytes(rt.HeapAlloc)},
		{Label: "GC Cycles", Value: formatNumber(int64(rt.NumGC)), Last: true},
	}

	b.WriteString(termfmt.TreeViewWithOptions(items, f.opts) + "\n")
}
