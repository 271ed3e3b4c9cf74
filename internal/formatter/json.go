package formatter

import (
	"encoding/json"

	"github.com/yildizm/nginx-config-viewer/internal/monitor"
)

// jsonFormatter formats output as JSON
type jsonFormatter struct{}

// NewJSON creates a new JSON formatter
func NewJSON() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Format(snap *monitor.Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}
