package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportFormat for audit log exports.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

var csvHeader = []string{"id", "created_at", "type", "status", "email", "source", "risk", "message"}

// Export writes events to w in the given format.
func Export(w io.Writer, events []AuditEvent, format ExportFormat) error {
	switch format {
	case ExportJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if events == nil {
			events = []AuditEvent{}
		}
		return enc.Encode(events)
	case ExportCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, e := range events {
			if err := cw.Write([]string{
				e.ID,
				e.CreatedAt.UTC().Format(time.RFC3339),
				e.Type,
				e.Status,
				e.Email,
				e.Source,
				string(e.Risk),
				e.Message,
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("audit: unknown export format %q", format)
	}
}
