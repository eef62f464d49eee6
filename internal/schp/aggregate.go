package schp

import (
	"fmt"
	"strings"
)

const (
	StatusOperational = "operational"
	StatusDegraded    = "degraded"
	StatusDown        = "down"
	StatusUnknown     = "unknown"
)

// Aggregate returns the document's explicit status when present, otherwise
// derives one from the capabilities.
func Aggregate(doc *Document) string {
	if doc == nil {
		return StatusUnknown
	}
	if doc.HasStatus {
		return doc.Status
	}
	if len(doc.Capabilities) == 0 {
		return StatusUnknown
	}
	ok := 0
	for _, c := range doc.Capabilities {
		if c.OK {
			ok++
		}
	}
	switch ok {
	case len(doc.Capabilities):
		return StatusOperational
	case 0:
		return StatusDown
	default:
		return StatusDegraded
	}
}

// FailedCapabilities lists names whose ok is false, in document order.
func FailedCapabilities(doc *Document) []string {
	if doc == nil {
		return nil
	}
	var out []string
	for _, c := range doc.Capabilities {
		if !c.OK {
			out = append(out, c.Name)
		}
	}
	return out
}

// IsUp is true only for operational. Degraded counts as down.
func IsUp(status string) bool { return status == StatusOperational }

// FormatSummary renders a one-line status for humans.
func FormatSummary(r Result) string {
	if !r.Success || r.Document == nil {
		return "Unable to fetch capabilities"
	}
	total := len(r.Document.Capabilities)
	ok := total - len(r.FailedCapabilities)
	switch r.Status {
	case StatusOperational:
		return fmt.Sprintf("✅ Operational (%d/%d capabilities OK)", ok, total)
	case StatusDegraded:
		return fmt.Sprintf("⚠️ Degraded: %s unavailable (%d/%d OK)", strings.Join(r.FailedCapabilities, ", "), ok, total)
	case StatusUnknown:
		return "❔ Unknown (no capabilities reported)"
	default:
		return "🔴 Down: all capabilities unavailable"
	}
}
