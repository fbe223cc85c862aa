package rpreporter

import (
	"strings"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// parseAttribute parses 'key:value' or a bare 'value'. Only the first colon splits.
func parseAttribute(raw string) (types.Attribute, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Attribute{}, false
	}
	key, value, found := strings.Cut(raw, ":")
	if !found {
		return types.Attribute{Value: raw}, true
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if value == "" {
		return types.Attribute{}, false
	}
	return types.Attribute{Key: key, Value: value}, true
}

// getStatusString returns a marked string for an item status
func getStatusString(status types.ItemStatus) string {
	switch status {
	case types.StatusPassed:
		return "✓ passed"
	case types.StatusSkipped:
		return "- skipped"
	case types.StatusInterrupted, types.StatusStopped:
		return "! interrupted"
	case types.StatusInfo, types.StatusWarn:
		return "i " + strings.ToLower(string(status))
	case "":
		return "  -"
	default:
		return "✗ failed"
	}
}

func formatAttributes(attrs []types.Attribute) string {
	var parts []string
	for _, a := range attrs {
		if a.System {
			continue
		}
		if a.Key == "" {
			parts = append(parts, a.Value)
			continue
		}
		parts = append(parts, a.Key+":"+a.Value)
	}
	return strings.Join(parts, ", ")
}
