package rpreporter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

func TestParseAttribute(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  types.Attribute
		valid bool
	}{
		{name: "key and value", raw: "browser:chromium", want: types.Attribute{Key: "browser", Value: "chromium"}, valid: true},
		{name: "bare value", raw: "smoke", want: types.Attribute{Value: "smoke"}, valid: true},
		{name: "first colon splits", raw: "url:http://localhost:3000", want: types.Attribute{Key: "url", Value: "http://localhost:3000"}, valid: true},
		{name: "trimmed", raw: "  env : ci ", want: types.Attribute{Key: "env", Value: "ci"}, valid: true},
		{name: "empty key", raw: ":ci", want: types.Attribute{Value: "ci"}, valid: true},
		{name: "empty value", raw: "env:", valid: false},
		{name: "blank", raw: "   ", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseAttribute(tt.raw)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGetStatusString(t *testing.T) {
	assert.Equal(t, "✓ passed", getStatusString(types.StatusPassed))
	assert.Equal(t, "✗ failed", getStatusString(types.StatusFailed))
	assert.Equal(t, "- skipped", getStatusString(types.StatusSkipped))
	assert.Equal(t, "! interrupted", getStatusString(types.StatusInterrupted))
	assert.Equal(t, "! interrupted", getStatusString(types.StatusStopped))
	assert.Equal(t, "i warn", getStatusString(types.StatusWarn))
	assert.Equal(t, "  -", getStatusString(""))
}

func TestFormatAttributes(t *testing.T) {
	attrs := []types.Attribute{
		{Key: "browser", Value: "chromium"},
		{Value: "smoke"},
		{Key: "agent", Value: "op-rpreporter|v1", System: true},
	}
	assert.Equal(t, "browser:chromium, smoke", formatAttributes(attrs))
	assert.Equal(t, "", formatAttributes(nil))
}
