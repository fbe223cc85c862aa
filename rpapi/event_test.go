package rpapi

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

func TestParse_RejectsNonEvents(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"plain text", "hello world"},
		{"broken json", `{"type": "rp:addLog"`},
		{"unknown type", `{"type":"other","data":1}`},
		{"array", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse([]byte(tt.line))
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, ErrNotEvent)
		})
	}
}

func TestEmitter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)
	e.now = func() time.Time { return time.Unix(100, 0).UTC() }

	require.NoError(t, e.Test().AddAttributes(types.Attribute{Key: "team", Value: "core"}))
	require.NoError(t, e.Suite("login").SetDescription("login flows"))
	require.NoError(t, e.Test().SetTestCaseID("TC-1"))
	require.NoError(t, e.Suite("login").SetStatus(types.StatusInfo))
	require.NoError(t, e.Test().Log(types.LogLevelWarn, "careful", &types.File{Name: "a.txt", Content: []byte("hi")}))
	require.NoError(t, e.SetLaunchStatus(types.StatusFailed))
	require.NoError(t, e.LaunchLog(types.LogLevelInfo, "launch note", nil))

	var events []*Event
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		ev, err := Parse(scanner.Bytes())
		require.NoError(t, err)
		events = append(events, ev)
	}
	require.Len(t, events, 7)

	attrs, err := events[0].Attributes()
	require.NoError(t, err)
	assert.Equal(t, []types.Attribute{{Key: "team", Value: "core"}}, attrs)
	assert.Empty(t, events[0].Suite)

	desc, err := events[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "login flows", desc)
	assert.Equal(t, "login", events[1].Suite)

	status, err := events[3].Status()
	require.NoError(t, err)
	assert.Equal(t, types.StatusInfo, status)

	logData, err := events[4].Log()
	require.NoError(t, err)
	assert.Equal(t, "careful", logData.Message)
	assert.Equal(t, types.LogLevelWarn, logData.Level)
	require.NotNil(t, logData.File)
	assert.Equal(t, []byte("hi"), logData.File.Content)

	assert.Equal(t, EventSetLaunchStatus, events[5].Type)
	assert.Equal(t, EventAddLaunchLog, events[6].Type)
}

func TestEmitter_RejectsInvalidStatus(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)
	assert.Error(t, e.Test().SetStatus("DONE"))
	assert.Error(t, e.SetLaunchStatus("DONE"))
	assert.Zero(t, buf.Len())
}

func TestEvent_StatusValidation(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"rp:setStatus","data":"BROKEN"}`))
	require.NoError(t, err)
	_, err = ev.Status()
	assert.Error(t, err)
}

func TestEvent_LogDefaultsLevel(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"rp:addLog","data":{"message":"m"}}`))
	require.NoError(t, err)
	data, err := ev.Log()
	require.NoError(t, err)
	assert.Equal(t, types.LogLevelInfo, data.Level)
}
