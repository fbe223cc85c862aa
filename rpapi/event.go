// Package rpapi carries annotations from test code to the reporter. Test code writes
// one JSON record per line to standard output and the reporter picks the records out of
// the runner's stdout stream.
package rpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// EventType names an annotation record
type EventType string

const (
	EventAddAttributes   EventType = "rp:addAttributes"
	EventSetDescription  EventType = "rp:setDescription"
	EventSetTestCaseID   EventType = "rp:setTestCaseId"
	EventSetStatus       EventType = "rp:setStatus"
	EventSetLaunchStatus EventType = "rp:setLaunchStatus"
	EventAddLog          EventType = "rp:addLog"
	EventAddLaunchLog    EventType = "rp:addLaunchLog"
)

var knownEvents = map[EventType]bool{
	EventAddAttributes:   true,
	EventSetDescription:  true,
	EventSetTestCaseID:   true,
	EventSetStatus:       true,
	EventSetLaunchStatus: true,
	EventAddLog:          true,
	EventAddLaunchLog:    true,
}

var ErrNotEvent = errors.New("not an annotation event")

// Event is one annotation record. Suite is empty when the event targets the test
// whose output carried it.
type Event struct {
	Type  EventType       `json:"type"`
	Data  json.RawMessage `json:"data"`
	Suite string          `json:"suite,omitempty"`
}

// LogData is the payload of the log events
type LogData struct {
	types.LogEntry
	File *types.File `json:"file,omitempty"`
}

// Parse decodes a stdout line. Lines that are not JSON objects of a known event type
// return ErrNotEvent.
func Parse(line []byte) (*Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, ErrNotEvent
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEvent, err)
	}
	if !knownEvents[ev.Type] {
		return nil, fmt.Errorf("%w: unknown type %q", ErrNotEvent, ev.Type)
	}
	return &ev, nil
}

// Attributes decodes the payload of an addAttributes event
func (e *Event) Attributes() ([]types.Attribute, error) {
	var attrs []types.Attribute
	if err := json.Unmarshal(e.Data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return attrs, nil
}

// Text decodes the string payload of the description, test case id and status events
func (e *Event) Text() (string, error) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return s, nil
}

// Status decodes and validates the payload of a status event
func (e *Event) Status() (types.ItemStatus, error) {
	s, err := e.Text()
	if err != nil {
		return "", err
	}
	status := types.ItemStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return status, nil
}

// Log decodes the payload of a log event
func (e *Event) Log() (LogData, error) {
	var data LogData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return data, fmt.Errorf("failed to decode log: %w", err)
	}
	if data.Level == "" {
		data.Level = types.LogLevelInfo
	}
	return data, nil
}
