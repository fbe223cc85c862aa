package rpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// Emitter writes annotation events, one per line
type Emitter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewEmitter creates an emitter writing to w, or to standard output when w is nil
func NewEmitter(w io.Writer) *Emitter {
	if w == nil {
		w = os.Stdout
	}
	return &Emitter{w: w, now: time.Now}
}

// Target addresses the current test, or a suite by path or title
type Target struct {
	e     *Emitter
	suite string
}

// Test targets the test whose output carries the events
func (e *Emitter) Test() Target {
	return Target{e: e}
}

// Suite targets a suite by path key or title
func (e *Emitter) Suite(name string) Target {
	return Target{e: e, suite: name}
}

func (e *Emitter) emit(typ EventType, suite string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", typ, err)
	}
	line, err := json.Marshal(Event{Type: typ, Data: data, Suite: suite})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", typ, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write %s event: %w", typ, err)
	}
	return nil
}

func (e *Emitter) logData(level types.LogLevel, message string, file *types.File) LogData {
	return LogData{
		LogEntry: types.LogEntry{Message: message, Level: level, Time: e.now()},
		File:     file,
	}
}

// AddAttributes adds attributes to the target
func (t Target) AddAttributes(attrs ...types.Attribute) error {
	return t.e.emit(EventAddAttributes, t.suite, attrs)
}

// SetDescription replaces the target's description
func (t Target) SetDescription(description string) error {
	return t.e.emit(EventSetDescription, t.suite, description)
}

// SetTestCaseID sets the test case id of the target
func (t Target) SetTestCaseID(id string) error {
	return t.e.emit(EventSetTestCaseID, t.suite, id)
}

// SetStatus overrides the status the target finishes with
func (t Target) SetStatus(status types.ItemStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status %q", status)
	}
	return t.e.emit(EventSetStatus, t.suite, string(status))
}

// Log sends a log entry, optionally with an attachment, to the target
func (t Target) Log(level types.LogLevel, message string, file *types.File) error {
	return t.e.emit(EventAddLog, t.suite, t.e.logData(level, message, file))
}

// SetLaunchStatus overrides the status the launch finishes with
func (e *Emitter) SetLaunchStatus(status types.ItemStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status %q", status)
	}
	return e.emit(EventSetLaunchStatus, "", string(status))
}

// LaunchLog sends a log entry to the launch
func (e *Emitter) LaunchLog(level types.LogLevel, message string, file *types.File) error {
	return e.emit(EventAddLaunchLog, "", e.logData(level, message, file))
}
