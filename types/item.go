package types

import "time"

// ItemType is the label a node carries on the remote item tree
type ItemType string

const (
	ItemTypeSuite     ItemType = "suite"      // Root container of a chain
	ItemTypeTestGroup ItemType = "test-group" // Nested container
	ItemTypeTest      ItemType = "test"       // Test with nested steps
	ItemTypeStep      ItemType = "step"       // Test without nested steps, or a nested step
)

// ItemStatus is the status reported when an item finishes
type ItemStatus string

const (
	StatusPassed      ItemStatus = "PASSED"
	StatusFailed      ItemStatus = "FAILED"
	StatusSkipped     ItemStatus = "SKIPPED"
	StatusInterrupted ItemStatus = "INTERRUPTED"
	StatusStopped     ItemStatus = "STOPPED"
	StatusInfo        ItemStatus = "INFO"
	StatusWarn        ItemStatus = "WARN"
)

var validStatuses = []ItemStatus{
	StatusPassed, StatusFailed, StatusSkipped, StatusInterrupted, StatusStopped, StatusInfo, StatusWarn,
}

// IsValid reports whether the status is one the remote service accepts
func (s ItemStatus) IsValid() bool {
	for _, v := range validStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// LogLevel is the severity of a log entry
type LogLevel string

const (
	LogLevelTrace LogLevel = "TRACE"
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// IssueTypeNotIssue marks a skipped item as not requiring investigation
const IssueTypeNotIssue = "NOT_ISSUE"

// LaunchMode controls launch visibility on the remote service
type LaunchMode string

const (
	LaunchModeDefault LaunchMode = "DEFAULT"
	LaunchModeDebug   LaunchMode = "DEBUG"
)

// Attribute is a key/value tag. Key may be empty.
type Attribute struct {
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
	Value  string `json:"value" yaml:"value"`
	System bool   `json:"system,omitempty" yaml:"-"`
}

// Issue classifies a non-passing item
type Issue struct {
	IssueType string `json:"issueType"`
}

// LogEntry is one log record sent to an item or the launch
type LogEntry struct {
	Message string    `json:"message"`
	Level   LogLevel  `json:"level,omitempty"`
	Time    time.Time `json:"time,omitempty"`
}

// File is an attachment uploaded with a log entry
type File struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content []byte `json:"content"`
}

// StartLaunchRQ opens a launch
type StartLaunchRQ struct {
	ID          string // Adopt an existing launch instead of creating one
	Name        string
	Description string
	Attributes  []Attribute
	StartTime   time.Time
	Mode        LaunchMode
	Rerun       bool
	RerunOf     string
}

// FinishLaunchRQ closes a launch
type FinishLaunchRQ struct {
	EndTime time.Time
	Status  ItemStatus
}

// StartItemRQ opens an item on the tree
type StartItemRQ struct {
	Name        string
	Type        ItemType
	StartTime   time.Time
	CodeRef     string
	Description string
	Attributes  []Attribute
	TestCaseID  string
	Retry       bool
	HasStats    bool
}

// FinishItemRQ closes an item
type FinishItemRQ struct {
	EndTime     time.Time
	Status      ItemStatus
	Issue       *Issue
	Description string
	Attributes  []Attribute
	TestCaseID  string
}
