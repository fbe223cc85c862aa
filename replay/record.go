// Package replay drives a Reporter from a recorded log of runner callbacks. Each line of
// the log is one JSON record.
package replay

import (
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// Kind names a runner callback
type Kind string

const (
	KindBegin     Kind = "begin"
	KindTestBegin Kind = "testBegin"
	KindStepBegin Kind = "stepBegin"
	KindStepEnd   Kind = "stepEnd"
	KindTestEnd   Kind = "testEnd"
	KindStdout    Kind = "stdout"
	KindStderr    Kind = "stderr"
	KindEnd       Kind = "end"
)

// Record is one line of an event log
type Record struct {
	Kind    Kind          `json:"kind"`
	Suite   *SuiteRecord  `json:"suite,omitempty"`   // begin
	Test    string        `json:"test,omitempty"`    // test, step and output records
	Outcome types.Outcome `json:"outcome,omitempty"` // testEnd
	Result  *ResultRecord `json:"result,omitempty"`
	Step    *StepRecord   `json:"step,omitempty"`
	Chunk   string        `json:"chunk,omitempty"`
}

// SuiteRecord is the static suite tree sent with the begin record
type SuiteRecord struct {
	Title  string          `json:"title,omitempty"`
	Kind   types.SuiteKind `json:"kind"`
	Mode   types.SuiteMode `json:"mode,omitempty"`
	Suites []*SuiteRecord  `json:"suites,omitempty"`
	Tests  []*TestRecord   `json:"tests,omitempty"`
}

type TestRecord struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Retries     int                `json:"retries,omitempty"`
	Annotations []types.Annotation `json:"annotations,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	File        string             `json:"file,omitempty"`
}

type ResultRecord struct {
	Status      types.ResultStatus `json:"status,omitempty"`
	Retry       int                `json:"retry,omitempty"`
	WorkerIndex int                `json:"workerIndex"`
	Error       *types.TestError   `json:"error,omitempty"`
	Attachments []AttachmentRecord `json:"attachments,omitempty"`
	StartTime   time.Time          `json:"startTime,omitempty"`
	DurationMS  int64              `json:"duration,omitempty"`
}

type AttachmentRecord struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
	Path        string `json:"path,omitempty"`
}

// StepRecord identifies a step instance. IDs are only meaningful within one log.
type StepRecord struct {
	ID       string           `json:"id"`
	Parent   string           `json:"parent,omitempty"`
	Title    string           `json:"title,omitempty"`
	Category string           `json:"category,omitempty"`
	Error    *types.TestError `json:"error,omitempty"`
}

// Validate checks that a record carries the fields its kind needs
func (r *Record) Validate() error {
	switch r.Kind {
	case KindBegin:
		if r.Suite == nil {
			return fmt.Errorf("%s record without suite", r.Kind)
		}
	case KindTestBegin, KindTestEnd:
		if r.Test == "" {
			return fmt.Errorf("%s record without test", r.Kind)
		}
	case KindStepBegin, KindStepEnd:
		if r.Test == "" || r.Step == nil || r.Step.ID == "" {
			return fmt.Errorf("%s record without test or step", r.Kind)
		}
	case KindStdout, KindStderr, KindEnd:
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}

// toResult converts the record to the runner's result shape. A missing result is
// reported as a plain passed attempt.
func (r *ResultRecord) toResult() *types.Result {
	if r == nil {
		return &types.Result{Status: types.ResultStatusPassed}
	}
	res := &types.Result{
		Status:      r.Status,
		Retry:       r.Retry,
		WorkerIndex: r.WorkerIndex,
		Error:       r.Error,
		StartTime:   r.StartTime,
		Duration:    time.Duration(r.DurationMS) * time.Millisecond,
	}
	for _, a := range r.Attachments {
		res.Attachments = append(res.Attachments, types.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Body:        a.Body,
			Path:        a.Path,
		})
	}
	return res
}

// buildTree converts the begin record into a linked suite tree and indexes its tests.
// Null suite or test entries are rejected.
func buildTree(root *SuiteRecord) (*types.Suite, map[string]*types.Test, error) {
	tests := make(map[string]*types.Test)
	type frame struct {
		rec   *SuiteRecord
		suite *types.Suite
	}
	top := &types.Suite{Title: root.Title, Kind: root.Kind, Mode: root.Mode}
	if top.Kind == "" {
		top.Kind = types.SuiteKindRoot
	}
	stack := []frame{{rec: root, suite: top}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, tr := range cur.rec.Tests {
			if tr == nil {
				return nil, nil, fmt.Errorf("null test in suite %q", cur.rec.Title)
			}
			if _, dup := tests[tr.ID]; dup {
				return nil, nil, fmt.Errorf("duplicate test id %q", tr.ID)
			}
			tests[tr.ID] = cur.suite.AddTest(&types.Test{
				ID:          tr.ID,
				Title:       tr.Title,
				Retries:     tr.Retries,
				Annotations: tr.Annotations,
				Tags:        tr.Tags,
				File:        tr.File,
			})
		}
		for _, sr := range cur.rec.Suites {
			if sr == nil {
				return nil, nil, fmt.Errorf("null suite in suite %q", cur.rec.Title)
			}
			mode := sr.Mode
			if mode == "" {
				mode = types.SuiteModeDefault
			}
			child := cur.suite.AddSuite(&types.Suite{Title: sr.Title, Kind: sr.Kind, Mode: mode})
			stack = append(stack, frame{rec: sr, suite: child})
		}
	}
	return top, tests, nil
}
