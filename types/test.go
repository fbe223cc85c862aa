package types

import (
	"strings"
	"time"
)

// SuiteKind identifies what a suite represents in the host runner's static tree
type SuiteKind string

const (
	SuiteKindRoot     SuiteKind = "root"     // Synthetic root of the whole run
	SuiteKindProject  SuiteKind = "project"  // Synthetic project/group node
	SuiteKindFile     SuiteKind = "file"     // One test file
	SuiteKindDescribe SuiteKind = "describe" // A describe block
)

// SuiteMode is the execution mode of a suite
type SuiteMode string

const (
	SuiteModeDefault  SuiteMode = "default"
	SuiteModeParallel SuiteMode = "parallel"
	SuiteModeSerial   SuiteMode = "serial" // A failure replays the whole group
)

// Outcome is the host runner's classification of a test across its attempts
type Outcome string

const (
	OutcomeExpected   Outcome = "expected"
	OutcomeUnexpected Outcome = "unexpected"
	OutcomeFlaky      Outcome = "flaky"
	OutcomeSkipped    Outcome = "skipped"
)

// ResultStatus is the status of a single test attempt
type ResultStatus string

const (
	ResultStatusPassed      ResultStatus = "passed"
	ResultStatusFailed      ResultStatus = "failed"
	ResultStatusSkipped     ResultStatus = "skipped"
	ResultStatusTimedOut    ResultStatus = "timedOut"
	ResultStatusInterrupted ResultStatus = "interrupted"
)

// NoWorker is the worker index reported for attempts that never reached a worker,
// e.g. tests terminated by a failing hook or skipped statically.
const NoWorker = -1

// Annotation types that mark a test as statically skipped
const (
	AnnotationSkip  = "skip"
	AnnotationFixme = "fixme"
	AnnotationFail  = "fail"
)

// StepCategoryTest is the category of user-defined steps. Other categories
// (hooks, fixtures, expects) are never reported.
const StepCategoryTest = "test.step"

// Suite is a node in the host runner's static suite tree
type Suite struct {
	Title  string
	Kind   SuiteKind
	Mode   SuiteMode
	Parent *Suite
	Suites []*Suite
	Tests  []*Test
}

// Annotation is a typed note attached to a test
type Annotation struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Test is a single test case as seen by the host runner
type Test struct {
	ID          string
	Title       string
	Parent      *Suite
	Retries     int // Configured retries, 0 means a single attempt
	Outcome     Outcome
	Annotations []Annotation
	Tags        []string
	File        string
}

// Attachment is an in-memory artifact produced by a test attempt
type Attachment struct {
	Name        string
	ContentType string
	Body        []byte
	Path        string // Set when the artifact lives on disk; such attachments are not uploaded
}

// TestError describes why an attempt failed
type TestError struct {
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Text returns the most detailed description available
func (e *TestError) Text() string {
	if e == nil {
		return ""
	}
	if e.Stack != "" {
		return e.Stack
	}
	return e.Message
}

// Result is the outcome of one attempt of a test
type Result struct {
	Status      ResultStatus
	Retry       int // Zero-based attempt index
	WorkerIndex int
	Error       *TestError
	Attachments []Attachment
	StartTime   time.Time
	Duration    time.Duration
}

// Step is a nested step reported while a test attempt runs
type Step struct {
	Title    string
	Category string
	Parent   *Step
	Error    *TestError
}

// AllTests returns every test below the suite, depth first in declaration order
func (s *Suite) AllTests() []*Test {
	var tests []*Test
	stack := []*Suite{s}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tests = append(tests, cur.Tests...)
		for i := len(cur.Suites) - 1; i >= 0; i-- {
			stack = append(stack, cur.Suites[i])
		}
	}
	return tests
}

// AddSuite appends a child suite and links its parent
func (s *Suite) AddSuite(child *Suite) *Suite {
	child.Parent = s
	s.Suites = append(s.Suites, child)
	return child
}

// AddTest appends a test and links its parent
func (s *Suite) AddTest(t *Test) *Test {
	t.Parent = s
	s.Tests = append(s.Tests, t)
	return t
}

// Ancestors returns the suites enclosing the test ordered from the root down to the
// immediate parent. The walk is iterative.
func (t *Test) Ancestors() []*Suite {
	var chain []*Suite
	for s := t.Parent; s != nil; s = s.Parent {
		chain = append(chain, s)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// ProjectName returns the title of the enclosing project suite, if any
func (t *Test) ProjectName() string {
	for s := t.Parent; s != nil; s = s.Parent {
		if s.Kind == SuiteKindProject {
			return s.Title
		}
	}
	return ""
}

// HasAnnotation reports whether the test carries an annotation of the given type
func (t *Test) HasAnnotation(annotationType string) bool {
	for _, a := range t.Annotations {
		if a.Type == annotationType {
			return true
		}
	}
	return false
}

// IsStaticallySkipped reports whether a skip or fixme annotation is present
func (t *Test) IsStaticallySkipped() bool {
	return t.HasAnnotation(AnnotationSkip) || t.HasAnnotation(AnnotationFixme)
}

// InSerialMode reports whether the test's owning suite group runs serially
func (t *Test) InSerialMode() bool {
	for s := t.Parent; s != nil; s = s.Parent {
		if s.Mode == SuiteModeSerial {
			return true
		}
	}
	return false
}

// Path returns the slash separated titles of a step and its parents
func (s *Step) Path() string {
	var parts []string
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Title != "" {
			parts = append(parts, cur.Title)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}
