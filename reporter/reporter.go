// Package reporter maps the lifecycle of a hierarchical test run onto the item tree of
// a remote reporting service.
//
// A Reporter receives the host runner's callbacks, opens suite items lazily the first
// time one of their tests begins, and keeps per suite an invocation budget: the number
// of test attempts it still has to observe. A suite is closed exactly once, when its
// budget drops below one. Retries, hook-terminated skips and serial-mode replays adjust
// the budget; at the end of the run every suite still open is closed regardless.
//
// All remote calls are asynchronous. State transitions complete before the call
// result is known and the results are collected in a pending set awaited by OnEnd.
package reporter

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-rpreporter/client"
	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// DefaultAgentName is reported as a system attribute of the launch
const DefaultAgentName = "op-rpreporter"

// LaunchConfig describes the launch opened by OnBegin
type LaunchConfig struct {
	ID          string // Report into an existing launch; it is not finished by OnEnd
	Name        string
	Description string
	Attributes  []types.Attribute
	Mode        types.LaunchMode
	Rerun       bool
	RerunOf     string
}

// Config holds configuration for creating a new reporter
type Config struct {
	Client       client.Client
	Log          log.Logger
	Launch       LaunchConfig
	AgentVersion string

	IncludeTestSteps                   bool // Report nested steps; tests become containers
	SkippedIsNotIssue                  bool // Mark skipped tests as NOT_ISSUE
	ExtendTestDescriptionWithLastError bool

	// Now and NewStepID default to time.Now and uuid.NewString
	Now       func() time.Time
	NewStepID func() string
}

// Reporter tracks one run. Callbacks may arrive from several goroutines; they are
// serialized by an internal lock and never block on the network.
type Reporter struct {
	mu sync.Mutex

	cfg       Config
	log       log.Logger
	client    client.Client
	now       func() time.Time
	newStepID func() string

	launch  *launchContext
	reg     *itemRegistry
	stepIDs map[*types.Step]string // Synthetic instance id of every open step
	stats   runStats
}

// New creates a reporter for a single run
func New(cfg Config) (*Reporter, error) {
	if cfg.Client == nil {
		return nil, errors.New("client is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewStepID == nil {
		cfg.NewStepID = uuid.NewString
	}
	if cfg.Launch.Mode == "" {
		cfg.Launch.Mode = types.LaunchModeDefault
	}

	return &Reporter{
		cfg:       cfg,
		log:       cfg.Log.New("component", "reporter"),
		client:    cfg.Client,
		now:       cfg.Now,
		newStepID: cfg.NewStepID,
		launch:    newLaunchContext(cfg.Log),
		reg:       newItemRegistry(),
		stepIDs:   make(map[*types.Step]string),
	}, nil
}

// OnTestBegin opens the test item, materializing its suite chain first
func (r *Reporter) OnTestBegin(test *types.Test, result *types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if test == nil {
		return
	}
	if r.launch.finishing {
		r.log.Debug("Ignoring test begin after shutdown", "test", test.ID)
		return
	}

	paths := resolveSuitePaths(test)
	parentID := r.ensureSuiteChain(test, paths)

	meta := r.reg.takePending(test.ID)
	itemType := types.ItemTypeStep
	if r.cfg.IncludeTestSteps {
		itemType = types.ItemTypeTest
	}
	attributes := tagAttributes(test.Tags)
	attributes = append(attributes, meta.Attributes...)

	rq := types.StartItemRQ{
		Name:        test.Title,
		Type:        itemType,
		StartTime:   r.now(),
		CodeRef:     testCodeRef(paths, test),
		Description: meta.Description,
		Attributes:  attributes,
		TestCaseID:  meta.TestCaseID,
		Retry:       result != nil && result.Retry > 0,
		HasStats:    true,
	}
	id, c := r.client.StartItem(rq, r.launch.id, parentID)
	r.launch.pending.Add(c, "Failed to start test.")
	metrics.RecordItemStarted(itemType)

	r.reg.tests[test.ID] = &testItem{
		ID:   id,
		Name: test.Title,
		Type: itemType,
		Meta: itemMetadata{Status: meta.Status},
	}
	for _, entry := range meta.Logs {
		r.sendLog(id, entry, nil, "Failed to send log.")
	}
	r.log.Debug("Test started", "test", test.ID, "item", id, "parent", parentID)
}

// OnTestEnd finishes the test item, closes its open steps, accounts the completion
// against every ancestor suite and closes the suites that became eligible
func (r *Reporter) OnTestEnd(test *types.Test, result *types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if test == nil {
		return
	}
	if result == nil {
		result = &types.Result{Status: types.ResultStatusFailed, WorkerIndex: types.NoWorker}
	}
	item, ok := r.reg.tests[test.ID]
	if !ok {
		r.log.Debug("Ignoring end of unknown test", "test", test.ID)
		return
	}

	status := item.Meta.Status
	if status == "" {
		status = types.CalculateStatus(test.Outcome, result.Status)
	}

	r.closeOpenSteps(test.ID, types.ForcedStepStatus(result.Status))

	errorText := ""
	if result.Error != nil {
		errorText = cleanText(result.Error.Text())
		if errorText != "" {
			r.sendLog(item.ID, types.LogEntry{Message: errorText, Level: types.LogLevelError, Time: r.now()}, nil, "Failed to send log.")
		}
	}
	r.sendAttachments(item.ID, result.Attachments)

	description := item.Meta.Description
	if r.cfg.ExtendTestDescriptionWithLastError && errorText != "" {
		description = extendDescription(description, errorText)
	}
	rq := types.FinishItemRQ{
		EndTime:     r.now(),
		Status:      status,
		Description: description,
		Attributes:  item.Meta.Attributes,
		TestCaseID:  item.Meta.TestCaseID,
	}
	if status == types.StatusSkipped && r.cfg.SkippedIsNotIssue {
		rq.Issue = &types.Issue{IssueType: types.IssueTypeNotIssue}
	}
	r.launch.pending.Add(r.client.FinishItem(item.ID, rq), "Failed to finish test.")
	metrics.RecordItemFinished(item.Type, status)

	// Removed before the remote finish completes so a retry reusing the id starts clean.
	delete(r.reg.tests, test.ID)

	r.stats.record(test, result, status)
	r.accountCompletion(test, result)
	r.flushEligibleSuites()
}

// OnStdErr logs a chunk of standard error on the current test
func (r *Reporter) OnStdErr(chunk string, test *types.Test) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if test == nil {
		return
	}
	message := cleanText(chunk)
	if message == "" {
		return
	}
	r.logToTest(test, types.LogEntry{Message: message, Level: types.LogLevelError, Time: r.now()})
}

func (r *Reporter) sendLog(itemID string, entry types.LogEntry, file *types.File, context string) {
	if entry.Time.IsZero() {
		entry.Time = r.now()
	}
	if entry.Level == "" {
		entry.Level = types.LogLevelInfo
	}
	r.launch.pending.Add(r.client.SendLog(itemID, entry, file), context)
}

// logToTest sends a log to the test item, or buffers it until the test begins
func (r *Reporter) logToTest(test *types.Test, entry types.LogEntry) {
	if item, ok := r.reg.tests[test.ID]; ok {
		r.sendLog(item.ID, entry, nil, "Failed to send log.")
		return
	}
	meta := r.reg.pendingFor(test.ID)
	meta.Logs = append(meta.Logs, entry)
}

func (r *Reporter) sendAttachments(itemID string, attachments []types.Attachment) {
	for _, a := range attachments {
		if len(a.Body) == 0 {
			r.log.Debug("Skipping attachment without body", "name", a.Name, "path", a.Path)
			continue
		}
		file := &types.File{Name: a.Name, Type: a.ContentType, Content: a.Body}
		r.sendLog(itemID, types.LogEntry{Message: a.Name, Level: types.LogLevelInfo, Time: r.now()}, file, "Failed to send attachment.")
	}
}

func tagAttributes(tags []string) []types.Attribute {
	var attrs []types.Attribute
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "@")
		if tag == "" {
			continue
		}
		attrs = append(attrs, types.Attribute{Value: tag})
	}
	return attrs
}

func extendDescription(description string, errorText string) string {
	block := "```error\n" + errorText + "\n```"
	if description == "" {
		return block
	}
	return description + "\n" + block
}

// cleanText strips ANSI escapes and trailing newlines from runner output
func cleanText(s string) string {
	return strings.TrimRight(stripansi.Strip(s), "\r\n")
}
