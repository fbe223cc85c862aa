package reporter

import (
	"context"
	"runtime"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-rpreporter/client"
	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// launchContext is the per-run launch state
type launchContext struct {
	id           string
	external     bool             // Launch id supplied by configuration
	customStatus types.ItemStatus // Set through a launch status event
	pending      *client.Pending
	finishing    bool     // Set by OnEnd; no item may be created afterwards
	ended        *Summary // Summary built by the first OnEnd, before remote counts
}

func newLaunchContext(logger log.Logger) *launchContext {
	return &launchContext{
		pending: client.NewPending(logger.New("component", "pending")),
	}
}

// runStats counts finished attempts
type runStats struct {
	Total        int
	Passed       int
	Failed       int
	Skipped      int
	Interrupted  int
	Retried      int // Attempts that were followed by another attempt
	FinalFailure bool
}

func (s *runStats) record(test *types.Test, result *types.Result, status types.ItemStatus) {
	s.Total++
	switch status {
	case types.StatusPassed:
		s.Passed++
	case types.StatusSkipped:
		s.Skipped++
	case types.StatusInterrupted:
		s.Interrupted++
		s.FinalFailure = true
	case types.StatusFailed:
		s.Failed++
		if result.Retry >= test.Retries {
			s.FinalFailure = true
		} else {
			s.Retried++
		}
	}
}

// Summary describes a finished run
type Summary struct {
	LaunchID       string
	Status         types.ItemStatus // Custom launch status, or derived from the attempts
	Total          int
	Passed         int
	Failed         int
	Skipped        int
	Interrupted    int
	Retried        int
	ForcedSuites   int   // Suites closed by the shutdown reconciler
	RemoteCalls    int64 // Remote calls queued during the run
	RemoteFailures int64
}

// OnBegin opens the launch
func (r *Reporter) OnBegin(root *types.Suite) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.launch.id != "" {
		r.log.Warn("Launch already started", "launch", r.launch.id)
		return
	}

	attributes := append([]types.Attribute(nil), r.cfg.Launch.Attributes...)
	attributes = append(attributes, r.systemAttributes()...)
	rq := types.StartLaunchRQ{
		ID:          r.cfg.Launch.ID,
		Name:        r.cfg.Launch.Name,
		Description: r.cfg.Launch.Description,
		Attributes:  attributes,
		StartTime:   r.now(),
		Mode:        r.cfg.Launch.Mode,
		Rerun:       r.cfg.Launch.Rerun,
		RerunOf:     r.cfg.Launch.RerunOf,
	}
	id, c := r.client.StartLaunch(rq)
	r.launch.pending.Add(c, "Failed to launch run.")
	r.launch.id = id
	r.launch.external = r.cfg.Launch.ID != ""

	tests := 0
	if root != nil {
		tests = len(root.AllTests())
	}
	r.log.Info("Launch started", "launch", id, "name", rq.Name, "tests", tests, "external", r.launch.external)
}

// OnEnd closes everything still open, finishes the launch unless it is managed
// externally, and waits for the pending remote calls until ctx is done. Later calls
// make no remote calls and return the same summary.
func (r *Reporter) OnEnd(ctx context.Context) Summary {
	r.mu.Lock()
	if r.launch.ended != nil {
		summary := *r.launch.ended
		pending := r.launch.pending
		r.mu.Unlock()
		r.log.Debug("Run already ended", "launch", summary.LaunchID)
		return r.collectPending(ctx, pending, summary)
	}
	r.launch.finishing = true

	r.interruptOpenTests()
	forced := r.forceFinishAll()

	status := r.launch.customStatus
	if !r.launch.external && r.launch.id != "" {
		rq := types.FinishLaunchRQ{EndTime: r.now(), Status: status}
		r.launch.pending.Add(r.client.FinishLaunch(r.launch.id, rq), "Failed to finish launch.")
	}

	summary := Summary{
		LaunchID:     r.launch.id,
		Status:       status,
		Total:        r.stats.Total,
		Passed:       r.stats.Passed,
		Failed:       r.stats.Failed,
		Skipped:      r.stats.Skipped,
		Interrupted:  r.stats.Interrupted,
		Retried:      r.stats.Retried,
		ForcedSuites: forced,
	}
	if summary.Status == "" {
		summary.Status = types.StatusPassed
		if r.stats.FinalFailure {
			summary.Status = types.StatusFailed
		}
	}
	ended := summary
	r.launch.ended = &ended
	pending := r.launch.pending
	r.mu.Unlock()

	summary = r.collectPending(ctx, pending, summary)
	r.log.Info("Launch finished", "launch", summary.LaunchID, "status", summary.Status,
		"tests", summary.Total, "failed", summary.Failed, "forcedSuites", summary.ForcedSuites,
		"remoteFailures", summary.RemoteFailures)
	return summary
}

// collectPending waits for the queued remote calls and adds their counts
func (r *Reporter) collectPending(ctx context.Context, pending *client.Pending, summary Summary) Summary {
	if err := pending.Wait(ctx); err != nil {
		r.log.Error("Remote calls still pending at shutdown", "err", err)
	}
	summary.RemoteCalls = pending.Queued()
	summary.RemoteFailures = pending.Failed()
	return summary
}

// interruptOpenTests finishes test items whose end never arrived, so that no item is
// left open below the suites the reconciler is about to close
func (r *Reporter) interruptOpenTests() {
	for testID, item := range r.reg.tests {
		r.log.Warn("Finishing test that never ended", "test", testID, "item", item.ID)
		r.closeOpenSteps(testID, types.StatusInterrupted)
		rq := types.FinishItemRQ{
			EndTime:    r.now(),
			Status:     types.StatusInterrupted,
			Attributes: item.Meta.Attributes,
			TestCaseID: item.Meta.TestCaseID,
		}
		r.launch.pending.Add(r.client.FinishItem(item.ID, rq), "Failed to finish test.")
		metrics.RecordItemFinished(item.Type, rq.Status)
		delete(r.reg.tests, testID)
	}
}

func (r *Reporter) systemAttributes() []types.Attribute {
	agent := DefaultAgentName
	if r.cfg.AgentVersion != "" {
		agent += "|" + r.cfg.AgentVersion
	}
	attrs := []types.Attribute{
		{Key: "agent", Value: agent, System: true},
		{Key: "os", Value: runtime.GOOS + "/" + runtime.GOARCH, System: true},
		{Key: "go", Value: runtime.Version(), System: true},
	}
	if r.cfg.SkippedIsNotIssue {
		attrs = append(attrs, types.Attribute{Key: "skippedIssue", Value: "false", System: true})
	}
	return attrs
}
