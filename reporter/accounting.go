package reporter

import (
	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// isHookTriggered reports whether the attempt was terminated outside a worker without
// a static skip, i.e. by a failing setup or teardown hook. The runner does not expose
// this directly; the missing worker index is the only hint.
func isHookTriggered(test *types.Test, result *types.Result) bool {
	return result.WorkerIndex == types.NoWorker && !test.IsStaticallySkipped()
}

// isNonRetried reports whether no further attempt of the test will follow
func isNonRetried(test *types.Test, result *types.Result) bool {
	switch test.Outcome {
	case types.OutcomeExpected, types.OutcomeFlaky:
		return true
	case types.OutcomeSkipped:
		return !isHookTriggered(test, result)
	}
	return false
}

// completionDecrease is the number of budget slots a completion releases from every
// ancestor suite
func completionDecrease(test *types.Test, result *types.Result, nonRetried bool) int {
	decrease := 1
	if test.Retries > 0 && nonRetried {
		attempts := result.Retry + 1
		decrease += test.Retries + 1 - attempts
	}
	return decrease
}

// willReplaySerialGroup reports whether the attempt failed inside a serial group that
// the runner is about to run again from the top
func willReplaySerialGroup(test *types.Test, result *types.Result, nonRetried bool) bool {
	return !nonRetried && test.InSerialMode() && result.Retry < test.Retries
}

// serialGroupOf returns the open node of the outermost serial suite enclosing the
// test. A failure inside it makes the runner replay the whole group.
func serialGroupOf(ancestors []*suiteNode) *suiteNode {
	var group *suiteNode
	for _, node := range ancestors {
		if node.Suite == nil || node.Suite.Mode != types.SuiteModeSerial {
			continue
		}
		if group == nil || node.Depth < group.Depth {
			group = node
		}
	}
	return group
}

// replayCompensation is the number of tests of the serial group that finished since
// the last replay and run again with the failed test. It advances the group baseline.
func replayCompensation(group *suiteNode) int {
	if group == nil {
		return 0
	}
	compensation := group.Executed - group.ReplayBaseline
	group.ReplayBaseline = group.Executed
	return compensation
}

// accountCompletion applies one test end to the budget of every open ancestor suite.
// It makes no remote calls.
func (r *Reporter) accountCompletion(test *types.Test, result *types.Result) {
	nonRetried := isNonRetried(test, result)
	decrease := completionDecrease(test, result, nonRetried)
	ancestors := r.reg.ancestorsOf(test.ID)

	// Only siblings inside the serial group rerun, so every ancestor gets the same
	// amount back.
	compensation := 0
	if willReplaySerialGroup(test, result, nonRetried) {
		compensation = replayCompensation(serialGroupOf(ancestors))
	}

	for _, node := range ancestors {
		if nonRetried {
			node.Executed++
		}
		node.InvocationsLeft = node.InvocationsLeft - decrease + compensation
		if node.InvocationsLeft < 0 {
			r.log.Warn("Suite budget underflow", "suite", node.Key, "budget", node.InvocationsLeft, "test", test.ID)
			metrics.RecordBudgetUnderflow()
		}
		r.log.Trace("Accounted completion", "suite", node.Key, "test", test.ID,
			"decrease", decrease, "compensation", compensation, "budget", node.InvocationsLeft)
	}
}
