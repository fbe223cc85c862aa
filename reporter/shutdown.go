package reporter

import (
	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
)

// forceFinishAll closes every suite still open regardless of its budget and returns
// how many were closed. The registry is empty afterwards.
func (r *Reporter) forceFinishAll() int {
	if len(r.reg.suites) == 0 {
		return 0
	}
	for _, node := range r.reg.suites {
		r.log.Warn("Forcing suite closure", "suite", node.Key, "item", node.ID, "budget", node.InvocationsLeft)
		node.Descendants = map[string]struct{}{}
		node.InvocationsLeft = 0
		metrics.RecordForcedSuiteFinish()
	}
	return r.flushEligibleSuites()
}
