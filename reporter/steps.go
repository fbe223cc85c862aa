package reporter

import (
	"sort"

	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

func (r *Reporter) tracksStep(step *types.Step) bool {
	return r.cfg.IncludeTestSteps && step != nil && step.Category == types.StepCategoryTest
}

// OnStepBegin opens a nested step under its parent step, or under the test when the
// step has no parent
func (r *Reporter) OnStepBegin(test *types.Test, result *types.Result, step *types.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if test == nil || !r.tracksStep(step) || r.launch.finishing {
		return
	}
	containerID, depth, ok := r.stepContainer(test, step)
	if !ok {
		r.log.Debug("Dropping step without container", "test", test.ID, "step", step.Path())
		return
	}

	instanceID := r.newStepID()
	r.stepIDs[step] = instanceID
	rq := types.StartItemRQ{
		Name:      step.Title,
		Type:      types.ItemTypeStep,
		StartTime: r.now(),
		HasStats:  false,
		Retry:     result != nil && result.Retry > 0,
	}
	id, c := r.client.StartItem(rq, r.launch.id, containerID)
	r.launch.pending.Add(c, "Failed to start nested step.")
	metrics.RecordItemStarted(types.ItemTypeStep)

	r.reg.stepSeq++
	key := stepKey(test.ID, step.Path(), instanceID)
	r.reg.steps[key] = &stepNode{
		ID:     id,
		Name:   step.Title,
		TestID: test.ID,
		Depth:  depth,
		Seq:    r.reg.stepSeq,
		Step:   step,
	}
}

// stepContainer resolves the remote id a step is started under
func (r *Reporter) stepContainer(test *types.Test, step *types.Step) (string, int, bool) {
	if parent := step.Parent; parent != nil && parent.Category == types.StepCategoryTest {
		instanceID, ok := r.stepIDs[parent]
		if !ok {
			return "", 0, false
		}
		node, ok := r.reg.steps[stepKey(test.ID, parent.Path(), instanceID)]
		if !ok {
			return "", 0, false
		}
		return node.ID, node.Depth + 1, true
	}
	item, ok := r.reg.tests[test.ID]
	if !ok {
		return "", 0, false
	}
	return item.ID, 0, true
}

// OnStepEnd closes a nested step with PASSED, or FAILED when it recorded an error
func (r *Reporter) OnStepEnd(test *types.Test, result *types.Result, step *types.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if test == nil || !r.tracksStep(step) {
		return
	}
	instanceID, ok := r.stepIDs[step]
	if !ok {
		return
	}
	key := stepKey(test.ID, step.Path(), instanceID)
	node, ok := r.reg.steps[key]
	if !ok {
		delete(r.stepIDs, step)
		return
	}

	status := types.StatusPassed
	if step.Error != nil {
		status = types.StatusFailed
		if text := cleanText(step.Error.Text()); text != "" {
			r.sendLog(node.ID, types.LogEntry{Message: text, Level: types.LogLevelError, Time: r.now()}, nil, "Failed to send log.")
		}
	}
	r.finishStep(key, node, status)
}

// closeOpenSteps finishes every step still open for the test with the given status,
// which overrides the step's own error
func (r *Reporter) closeOpenSteps(testID string, status types.ItemStatus) {
	var open []string
	for key, node := range r.reg.steps {
		if node.TestID == testID {
			open = append(open, key)
		}
	}
	if len(open) == 0 {
		return
	}
	// Innermost and latest first so children finish before their containers.
	sort.Slice(open, func(i, j int) bool {
		a, b := r.reg.steps[open[i]], r.reg.steps[open[j]]
		if a.Depth != b.Depth {
			return a.Depth > b.Depth
		}
		return a.Seq > b.Seq
	})
	for _, key := range open {
		r.finishStep(key, r.reg.steps[key], status)
	}
}

func (r *Reporter) finishStep(key string, node *stepNode, status types.ItemStatus) {
	rq := types.FinishItemRQ{EndTime: r.now(), Status: status}
	r.launch.pending.Add(r.client.FinishItem(node.ID, rq), "Failed to finish nested step.")
	metrics.RecordItemFinished(types.ItemTypeStep, status)
	delete(r.reg.steps, key)
	delete(r.stepIDs, node.Step)
}
