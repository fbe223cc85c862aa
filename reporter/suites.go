package reporter

import (
	"sort"

	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// ensureSuiteChain opens every suite of the chain that is not registered yet, parent
// first, and returns the remote id of the immediate parent suite
func (r *Reporter) ensureSuiteChain(test *types.Test, paths []suitePath) string {
	project := test.ProjectName()
	parentID := ""
	for i, path := range paths {
		key := suiteKey{Project: project, Path: path.Key}
		if node, ok := r.reg.suites[key]; ok {
			parentID = node.ID
			continue
		}
		if r.launch.finishing {
			r.log.Debug("Not opening suite after shutdown", "suite", key)
			return parentID
		}

		itemType := types.ItemTypeTestGroup
		if i == 0 {
			itemType = types.ItemTypeSuite
		}
		meta := r.reg.takePending(path.Key, path.Title)
		rq := types.StartItemRQ{
			Name:        path.Title,
			Type:        itemType,
			StartTime:   r.now(),
			CodeRef:     path.Key,
			Description: meta.Description,
			Attributes:  meta.Attributes,
		}
		id, c := r.client.StartItem(rq, r.launch.id, parentID)
		r.launch.pending.Add(c, "Failed to start suite.")
		metrics.RecordItemStarted(itemType)

		descendants := path.Suite.AllTests()
		node := &suiteNode{
			ID:              id,
			Name:            path.Title,
			Type:            itemType,
			Key:             key,
			Depth:           i,
			Suite:           path.Suite,
			InvocationsLeft: suiteBudget(len(descendants), test.Retries),
			Descendants:     make(map[string]struct{}, len(descendants)),
			// Logs wait for the finish; status and late attributes are applied there too.
			Meta: itemMetadata{Status: meta.Status, Logs: meta.Logs},
		}
		for _, t := range descendants {
			node.Descendants[t.ID] = struct{}{}
		}
		r.reg.suites[key] = node
		r.log.Debug("Suite started", "suite", key, "item", id, "parent", parentID, "budget", node.InvocationsLeft)
		parentID = id
	}
	return parentID
}

// suiteBudget is the number of attempts a suite observes before it may close
func suiteBudget(tests int, retries int) int {
	if retries > 0 {
		return tests * (1 + retries)
	}
	return tests
}

// flushEligibleSuites finishes every suite whose budget dropped below one, deepest
// first, and returns how many were finished
func (r *Reporter) flushEligibleSuites() int {
	var eligible []*suiteNode
	for _, node := range r.reg.suites {
		if node.InvocationsLeft < 1 {
			eligible = append(eligible, node)
		}
	}
	if len(eligible) == 0 {
		return 0
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Depth != eligible[j].Depth {
			return eligible[i].Depth > eligible[j].Depth
		}
		return eligible[i].Key.String() < eligible[j].Key.String()
	})

	for _, node := range eligible {
		for _, entry := range node.Meta.Logs {
			r.sendLog(node.ID, entry, nil, "Failed to send log.")
		}
		rq := types.FinishItemRQ{
			EndTime:     r.now(),
			Status:      node.Meta.Status,
			Description: node.Meta.Description,
			Attributes:  node.Meta.Attributes,
		}
		r.launch.pending.Add(r.client.FinishItem(node.ID, rq), "Failed to finish suite.")
		metrics.RecordItemFinished(node.Type, rq.Status)
		delete(r.reg.suites, node.Key)
		r.log.Debug("Suite finished", "suite", node.Key, "item", node.ID, "budget", node.InvocationsLeft)
	}
	return len(eligible)
}
