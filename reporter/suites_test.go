package reporter

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// finishedItems reads rpreporter_items_finished_total for one type and status
func finishedItems(t *testing.T, itemType types.ItemType, status string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "rpreporter_items_finished_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string)
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["type"] == string(itemType) && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestFlushEligibleSuites_RecordsItemType(t *testing.T) {
	f := newFixture(1, 0)
	r, _ := newTestReporter(t)
	r.OnBegin(f.root)
	r.OnTestBegin(f.test(0), passed(0))

	file := r.suiteNode("chromium", "login.spec.ts")
	describe := r.suiteNode("chromium", "login.spec.ts/login")
	require.NotNil(t, file)
	require.NotNil(t, describe)
	assert.Equal(t, types.ItemTypeSuite, file.Type)
	assert.Equal(t, types.ItemTypeTestGroup, describe.Type)

	suitesBefore := finishedItems(t, types.ItemTypeSuite, "NONE")
	groupsBefore := finishedItems(t, types.ItemTypeTestGroup, "NONE")

	f.test(0).Outcome = types.OutcomeExpected
	r.OnTestEnd(f.test(0), passed(0))
	require.Empty(t, r.reg.suites)

	assert.Equal(t, suitesBefore+1, finishedItems(t, types.ItemTypeSuite, "NONE"))
	assert.Equal(t, groupsBefore+1, finishedItems(t, types.ItemTypeTestGroup, "NONE"))
}
