package reporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-rpreporter/client"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

func withSteps(cfg *Config) { cfg.IncludeTestSteps = true }

func TestSteps_NestedLifecycle(t *testing.T) {
	f := newFixture(1, 0)
	r, rec := newTestReporter(t, withSteps)
	r.OnBegin(f.root)
	test := f.test(0)
	result := passed(0)
	r.OnTestBegin(test, result)

	outer := &types.Step{Title: "login", Category: types.StepCategoryTest}
	inner := &types.Step{Title: "fill form", Category: types.StepCategoryTest, Parent: outer}
	hook := &types.Step{Title: "beforeEach", Category: "hook"}

	r.OnStepBegin(test, result, hook)
	r.OnStepBegin(test, result, outer)
	r.OnStepBegin(test, result, inner)
	inner.Error = &types.TestError{Message: "not visible"}
	r.OnStepEnd(test, result, inner)
	r.OnStepEnd(test, result, outer)
	r.OnStepEnd(test, result, hook)
	assert.Empty(t, r.reg.steps)
	assert.Empty(t, r.stepIDs)

	testItem, ok := rec.ItemByName("test 1")
	require.True(t, ok)
	assert.Equal(t, types.ItemTypeTest, testItem.Type)

	outerItem, ok := rec.ItemByName("login")
	require.True(t, ok)
	assert.Equal(t, testItem.ID, outerItem.ParentID)
	assert.Equal(t, types.StatusPassed, outerItem.Status)

	innerItem, ok := rec.ItemByName("fill form")
	require.True(t, ok)
	assert.Equal(t, outerItem.ID, innerItem.ParentID)
	assert.Equal(t, types.StatusFailed, innerItem.Status)
	require.Len(t, innerItem.Logs, 1)
	assert.Equal(t, "not visible", innerItem.Logs[0].Message)

	_, ok = rec.ItemByName("beforeEach")
	assert.False(t, ok, "only user steps are reported")
}

func TestSteps_RepeatedTitlesAreDistinct(t *testing.T) {
	f := newFixture(1, 0)
	r, rec := newTestReporter(t, withSteps)
	r.OnBegin(f.root)
	test := f.test(0)
	r.OnTestBegin(test, passed(0))

	first := &types.Step{Title: "poll", Category: types.StepCategoryTest}
	second := &types.Step{Title: "poll", Category: types.StepCategoryTest}
	r.OnStepBegin(test, passed(0), first)
	r.OnStepBegin(test, passed(0), second)
	assert.Len(t, r.reg.steps, 2)

	r.OnStepEnd(test, passed(0), second)
	assert.Len(t, r.reg.steps, 1)
	r.OnStepEnd(test, passed(0), first)
	assert.Empty(t, r.reg.steps)

	var finished int
	for _, item := range rec.Items() {
		if item.Name == "poll" && item.Finished {
			finished++
		}
	}
	assert.Equal(t, 2, finished)
	assert.Empty(t, rec.Violations())
}

func TestSteps_UnknownParentIsDropped(t *testing.T) {
	f := newFixture(1, 0)
	r, rec := newTestReporter(t, withSteps)
	r.OnBegin(f.root)
	test := f.test(0)
	r.OnTestBegin(test, passed(0))
	startsBefore := len(rec.CallsOf(client.CallStartItem))

	neverStarted := &types.Step{Title: "ghost", Category: types.StepCategoryTest}
	orphan := &types.Step{Title: "orphan", Category: types.StepCategoryTest, Parent: neverStarted}
	r.OnStepBegin(test, passed(0), orphan)
	r.OnStepEnd(test, passed(0), orphan)

	assert.Len(t, rec.CallsOf(client.CallStartItem), startsBefore)
	assert.Empty(t, r.reg.steps)
	assert.Empty(t, r.stepIDs)
	assert.Empty(t, rec.Violations())
}

func TestSteps_StepOfUnknownTestIsDropped(t *testing.T) {
	f := newFixture(1, 0)
	r, rec := newTestReporter(t, withSteps)
	r.OnBegin(f.root)
	r.OnStepBegin(f.test(0), passed(0), &types.Step{Title: "early", Category: types.StepCategoryTest})
	assert.Empty(t, rec.CallsOf(client.CallStartItem))
	assert.Empty(t, r.reg.steps)
}

func TestSteps_ClosedWithTestOutcome(t *testing.T) {
	tests := []struct {
		name   string
		status types.ResultStatus
		want   types.ItemStatus
	}{
		{"timed out", types.ResultStatusTimedOut, types.StatusInterrupted},
		{"failed", types.ResultStatusFailed, types.StatusFailed},
		{"passed", types.ResultStatusPassed, types.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(1, 0)
			r, rec := newTestReporter(t, withSteps)
			r.OnBegin(f.root)
			test := f.test(0)
			result := &types.Result{Status: tt.status}
			r.OnTestBegin(test, result)

			outer := &types.Step{Title: "outer", Category: types.StepCategoryTest}
			inner := &types.Step{Title: "inner", Category: types.StepCategoryTest, Parent: outer}
			r.OnStepBegin(test, result, outer)
			r.OnStepBegin(test, result, inner)

			test.Outcome = types.OutcomeUnexpected
			r.OnTestEnd(test, result)
			assert.Empty(t, r.reg.steps)

			for _, name := range []string{"outer", "inner"} {
				item, ok := rec.ItemByName(name)
				require.True(t, ok)
				assert.Equal(t, tt.want, item.Status, name)
			}
			assertStartBeforeFinish(t, rec)
			assert.Empty(t, rec.Violations())
		})
	}
}

func TestSteps_DisabledByDefault(t *testing.T) {
	f := newFixture(1, 0)
	r, rec := newTestReporter(t)
	r.OnBegin(f.root)
	test := f.test(0)
	r.OnTestBegin(test, passed(0))
	r.OnStepBegin(test, passed(0), &types.Step{Title: "s", Category: types.StepCategoryTest})

	item, ok := rec.ItemByName("test 1")
	require.True(t, ok)
	assert.Equal(t, types.ItemTypeStep, item.Type)
	assert.Len(t, rec.CallsOf(client.CallStartItem), 3)
}
