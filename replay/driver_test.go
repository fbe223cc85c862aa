package replay

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-rpreporter/client"
	"github.com/ethereum-optimism/infra/op-rpreporter/reporter"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

func newReplayReporter(t *testing.T, includeSteps bool) (*reporter.Reporter, *client.Recorder) {
	t.Helper()
	logger := log.NewLogger(log.DiscardHandler())
	rec := client.NewRecorder(logger)
	r, err := reporter.New(reporter.Config{
		Client:           rec,
		Log:              logger,
		Launch:           reporter.LaunchConfig{Name: "replay"},
		IncludeTestSteps: includeSteps,
	})
	require.NoError(t, err)
	return r, rec
}

func TestDriver_ReplaysFixture(t *testing.T) {
	f, err := os.Open("testdata/run.jsonl")
	require.NoError(t, err)
	defer f.Close()

	r, rec := newReplayReporter(t, true)
	summary, err := NewDriver(log.NewLogger(log.DiscardHandler()), r).Replay(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, types.StatusPassed, summary.Status)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Retried)
	assert.Zero(t, summary.ForcedSuites, "every suite closes through its budget")
	assert.Zero(t, summary.RemoteFailures)

	assert.Empty(t, rec.Violations())
	assert.Empty(t, rec.Unfinished())

	login, ok := rec.ItemByName("login")
	require.True(t, ok)
	assert.Equal(t, []types.Attribute{{Key: "area", Value: "auth"}}, login.Attributes)

	click, ok := rec.ItemByName("click login")
	require.True(t, ok)
	open, ok := rec.ItemByName("open page")
	require.True(t, ok)
	assert.Equal(t, open.ID, click.ParentID)

	locked, ok := rec.ItemByName("locked user")
	require.True(t, ok)
	require.Len(t, locked.Logs, 1)
	assert.Equal(t, "deprecated api used", locked.Logs[0].Message)

	var attempts []types.ItemStatus
	for _, item := range rec.Items() {
		if item.Name == "valid user" {
			attempts = append(attempts, item.Status)
		}
	}
	assert.Equal(t, []types.ItemStatus{types.StatusFailed, types.StatusPassed}, attempts)
}

func TestDriver_TruncatedLogIsReconciled(t *testing.T) {
	events := strings.Join([]string{
		`{"kind":"begin","suite":{"kind":"root","suites":[{"title":"a.spec.ts","kind":"file","tests":[{"id":"t1","title":"one"},{"id":"t2","title":"two"}]}]}}`,
		`{"kind":"testBegin","test":"t1"}`,
		`{"kind":"testEnd","test":"t1","outcome":"expected","result":{"status":"passed"}}`,
		`{"kind":"testBegin","test":"t2"}`,
	}, "\n")

	r, rec := newReplayReporter(t, false)
	summary, err := NewDriver(nil, r).Replay(context.Background(), strings.NewReader(events))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ForcedSuites)
	assert.Empty(t, rec.Unfinished())
	assert.Empty(t, rec.Violations())
	two, ok := rec.ItemByName("two")
	require.True(t, ok)
	assert.Equal(t, types.StatusInterrupted, two.Status)
}

func TestDriver_CancelledReplayStillEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, rec := newReplayReporter(t, false)
	d := NewDriver(nil, r)
	require.NoError(t, d.Apply(context.Background(), &Record{Kind: KindBegin, Suite: &SuiteRecord{Kind: types.SuiteKindRoot}}))

	_, err := d.Replay(ctx, strings.NewReader(`{"kind":"end"}`))
	require.ErrorIs(t, err, context.Canceled)
	_, _, end := rec.Launch()
	assert.NotNil(t, end, "the launch is finished even when the replay is cut short")
}

func TestDriver_Errors(t *testing.T) {
	tests := []struct {
		name  string
		lines string
		err   string
	}{
		{"garbage", `not json`, "failed to decode record"},
		{"unknown kind", `{"kind":"teleport"}`, "unknown record kind"},
		{"test before begin", `{"kind":"testBegin","test":"t1"}`, "before begin"},
		{"unknown test", `{"kind":"begin","suite":{"kind":"root"}}` + "\n" + `{"kind":"testBegin","test":"nope"}`, "unknown test"},
		{"null suite", `{"kind":"begin","suite":{"kind":"root","suites":[null]}}`, "null suite"},
		{"null test", `{"kind":"begin","suite":{"kind":"root","suites":[{"title":"a.spec.ts","kind":"file","tests":[null]}]}}`, "null test"},
		{"duplicate ids", `{"kind":"begin","suite":{"kind":"root","tests":[{"id":"a","title":"x"},{"id":"a","title":"y"}]}}`, "duplicate test id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newReplayReporter(t, false)
			_, err := NewDriver(nil, r).Replay(context.Background(), strings.NewReader(tt.lines))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestDriver_EmptyLog(t *testing.T) {
	r, rec := newReplayReporter(t, false)
	_, err := NewDriver(nil, r).Replay(context.Background(), strings.NewReader(""))
	require.ErrorIs(t, err, ErrNoBegin)
	assert.Empty(t, rec.Calls())
}

func TestDriver_StepWithUnknownParentIsDropped(t *testing.T) {
	events := strings.Join([]string{
		`{"kind":"begin","suite":{"kind":"root","suites":[{"title":"a.spec.ts","kind":"file","tests":[{"id":"t1","title":"one"}]}]}}`,
		`{"kind":"testBegin","test":"t1"}`,
		`{"kind":"stepBegin","test":"t1","step":{"id":"s1","parent":"ghost","title":"child","category":"test.step"}}`,
		`{"kind":"stepBegin","test":"t1","step":{"id":"s2","parent":"s1","title":"grandchild","category":"test.step"}}`,
		`{"kind":"stepEnd","test":"t1","step":{"id":"s2"}}`,
		`{"kind":"stepEnd","test":"t1","step":{"id":"s1"}}`,
		`{"kind":"testEnd","test":"t1","outcome":"expected","result":{"status":"passed"}}`,
		`{"kind":"end"}`,
	}, "\n")

	r, rec := newReplayReporter(t, true)
	summary, err := NewDriver(nil, r).Replay(context.Background(), strings.NewReader(events))
	require.NoError(t, err)

	_, ok := rec.ItemByName("child")
	assert.False(t, ok, "a step under an unknown parent is never started")
	_, ok = rec.ItemByName("grandchild")
	assert.False(t, ok)
	one, ok := rec.ItemByName("one")
	require.True(t, ok)
	assert.Empty(t, rec.Children(one.ID))
	assert.Equal(t, types.StatusPassed, summary.Status)
	assert.Empty(t, rec.Violations())
}
