package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
	"github.com/ethereum-optimism/infra/op-rpreporter/reporter"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// Sink receives the replayed callbacks
type Sink interface {
	OnBegin(root *types.Suite)
	OnTestBegin(test *types.Test, result *types.Result)
	OnStepBegin(test *types.Test, result *types.Result, step *types.Step)
	OnStepEnd(test *types.Test, result *types.Result, step *types.Step)
	OnTestEnd(test *types.Test, result *types.Result)
	OnStdOut(chunk string, test *types.Test)
	OnStdErr(chunk string, test *types.Test)
	OnEnd(ctx context.Context) reporter.Summary
}

var _ Sink = (*reporter.Reporter)(nil)

var ErrNoBegin = errors.New("event log has no begin record")

const maxLineSize = 16 * 1024 * 1024

// Driver replays one event log into a Sink
type Driver struct {
	// WaitTimeout bounds how long the end of the run waits for pending remote calls.
	// Zero waits as long as the replay context allows.
	WaitTimeout time.Duration

	log    log.Logger
	sink   Sink
	tracer trace.Tracer

	began   bool
	ended   bool
	tests   map[string]*types.Test
	steps   map[string]*types.Step   // Step record id -> step of the current attempt
	results map[string]*types.Result // Test id -> current attempt
	summary reporter.Summary
}

// NewDriver creates a driver feeding sink
func NewDriver(logger log.Logger, sink Sink) *Driver {
	if logger == nil {
		logger = log.New()
	}
	return &Driver{
		log:     logger,
		sink:    sink,
		tracer:  otel.Tracer("replay"),
		tests:   make(map[string]*types.Test),
		steps:   make(map[string]*types.Step),
		results: make(map[string]*types.Result),
	}
}

// Replay feeds every record of r to the sink. The run is always ended: when the log
// has no end record, or ctx is cancelled midway, OnEnd runs after the last record
// applied, and whatever is still open is closed by the reporter.
func (d *Driver) Replay(ctx context.Context, r io.Reader) (reporter.Summary, error) {
	ctx, span := d.tracer.Start(ctx, "replay")
	defer span.End()

	err := d.replay(ctx, r)
	if d.began && !d.ended {
		d.end(context.WithoutCancel(ctx))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return d.summary, err
	}
	if !d.began {
		return d.summary, ErrNoBegin
	}
	return d.summary, nil
}

func (d *Driver) replay(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			d.log.Warn("Replay interrupted", "line", line, "err", err)
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("line %d: failed to decode record: %w", line, err)
		}
		if err := d.Apply(ctx, &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if d.ended {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}
	return nil
}

// Apply replays a single record
func (d *Driver) Apply(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if d.ended {
		return fmt.Errorf("%s record after end", rec.Kind)
	}
	if !d.began && rec.Kind != KindBegin {
		return fmt.Errorf("%s record before begin", rec.Kind)
	}

	ctx, span := d.tracer.Start(ctx, fmt.Sprintf("%s %s", rec.Kind, rec.Test))
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(rec.Kind)))
	metrics.RecordReplayedEvent(string(rec.Kind))

	var test *types.Test
	if rec.Test != "" {
		var ok bool
		if test, ok = d.tests[rec.Test]; !ok {
			err := fmt.Errorf("unknown test %q", rec.Test)
			span.RecordError(err)
			return err
		}
	}

	switch rec.Kind {
	case KindBegin:
		if d.began {
			return errors.New("duplicate begin record")
		}
		root, tests, err := buildTree(rec.Suite)
		if err != nil {
			return err
		}
		d.tests = tests
		d.began = true
		d.sink.OnBegin(root)
	case KindTestBegin:
		result := rec.Result.toResult()
		d.results[test.ID] = result
		d.sink.OnTestBegin(test, result)
	case KindStepBegin:
		step := &types.Step{Title: rec.Step.Title, Category: rec.Step.Category}
		if rec.Step.Parent != "" {
			parent, ok := d.steps[rec.Step.Parent]
			if !ok {
				// Its descendants are dropped the same way.
				d.log.Debug("Dropping step with unknown parent", "test", test.ID, "step", rec.Step.ID, "parent", rec.Step.Parent)
				return nil
			}
			step.Parent = parent
		}
		d.steps[rec.Step.ID] = step
		d.sink.OnStepBegin(test, d.resultOf(test, rec), step)
	case KindStepEnd:
		step, ok := d.steps[rec.Step.ID]
		if !ok {
			d.log.Debug("Step end without begin", "test", test.ID, "step", rec.Step.ID)
			return nil
		}
		step.Error = rec.Step.Error
		d.sink.OnStepEnd(test, d.resultOf(test, rec), step)
	case KindTestEnd:
		result := d.resultOf(test, rec)
		test.Outcome = rec.Outcome
		d.sink.OnTestEnd(test, result)
		delete(d.results, test.ID)
		if result.Status != types.ResultStatusPassed && result.Status != types.ResultStatusSkipped {
			span.SetStatus(codes.Error, string(result.Status))
		}
	case KindStdout:
		d.sink.OnStdOut(rec.Chunk, test)
	case KindStderr:
		d.sink.OnStdErr(rec.Chunk, test)
	case KindEnd:
		d.end(ctx)
	}
	return nil
}

// resultOf prefers the result carried by the record, then the attempt opened by the
// test begin record
func (d *Driver) resultOf(test *types.Test, rec *Record) *types.Result {
	if rec.Result != nil {
		result := rec.Result.toResult()
		d.results[test.ID] = result
		return result
	}
	if result, ok := d.results[test.ID]; ok {
		return result
	}
	return rec.Result.toResult()
}

func (d *Driver) end(ctx context.Context) {
	d.ended = true
	if d.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.WaitTimeout)
		defer cancel()
	}
	d.summary = d.sink.OnEnd(ctx)
}

// Summary returns the summary of the ended run
func (d *Driver) Summary() reporter.Summary {
	return d.summary
}
