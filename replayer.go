package rpreporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-rpreporter/client"
	"github.com/ethereum-optimism/infra/op-rpreporter/exitcodes"
	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
	"github.com/ethereum-optimism/infra/op-rpreporter/replay"
	"github.com/ethereum-optimism/infra/op-rpreporter/reporter"
	"github.com/ethereum-optimism/infra/op-rpreporter/service"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// replayer implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &replayer{}

// replayer reports one recorded run and exits
type replayer struct {
	ctx       context.Context
	config    *Config
	version   string
	client    *client.Recorder
	formatter TreeFormatter
	stdin     io.Reader
	summary   *reporter.Summary
	service   *service.Service

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*replayer, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		return nil, errors.New("logger is required")
	}

	config.Log.Debug("Creating replayer with config",
		"events", config.EventsPath,
		"configFile", config.ConfigFile,
		"launch", config.Launch.Name,
		"launchID", config.Launch.ID,
		"includeTestSteps", config.IncludeTestSteps)

	return &replayer{
		ctx:              ctx,
		config:           config,
		version:          version,
		client:           client.NewRecorder(config.Log.New("component", "client")),
		formatter:        NewConsoleTreeFormatter(config.Log, nil),
		stdin:            os.Stdin,
		service:          service.New(config.Service),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start replays the event log.
// Start implements the cliapp.Lifecycle interface.
func (p *replayer) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			p.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	p.ctx = ctx
	p.running.Store(true)
	p.config.Log.Info("Starting op-rpreporter", "events", p.config.EventsPath)
	p.service.Start(ctx)

	if err := p.run(ctx); err != nil {
		p.config.Log.Error("Runtime error reporting run", "error", err)
		metrics.RecordErrorDetails("replay", err)
		return err
	}

	if p.summary.Status == types.StatusFailed {
		p.config.Log.Warn("Reported launch failed, returning exit code 1")
		return NewTestFailureError(fmt.Sprintf("launch %s finished %s (%d of %d attempts failed)",
			p.summary.LaunchID, p.summary.Status, p.summary.Failed, p.summary.Total))
	}

	go func() {
		p.shutdownCallback(nil)
	}()
	return nil
}

// run replays the event log once and prints the resulting tree
func (p *replayer) run(ctx context.Context) error {
	events, closeEvents, err := p.openEvents()
	if err != nil {
		return NewRuntimeError(err)
	}
	defer closeEvents()

	rep, err := reporter.New(p.config.ReporterConfig(p.client, p.version))
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create reporter: %w", err))
	}
	driver := replay.NewDriver(p.config.Log.New("component", "replay"), rep)
	driver.WaitTimeout = p.config.WaitTimeout

	summary, err := driver.Replay(ctx, events)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to replay event log: %w", err))
	}
	p.summary = &summary

	if p.config.PrintTree {
		if err := p.formatter.FormatTree(p.client, summary); err != nil {
			p.config.Log.Error("Failed to print item tree", "error", err)
		}
	}
	if violations := p.client.Violations(); len(violations) > 0 {
		p.config.Log.Warn("Reporting protocol violations", "count", len(violations), "first", violations[0])
	}
	p.config.Log.Info("Run reported", "launch", summary.LaunchID, "status", summary.Status,
		"attempts", summary.Total, "remoteCalls", summary.RemoteCalls)
	return nil
}

func (p *replayer) openEvents() (io.Reader, func(), error) {
	if p.config.EventsPath == StdinPath {
		return p.stdin, func() {}, nil
	}
	f, err := os.Open(p.config.EventsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// Stop implements the cliapp.Lifecycle interface.
func (p *replayer) Stop(ctx context.Context) error {
	p.config.Log.Info("Stopping op-rpreporter")
	if !p.running.Load() {
		p.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	p.running.Store(false)
	p.service.Shutdown()
	p.config.Log.Info("op-rpreporter stopped successfully")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (p *replayer) Stopped() bool {
	return !p.running.Load()
}
