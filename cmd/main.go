package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	rpreporter "github.com/ethereum-optimism/infra/op-rpreporter"
	"github.com/ethereum-optimism/infra/op-rpreporter/exitcodes"
	"github.com/ethereum-optimism/infra/op-rpreporter/flags"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-rpreporter"
	app.Usage = "Test run reporter"
	app.Description = "op-rpreporter replays a runner event log into a hierarchical launch"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = exitErrHandler

	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// exitErrHandler maps typed errors to exit codes
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	cli.HandleExitCoder(exitCoder(err))
}

func exitCoder(err error) cli.ExitCoder {
	var exitErr cli.ExitCoder
	switch {
	case errors.As(err, &exitErr):
		return exitErr
	case rpreporter.IsRuntimeError(err):
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	default:
		// Test failures and anything unclassified
		return cli.Exit(err.Error(), exitcodes.TestFailure)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := rpreporter.NewConfig(ctx, log)
	if err != nil {
		return nil, rpreporter.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := rpreporter.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, rpreporter.NewRuntimeError(fmt.Errorf("failed to create reporter: %w", err))
	}
	return svc, nil
}
