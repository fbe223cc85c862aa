package flags

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_RPREPORTER"

// LaunchMode values accepted by --launch.mode
const (
	LaunchModeDefault = "DEFAULT"
	LaunchModeDebug   = "DEBUG"
)

func validateLaunchMode(value string) error {
	switch strings.ToUpper(value) {
	case LaunchModeDefault, LaunchModeDebug:
		return nil
	}
	return fmt.Errorf("launch mode must be one of: %s, %s", LaunchModeDefault, LaunchModeDebug)
}

var (
	Events = &cli.StringFlag{
		Name:     "events",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "EVENTS"),
		Usage:    "Path to the runner event log to report (eg. 'run.jsonl'), or '-' for stdin",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to a launch config file (eg. 'rpreporter.yaml'). Flags override its values.",
	}
	LaunchName = &cli.StringFlag{
		Name:    "launch.name",
		Value:   "op-rpreporter",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LAUNCH_NAME"),
		Usage:   "Name of the launch",
	}
	LaunchDescription = &cli.StringFlag{
		Name:    "launch.description",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LAUNCH_DESCRIPTION"),
		Usage:   "Description of the launch",
	}
	LaunchAttributes = &cli.StringSliceFlag{
		Name:    "launch.attributes",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LAUNCH_ATTRIBUTES"),
		Usage:   "Launch attributes as 'key:value' or 'value', may be repeated",
	}
	LaunchID = &cli.StringFlag{
		Name:    "launch.id",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LAUNCH_ID"),
		Usage:   "Report into an existing launch. The launch is left open for its owner to finish.",
	}
	LaunchMode = &cli.StringFlag{
		Name:    "launch.mode",
		Value:   LaunchModeDefault,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LAUNCH_MODE"),
		Usage:   fmt.Sprintf("Launch mode (%s or %s)", LaunchModeDefault, LaunchModeDebug),
		Action: func(ctx *cli.Context, value string) error {
			return validateLaunchMode(value)
		},
	}
	LaunchRerun = &cli.BoolFlag{
		Name:    "launch.rerun",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LAUNCH_RERUN"),
		Usage:   "Report the run as a rerun of an earlier launch",
	}
	LaunchRerunOf = &cli.StringFlag{
		Name:    "launch.rerun-of",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LAUNCH_RERUN_OF"),
		Usage:   "ID of the launch being rerun",
	}
	IncludeTestSteps = &cli.BoolFlag{
		Name:    "include-test-steps",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INCLUDE_TEST_STEPS"),
		Usage:   "Report nested test steps as child items",
	}
	SkippedIssue = &cli.BoolFlag{
		Name:    "skipped-issue",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SKIPPED_ISSUE"),
		Usage:   "Treat skipped tests as issues. When false they are marked NOT_ISSUE.",
	}
	ExtendDescription = &cli.BoolFlag{
		Name:    "extend-description-with-last-error",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXTEND_DESCRIPTION_WITH_LAST_ERROR"),
		Usage:   "Append the last error of a test to its description",
	}
	WaitTimeout = &cli.DurationFlag{
		Name:    "wait-timeout",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WAIT_TIMEOUT"),
		Usage:   "How long to wait for pending remote calls when the run ends",
	}
	HealthzEnabled = &cli.BoolFlag{
		Name:    "healthz.enabled",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ENABLED"),
		Usage:   "Serve /healthz while the run is reported",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "0.0.0.0",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Healthz listening address",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz.port",
		Value:   8080,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Healthz listening port",
	}
	PrintTree = &cli.BoolFlag{
		Name:    "print-tree",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PRINT_TREE"),
		Usage:   "Print the reported item tree when the run ends",
	}
)

var requiredFlags = []cli.Flag{
	Events,
}

var optionalFlags = []cli.Flag{
	ConfigFile,
	LaunchName,
	LaunchDescription,
	LaunchAttributes,
	LaunchID,
	LaunchMode,
	LaunchRerun,
	LaunchRerunOf,
	IncludeTestSteps,
	SkippedIssue,
	ExtendDescription,
	WaitTimeout,
	PrintTree,
	HealthzEnabled,
	HealthzAddr,
	HealthzPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
