package rpreporter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-rpreporter/client"
	"github.com/ethereum-optimism/infra/op-rpreporter/flags"
	"github.com/ethereum-optimism/infra/op-rpreporter/reporter"
	"github.com/ethereum-optimism/infra/op-rpreporter/service"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// StdinPath selects standard input as the event log
const StdinPath = "-"

// Config holds the application configuration
type Config struct {
	EventsPath  string // Event log to replay, or StdinPath
	ConfigFile  string
	Launch      reporter.LaunchConfig
	WaitTimeout time.Duration // Bound on waiting for pending remote calls at run end
	PrintTree   bool          // Print the reported item tree after the run

	IncludeTestSteps                   bool
	SkippedIsNotIssue                  bool
	ExtendTestDescriptionWithLastError bool

	Service service.Config

	Log log.Logger
}

// ReporterConfig builds the reporter configuration for one run
func (c *Config) ReporterConfig(rc client.Client, version string) reporter.Config {
	return reporter.Config{
		Client:                             rc,
		Log:                                c.Log,
		Launch:                             c.Launch,
		AgentVersion:                       version,
		IncludeTestSteps:                   c.IncludeTestSteps,
		SkippedIsNotIssue:                  c.SkippedIsNotIssue,
		ExtendTestDescriptionWithLastError: c.ExtendTestDescriptionWithLastError,
	}
}

// NewConfig creates a new Config from cli context. Values from the config file are
// applied first; flags set on the command line win.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	eventsPath := ctx.String(flags.Events.Name)
	if eventsPath == "" {
		return nil, errors.New("event log is required")
	}
	if eventsPath != StdinPath {
		abs, err := filepath.Abs(eventsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for event log '%s': %w", eventsPath, err)
		}
		eventsPath = abs
	}

	cfg := &Config{
		EventsPath: eventsPath,
		Launch: reporter.LaunchConfig{
			Name:        ctx.String(flags.LaunchName.Name),
			Description: ctx.String(flags.LaunchDescription.Name),
			ID:          ctx.String(flags.LaunchID.Name),
			Mode:        types.LaunchMode(strings.ToUpper(ctx.String(flags.LaunchMode.Name))),
			Rerun:       ctx.Bool(flags.LaunchRerun.Name),
			RerunOf:     ctx.String(flags.LaunchRerunOf.Name),
		},
		WaitTimeout:                        ctx.Duration(flags.WaitTimeout.Name),
		PrintTree:                          ctx.Bool(flags.PrintTree.Name),
		IncludeTestSteps:                   ctx.Bool(flags.IncludeTestSteps.Name),
		SkippedIsNotIssue:                  !ctx.Bool(flags.SkippedIssue.Name),
		ExtendTestDescriptionWithLastError: ctx.Bool(flags.ExtendDescription.Name),
		Log:                                log,
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}
	cfg.Service = service.Config{
		HealthzEnabled: ctx.Bool(flags.HealthzEnabled.Name),
		HealthzHost:    ctx.String(flags.HealthzAddr.Name),
		HealthzPort:    ctx.Int(flags.HealthzPort.Name),
		MetricsEnabled: metricsCfg.Enabled,
		MetricsHost:    metricsCfg.ListenAddr,
		MetricsPort:    metricsCfg.ListenPort,
	}

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for config file '%s': %w", path, err)
		}
		file, err := loadFileConfig(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.ConfigFile = abs
		cfg.applyFile(file, ctx.IsSet)
	}

	for _, raw := range ctx.StringSlice(flags.LaunchAttributes.Name) {
		attr, ok := parseAttribute(raw)
		if !ok {
			return nil, fmt.Errorf("invalid launch attribute %q", raw)
		}
		cfg.Launch.Attributes = append(cfg.Launch.Attributes, attr)
	}

	if err := validateLaunchMode(cfg.Launch.Mode); err != nil {
		return nil, err
	}
	if cfg.Launch.Rerun && cfg.Launch.RerunOf == "" && cfg.Launch.ID == "" {
		log.Warn("Rerun requested without a launch to rerun, the service will pick the latest launch with the same name")
	}
	return cfg, nil
}

// applyFile copies file values for every setting not given on the command line
func (c *Config) applyFile(file *FileConfig, isSet func(name string) bool) {
	setString := func(flag string, dst *string, value string) {
		if value != "" && !isSet(flag) {
			*dst = value
		}
	}
	setBool := func(flag string, dst *bool, value *bool) {
		if value != nil && !isSet(flag) {
			*dst = *value
		}
	}

	setString(flags.LaunchName.Name, &c.Launch.Name, file.Launch.Name)
	setString(flags.LaunchDescription.Name, &c.Launch.Description, file.Launch.Description)
	setString(flags.LaunchID.Name, &c.Launch.ID, file.Launch.ID)
	setString(flags.LaunchRerunOf.Name, &c.Launch.RerunOf, file.Launch.RerunOf)
	if file.Launch.Mode != "" && !isSet(flags.LaunchMode.Name) {
		c.Launch.Mode = types.LaunchMode(strings.ToUpper(file.Launch.Mode))
	}
	setBool(flags.LaunchRerun.Name, &c.Launch.Rerun, file.Launch.Rerun)
	setBool(flags.IncludeTestSteps.Name, &c.IncludeTestSteps, file.IncludeTestSteps)
	setBool(flags.ExtendDescription.Name, &c.ExtendTestDescriptionWithLastError, file.ExtendTestDescriptionWithLastError)
	if file.SkippedIssue != nil && !isSet(flags.SkippedIssue.Name) {
		c.SkippedIsNotIssue = !*file.SkippedIssue
	}
	// File attributes come first; command line attributes are appended.
	c.Launch.Attributes = append(c.Launch.Attributes, file.Launch.Attributes...)
}

func validateLaunchMode(mode types.LaunchMode) error {
	switch mode {
	case types.LaunchModeDefault, types.LaunchModeDebug:
		return nil
	}
	return fmt.Errorf("invalid launch mode: %s. Must be one of: %s, %s",
		mode, types.LaunchModeDefault, types.LaunchModeDebug)
}
