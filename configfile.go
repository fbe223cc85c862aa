package rpreporter

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// FileConfig is the launch config file. Unset fields leave the flag values in place.
type FileConfig struct {
	Launch struct {
		ID          string            `yaml:"id"`
		Name        string            `yaml:"name"`
		Description string            `yaml:"description"`
		Mode        string            `yaml:"mode"`
		Rerun       *bool             `yaml:"rerun"`
		RerunOf     string            `yaml:"rerunOf"`
		Attributes  []types.Attribute `yaml:"attributes"`
	} `yaml:"launch"`
	IncludeTestSteps                   *bool `yaml:"includeTestSteps"`
	SkippedIssue                       *bool `yaml:"skippedIssue"`
	ExtendTestDescriptionWithLastError *bool `yaml:"extendTestDescriptionWithLastError"`
}

// loadFileConfig loads a launch config file
func loadFileConfig(path string) (*FileConfig, error) {
	log.Debug("Reading launch config file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}
