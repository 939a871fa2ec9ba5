// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration consumed by the run command.
// Absent keys keep their defaults.
type Config struct {
	Paths struct {
		OutputsDir string `yaml:"outputs_dir"`
	} `yaml:"paths"`
	Omics struct {
		CountsPath      string  `yaml:"counts_path"`
		DatasetLabel    string  `yaml:"dataset_label"`
		MinMean         float64 `yaml:"min_mean"`
		MinNonzeroFrac  float64 `yaml:"min_nonzero_frac"`
		MinGroupSamples int     `yaml:"min_group_samples"`
		FDRThreshold    float64 `yaml:"fdr_threshold"`
		TopN            int     `yaml:"top_n"`
	} `yaml:"omics"`
	Mapping struct {
		CachePath string `yaml:"cache_path"`
		UseAPI    bool   `yaml:"use_api"`
	} `yaml:"mapping"`
	Pathway struct {
		FDRThreshold float64 `yaml:"fdr_threshold"`
	} `yaml:"pathway"`
	Scoring struct {
		Weights ScoreWeights `yaml:"weights"`
	} `yaml:"scoring"`
}

func DefaultConfig() *Config {
	var c Config
	c.Paths.OutputsDir = "outputs"
	f := defaultGeneFilter()
	c.Omics.MinMean = f.MinMean
	c.Omics.MinNonzeroFrac = f.MinNonzeroFrac
	c.Omics.MinGroupSamples = f.MinGroupSamples
	c.Omics.FDRThreshold = 0.05
	c.Omics.TopN = 500
	c.Mapping.UseAPI = true
	c.Pathway.FDRThreshold = 0.05
	c.Scoring.Weights = defaultScoreWeights()
	return &c
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, fmt.Errorf("config file %s is empty", path)
	}
	c := DefaultConfig()
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file %s: %w", path, err)
	}
	return c, nil
}

// EnsureDirs creates the configured output directory.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(c.Paths.OutputsDir, 0777)
}
