// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

package qdma

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// Config holds the tunables of a QDMA device handle.
type Config struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
	Bdf          string        `yaml:"bdf" json:"bdf"`
	ConfigBar    int           `yaml:"config_bar" json:"config_bar"` // -1 selects the bar by block identifier
}

func DefaultConfig() *Config {
	return &Config{
		PollInterval: DefaultPollInterval,
		PollTimeout:  DefaultPollTimeout,
		ConfigBar:    -1,
	}
}

// LoadConfig reads a yaml file on top of DefaultConfig
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("qdma config: %w", err)
	}
	if cfg.PollInterval < 0 || cfg.PollTimeout < 0 {
		return nil, fmt.Errorf("qdma config: negative poll interval/timeout: %w", ErrInvalidParam)
	}
	if cfg.ConfigBar >= QDMA_BAR_NUM {
		return nil, fmt.Errorf("qdma config: config_bar %d out of range: %w", cfg.ConfigBar, ErrInvalidParam)
	}
	klog.V(DBG_LVL_INFO).InfoS("qdma-config.ParseConfig", "config", cfg)
	return cfg, nil
}
