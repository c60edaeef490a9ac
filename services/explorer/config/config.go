// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config resolves the explorer service configuration.
//
// Precedence, lowest to highest: built-in defaults, the optional YAML
// config file, environment variables. Env always wins so a deployment
// can override a checked-in config file without editing it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the explorer service reads at startup.
type Config struct {
	// Port the HTTP server listens on.
	Port string `yaml:"port"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogDir receives the JSON log file. Empty disables file logging.
	LogDir string `yaml:"log_dir"`

	// Identity is the profile identity token. Empty gets an ephemeral
	// identity at startup (local dev).
	Identity string `yaml:"identity"`

	// CachePath is the badger directory for the local snapshot cache.
	CachePath string `yaml:"cache_path"`

	// ProfileStoreURL is the remote profile store base URL. Empty runs
	// without a remote backend.
	ProfileStoreURL string `yaml:"profile_store_url"`

	// Environment selects deployment behavior; "development" enables the
	// file snapshot fallback backend.
	Environment string `yaml:"environment"`

	// SnapshotDir is where the development file fallback writes.
	SnapshotDir string `yaml:"snapshot_dir"`

	// TombstoneMaxAge enables tombstone compaction when positive.
	// Zero keeps tombstones forever.
	TombstoneMaxAge time.Duration `yaml:"tombstone_max_age"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:        "12400",
		LogLevel:    "info",
		CachePath:   "/var/lib/scoutline/explorer",
		SnapshotDir: "./snapshots",
	}
}

// Load resolves the effective configuration.
//
// # Description
//
// Starts from Default, merges the YAML file at path when path is
// non-empty, then applies environment overrides. A missing file at an
// explicitly configured path is an error; an empty path skips the file
// layer entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if cfg.TombstoneMaxAge < 0 {
		return Config{}, fmt.Errorf("tombstone_max_age must not be negative, got %s", cfg.TombstoneMaxAge)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "EXPLORER_PORT")
	setString(&c.LogLevel, "EXPLORER_LOG_LEVEL")
	setString(&c.LogDir, "EXPLORER_LOG_DIR")
	setString(&c.Identity, "SCOUTLINE_IDENTITY")
	setString(&c.CachePath, "EXPLORER_CACHE_PATH")
	setString(&c.ProfileStoreURL, "PROFILE_STORE_URL")
	setString(&c.Environment, "SCOUTLINE_ENV")
	setString(&c.SnapshotDir, "EXPLORER_SNAPSHOT_DIR")

	if v := os.Getenv("EXPLORER_TOMBSTONE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("bad EXPLORER_TOMBSTONE_MAX_AGE: %w", err)
		}
		c.TombstoneMaxAge = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
