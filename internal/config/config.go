/*
 * Copyright 2026 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the node-local settings for the logical volume
// reconciler from a TOML file, with NNF_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// PathEnv names the configuration file when --config is not given.
	PathEnv = "NNF_LVM_CONFIG"

	// CommandTimeoutEnv overrides command_timeout, in seconds.
	CommandTimeoutEnv = "NNF_COMMAND_TIMEOUT_SECONDS"

	// NodeNameEnv is the namespace the controller watches.
	NodeNameEnv = "NNF_NODE_NAME"
)

// Config holds the reconciler settings.
type Config struct {
	// NodeName is the namespace holding this node's NnfLogicalVolumes.
	NodeName string

	// CommandTimeout bounds each lvm command. Zero disables the bound.
	CommandTimeout time.Duration

	// MaxStripeCount is the platform stripe limit reported to the validator.
	MaxStripeCount int

	// Concurrency bounds parallel reconciles.
	Concurrency int

	// ResyncPeriod requeues converged volumes to detect drift.
	ResyncPeriod time.Duration

	// RetryAttempts and RetryDelay apply to passes that failed because the
	// device layer was unavailable.
	RetryAttempts uint
	RetryDelay    time.Duration

	// WaitForDevice waits for the device node after a create.
	WaitForDevice bool

	// Tracing enables OpenTelemetry spans around lvm commands.
	Tracing bool
}

// fileConfig is the config.toml key mapping.
type fileConfig struct {
	NodeName       string `toml:"node_name"`
	CommandTimeout string `toml:"command_timeout"`
	MaxStripeCount int    `toml:"max_stripe_count"`
	Concurrency    int    `toml:"concurrency"`
	ResyncPeriod   string `toml:"resync_period"`
	RetryAttempts  uint   `toml:"retry_attempts"`
	RetryDelay     string `toml:"retry_delay"`
	WaitForDevice  bool   `toml:"wait_for_device"`
	Tracing        bool   `toml:"tracing"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		CommandTimeout: 5 * time.Minute,
		MaxStripeCount: 128,
		Concurrency:    4,
		ResyncPeriod:   10 * time.Minute,
		RetryAttempts:  3,
		RetryDelay:     2 * time.Second,
	}
}

// Load overlays the file at path, if any, on the defaults and then applies
// the environment. An empty path falls back to NNF_LVM_CONFIG.
func Load(path string) (Config, error) {
	cfg := Default()

	if len(path) == 0 {
		path = os.Getenv(PathEnv)
	}

	if len(path) != 0 {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg *Config) loadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}

	if meta.IsDefined("node_name") {
		cfg.NodeName = strings.TrimSpace(raw.NodeName)
	}
	if meta.IsDefined("command_timeout") {
		if cfg.CommandTimeout, err = parseDuration("command_timeout", raw.CommandTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("max_stripe_count") {
		cfg.MaxStripeCount = raw.MaxStripeCount
	}
	if meta.IsDefined("concurrency") {
		cfg.Concurrency = raw.Concurrency
	}
	if meta.IsDefined("resync_period") {
		if cfg.ResyncPeriod, err = parseDuration("resync_period", raw.ResyncPeriod); err != nil {
			return err
		}
	}
	if meta.IsDefined("retry_attempts") {
		cfg.RetryAttempts = raw.RetryAttempts
	}
	if meta.IsDefined("retry_delay") {
		if cfg.RetryDelay, err = parseDuration("retry_delay", raw.RetryDelay); err != nil {
			return err
		}
	}
	if meta.IsDefined("wait_for_device") {
		cfg.WaitForDevice = raw.WaitForDevice
	}
	if meta.IsDefined("tracing") {
		cfg.Tracing = raw.Tracing
	}

	return nil
}

func (cfg *Config) loadEnv() error {
	if nodeName, found := os.LookupEnv(NodeNameEnv); found {
		cfg.NodeName = nodeName
	}

	if timeoutString, found := os.LookupEnv(CommandTimeoutEnv); found {
		timeout, err := strconv.Atoi(timeoutString)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", CommandTimeoutEnv, err)
		}
		cfg.CommandTimeout = time.Duration(timeout) * time.Second
	}

	return nil
}

// Validate checks the settings are usable.
func (cfg *Config) Validate() error {
	if cfg.MaxStripeCount < 2 {
		return fmt.Errorf("max_stripe_count must be at least 2, got %d", cfg.MaxStripeCount)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.CommandTimeout < 0 || cfg.ResyncPeriod < 0 || cfg.RetryDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}

	return nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
