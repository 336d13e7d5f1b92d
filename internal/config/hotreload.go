package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotReload watches a configuration file and applies changes to the
// hot-reloadable subset of fields while the node runs. Grounded on
// _examples/agilira-balios/hot-reload.go's HotConfig, adapted from a
// single in-process cache's config to this node's broader Config.
type HotReload struct {
	watcher *argus.Watcher

	mu     sync.RWMutex
	config Config

	// OnReload is called after a successful reload, with the config
	// before and after the change applied. Optional; must be fast and
	// non-blocking, same contract as the teacher's callback.
	OnReload func(old, new Config)
}

// HotReloadOptions configures a HotReload watcher.
type HotReloadOptions struct {
	// ConfigPath is the file to watch. argus auto-detects JSON, YAML,
	// TOML, HCL, INI, and Properties formats from its extension.
	ConfigPath string
	// PollInterval is how often argus checks the file for changes.
	// Default 1s, floor 100ms, matching the teacher's HotConfigOptions.
	PollInterval time.Duration
	OnReload     func(old, new Config)
}

// NewHotReload starts watching cfg's backing file, initialized to base.
func NewHotReload(base Config, opts HotReloadOptions) (*HotReload, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	hr := &HotReload{
		config:   base,
		OnReload: opts.OnReload,
	}

	argusConfig := argus.Config{PollInterval: opts.PollInterval}
	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hr.handleChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hr.watcher = watcher
	return hr, nil
}

// Start begins file watching, if not already running.
func (hr *HotReload) Start() error {
	if hr.watcher.IsRunning() {
		return nil
	}
	return hr.watcher.Start()
}

// Stop halts file watching.
func (hr *HotReload) Stop() error {
	return hr.watcher.Stop()
}

// Current returns the most recently applied configuration.
func (hr *HotReload) Current() Config {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return hr.config
}

func (hr *HotReload) handleChange(data map[string]interface{}) {
	hr.mu.Lock()
	old := hr.config
	updated := old
	applyHotFields(&updated, data)
	hr.config = updated
	hr.mu.Unlock()

	if hr.OnReload != nil {
		hr.OnReload(old, updated)
	}
}

// applyHotFields mutates cfg in place with any recognized, valid keys
// from data. Unrecognized keys and out-of-range values are ignored
// rather than rejected, matching the teacher's permissive parseConfig.
func applyHotFields(cfg *Config, data map[string]interface{}) {
	section, ok := data["node"].(map[string]interface{})
	if !ok {
		if _, hasTTL := data["default_ttl"]; hasTTL {
			section = data
		} else {
			return
		}
	}

	if ttl, ok := parseDuration(section["default_ttl"]); ok {
		cfg.DefaultTTL = ttl
	}
	if threshold, ok := parsePositiveInt(section["breaker_failure_threshold"]); ok {
		cfg.BreakerFailureThreshold = threshold
	}
	if timeout, ok := parseDuration(section["breaker_open_timeout"]); ok {
		cfg.BreakerOpenTimeout = timeout
	}
	if every, ok := parsePositiveInt(section["snapshot_every"]); ok {
		cfg.SnapshotEvery = every
	}
	if interval, ok := parseDuration(section["sweep_interval"]); ok {
		cfg.SweepInterval = interval
	}
}

func parsePositiveInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	}
	return 0, false
}

func parseDuration(value interface{}) (time.Duration, bool) {
	if str, ok := value.(string); ok {
		if d, err := time.ParseDuration(str); err == nil {
			return d, true
		}
	}
	return 0, false
}
