package config

import (
	"testing"
	"time"
)

func TestValidateFillsDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "empty config uses every default",
			in:   Config{},
			want: Default(),
		},
		{
			name: "negative threshold falls back to default",
			in:   Config{CacheCapacity: 500, BreakerFailureThreshold: -3},
			want: Config{
				CacheCapacity:           500,
				DefaultTTL:              DefaultTTL,
				VirtualNodes:            DefaultVirtualNodes,
				BreakerFailureThreshold: DefaultBreakerFailureThreshold,
				BreakerOpenTimeout:      DefaultBreakerOpenTimeout,
				TCPPort:                 DefaultTCPPort,
				HTTPPort:                DefaultHTTPPort,
				WALPath:                 DefaultWALPath,
				SnapshotPath:            DefaultSnapshotPath,
				SnapshotEvery:           DefaultSnapshotEvery,
				SweepInterval:           DefaultSweepInterval,
			},
		},
		{
			name: "explicit valid values are preserved",
			in: Config{
				CacheCapacity: 42,
				TCPPort:       7000,
				HTTPPort:      7001,
				WALPath:       "/tmp/custom.wal",
			},
			want: Config{
				CacheCapacity:           42,
				DefaultTTL:              DefaultTTL,
				VirtualNodes:            DefaultVirtualNodes,
				BreakerFailureThreshold: DefaultBreakerFailureThreshold,
				BreakerOpenTimeout:      DefaultBreakerOpenTimeout,
				TCPPort:                 7000,
				HTTPPort:                7001,
				WALPath:                 "/tmp/custom.wal",
				SnapshotPath:            DefaultSnapshotPath,
				SnapshotEvery:           DefaultSnapshotEvery,
				SweepInterval:           DefaultSweepInterval,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if cfg.CacheCapacity != tt.want.CacheCapacity ||
				cfg.DefaultTTL != tt.want.DefaultTTL ||
				cfg.VirtualNodes != tt.want.VirtualNodes ||
				cfg.BreakerFailureThreshold != tt.want.BreakerFailureThreshold ||
				cfg.BreakerOpenTimeout != tt.want.BreakerOpenTimeout ||
				cfg.TCPPort != tt.want.TCPPort ||
				cfg.HTTPPort != tt.want.HTTPPort ||
				cfg.WALPath != tt.want.WALPath ||
				cfg.SnapshotPath != tt.want.SnapshotPath ||
				cfg.SnapshotEvery != tt.want.SnapshotEvery ||
				cfg.SweepInterval != tt.want.SweepInterval {
				t.Errorf("Validate() = %+v, want %+v", cfg, tt.want)
			}
		})
	}
}

func TestValidateNeverErrors(t *testing.T) {
	cfg := Config{CacheCapacity: -1, TCPPort: -1, HTTPPort: -1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil (normalization only)", err)
	}
}

func TestApplyHotFieldsIgnoresUnknownKeys(t *testing.T) {
	cfg := Default()
	before := cfg.hotReloadable()
	applyHotFields(&cfg, map[string]interface{}{"node": map[string]interface{}{"bogus_field": 123}})
	if cfg.hotReloadable() != before {
		t.Errorf("applyHotFields with unknown key mutated config: got %+v, want %+v", cfg.hotReloadable(), before)
	}
}

func TestApplyHotFieldsUpdatesRecognizedKeys(t *testing.T) {
	cfg := Default()
	applyHotFields(&cfg, map[string]interface{}{
		"node": map[string]interface{}{
			"default_ttl":    "2h",
			"snapshot_every": 250,
		},
	})
	if cfg.DefaultTTL != 2*time.Hour {
		t.Errorf("DefaultTTL = %v, want 2h", cfg.DefaultTTL)
	}
	if cfg.SnapshotEvery != 250 {
		t.Errorf("SnapshotEvery = %d, want 250", cfg.SnapshotEvery)
	}
}

func TestApplyHotFieldsRejectsInvalidDuration(t *testing.T) {
	cfg := Default()
	before := cfg.DefaultTTL
	applyHotFields(&cfg, map[string]interface{}{
		"node": map[string]interface{}{"default_ttl": "not-a-duration"},
	})
	if cfg.DefaultTTL != before {
		t.Errorf("DefaultTTL changed on invalid input: got %v, want unchanged %v", cfg.DefaultTTL, before)
	}
}
