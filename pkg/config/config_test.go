package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"BANGLE_SNAP_POINTS", "BANGLE_STRAND_LENGTH", "BANGLE_SNAP_RADIUS", "BANGLE_MIN_SEPARATION",
		"BANGLE_MESH_CELLS", "BANGLE_CAPTURE_TIMEOUT_MS", "BANGLE_CAPTURE_WIDTH", "BANGLE_CAPTURE_HEIGHT",
		"BANGLE_CATALOG", "REDIS_URL", "BANGLE_HANDOFF_KEY", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY",
		"MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL", "BANGLE_ARTIFACT_DIR",
	} {
		t.Setenv(key, "")
	}
	got := Load()
	want := Default()
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if got.SnapPointCount != 120 || got.StrandLength != 5.5 || got.CaptureTimeout != 5*time.Second {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BANGLE_SNAP_POINTS", "60")
	t.Setenv("BANGLE_STRAND_LENGTH", "4.25")
	t.Setenv("BANGLE_CAPTURE_TIMEOUT_MS", "1500")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()
	if cfg.SnapPointCount != 60 {
		t.Errorf("SnapPointCount = %d", cfg.SnapPointCount)
	}
	if cfg.StrandLength != 4.25 {
		t.Errorf("StrandLength = %g", cfg.StrandLength)
	}
	if cfg.CaptureTimeout != 1500*time.Millisecond {
		t.Errorf("CaptureTimeout = %s", cfg.CaptureTimeout)
	}
	if cfg.RedisURL != "redis://cache:6379/1" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if !cfg.MinioUseSSL {
		t.Error("MinioUseSSL = false")
	}
}

func TestGetenvFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T)
	}{
		{"bad int", "sixty", func(t *testing.T) {
			if got := getenvInt("BANGLE_TEST_VALUE", 7); got != 7 {
				t.Errorf("getenvInt = %d, want 7", got)
			}
		}},
		{"bad float", "x1.5", func(t *testing.T) {
			if got := getenvFloat("BANGLE_TEST_VALUE", 2.5); got != 2.5 {
				t.Errorf("getenvFloat = %g, want 2.5", got)
			}
		}},
		{"bad bool", "maybe", func(t *testing.T) {
			if got := getenvBool("BANGLE_TEST_VALUE", true); !got {
				t.Error("getenvBool = false, want fallback true")
			}
		}},
		{"empty string", "", func(t *testing.T) {
			if got := getenv("BANGLE_TEST_VALUE", "fallback"); got != "fallback" {
				t.Errorf("getenv = %q", got)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BANGLE_TEST_VALUE", tt.value)
			tt.check(t)
		})
	}
}

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	d := Default()
	tests := []struct {
		name  string
		in    Config
		check func(Config) bool
	}{
		{"empty", Config{}, func(c Config) bool { return c == d }},
		{"lattice only", Config{SnapPointCount: 11, StrandLength: 1}, func(c Config) bool {
			return c.SnapPointCount == 11 && c.StrandLength == 1 &&
				c.SnapRadius == d.SnapRadius && c.MinSeparation == d.MinSeparation
		}},
		{"radius kept", Config{SnapRadius: 0.5}, func(c Config) bool {
			return c.SnapRadius == 0.5 && c.SnapPointCount == d.SnapPointCount
		}},
		{"capture size", Config{CaptureWidth: 64}, func(c Config) bool {
			return c.CaptureWidth == 64 && c.CaptureHeight == d.CaptureHeight && c.CaptureTimeout == d.CaptureTimeout
		}},
		{"optional endpoints stay empty", Config{RedisURL: ""}, func(c Config) bool {
			return c.RedisURL == "" && c.MinioEndpoint == "" && c.HandoffKey == d.HandoffKey
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.WithDefaults(); !tt.check(got) {
				t.Errorf("WithDefaults() = %+v", got)
			}
		})
	}
}
