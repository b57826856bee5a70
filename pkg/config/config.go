// Package config loads workspace settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the workspace settings. The zero value of a field means
// "use the default"; see WithDefaults.
type Config struct {
	// Lattice
	SnapPointCount int
	StrandLength   float64
	SnapRadius     float64
	MinSeparation  float64
	// Geometry
	MeshCells int
	// Capture
	CaptureTimeout time.Duration
	CaptureWidth   int
	CaptureHeight  int
	// Catalog
	CatalogPath string
	// Checkout handoff - publishing disabled if RedisURL is empty
	RedisURL   string
	HandoffKey string
	// Artifact storage - MinIO when an endpoint is set, otherwise ArtifactDir
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	ArtifactDir    string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		SnapPointCount: 120,
		StrandLength:   5.5,
		SnapRadius:     2.5,
		MinSeparation:  0.08,
		MeshCells:      48,
		CaptureTimeout: 5 * time.Second,
		CaptureWidth:   1280,
		CaptureHeight:  720,
		CatalogPath:    "",
		RedisURL:       "",
		HandoffKey:     "bangle:checkout",
		MinioEndpoint:  "",
		MinioAccessKey: "",
		MinioSecretKey: "",
		MinioBucket:    "bangle-captures",
		MinioUseSSL:    false,
		ArtifactDir:    "./data/captures",
	}
}

// Load reads settings from the environment, falling back to Default for
// unset or unparsable values.
func Load() Config {
	d := Default()
	return Config{
		SnapPointCount: getenvInt("BANGLE_SNAP_POINTS", d.SnapPointCount),
		StrandLength:   getenvFloat("BANGLE_STRAND_LENGTH", d.StrandLength),
		SnapRadius:     getenvFloat("BANGLE_SNAP_RADIUS", d.SnapRadius),
		MinSeparation:  getenvFloat("BANGLE_MIN_SEPARATION", d.MinSeparation),
		MeshCells:      getenvInt("BANGLE_MESH_CELLS", d.MeshCells),
		CaptureTimeout: time.Duration(getenvInt("BANGLE_CAPTURE_TIMEOUT_MS", int(d.CaptureTimeout/time.Millisecond))) * time.Millisecond,
		CaptureWidth:   getenvInt("BANGLE_CAPTURE_WIDTH", d.CaptureWidth),
		CaptureHeight:  getenvInt("BANGLE_CAPTURE_HEIGHT", d.CaptureHeight),
		CatalogPath:    getenv("BANGLE_CATALOG", d.CatalogPath),
		RedisURL:       getenv("REDIS_URL", d.RedisURL),
		HandoffKey:     getenv("BANGLE_HANDOFF_KEY", d.HandoffKey),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", d.MinioEndpoint),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", d.MinioAccessKey),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", d.MinioSecretKey),
		MinioBucket:    getenv("MINIO_BUCKET", d.MinioBucket),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", d.MinioUseSSL),
		ArtifactDir:    getenv("BANGLE_ARTIFACT_DIR", d.ArtifactDir),
	}
}

// WithDefaults returns c with every zero numeric or empty naming field
// replaced by its Default value. Credentials, URLs and paths stay as set.
func (c Config) WithDefaults() Config {
	d := Default()
	if c.SnapPointCount == 0 {
		c.SnapPointCount = d.SnapPointCount
	}
	if c.StrandLength == 0 {
		c.StrandLength = d.StrandLength
	}
	if c.SnapRadius == 0 {
		c.SnapRadius = d.SnapRadius
	}
	if c.MinSeparation == 0 {
		c.MinSeparation = d.MinSeparation
	}
	if c.MeshCells == 0 {
		c.MeshCells = d.MeshCells
	}
	if c.CaptureTimeout == 0 {
		c.CaptureTimeout = d.CaptureTimeout
	}
	if c.CaptureWidth == 0 {
		c.CaptureWidth = d.CaptureWidth
	}
	if c.CaptureHeight == 0 {
		c.CaptureHeight = d.CaptureHeight
	}
	if c.HandoffKey == "" {
		c.HandoffKey = d.HandoffKey
	}
	if c.MinioBucket == "" {
		c.MinioBucket = d.MinioBucket
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = d.ArtifactDir
	}
	return c
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
