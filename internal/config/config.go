// Package config holds the lowering pipeline's configuration: the target version selecting the emplace lowering
// style, the full-validation diagnostic flag, and the worker-pool size.
// It loads from a TOML project manifest.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// TargetVersion selects which emplace/box protocol the lowering emits.
type TargetVersion uint8

const (
	// V1_19 selects the older placer-based emplace protocol.
	V1_19 TargetVersion = iota
	// V1_29 selects the exchange-malloc protocol.
	V1_29
	// V1_39 behaves as V1_29 for emplace purposes; it exists so a
	// manifest can name the version it was actually written against.
	V1_39
)

func (v TargetVersion) String() string {
	switch v {
	case V1_19:
		return "1.19"
	case V1_29:
		return "1.29"
	case V1_39:
		return "1.39"
	default:
		return fmt.Sprintf("TargetVersion(%d)", uint8(v))
	}
}

// UsesPlacer reports whether this target version lowers `box` through
// the placer protocol rather than exchange_malloc.
func (v TargetVersion) UsesPlacer() bool { return v == V1_19 }

// Config is the pipeline configuration.
type Config struct {
	TargetVersion  TargetVersion
	FullValidation bool
	Jobs           int
}

// Default returns the configuration used when no manifest is present:
// the newest target version, basic validation only, one worker per CPU.
func Default() Config {
	return Config{
		TargetVersion:  V1_39,
		FullValidation: false,
		Jobs:           runtime.NumCPU(),
	}
}

type manifest struct {
	Lowering loweringSection `toml:"lowering"`
}

type loweringSection struct {
	TargetVersion  string `toml:"target_version"`
	FullValidation bool   `toml:"full_validation"`
	Jobs           int    `toml:"jobs"`
}

// Load reads a TOML manifest, overlaying its [lowering] section on top
// of Default(). Missing keys keep their defaults; an unknown
// target_version is an error rather than a silent fallback.
func Load(path string) (Config, error) {
	cfg := Default()
	var m manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("lowering") {
		return cfg, nil
	}
	if meta.IsDefined("lowering", "target_version") {
		v, err := ParseTargetVersion(m.Lowering.TargetVersion)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		cfg.TargetVersion = v
	}
	if meta.IsDefined("lowering", "full_validation") {
		cfg.FullValidation = m.Lowering.FullValidation
	}
	if meta.IsDefined("lowering", "jobs") {
		if m.Lowering.Jobs < 0 {
			return Config{}, fmt.Errorf("%s: [lowering].jobs must not be negative", path)
		}
		cfg.Jobs = m.Lowering.Jobs
	}
	return cfg, nil
}

// ParseTargetVersion maps a manifest/flag string to a TargetVersion.
func ParseTargetVersion(s string) (TargetVersion, error) {
	switch strings.TrimSpace(s) {
	case "1.19", "v1.19", "V1_19":
		return V1_19, nil
	case "1.29", "v1.29", "V1_29":
		return V1_29, nil
	case "1.39", "v1.39", "V1_39", "":
		return V1_39, nil
	default:
		return 0, fmt.Errorf("unknown target_version %q (must be 1.19, 1.29 or 1.39)", s)
	}
}
