package config

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionPlaceholder is replaced by the platform version in root paths.
const VersionPlaceholder = "{version}"

// EnvironmentsConfig configures the simulated platform versions. Each version
// gets its own isolated scope whose code and resources come from the roots
// below, with VersionPlaceholder expanded.
type EnvironmentsConfig struct {
	Versions           []int    `yaml:"versions" env:"VERSIONS"`
	DefaultVersion     int      `yaml:"default_version" env:"DEFAULT_VERSION"`
	ClassRoots         []string `yaml:"class_roots" env:"CLASS_ROOTS"`
	ResourceRoots      []string `yaml:"resource_roots" env:"RESOURCE_ROOTS"`
	InfrastructureRoot string   `yaml:"infrastructure_root" env:"INFRASTRUCTURE_ROOT"`
	// Preload names are loaded concurrently when an environment is warmed.
	Preload []string `yaml:"preload,omitempty"`
}

// Supports reports whether version is configured.
func (e *EnvironmentsConfig) Supports(version int) bool {
	for _, v := range e.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// ClassRootsFor returns the class roots of version.
func (e *EnvironmentsConfig) ClassRootsFor(version int) []string {
	return expand(e.ClassRoots, version)
}

// ResourceRootsFor returns the isolated resource roots of version.
func (e *EnvironmentsConfig) ResourceRootsFor(version int) []string {
	return expand(e.ResourceRoots, version)
}

func expand(roots []string, version int) []string {
	v := strconv.Itoa(version)
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = strings.ReplaceAll(r, VersionPlaceholder, v)
	}
	return out
}

// Validate checks that versions are positive and unique, that the default is
// one of them and that there is somewhere to read code from.
func (e *EnvironmentsConfig) Validate() error {
	if len(e.Versions) == 0 {
		return fmt.Errorf("%w: no environment versions", ErrInvalidConfig)
	}
	seen := make(map[int]bool, len(e.Versions))
	for _, v := range e.Versions {
		if v <= 0 {
			return fmt.Errorf("%w: environment version %d", ErrInvalidConfig, v)
		}
		if seen[v] {
			return fmt.Errorf("%w: duplicate environment version %d", ErrInvalidConfig, v)
		}
		seen[v] = true
	}
	if e.DefaultVersion != 0 && !seen[e.DefaultVersion] {
		return fmt.Errorf("%w: default version %d is not configured", ErrInvalidConfig, e.DefaultVersion)
	}
	if len(e.ClassRoots) == 0 {
		return fmt.Errorf("%w: no class roots", ErrInvalidConfig)
	}
	return nil
}
