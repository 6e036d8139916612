// Package config loads warp-core's engine-construction options from
// environment variables, following this repository's teacher's env-first
// convention (there: NEO4J_*/NORNICDB_*; here: WARPCORE_*), with an
// optional YAML override file for deployments that prefer a file to a pile
// of exported variables.
//
// The kernel itself (pkg/engine and below) never imports this package or
// reads the environment — only the ambient/boundary layers (cmd/warpcore,
// and callers embedding the engine in a larger process) do.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SchedulerKind names the scheduler implementation to use. "radix" is the
// only value spec.md defines; it exists as a field so a future alternative
// has somewhere to be selected without changing the Config shape.
type SchedulerKind string

// SchedulerRadix is the only implemented scheduler kind.
const SchedulerRadix SchedulerKind = "radix"

// PolicyIDNoPolicyV0 is the only policy_id this revision accepts, per
// spec.md §6: "currently must be POLICY_ID_NO_POLICY_V0."
const PolicyIDNoPolicyV0 uint32 = 0

// Config holds every engine-construction option spec.md §6 names:
// scheduler_kind, worker_count, policy_id, det_fixed.
type Config struct {
	// SchedulerKind selects the scheduler implementation. Must be
	// SchedulerRadix in this revision.
	SchedulerKind SchedulerKind

	// WorkerCount is the number of BOAW execution goroutines, upper-bounded
	// internally to boaw.NumShards. Must be >= 1.
	WorkerCount int

	// PolicyID is the version pin for future agency/arbitration inputs.
	// Must equal PolicyIDNoPolicyV0 in this revision.
	PolicyID uint32

	// DetFixed selects scalar.DFix64 over scalar.F32Scalar as the engine's
	// deterministic scalar backend.
	DetFixed bool
}

// DefaultConfig returns the configuration every demo and test builds on top
// of: the radix scheduler, a single worker, no policy, fixed-point scalars.
func DefaultConfig() Config {
	return Config{
		SchedulerKind: SchedulerRadix,
		WorkerCount:   1,
		PolicyID:      PolicyIDNoPolicyV0,
		DetFixed:      true,
	}
}

// LoadFromEnv builds a Config from WARPCORE_* environment variables,
// starting from DefaultConfig for anything unset.
//
// Recognized variables:
//   - WARPCORE_SCHEDULER_KIND (only "radix" is accepted)
//   - WARPCORE_WORKER_COUNT (positive integer)
//   - WARPCORE_POLICY_ID (must be 0 in this revision)
//   - WARPCORE_DET_FIXED (bool)
func LoadFromEnv() Config {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("WARPCORE_SCHEDULER_KIND"); ok {
		cfg.SchedulerKind = SchedulerKind(v)
	}
	if v := getEnvInt("WARPCORE_WORKER_COUNT", 0); v > 0 {
		cfg.WorkerCount = v
	}
	if v, ok := os.LookupEnv("WARPCORE_POLICY_ID"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.PolicyID = uint32(n)
		}
	}
	cfg.DetFixed = getEnvBool("WARPCORE_DET_FIXED", cfg.DetFixed)

	return cfg
}

// LoadFromFile reads a YAML override file and applies it on top of
// LoadFromEnv's result — the file wins over the environment for any field
// it sets, matching this repository's teacher's layered-config precedence
// (explicit file beats environment beats default).
func LoadFromFile(path string) (Config, error) {
	cfg := LoadFromEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	var overlay struct {
		SchedulerKind *string `yaml:"scheduler_kind"`
		WorkerCount   *int    `yaml:"worker_count"`
		PolicyID      *uint32 `yaml:"policy_id"`
		DetFixed      *bool   `yaml:"det_fixed"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if overlay.SchedulerKind != nil {
		cfg.SchedulerKind = SchedulerKind(*overlay.SchedulerKind)
	}
	if overlay.WorkerCount != nil {
		cfg.WorkerCount = *overlay.WorkerCount
	}
	if overlay.PolicyID != nil {
		cfg.PolicyID = *overlay.PolicyID
	}
	if overlay.DetFixed != nil {
		cfg.DetFixed = *overlay.DetFixed
	}

	return cfg, nil
}

// Validate checks that cfg satisfies spec.md §6's constraints, returning
// the first violation found.
func (cfg Config) Validate() error {
	if cfg.SchedulerKind != SchedulerRadix {
		return fmt.Errorf("config: unsupported scheduler_kind %q: only %q is defined", cfg.SchedulerKind, SchedulerRadix)
	}
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("config: worker_count must be >= 1, got %d", cfg.WorkerCount)
	}
	if cfg.PolicyID != PolicyIDNoPolicyV0 {
		return fmt.Errorf("config: policy_id must be %d (POLICY_ID_NO_POLICY_V0) in this revision, got %d", PolicyIDNoPolicyV0, cfg.PolicyID)
	}
	return nil
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
