// Package config carries the environment contract: the
// handful of process-wide settings rcs reads from its environment and,
// optionally, a config file — TMPDIR, the display timezone, the memory
// threshold above which an archive is streamed instead of buffered, and
// the external diff/diff3 command templates.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/gnu-mirror-unofficial/rcs-go/fro"
)

// Config is rcs's resolved environment, after defaults and any config
// file/.env overlay have been applied.
type Config struct {
	TmpDir     string `yaml:"tmp_dir"`
	Zone       string `yaml:"zone"`        // "local", "UTC", or "+HH:MM"/"-HH:MM"
	MemLimit   int64  `yaml:"mem_limit"`   // bytes; archives at or above this are streamed
	DiffCmd    string `yaml:"diff_cmd"`    // e.g. "diff --rcs"
	Diff3Cmd   string `yaml:"diff3_cmd"`   // e.g. "diff3"
	DefaultExp string `yaml:"default_exp"` // default keyword substitution mode for new archives
}

// Default returns the baseline configuration before any overlay is
// applied: TMPDIR (or /tmp), local time, fro's DefaultMemLimit, and plain
// "diff"/"diff3" expected on PATH.
func Default() *Config {
	tmp := os.Getenv("TMPDIR")
	if tmp == "" {
		tmp = os.TempDir()
	}
	return &Config{
		TmpDir:     tmp,
		Zone:       "local",
		MemLimit:   fro.DefaultMemLimit,
		DiffCmd:    "diff --rcs",
		Diff3Cmd:   "diff3",
		DefaultExp: "kv",
	}
}

// LoadEnv overlays process environment variables on top of cfg, using
// the names RCS_TMPDIR, RCS_ZONE, RCS_MEM_LIMIT, RCS_DIFF,
// RCS_DIFF3. A .env file at envFile, if present, is loaded first (via
// godotenv) so these variables can be set without exporting them in the
// calling shell — handy for CI and for the test harness.
func LoadEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return errors.Wrapf(err, "config: load %s", envFile)
			}
		}
	}
	if v := os.Getenv("RCS_TMPDIR"); v != "" {
		cfg.TmpDir = v
	}
	if v := os.Getenv("RCS_ZONE"); v != "" {
		cfg.Zone = v
	}
	if v := os.Getenv("RCS_MEM_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "config: RCS_MEM_LIMIT")
		}
		cfg.MemLimit = n
	}
	if v := os.Getenv("RCS_DIFF"); v != "" {
		cfg.DiffCmd = v
	}
	if v := os.Getenv("RCS_DIFF3"); v != "" {
		cfg.Diff3Cmd = v
	}
	return nil
}

// LoadFile overlays a YAML config file on top of cfg. Fields absent from
// the file are left untouched.
func LoadFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "config: read %s", filename)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "config: parse %s", filename)
	}
	return nil
}

// Load builds a Config from defaults, an optional YAML file, and the
// process environment, in that priority order (environment wins).
func Load(filename, envFile string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		if err := LoadFile(cfg, filename); err != nil {
			return nil, err
		}
	}
	if err := LoadEnv(cfg, envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}
