// Package config loads grammatic.yaml and applies environment overrides.
//
// Every key is optional. Precedence, lowest first: built-in defaults, the
// file, GRAMMATIC_* environment variables, command-line flags (applied by
// the caller).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/grammatic/grammatic/pkg/envutil"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/process"
)

var configLog = logger.New("config:config")

const (
	EnvOutputCap      = "GRAMMATIC_OUTPUT_CAP"
	EnvExcerptBytes   = "GRAMMATIC_EXCERPT_BYTES"
	EnvTimeoutSeconds = "GRAMMATIC_TIMEOUT_SECONDS"
)

// Tools names the external commands grammatic drives.
type Tools struct {
	GrammarCompiler string `yaml:"grammar_compiler"`
	CCompiler       string `yaml:"c_compiler"`
	CXXCompiler     string `yaml:"cxx_compiler"`
	TestRunner      string `yaml:"test_runner"`
	Git             string `yaml:"git"`
}

// ParseSettings controls the parse invocation. Args may use the
// placeholders {source}, {artifact} and {grammar}.
type ParseSettings struct {
	Args []string `yaml:"args"`
}

// TestSettings controls the corpus test invocation. Args may use {grammar}
// and {artifact}.
type TestSettings struct {
	Args []string `yaml:"args"`
}

// DoctorSettings controls doctor's checks.
type DoctorSettings struct {
	MinToolVersion *string `yaml:"min_tool_version"`
	RequireBuild   *bool   `yaml:"require_build"`
}

// Config is the resolved configuration.
type Config struct {
	Tools              Tools          `yaml:"tools"`
	Parse              ParseSettings  `yaml:"parse"`
	Test               TestSettings   `yaml:"test"`
	OutputCapBytes     int            `yaml:"output_cap_bytes"`
	StderrExcerptBytes int            `yaml:"stderr_excerpt_bytes"`
	Timeout            string         `yaml:"timeout"`
	Doctor             DoctorSettings `yaml:"doctor"`

	timeout time.Duration
}

// Default returns the built-in configuration.
func Default() *Config {
	requireBuild := true
	minToolVersion := "0.20.0"
	return &Config{
		Tools: Tools{
			GrammarCompiler: "tree-sitter",
			CCompiler:       "gcc",
			CXXCompiler:     "g++",
			TestRunner:      "tree-sitter",
			Git:             "git",
		},
		Parse: ParseSettings{
			Args: []string{"parse", "{source}", "--lib-path", "{artifact}", "--lang-name", "{grammar}", "--json"},
		},
		Test: TestSettings{
			Args: []string{"test", "--language", "{artifact}"},
		},
		OutputCapBytes:     process.DefaultOutputCap,
		StderrExcerptBytes: process.DefaultExcerptBytes,
		Doctor: DoctorSettings{
			MinToolVersion: &minToolVersion,
			RequireBuild:   &requireBuild,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		configLog.Printf("No config at %s, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		var file Config
		if err := yaml.UnmarshalWithOptions(data, &file, yaml.DisallowUnknownField()); err != nil {
			return nil, failure.Wrap(failure.ValidationError, err,
				fmt.Sprintf("invalid configuration in %s:\n%s", path, yaml.FormatError(err, false, true)),
				"fix or remove "+path)
		}
		cfg.merge(&file)
		configLog.Printf("Loaded config from %s", path)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, failure.Wrap(failure.ValidationError, err, fmt.Sprintf("invalid configuration in %s", path), "fix or remove "+path)
	}
	return cfg, nil
}

func (c *Config) merge(f *Config) {
	setString(&c.Tools.GrammarCompiler, f.Tools.GrammarCompiler)
	setString(&c.Tools.CCompiler, f.Tools.CCompiler)
	setString(&c.Tools.CXXCompiler, f.Tools.CXXCompiler)
	setString(&c.Tools.TestRunner, f.Tools.TestRunner)
	setString(&c.Tools.Git, f.Tools.Git)
	if len(f.Parse.Args) > 0 {
		c.Parse.Args = f.Parse.Args
	}
	if len(f.Test.Args) > 0 {
		c.Test.Args = f.Test.Args
	}
	if f.OutputCapBytes != 0 {
		c.OutputCapBytes = f.OutputCapBytes
	}
	if f.StderrExcerptBytes != 0 {
		c.StderrExcerptBytes = f.StderrExcerptBytes
	}
	setString(&c.Timeout, f.Timeout)
	if f.Doctor.MinToolVersion != nil {
		c.Doctor.MinToolVersion = f.Doctor.MinToolVersion
	}
	if f.Doctor.RequireBuild != nil {
		c.Doctor.RequireBuild = f.Doctor.RequireBuild
	}
}

func (c *Config) applyEnv() {
	c.OutputCapBytes = envutil.GetIntFromEnv(EnvOutputCap, c.OutputCapBytes, 1024, 1<<30, configLog)
	c.StderrExcerptBytes = envutil.GetIntFromEnv(EnvExcerptBytes, c.StderrExcerptBytes, 1, 1<<20, configLog)
	if secs, ok := envutil.LookupInt(EnvTimeoutSeconds, 0, 24*60*60); ok {
		c.Timeout = (time.Duration(secs) * time.Second).String()
	}
}

func (c *Config) validate() error {
	if c.OutputCapBytes <= 0 {
		return fmt.Errorf("output_cap_bytes must be positive, got %d", c.OutputCapBytes)
	}
	if c.StderrExcerptBytes <= 0 {
		return fmt.Errorf("stderr_excerpt_bytes must be positive, got %d", c.StderrExcerptBytes)
	}
	c.timeout = 0
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("timeout %q: %w", c.Timeout, err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
		}
		c.timeout = d
	}
	return nil
}

// TimeoutDuration is the per-tool timeout, zero for none.
func (c *Config) TimeoutDuration() time.Duration {
	return c.timeout
}

// SetTimeout overrides the timeout, as the --timeout flag does.
func (c *Config) SetTimeout(d time.Duration) {
	c.timeout = d
	c.Timeout = d.String()
}

// DoctorRequiresBuild reports whether doctor insists on a build artifact.
func (c *Config) DoctorRequiresBuild() bool {
	return c.Doctor.RequireBuild == nil || *c.Doctor.RequireBuild
}

// DoctorMinToolVersion is the oldest grammar compiler doctor accepts. An
// empty string, set explicitly in the file, turns the check off.
func (c *Config) DoctorMinToolVersion() string {
	if c.Doctor.MinToolVersion == nil {
		return ""
	}
	return *c.Doctor.MinToolVersion
}

// Runner builds a process runner honouring the output cap and timeout.
func (c *Config) Runner() *process.Runner {
	return &process.Runner{OutputCap: c.OutputCapBytes, Timeout: c.timeout}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
