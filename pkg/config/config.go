// Package config loads and validates the daemon's process configuration:
// data_source, event_source, recheckwatch, and chat sections.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DataSource configures the log-index backend.
type DataSource struct {
	ESURL          string        `yaml:"es_url"`
	IndexFormat    string        `yaml:"index_format"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// EventSource configures the Gerrit change-polling event feed.
type EventSource struct {
	Host         string        `yaml:"host"`
	User         string        `yaml:"user"`
	Key          string        `yaml:"key"`
	QueryFile    string        `yaml:"query_file"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Recheckwatch configures classification-time filters.
type Recheckwatch struct {
	CIUsername            string `yaml:"ci_username"`
	JobsRegex             string `yaml:"jobs_regex"`
	ExcludedJobsRegex     string `yaml:"excluded_jobs_regex"`
	IncludedProjectsRegex string `yaml:"included_projects_regex"`
	IntegrationJobsRegex  string `yaml:"integration_jobs_regex"`
	// UnitTestExcludeRegex is the legacy python2/pep8 unit-test line
	// exclusion, independently toggleable from SkipNonVoting.
	UnitTestExcludeRegex string `yaml:"unit_test_exclude_regex"`
	SkipNonVoting        bool   `yaml:"skip_non_voting"`
	ReportCheckQueue     bool   `yaml:"report_check_queue"`
	CatalogDir           string `yaml:"catalog_dir"`
}

// Chat configures the chat-channel dispatch sink.
type Chat struct {
	Token         string `yaml:"token"`
	ChannelConfig string `yaml:"channel_config"`
}

// Readiness overrides the gate's retry/timeout defaults.
type Readiness struct {
	Retries    int           `yaml:"retries"`
	SleepTime  time.Duration `yaml:"sleep_time"`
	GraceSleep time.Duration `yaml:"grace_sleep"`
}

// Config is the top-level process configuration.
type Config struct {
	DataSource   DataSource   `yaml:"data_source"`
	EventSource  EventSource  `yaml:"event_source"`
	Recheckwatch Recheckwatch `yaml:"recheckwatch"`
	Chat         Chat         `yaml:"chat"`
	Readiness    Readiness    `yaml:"readiness"`
}

// Default returns the process configuration's built-in defaults.
func Default() Config {
	return Config{
		DataSource: DataSource{
			IndexFormat:    "2006.01.02",
			RequestTimeout: 60 * time.Second,
		},
		EventSource: EventSource{
			PollInterval: 30 * time.Second,
		},
		Recheckwatch: Recheckwatch{
			CIUsername:            "jenkins",
			JobsRegex:             `(tempest-dsvm-full|gate-tempest-dsvm-virtual-ironic)`,
			ExcludedJobsRegex:     `(api-site|operations-guide|openstack-manuals|ansible|puppet)`,
			IncludedProjectsRegex: `(^openstack/|devstack|grenade)`,
			IntegrationJobsRegex:  `(tempest-dsvm-full|gate-tempest-dsvm-virtual-ironic)`,
			ReportCheckQueue:      false,
			CatalogDir:            "queries",
		},
		Readiness: Readiness{
			Retries:    20,
			SleepTime:  40 * time.Second,
			GraceSleep: 10 * time.Second,
		},
	}
}

// Load reads a YAML config file, expanding ${VAR}/$VAR references against
// the process environment before unmarshalling — so secrets such as the
// Gerrit SSH key passphrase or the chat token never need to land in the
// file on disk.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Op: "read", Path: path, Err: err}
	}

	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, &ConfigError{Op: "parse", Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every field required before the main loop starts
// is present. A failure here is fatal at startup.
func (c Config) Validate() error {
	if c.DataSource.ESURL == "" {
		return &ConfigError{Op: "validate", Path: "data_source.es_url", Err: errRequired}
	}
	if c.EventSource.Host == "" {
		return &ConfigError{Op: "validate", Path: "event_source.host", Err: errRequired}
	}
	if c.EventSource.User == "" {
		return &ConfigError{Op: "validate", Path: "event_source.user", Err: errRequired}
	}
	if c.EventSource.QueryFile == "" {
		return &ConfigError{Op: "validate", Path: "event_source.query_file", Err: errRequired}
	}
	if c.Recheckwatch.CIUsername == "" {
		return &ConfigError{Op: "validate", Path: "recheckwatch.ci_username", Err: errRequired}
	}
	return nil
}

var errRequired = fmt.Errorf("required field is empty")

// ConfigError is a fatal startup error: missing/invalid config or
// channel-config file.
type ConfigError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
