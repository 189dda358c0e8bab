// Package config provides configuration types and defaults for lineage.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/zjrosen/lineage/internal/log"
	"github.com/zjrosen/lineage/internal/tracing"
)

// Adapter names with special handling.
const (
	AdapterInMemory = "in_memory"
	SupportsAll     = "all"
)

// DefaultPlugin is always loaded, whatever PLUGINS says.
const DefaultPlugin = "core"

// LogFileTarget is the LOG value that selects file logging.
const LogFileTarget = "file"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for lineage.
type Config struct {
	// Root is the project root; logs and sqlite files live below it.
	// Default: <cwd>/spec
	Root string `mapstructure:"root"`

	// Log selects logging output: "file" writes <root>/log/lineage.log,
	// any other non-empty value writes to stdout, empty disables logging.
	Log      string `mapstructure:"log"`
	LogLevel string `mapstructure:"log_level"`

	// Adapter names the backing store driver.
	// Default: "in_memory"
	Adapter string `mapstructure:"adapter"`

	// AdapterSupports lists optional adapter capabilities. Forced to "all"
	// for the in_memory adapter.
	AdapterSupports string `mapstructure:"adapter_supports"`

	// Host is the backing store host for networked adapters.
	// Default: "localhost"
	Host string `mapstructure:"host"`

	// Plugins are loaded in order. Always contains DefaultPlugin.
	Plugins []string `mapstructure:"-"`

	// Definition is an optional hierarchy YAML file loaded on setup.
	Definition string `mapstructure:"definition"`

	Tracing tracing.Config `mapstructure:"tracing"`
}

// Defaults returns the default configuration. Root falls back to "spec"
// when the working directory cannot be determined.
func Defaults() Config {
	root := "spec"
	if cwd, err := os.Getwd(); err == nil {
		root = filepath.Join(cwd, "spec")
	}
	return Config{
		Root:    root,
		Adapter: AdapterInMemory,
		Host:    "localhost",
		Plugins: []string{DefaultPlugin},
		Tracing: tracing.DefaultConfig(),
	}
}

// envBindings maps config keys to environment variables in precedence order.
var envBindings = map[string][]string{
	"root":                  {"LINEAGE_ROOT"},
	"log":                   {"LOG"},
	"log_level":             {"LOG_LEVEL"},
	"adapter":               {"ADAPTER"},
	"adapter_supports":      {"ADAPTER_SUPPORTS"},
	"host":                  {"ADAPTER_HOST"},
	"plugins":               {"PLUGINS", "PLUGIN"},
	"definition":            {"LINEAGE_DEFINITION"},
	"tracing.enabled":       {"LINEAGE_TRACING"},
	"tracing.exporter":      {"LINEAGE_TRACE_EXPORTER"},
	"tracing.otlp_endpoint": {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("root", d.Root)
	v.SetDefault("adapter", d.Adapter)
	v.SetDefault("host", d.Host)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

// Load reads configuration from v, applying defaults and environment
// bindings first. The result is normalised but not validated.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	// PLUGINS may be a YAML list or a comma/space separated string.
	cfg.Plugins = ParsePlugins(strings.Join(v.GetStringSlice("plugins"), " "))
	cfg.normalise()

	log.Debug(log.CatConfig, "config loaded",
		"root", cfg.Root,
		"adapter", cfg.Adapter,
		"plugins", strings.Join(cfg.Plugins, ","),
		"file", v.ConfigFileUsed())

	return cfg, nil
}

func (c *Config) normalise() {
	c.Adapter = strings.TrimSpace(c.Adapter)
	c.Log = strings.TrimSpace(c.Log)
	if c.Adapter == AdapterInMemory {
		c.AdapterSupports = SupportsAll
	}
	if c.Root != "" {
		c.Root = filepath.Clean(c.Root)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == tracing.ExporterFile && c.Tracing.FilePath == "" {
		c.Tracing.FilePath = filepath.Join(c.Root, "log", "traces.jsonl")
	}
}

var pluginSeparator = regexp.MustCompile(`[,\s]+`)

// ParsePlugins splits a comma or whitespace separated plugin list, appends
// DefaultPlugin and drops empties and repeats. Order of first appearance is
// kept.
func ParsePlugins(raw string) []string {
	names := append(pluginSeparator.Split(raw, -1), DefaultPlugin)

	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// LogTarget resolves the Log setting. When enabled and not stdout, path is
// the log file.
func (c Config) LogTarget() (path string, stdout bool, enabled bool) {
	switch c.Log {
	case "":
		return "", false, false
	case LogFileTarget:
		return filepath.Join(c.Root, "log", "lineage.log"), false, true
	default:
		return "", true, true
	}
}

// Supports reports whether the adapter claims capability. "all" claims every
// capability; otherwise AdapterSupports is a comma separated list.
func (c Config) Supports(capability string) bool {
	if c.AdapterSupports == SupportsAll {
		return true
	}
	for _, s := range strings.Split(c.AdapterSupports, ",") {
		if strings.TrimSpace(s) == capability {
			return true
		}
	}
	return false
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Adapter == "" {
		return fmt.Errorf("%w: adapter must be set", ErrInvalidConfig)
	}
	if c.Root == "" {
		return fmt.Errorf("%w: root must be set", ErrInvalidConfig)
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("%w: tracing.sample_rate must be between 0.0 and 1.0, got %v", ErrInvalidConfig, tc.SampleRate)
	}
	if !tracing.ValidExporter(tc.Exporter) {
		return fmt.Errorf("%w: tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", ErrInvalidConfig, tc.Exporter)
	}
	if tc.Enabled && tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
		return fmt.Errorf("%w: tracing.otlp_endpoint is required when exporter is \"otlp\"", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Lineage Configuration
# Every key can also be set from the environment (shown in brackets).

# Project root; log/ and db/ are created below it [LINEAGE_ROOT]
# root: ./spec

# Logging: "file" writes <root>/log/lineage.log, anything else writes to stdout [LOG]
# log: file
# log_level: debug

# Backing store: in_memory, sqlite, postgres, redis [ADAPTER]
adapter: in_memory

# Host for networked adapters [ADAPTER_HOST]
host: localhost

# Plugins to load; "core" is always loaded [PLUGINS]
plugins: []

# Hierarchy definition loaded on setup [LINEAGE_DEFINITION]
# definition: models.yaml

tracing:
  enabled: false          # [LINEAGE_TRACING]
  exporter: stdout        # none, file, stdout, otlp [LINEAGE_TRACE_EXPORTER]
  # otlp_endpoint: localhost:4317
  sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "path", configPath)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
