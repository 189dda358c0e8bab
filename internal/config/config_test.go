package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lineage/internal/tracing"
)

// clearEnv blanks every bound variable; viper treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, envs := range envBindings {
		for _, env := range envs {
			t.Setenv(env, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	d := Defaults()
	require.Equal(t, filepath.Join(cwd, "spec"), d.Root)
	require.Equal(t, AdapterInMemory, d.Adapter)
	require.Equal(t, "localhost", d.Host)
	require.Equal(t, []string{DefaultPlugin}, d.Plugins)
	require.Empty(t, d.Log)
	require.False(t, d.Tracing.Enabled)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	d := Defaults()
	require.Equal(t, d.Root, cfg.Root)
	require.Equal(t, AdapterInMemory, cfg.Adapter)
	require.Equal(t, SupportsAll, cfg.AdapterSupports, "in_memory claims every capability")
	require.Equal(t, []string{"core"}, cfg.Plugins)
	require.Equal(t, 1.0, cfg.Tracing.SampleRate)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	t.Setenv("LINEAGE_ROOT", root)
	t.Setenv("LOG", "file")
	t.Setenv("ADAPTER", "postgres")
	t.Setenv("ADAPTER_SUPPORTS", "transactions")
	t.Setenv("ADAPTER_HOST", "db.internal")
	t.Setenv("PLUGINS", "timestamps, paranoia")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	require.Equal(t, root, cfg.Root)
	require.Equal(t, "file", cfg.Log)
	require.Equal(t, "postgres", cfg.Adapter)
	require.Equal(t, "transactions", cfg.AdapterSupports)
	require.Equal(t, "db.internal", cfg.Host)
	require.Equal(t, []string{"timestamps", "paranoia", "core"}, cfg.Plugins)
}

func TestLoad_PluginFallsBackToSingular(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLUGIN", "timestamps")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.Equal(t, []string{"timestamps", "core"}, cfg.Plugins)

	t.Setenv("PLUGINS", "paranoia")
	cfg, err = Load(viper.New())
	require.NoError(t, err)
	require.Equal(t, []string{"paranoia", "core"}, cfg.Plugins, "PLUGINS wins over PLUGIN")
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
root: ` + dir + `
adapter: sqlite
plugins: [timestamps, core]
definition: models.yaml
tracing:
  enabled: true
  exporter: file
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Adapter)
	require.Empty(t, cfg.AdapterSupports)
	require.Equal(t, []string{"timestamps", "core"}, cfg.Plugins)
	require.Equal(t, "models.yaml", cfg.Definition)
	require.True(t, cfg.Tracing.Enabled)
	require.Equal(t, filepath.Join(dir, "log", "traces.jsonl"), cfg.Tracing.FilePath)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: sqlite\n"), 0o600))
	t.Setenv("ADAPTER", "in_memory")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, AdapterInMemory, cfg.Adapter)
	require.Equal(t, SupportsAll, cfg.AdapterSupports)
}

func TestParsePlugins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{"core"}},
		{"comma", "timestamps,paranoia", []string{"timestamps", "paranoia", "core"}},
		{"whitespace", "timestamps \t paranoia\n", []string{"timestamps", "paranoia", "core"}},
		{"mixed", " timestamps , paranoia,,", []string{"timestamps", "paranoia", "core"}},
		{"dedupe keeps first", "paranoia timestamps paranoia", []string{"paranoia", "timestamps", "core"}},
		{"explicit core keeps position", "core,timestamps", []string{"core", "timestamps"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParsePlugins(tt.raw))
		})
	}
}

func TestLogTarget(t *testing.T) {
	root := filepath.Join("tmp", "project")

	path, stdout, enabled := Config{Root: root}.LogTarget()
	require.False(t, enabled)
	require.False(t, stdout)
	require.Empty(t, path)

	path, stdout, enabled = Config{Root: root, Log: "file"}.LogTarget()
	require.True(t, enabled)
	require.False(t, stdout)
	require.Equal(t, filepath.Join(root, "log", "lineage.log"), path)

	path, stdout, enabled = Config{Root: root, Log: "1"}.LogTarget()
	require.True(t, enabled)
	require.True(t, stdout)
	require.Empty(t, path)
}

func TestSupports(t *testing.T) {
	require.True(t, Config{AdapterSupports: "all"}.Supports("anything"))
	require.True(t, Config{AdapterSupports: "transactions, json"}.Supports("json"))
	require.False(t, Config{AdapterSupports: "transactions"}.Supports("json"))
	require.False(t, Config{}.Supports("json"))
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing adapter", func(c *Config) { c.Adapter = "" }, "adapter must be set"},
		{"missing root", func(c *Config) { c.Root = "" }, "root must be set"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "sample_rate"},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"otlp endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = tracing.ExporterOTLP
			c.Tracing.OTLPEndpoint = ""
		}, "otlp_endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWriteDefaultConfig_IsLoadable(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".lineage", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, AdapterInMemory, cfg.Adapter)
	require.Equal(t, []string{"core"}, cfg.Plugins)
	require.NoError(t, cfg.Validate())
}

func TestSavePlugins_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SavePlugins(path, []string{"timestamps", "core", "timestamps", "paranoia"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "# Lineage Configuration")
	require.Contains(t, content, "plugins: [timestamps, paranoia]")
	require.Equal(t, 1, strings.Count(content, "plugins:"))
	require.Contains(t, content, "adapter: in_memory")
}

func TestSavePlugins_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SavePlugins(path, []string{"paranoia"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "plugins: [paranoia]\n", string(data))
}
