package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/lineage/internal/config"
)

// projectConfigPath is checked before the user config directory.
const projectConfigPath = ".lineage/config.yaml"

var (
	version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Model hierarchy and test environment toolkit",
	Long: `lineage tracks model hierarchies with live, flattened descendant views and
bootstraps the storage a test run needs.

Every setting can come from the config file or the environment:
LOG, ADAPTER, ADAPTER_HOST, PLUGINS (or PLUGIN) and LINEAGE_ROOT.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .lineage/config.yaml, then ~/.config/lineage/config.yaml)")
	rootCmd.PersistentFlags().String("adapter", "", "backing store adapter (overrides ADAPTER)")
	rootCmd.PersistentFlags().String("root", "", "project root (overrides LINEAGE_ROOT)")

	_ = viper.BindPFlag("adapter", rootCmd.PersistentFlags().Lookup("adapter"))
	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(projectConfigPath); err == nil {
		viper.SetConfigFile(projectConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".config", "lineage"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// A missing config file is fine; everything has a default.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "reading config %s: %v\n", cfgFile, err)
		}
	}
}

// loadConfig resolves and validates configuration from the global viper.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// configPathForWrite is the file that config-changing commands edit.
func configPathForWrite() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return projectConfigPath
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
