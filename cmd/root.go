// Package cmd provides the lode command-line interface.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--config-dir, --log-level, ...)
//  2. Environment variables with the LODE_ prefix (LODE_CONFIG_DIR, ...)
//  3. YAML files in the configuration directory (default ~/.config/lode)
//  4. Plugin-provided defaults
//
// The environment is resolved here and only here; everything below the
// CLI receives explicit values.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lode",
	Short: "A plugin-extensible content-indexing engine",
	Long: `Lode assembles its configuration from plugin defaults and user YAML
files, detects what changed since the last run, and drives a phased
startup that builds the storage, cache, and task-queue singletons.

Quick Start:
  lode run                        Start the engine and its workers
  lode index <url>...             Index pages one-shot and exit
  lode config show                Print the merged configuration
  lode config diff                Show changes since the previous run
  lode doctor                     Check configuration and state health`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", "",
		"configuration directory (default ~/.config/lode, or LODE_CONFIG_DIR)")
	rootCmd.PersistentFlags().String("config-file", "",
		"additional configuration file loaded after the directory")
	rootCmd.PersistentFlags().StringP("log-level", "l", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "",
		"log format (text, json)")

	cobra.CheckErr(viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir")))
	cobra.CheckErr(viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config-file")))
	cobra.CheckErr(viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format")))

	viper.SetEnvPrefix("LODE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// configDir resolves the configuration directory: flag, then
// LODE_CONFIG_DIR, then ~/.config/lode. A missing home directory just
// disables directory loading.
func configDir() string {
	if dir := viper.GetString("config_dir"); dir != "" {
		return expandHome(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lode")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
