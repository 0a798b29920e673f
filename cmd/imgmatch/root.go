// Package main implements the imgmatch command-line interface. It resolves
// arbitrary container image references to their closest equivalents in the
// Chainguard catalog, including version-tag resolution.
//
// The main command is:
//   - match: resolve a file of image references and write the results
//
// See the help output for flag details.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

// Global flag variables
var (
	cfgFile      string
	debugEnabled bool
	logLevel     string
)

// AppFs defines the filesystem interface to use, allows mocking in tests.
var AppFs = afero.NewOsFs()

// SetFs replaces the current filesystem with the provided one and returns a
// function to restore it. This is primarily used for testing.
func SetFs(newFs afero.Fs) func() {
	oldFs := AppFs
	AppFs = newFs
	return func() { AppFs = oldFs }
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imgmatch",
	Short: "Match container images to their Chainguard catalog equivalents",
	Long: `imgmatch resolves arbitrary container image references to equivalent
images in the Chainguard catalog.

It combines manual override tables, the maintained catalog mapping, heuristic
candidate generation with live registry verification, and an optional fuzzy
matching capability, then resolves an appropriate version tag for each match.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level := log.LevelInfo
		if debugEnabled {
			level = log.LevelDebug
		} else if logLevel != "" {
			parsed, err := log.ParseLevel(logLevel)
			if err != nil {
				log.Warn("invalid log level, using default", "level", logLevel, "error", err)
			} else {
				level = parsed
			}
		}
		log.SetLevel(level)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return fmt.Errorf("unknown command %q", args[0])
	},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.imgmatch.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugEnabled, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "set log level (debug, info, warn, error)")

	rootCmd.AddCommand(newMatchCmd())
}

// initConfig reads in the config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.SetConfigName(".imgmatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(home)
	}

	viper.SetEnvPrefix("IMGMATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug("using config file", "path", viper.ConfigFileUsed())
	}
}

// getRootCmd is useful for testing
func getRootCmd() *cobra.Command {
	return rootCmd
}
