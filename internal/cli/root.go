// Package cli implements the bft command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/relab/bft/internal/config"
	"github.com/relab/bft/logging"
)

// rootCmd represents the base command when called without any subcommands
var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "bft",
		Short: "A command-line utility for exploring the consensus liveness core.",
		Long: `bft runs the pacemaker, proposer election and epoch manager of the consensus core.

To run validators on an in-process simulated network, use the 'bft simulate' command.
To print the leader schedule of a validator set, use the 'bft leaders' command.
Use 'bft help simulate' to view all possible parameters for a command.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bft.yaml)")

	rootCmd.PersistentFlags().String("log-level", "info", "sets the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSlice("log-pkgs", []string{}, "set the log level on a per-package basis, e.g. pacemaker=debug")
	rootCmd.PersistentFlags().String("log-file", "", "write JSON logs to a rotated file instead of stderr")

	rootCmd.PersistentFlags().Int("nodes", 4, "number of nodes")
	rootCmd.PersistentFlags().Int("validators", 0, "number of validators in each epoch (default is all nodes)")
	rootCmd.PersistentFlags().IntSlice("powers", []int{1}, "voting powers, assigned to the validators in key order")
	rootCmd.PersistentFlags().String("leader-rotation", "round-robin", "name of the leader rotation algorithm")
	rootCmd.PersistentFlags().Int("cache-size", 10, "number of leaders cached by the weighted election")
	rootCmd.PersistentFlags().Uint64("period-bound", 10_000, "longest rotation period the weighted election verifies")
	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".bft" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".bft")
	}

	viper.SetEnvPrefix("bft")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	level := viper.GetString("log-level")
	if _, err := logging.ParseLevel(level); err != nil {
		cobra.CheckErr(err)
	}
	logging.SetLogLevel(level)
	cobra.CheckErr(logging.SetPackageLogLevels(viper.GetStringSlice("log-pkgs")))
}

func newLogger(cfg *config.Config, name string) logging.Logger {
	if cfg.LogFile == "" {
		return logging.New(name)
	}
	return logging.NewWithFile(cfg.LogFile, logging.FileOptions{MaxSizeMB: 100, MaxBackups: 3, Compress: true}, name)
}
