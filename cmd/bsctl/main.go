// Command bsctl is a small shell harness over the block manager and the
// persistent container library: opening a file, driving GC steps by
// hand, and exercising a string list rooted at the file's root block.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "bsctl",
	Short: "Inspect and drive a persistent block store file",
	Long: `bsctl - Block Store Control

A command-line harness over the block manager: open a store file, step
its incremental garbage collector, and exercise the string list container
rooted at the file's root block.

Examples:
  bsctl open ./store.db
  bsctl gc ./store.db --until-idle
  bsctl list push-back ./store.db hello
  bsctl list show ./store.db
  bsctl stat ./store.db`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.bsctl.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfg, _ := rootCmd.PersistentFlags().GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".bsctl")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("BSCTL")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
