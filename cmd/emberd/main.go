package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "emberd",
	Short:         "ember microVM manager daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetEnvPrefix("EMBER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "ember"))
	}
	viper.AddConfigPath("/etc/ember")

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// stateDir is where the registry and control sockets live by default.
func stateDir() string {
	if os.Geteuid() == 0 {
		return "/var/lib/ember"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/ember"
	}
	return filepath.Join(home, ".local", "state", "ember")
}
