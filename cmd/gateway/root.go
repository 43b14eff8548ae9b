package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaygate/gateway/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "RelayGate API gateway",
	Long: `RelayGate bridges synchronous HTTP requests to an asynchronous
message broker: it publishes each request, correlates the broker reply back
to the waiting HTTP client, and authenticates callers with bearer tokens.`,
	Version: "0.1.0",
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
