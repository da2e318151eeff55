package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"basket/internal/config"
	"basket/pkg/basket"
)

var (
	serverURL string
	cfgPath   string
)

var rootCmd = &cobra.Command{
	Use:   "basket-cli",
	Short: "Command-line client for the basket backtest service",
	Long: `basket-cli runs portfolio backtests and searches the stock catalogue.

By default every command talks to a running basket-server. "run --local"
executes the backtest in-process using the configured price provider.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	defaultConfig := "config/basket.yaml"
	if p := os.Getenv("BASKET_CONFIG"); p != "" {
		defaultConfig = p
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8463", "basket-server base URL")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfig, "config file used by --local runs")
}

func newClient() *basket.Client {
	return basket.NewClient(serverURL)
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(cfgPath)
}
