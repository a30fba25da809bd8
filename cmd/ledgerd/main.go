// Command ledgerd runs a currency ledger node.
//
// Settings come from flags, LEDGER_* environment variables, an optional .env
// file and an optional TOML file:
//
//	ledgerd --listen-addr 127.0.0.1:8888 --wallet-path wallet.db
//	ledgerd config > ledger.toml
//	ledgerd --config ledger.toml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"currency-ledger/internal/config"
	"currency-ledger/internal/daemon"
)

const shutdownTimeout = 30 * time.Second

var cmdMain = &cobra.Command{
	Use:   "ledgerd",
	Short: "Currency ledger node",
	Args:  cobra.NoArgs,
	Run:   runNode,
}

var cmdConfig = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as TOML",
	Args:  cobra.NoArgs,
	Run:   printConfig,
}

func init() {
	config.BindFlags(cmdMain.PersistentFlags())
	cmdMain.AddCommand(cmdConfig)
}

func main() {
	_ = cmdMain.Execute()
}

func printConfig(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(cmd.Flags())
	check(err)
	check(config.Store(os.Stdout, cfg))
}

func runNode(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(cmd.Flags())
	check(err)

	logger, err := cfg.Logger(os.Stderr)
	check(err)

	dcfg, err := cfg.Daemon(&logger)
	check(err)

	node := daemon.New(dcfg)
	if err := node.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to start node")
	}
	logger.Info().Msg(node.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case serveErr = <-node.Done():
		logger.Error().Err(serveErr).Msg("api server exited")
	}

	done := make(chan struct{})
	go func() {
		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error().Dur("timeout", shutdownTimeout).Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = node.Stop(ctx)
	close(done)

	if err != nil || serveErr != nil {
		logger.Error().Err(err).Msg("shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func check(err error) {
	if err != nil {
		fatalf("%v", err)
	}
}
