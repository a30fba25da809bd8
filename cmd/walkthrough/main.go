// Command walkthrough deploys the sample currency contract, issues the
// currency and makes a first transfer, narrating every step.
//
// Without --url it runs against a fresh in-process node.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"currency-ledger/internal/api"
	"currency-ledger/internal/chain"
	"currency-ledger/internal/daemon"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/logging"
)

var cmdMain = &cobra.Command{
	Use:   "walkthrough",
	Short: "Currency contract walkthrough",
	Args:  cobra.NoArgs,
	Run:   runWalkthrough,
}

var flagMain struct {
	URL        string
	EosioKey   string
	WalletName string
	Verbose    bool
}

func init() {
	cmdMain.Flags().StringVar(&flagMain.URL, "url", "", "API base URL of a running node; the node is reset (default an in-process node)")
	cmdMain.Flags().StringVar(&flagMain.EosioKey, "eosio-key", chain.DevGenesisKey().Private.String(), "Private key of the eosio account")
	cmdMain.Flags().StringVar(&flagMain.WalletName, "wallet-name", "wallet", "Wallet of the in-process node")
	cmdMain.Flags().BoolVarP(&flagMain.Verbose, "verbose", "v", false, "Log node activity to stderr")
}

func main() {
	_ = cmdMain.Execute()
}

func runWalkthrough(_ *cobra.Command, _ []string) {
	check(walk())
}

func walk() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eosioKey, err := keys.ParsePrivateKey(flagMain.EosioKey)
	if err != nil {
		return fmt.Errorf("eosio key: %w", err)
	}

	w := &walkthrough{out: os.Stdout, eosioKey: eosioKey}

	if flagMain.URL != "" {
		w.client = api.NewClient(flagMain.URL)
	} else {
		logger := zerolog.Nop()
		if flagMain.Verbose {
			logger, err = logging.New(os.Stderr, logging.FormatPlain, "debug")
			if err != nil {
				return err
			}
		}

		node := daemon.New(daemon.Config{
			ListenAddr: "127.0.0.1:0",
			WalletName: flagMain.WalletName,
			Genesis:    eosioKey.Public(),
			Logger:     &logger,
		})
		if err := node.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			node.Stop(stopCtx)
		}()

		w.client = api.NewClient(node.URL())
		w.state = node.String()
	}

	return w.run(ctx)
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
