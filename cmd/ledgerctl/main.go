// Command ledgerctl talks to a ledger node over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"currency-ledger/internal/api"
	"currency-ledger/internal/config"
	"currency-ledger/internal/domain"
)

var cmdMain = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Command line client of a currency ledger node",
	Run:   printUsageAndExit1,
}

func init() {
	config.BindClientFlags(cmdMain.PersistentFlags())
}

func main() {
	_ = cmdMain.Execute()
}

func printUsageAndExit1(cmd *cobra.Command, _ []string) {
	_ = cmd.Usage()
	os.Exit(1)
}

// newClient builds a client for the configured node URL.
func newClient(cmd *cobra.Command) *api.Client {
	cfg, err := config.Load(cmd.Flags())
	check(err)
	return api.NewClient(cfg.Node.URL)
}

// commandContext is cancelled by SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseName(s string) domain.Name {
	name, err := domain.ParseName(s)
	check(err)
	return name
}

func parseAsset(s string) domain.Asset {
	asset, err := domain.ParseAsset(s)
	check(err)
	return asset
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	check(err)
	fmt.Println(string(b))
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
