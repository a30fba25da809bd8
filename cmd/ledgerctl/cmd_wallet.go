package main

import (
	"github.com/spf13/cobra"

	"currency-ledger/internal/api"
	"currency-ledger/internal/keys"
)

var cmdWallet = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the node wallet",
	Run:   printUsageAndExit1,
}

var cmdWalletImport = &cobra.Command{
	Use:   "import <private key>",
	Short: "Import a private key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		priv, err := keys.ParsePrivateKey(args[0])
		check(err)

		ctx, cancel := commandContext()
		defer cancel()

		pub, err := newClient(cmd).ImportKey(ctx, priv)
		check(err)
		printJSON(api.KeyResponse{PublicKey: pub})
	},
}

var cmdWalletKeys = &cobra.Command{
	Use:   "keys",
	Short: "List the public keys of the wallet",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := commandContext()
		defer cancel()

		list, err := newClient(cmd).ListKeys(ctx)
		check(err)
		printJSON(list)
	},
}

func init() {
	cmdMain.AddCommand(cmdWallet)
	cmdWallet.AddCommand(cmdWalletImport, cmdWalletKeys)
}
