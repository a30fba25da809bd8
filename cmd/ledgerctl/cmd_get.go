package main

import (
	"github.com/spf13/cobra"
)

var cmdGet = &cobra.Command{
	Use:   "get",
	Short: "Query chain state and history",
	Run:   printUsageAndExit1,
}

var cmdGetInfo = &cobra.Command{
	Use:   "info",
	Short: "Show the head block and counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := commandContext()
		defer cancel()

		info, err := newClient(cmd).GetInfo(ctx)
		check(err)
		printJSON(info)
	},
}

var cmdGetAccount = &cobra.Command{
	Use:   "account <name>",
	Short: "Show an account and its keys",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		acct, err := newClient(cmd).GetAccount(ctx, parseName(args[0]))
		check(err)
		printJSON(acct)
	},
}

var cmdGetCode = &cobra.Command{
	Use:   "code <name>",
	Short: "Show the code hash of an account; null when nothing is deployed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		code, err := newClient(cmd).GetCode(ctx, parseName(args[0]))
		check(err)
		printJSON(code)
	},
}

var cmdGetTable = &cobra.Command{
	Use:   "table <contract>",
	Short: "Show the balance table of a contract",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		rows, err := newClient(cmd).GetTableRows(ctx, parseName(args[0]), flagGet.Limit)
		check(err)
		printJSON(rows)
	},
}

var cmdGetBalance = &cobra.Command{
	Use:   "balance <contract> <account>",
	Short: "Show the balance of an account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		balance, err := newClient(cmd).GetCurrencyBalance(ctx, parseName(args[0]), parseName(args[1]))
		check(err)
		printJSON(balance)
	},
}

var cmdGetTransaction = &cobra.Command{
	Use:   "transaction <id>",
	Short: "Show a journaled transaction",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		tx, err := newClient(cmd).GetTransaction(ctx, args[0])
		check(err)
		printJSON(tx)
	},
}

var cmdGetActions = &cobra.Command{
	Use:   "actions <account>",
	Short: "List the actions authorized by an account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		actions, err := newClient(cmd).GetActions(ctx, parseName(args[0]))
		check(err)
		printJSON(actions)
	},
}

var cmdGetTransfers = &cobra.Command{
	Use:   "transfers <contract> <account>",
	Short: "List the transfers of a contract sent or received by an account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		transfers, err := newClient(cmd).GetTransfers(ctx, parseName(args[0]), parseName(args[1]))
		check(err)
		printJSON(transfers)
	},
}

var cmdGetVolume = &cobra.Command{
	Use:   "volume <contract>",
	Short: "Show issued and moved totals per symbol",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		volume, err := newClient(cmd).GetVolume(ctx, parseName(args[0]))
		check(err)
		printJSON(volume)
	},
}

var flagGet struct {
	Limit int
}

func init() {
	cmdMain.AddCommand(cmdGet)
	cmdGet.AddCommand(
		cmdGetInfo,
		cmdGetAccount,
		cmdGetCode,
		cmdGetTable,
		cmdGetBalance,
		cmdGetTransaction,
		cmdGetActions,
		cmdGetTransfers,
		cmdGetVolume,
	)

	cmdGetTable.Flags().IntVar(&flagGet.Limit, "limit", 0, "Maximum number of rows (0 for all)")
}
