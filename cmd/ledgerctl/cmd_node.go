package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"currency-ledger/internal/api"
)

var cmdNode = &cobra.Command{
	Use:   "node",
	Short: "Node maintenance",
	Run:   printUsageAndExit1,
}

var cmdNodeReset = &cobra.Command{
	Use:   "reset",
	Short: "Return the node to genesis; wallet keys are kept",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := commandContext()
		defer cancel()

		info, err := newClient(cmd).Reset(ctx)
		check(err)
		printJSON(info)
	},
}

var cmdNodeHealth = &cobra.Command{
	Use:   "health",
	Short: "Check that the node is serving",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := commandContext()
		defer cancel()

		client := newClient(cmd)
		check(client.Health(ctx))
		fmt.Printf("%s is healthy\n", client.BaseURL())
	},
}

var cmdWatch = &cobra.Command{
	Use:   "watch",
	Short: "Stream committed actions until interrupted",
	Args:  cobra.NoArgs,
	Run:   watch,
}

func init() {
	cmdMain.AddCommand(cmdNode, cmdWatch)
	cmdNode.AddCommand(cmdNodeReset, cmdNodeHealth)
}

func watch(cmd *cobra.Command, _ []string) {
	ctx, cancel := commandContext()
	defer cancel()

	feed, err := api.NewFeedClient(ctx, newClient(cmd).BaseURL(), nil)
	check(err)
	defer feed.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-feed.Notifications():
			if !ok {
				return
			}
			printJSON(n)
		}
	}
}
