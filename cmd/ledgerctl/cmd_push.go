package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"currency-ledger/internal/domain"
)

var cmdPush = &cobra.Command{
	Use:   "push",
	Short: "Push actions",
	Run:   printUsageAndExit1,
}

var cmdPushAction = &cobra.Command{
	Use:   "action <contract> <action> <json data>",
	Short: "Push an action to a contract",
	Args:  cobra.ExactArgs(3),
	Run:   pushAction,
}

var cmdIssue = &cobra.Command{
	Use:   "issue <contract> <to> <quantity> [memo]",
	Short: "Issue new tokens, authorized by the contract account",
	Args:  cobra.RangeArgs(3, 4),
	Run:   issue,
}

var cmdTransfer = &cobra.Command{
	Use:   "transfer <contract> <from> <to> <quantity> [memo]",
	Short: "Transfer tokens, authorized by the sender",
	Args:  cobra.RangeArgs(4, 5),
	Run:   transfer,
}

var flagPush struct {
	Permission string
}

func init() {
	cmdMain.AddCommand(cmdPush, cmdIssue, cmdTransfer)
	cmdPush.AddCommand(cmdPushAction)

	cmdPushAction.Flags().StringVarP(&flagPush.Permission, "permission", "p", "", "Authorizing permission, e.g. currency@active")
	_ = cmdPushAction.MarkFlagRequired("permission")
}

func pushAction(cmd *cobra.Command, args []string) {
	auth, err := domain.ParsePermission(flagPush.Permission)
	check(err)
	if !json.Valid([]byte(args[2])) {
		fatalf("action data is not valid JSON: %s", args[2])
	}

	act := domain.Action{
		Contract:      parseName(args[0]),
		Name:          domain.ActionName(args[1]),
		Authorization: auth,
		Data:          json.RawMessage(args[2]),
	}

	ctx, cancel := commandContext()
	defer cancel()

	receipt, err := newClient(cmd).PushAction(ctx, act)
	check(err)
	printJSON(receipt)
}

func issue(cmd *cobra.Command, args []string) {
	p := domain.IssuePayload{
		To:       parseName(args[1]),
		Quantity: parseAsset(args[2]),
	}
	if len(args) > 3 {
		p.Memo = args[3]
	}

	ctx, cancel := commandContext()
	defer cancel()

	receipt, err := newClient(cmd).Issue(ctx, parseName(args[0]), p)
	check(err)
	printJSON(receipt)
}

func transfer(cmd *cobra.Command, args []string) {
	p := domain.TransferPayload{
		From:     parseName(args[1]),
		To:       parseName(args[2]),
		Quantity: parseAsset(args[3]),
	}
	if len(args) > 4 {
		p.Memo = args[4]
	}

	ctx, cancel := commandContext()
	defer cancel()

	receipt, err := newClient(cmd).Transfer(ctx, parseName(args[0]), p)
	check(err)
	printJSON(receipt)
}
