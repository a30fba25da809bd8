package main

import (
	"crypto/rand"
	"os"

	"github.com/spf13/cobra"

	"currency-ledger/internal/api"
	"currency-ledger/internal/keys"
)

var cmdCreate = &cobra.Command{
	Use:   "create",
	Short: "Create keys and accounts",
	Run:   printUsageAndExit1,
}

var cmdCreateKey = &cobra.Command{
	Use:   "key",
	Short: "Create a key pair in the node wallet",
	Args:  cobra.NoArgs,
	Run:   createKey,
}

var cmdCreateAccount = &cobra.Command{
	Use:   "account <creator> <name> <owner key> [active key]",
	Short: "Create an account; the active key defaults to the owner key",
	Args:  cobra.RangeArgs(3, 4),
	Run:   createAccount,
}

var flagCreateKey struct {
	Local bool
}

func init() {
	cmdMain.AddCommand(cmdCreate)
	cmdCreate.AddCommand(cmdCreateKey, cmdCreateAccount)

	cmdCreateKey.Flags().BoolVar(&flagCreateKey.Local, "local", false, "Generate the pair locally and print both keys without calling the node")
}

func createKey(cmd *cobra.Command, _ []string) {
	if flagCreateKey.Local {
		pair, err := keys.Generate(rand.Reader)
		check(err)
		printJSON(map[string]string{
			"private_key": pair.Private.String(),
			"public_key":  pair.Public.String(),
		})
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	pub, err := newClient(cmd).CreateKey(ctx)
	check(err)
	printJSON(api.KeyResponse{PublicKey: pub})
}

func createAccount(cmd *cobra.Command, args []string) {
	owner, err := keys.ParsePublicKey(args[2])
	check(err)
	active := owner
	if len(args) > 3 {
		active, err = keys.ParsePublicKey(args[3])
		check(err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	resp, err := newClient(cmd).CreateAccount(ctx, api.CreateAccountRequest{
		Creator: parseName(args[0]),
		Name:    parseName(args[1]),
		Owner:   owner,
		Active:  active,
	})
	check(err)
	printJSON(resp)
}

var cmdSet = &cobra.Command{
	Use:   "set",
	Short: "Deploy contracts",
	Run:   printUsageAndExit1,
}

var cmdSetContract = &cobra.Command{
	Use:   "contract <account> <code file> [abi file]",
	Short: "Deploy contract code and ABI to an account",
	Args:  cobra.RangeArgs(2, 3),
	Run:   setContract,
}

func init() {
	cmdMain.AddCommand(cmdSet)
	cmdSet.AddCommand(cmdSetContract)
}

func setContract(cmd *cobra.Command, args []string) {
	account := parseName(args[0])
	code, err := os.ReadFile(args[1])
	check(err)
	var abi []byte
	if len(args) > 2 {
		abi, err = os.ReadFile(args[2])
		check(err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	resp, err := newClient(cmd).SetContract(ctx, account, code, abi)
	check(err)
	printJSON(resp)
}
