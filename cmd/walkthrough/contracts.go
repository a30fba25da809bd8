package main

import _ "embed"

// Sample currency contract deployed by the walkthrough.
var (
	//go:embed contracts/currency.wast
	currencyWast []byte

	//go:embed contracts/currency.abi
	currencyABI []byte
)
