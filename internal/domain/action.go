package domain

import (
	"encoding/json"
	"fmt"
)

// ActionName identifies a contract action.
type ActionName string

const (
	ActionIssue    ActionName = "issue"
	ActionTransfer ActionName = "transfer"

	// System actions journaled by the chain on the SystemAccount contract.
	ActionNewAccount ActionName = "newaccount"
	ActionSetCode    ActionName = "setcode"
)

// String returns the string representation of ActionName.
func (a ActionName) String() string {
	return string(a)
}

// Action is a named operation on a contract authorized by one permission.
// Data holds the JSON payload.
type Action struct {
	Contract      Name            `json:"account"`
	Name          ActionName      `json:"name"`
	Authorization Permission      `json:"authorization"`
	Data          json.RawMessage `json:"data"`
}

// String formats the action as "contract::name".
func (a Action) String() string {
	return fmt.Sprintf("%s::%s", a.Contract, a.Name)
}

// IssuePayload is the data of an issue action.
type IssuePayload struct {
	To       Name   `json:"to"`
	Quantity Asset  `json:"quantity"`
	Memo     string `json:"memo"`
}

// TransferPayload is the data of a transfer action.
type TransferPayload struct {
	From     Name   `json:"from"`
	To       Name   `json:"to"`
	Quantity Asset  `json:"quantity"`
	Memo     string `json:"memo"`
}

// NewAccountPayload is the data of a journaled account creation.
type NewAccountPayload struct {
	Creator   Name   `json:"creator"`
	Name      Name   `json:"name"`
	OwnerKey  string `json:"owner"`
	ActiveKey string `json:"active"`
}

// SetCodePayload is the data of a journaled contract deployment.
type SetCodePayload struct {
	Account  Name   `json:"account"`
	CodeHash string `json:"code_hash"`
	ABIHash  string `json:"abi_hash"`
}

// NewAction encodes payload as the action data.
func NewAction(contract Name, name ActionName, auth Permission, payload any) (Action, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("encode %s::%s payload: %w", contract, name, err)
	}
	return Action{Contract: contract, Name: name, Authorization: auth, Data: data}, nil
}
