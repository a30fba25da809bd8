package domain

import (
	"errors"

	"currency-ledger/internal/keys"
)

// Ledger errors. Every failure leaves registry and table state unchanged.
var (
	// ErrDuplicateAccount is returned when creating an account whose name is taken.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrInvalidName is returned when an account name violates the charset or length rules.
	ErrInvalidName = errors.New("invalid account name")

	// ErrUnknownAccount is returned when a named account does not exist.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrAuthorization is returned when the wallet does not hold the key required by a permission.
	ErrAuthorization = errors.New("missing authority")

	// ErrUnknownKey is returned when signing with a key the wallet does not hold.
	ErrUnknownKey = errors.New("unknown key")

	// ErrDuplicateKey is returned when importing a key the wallet already holds.
	ErrDuplicateKey = errors.New("key already imported")

	// ErrInsufficientBalance is returned when a debit would make a balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSymbolMismatch is returned when an asset symbol differs from the table symbol.
	ErrSymbolMismatch = errors.New("symbol mismatch")

	// ErrInvalidQuantity is returned for non-positive or overflowing quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidAsset is returned when an asset string cannot be parsed.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrInvalidPermission is returned when a permission string cannot be parsed.
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrUnknownContract is returned when an action targets an account without deployed code.
	ErrUnknownContract = errors.New("unknown contract")

	// ErrUnknownAction is returned when a contract does not implement an action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidPayload is returned when action data cannot be decoded.
	ErrInvalidPayload = errors.New("invalid action data")

	// ErrInvalidKey is returned when a key cannot be decoded.
	ErrInvalidKey = keys.ErrInvalidKey
)

// errorKinds maps each sentinel to the kind name carried across the API.
var errorKinds = []struct {
	kind string
	err  error
}{
	{"duplicate_account", ErrDuplicateAccount},
	{"invalid_name", ErrInvalidName},
	{"unknown_account", ErrUnknownAccount},
	{"authorization", ErrAuthorization},
	{"unknown_key", ErrUnknownKey},
	{"duplicate_key", ErrDuplicateKey},
	{"insufficient_balance", ErrInsufficientBalance},
	{"symbol_mismatch", ErrSymbolMismatch},
	{"invalid_quantity", ErrInvalidQuantity},
	{"invalid_asset", ErrInvalidAsset},
	{"invalid_permission", ErrInvalidPermission},
	{"unknown_contract", ErrUnknownContract},
	{"unknown_action", ErrUnknownAction},
	{"invalid_payload", ErrInvalidPayload},
	{"invalid_key", ErrInvalidKey},
}

// ErrorKind returns the kind name of the first sentinel err wraps, or "" if none.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// ErrorForKind returns the sentinel for a kind name, or nil if the kind is unknown.
func ErrorForKind(kind string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
