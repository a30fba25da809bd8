package domain

import (
	"fmt"

	"currency-ledger/internal/keys"
)

// Account is a named identity with owner and active authorities.
type Account struct {
	Name      Name           `json:"account_name"`
	OwnerKey  keys.PublicKey `json:"owner_key"`
	ActiveKey keys.PublicKey `json:"active_key"`
	Creator   Name           `json:"creator"`
	CreatedAt int64          `json:"created_at"` // Unix timestamp in milliseconds
}

// AuthorityKey returns the key required by the given level.
func (a Account) AuthorityKey(level Level) (keys.PublicKey, error) {
	switch level {
	case LevelOwner:
		return a.OwnerKey, nil
	case LevelActive:
		return a.ActiveKey, nil
	default:
		return keys.PublicKey{}, fmt.Errorf("%w: unknown level %q", ErrInvalidPermission, level)
	}
}
