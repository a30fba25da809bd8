package domain

import (
	"fmt"
	"strings"
)

// MaxNameLength is the maximum number of symbols in an account name.
const MaxNameLength = 12

// nameCharset lists the symbols allowed in account names.
const nameCharset = ".12345abcdefghijklmnopqrstuvwxyz"

// SystemAccount is the genesis account that creates all others.
const SystemAccount Name = "eosio"

// Name is an account name such as "currency" or "eosio".
type Name string

// String returns the string representation of Name.
func (n Name) String() string {
	return string(n)
}

// Validate checks the charset and length rules.
func (n Name) Validate() error {
	s := string(n)
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(s) > MaxNameLength:
		return fmt.Errorf("%w: %q longer than %d symbols", ErrInvalidName, s, MaxNameLength)
	case strings.HasSuffix(s, "."):
		return fmt.Errorf("%w: %q ends with '.'", ErrInvalidName, s)
	}
	for _, r := range s {
		if !strings.ContainsRune(nameCharset, r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, s, r)
		}
	}
	return nil
}

// ParseName validates and returns s as a Name.
func ParseName(s string) (Name, error) {
	n := Name(s)
	if err := n.Validate(); err != nil {
		return "", err
	}
	return n, nil
}
