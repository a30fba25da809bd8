package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AssetPrecision is the number of implied decimal places in an Asset amount.
const AssetPrecision = 4

// MaxSymbolLength is the maximum length of an asset symbol.
const MaxSymbolLength = 7

const precisionScale = 10000 // 10^AssetPrecision

// Asset is a fixed-point quantity tagged with a symbol.
// Amount counts 1/10^AssetPrecision units: "1000.0000 CUR" has Amount 10000000.
type Asset struct {
	Amount uint64
	Symbol string
}

// NewAsset returns an asset with the given raw amount.
func NewAsset(amount uint64, symbol string) Asset {
	return Asset{Amount: amount, Symbol: symbol}
}

// String formats the asset as "1000.0000 CUR".
func (a Asset) String() string {
	return fmt.Sprintf("%d.%0*d %s", a.Amount/precisionScale, AssetPrecision, a.Amount%precisionScale, a.Symbol)
}

// IsZero reports whether the amount is zero.
func (a Asset) IsZero() bool {
	return a.Amount == 0
}

// Add returns a+b. Fails on symbol mismatch or overflow.
func (a Asset) Add(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}
	if a.Amount > math.MaxUint64-b.Amount {
		return Asset{}, fmt.Errorf("%w: %s + %s overflows", ErrInvalidQuantity, a, b)
	}
	return Asset{Amount: a.Amount + b.Amount, Symbol: a.Symbol}, nil
}

// Sub returns a-b. Fails on symbol mismatch or when b exceeds a.
func (a Asset) Sub(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}
	if b.Amount > a.Amount {
		return Asset{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, a, b)
	}
	return Asset{Amount: a.Amount - b.Amount, Symbol: a.Symbol}, nil
}

// ValidateSymbol checks that s is 1..7 uppercase letters.
func ValidateSymbol(s string) error {
	if s == "" || len(s) > MaxSymbolLength {
		return fmt.Errorf("%w: symbol %q must be 1-%d letters", ErrInvalidAsset, s, MaxSymbolLength)
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: symbol %q must be uppercase A-Z", ErrInvalidAsset, s)
		}
	}
	return nil
}

// ParseAsset parses "1000.0000 CUR". The fraction may have fewer than
// AssetPrecision digits; a negative amount fails with ErrInvalidQuantity.
func ParseAsset(s string) (Asset, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Asset{}, fmt.Errorf("%w: %q must be \"<amount> <symbol>\"", ErrInvalidAsset, s)
	}
	amount, symbol := fields[0], fields[1]
	if err := ValidateSymbol(symbol); err != nil {
		return Asset{}, err
	}
	if strings.HasPrefix(amount, "-") {
		return Asset{}, fmt.Errorf("%w: negative amount %s", ErrInvalidQuantity, amount)
	}

	whole, frac, hasFrac := strings.Cut(amount, ".")
	if whole == "" || (hasFrac && frac == "") {
		return Asset{}, fmt.Errorf("%w: malformed amount %q", ErrInvalidAsset, amount)
	}
	if len(frac) > AssetPrecision {
		return Asset{}, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAsset, amount, AssetPrecision)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return Asset{}, fmt.Errorf("%w: malformed amount %q", ErrInvalidAsset, amount)
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil || w > math.MaxUint64/precisionScale {
		return Asset{}, fmt.Errorf("%w: amount %s out of range", ErrInvalidQuantity, amount)
	}
	var f uint64
	if frac != "" {
		f, _ = strconv.ParseUint(frac+strings.Repeat("0", AssetPrecision-len(frac)), 10, 64)
	}
	units := w * precisionScale
	if units > math.MaxUint64-f {
		return Asset{}, fmt.Errorf("%w: amount %s out of range", ErrInvalidQuantity, amount)
	}
	return Asset{Amount: units + f, Symbol: symbol}, nil
}

// MustParseAsset is ParseAsset for constants and tests.
func MustParseAsset(s string) Asset {
	a, err := ParseAsset(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Asset) UnmarshalText(b []byte) error {
	v, err := ParseAsset(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
