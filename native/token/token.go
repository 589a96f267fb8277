package token

import (
	"errors"
	"strings"
)

// DenomUNIT is the accepted-payment stablecoin denomination. Amounts are
// expressed in its smallest indivisible unit.
const (
	DenomUNIT = "UNIT"
	Decimals  = 6
)

var ErrInvalidDenom = errors.New("token: invalid denomination")

// Normalize canonicalises a denomination identifier and rejects anything the
// ledger does not custody.
func Normalize(denom string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(denom))
	if normalized != DenomUNIT {
		return "", ErrInvalidDenom
	}
	return normalized, nil
}
