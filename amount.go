package stableips

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseAmount converts a decimal string amount to smallest units at the given
// scale. Excess fractional digits are an error, not a truncation: a transfer
// must move exactly the amount the caller named.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	intPart, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer part: %s", parts[0])
	}

	decPart := new(big.Int)
	if len(parts) == 2 && parts[1] != "" {
		decStr := parts[1]
		if len(decStr) > decimals {
			return nil, fmt.Errorf("amount %s exceeds %d decimal places", amount, decimals)
		}
		decStr += strings.Repeat("0", decimals-len(decStr))

		decPart, ok = new(big.Int).SetString(decStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid decimal part: %s", parts[1])
		}
	}

	multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	result := new(big.Int).Mul(intPart, multiplier)
	if intPart.Sign() < 0 || strings.HasPrefix(parts[0], "-") {
		result.Sub(result, decPart)
	} else {
		result.Add(result, decPart)
	}

	return result, nil
}

// FormatAmount converts an amount in smallest units to a decimal string,
// trimming trailing zeros.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quotient, remainder := new(big.Int).DivMod(amount, divisor, new(big.Int))

	decStr := remainder.String()
	if len(decStr) < decimals {
		decStr = strings.Repeat("0", decimals-len(decStr)) + decStr
	}
	decStr = strings.TrimRight(decStr, "0")

	if decStr == "" {
		return quotient.String()
	}
	return quotient.String() + "." + decStr
}

// AmountScale counts the fractional digits of a decimal string. Trailing
// zeros count: "1.10" has scale 2.
func AmountScale(amount string) (int, error) {
	amount = strings.TrimSpace(amount)
	parts := strings.Split(amount, ".")
	switch len(parts) {
	case 1:
		return 0, nil
	case 2:
		return len(parts[1]), nil
	default:
		return 0, fmt.Errorf("invalid amount format: %s", amount)
	}
}
