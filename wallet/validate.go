package wallet

import (
	"fmt"
	"strings"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/chains/evm"
)

// maxAmountScale bounds the decimal places accepted at the gate. The chain
// adapters re-check against their own token scale at submit time.
const maxAmountScale = 18

// ValidateTransfer screens transfer inputs before any chain work. Checks run
// in a fixed order and the first violation wins: amount, recipient, token,
// then recipient format for EVM-family tokens. XRP and SOL recipients are
// left to their adapters.
func ValidateTransfer(recipient, amount, symbol string) (stableips.Token, error) {
	units, err := stableips.ParseAmount(amount, maxAmountScale)
	if err != nil || units.Sign() <= 0 {
		return "", stableips.NewValidationError(stableips.ErrCodeInvalidAmount,
			"amount must be a positive decimal with at most 18 places",
			map[string]interface{}{"amount": amount})
	}

	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return "", stableips.NewValidationError(stableips.ErrCodeMissingRecipient,
			"recipient is required", nil)
	}

	token, ok := stableips.ParseToken(symbol)
	if !ok {
		return "", stableips.NewValidationError(stableips.ErrCodeUnsupportedToken,
			fmt.Sprintf("token %q is not supported", symbol), nil)
	}

	if stableips.EvmToken(token) {
		if err := evm.ValidateAddress(trimmed); err != nil {
			return "", err
		}
	}

	return token, nil
}
