package evm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	stableips "github.com/graphtrek/stableips-sub001"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAddress checks an EVM recipient: 0x prefix, 40 hex digits, and the
// EIP-55 checksum whenever the hex carries mixed case. All-lower or all-upper
// hex makes no checksum claim and passes without one.
func ValidateAddress(addr string) error {
	if !addressPattern.MatchString(addr) {
		return stableips.NewValidationError(stableips.ErrCodeInvalidEvmAddress,
			fmt.Sprintf("recipient %q is not a 0x-prefixed 20-byte hex address", addr), nil)
	}
	hexPart := addr[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return nil
	}
	if common.HexToAddress(addr).Hex() != addr {
		return stableips.NewValidationError(stableips.ErrCodeInvalidEvmAddress,
			fmt.Sprintf("recipient %q fails its EIP-55 checksum", addr), nil)
	}
	return nil
}
