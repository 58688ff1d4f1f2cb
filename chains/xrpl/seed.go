package xrpl

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	ripplecrypto "github.com/rubblelabs/ripple/crypto"

	stableips "github.com/graphtrek/stableips-sub001"
)

var hex32Pattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// DecodeSeed parses persisted XRP seed material into the 16 bytes of ED25519
// entropy it encodes. Two forms are accepted: an 's'-prefixed family seed
// and 32 hex characters. Two legacy corruptions are recognized and rejected
// with a regeneration hint, because they carry no recoverable entropy: a
// classic 'r' address stored in the seed column, and the string form of a
// destroyed seed object ("Seed{...}").
func DecodeSeed(material string) ([]byte, error) {
	material = strings.TrimSpace(material)
	switch {
	case strings.HasPrefix(material, "Seed{"):
		return nil, stableips.NewKeyFormatError(stableips.ErrCodeRegenerateWallet,
			"stored XRP seed is a serialized seed object with no recoverable entropy; regenerate the wallet")

	case strings.HasPrefix(material, "s"):
		hash, err := ripplecrypto.NewRippleHashCheck(material, ripplecrypto.RIPPLE_FAMILY_SEED)
		if err != nil {
			return nil, stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
				fmt.Sprintf("seed material is not a valid family seed: %s", err))
		}
		entropy := hash.Payload()
		if len(entropy) != 16 {
			return nil, stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
				fmt.Sprintf("family seed payload is %d bytes, want 16", len(entropy)))
		}
		return entropy, nil

	case hex32Pattern.MatchString(material):
		entropy, err := hex.DecodeString(material)
		if err != nil {
			return nil, stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
				"seed material is not valid hex")
		}
		return entropy, nil

	case strings.HasPrefix(material, "r"):
		return nil, stableips.NewKeyFormatError(stableips.ErrCodeRegenerateWallet,
			"stored XRP seed is a classic address, not a seed; regenerate the wallet")

	default:
		return nil, stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
			"unrecognized XRP seed material")
	}
}

// EncodeSeed renders entropy as an 's'-prefixed family seed. It is the
// inverse of DecodeSeed for the family-seed form.
func EncodeSeed(entropy []byte) (string, error) {
	if len(entropy) != 16 {
		return "", fmt.Errorf("xrpl: seed entropy is %d bytes, want 16", len(entropy))
	}
	hash, err := ripplecrypto.NewFamilySeed(entropy)
	if err != nil {
		return "", fmt.Errorf("xrpl: encode family seed: %w", err)
	}
	return hash.String(), nil
}
