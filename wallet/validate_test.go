package wallet

import (
	"errors"
	"testing"

	stableips "github.com/graphtrek/stableips-sub001"
)

func requireValidationCode(t *testing.T, err error, code string) {
	t.Helper()
	var ve *stableips.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if ve.Code != code {
		t.Fatalf("code = %q, want %q", ve.Code, code)
	}
}

func TestValidateTransferChecksAmountFirst(t *testing.T) {
	// recipient and token are broken too; the amount violation must win
	for _, amount := range []string{"", "0", "-1", "abc", "1.2.3", "0.0000000000000000001"} {
		_, err := ValidateTransfer("", amount, "DOGE")
		requireValidationCode(t, err, stableips.ErrCodeInvalidAmount)
	}
}

func TestValidateTransferRequiresRecipient(t *testing.T) {
	for _, recipient := range []string{"", "   ", "\t\n"} {
		_, err := ValidateTransfer(recipient, "1", "DOGE")
		requireValidationCode(t, err, stableips.ErrCodeMissingRecipient)
	}
}

func TestValidateTransferRejectsUnknownToken(t *testing.T) {
	for _, symbol := range []string{"DOGE", "", "US DC", "BTC"} {
		_, err := ValidateTransfer("rE8AB7Fs8QCFDB1H2HTehdGkXkgDX3dYEh", "1", symbol)
		requireValidationCode(t, err, stableips.ErrCodeUnsupportedToken)
	}
}

func TestValidateTransferResolvesTokenCaseInsensitively(t *testing.T) {
	cases := map[string]stableips.Token{
		"eth":       stableips.TokenETH,
		"Usdc":      stableips.TokenUSDC,
		"test-usdc": stableips.TokenTestUSDC,
		"TEST-EURC": stableips.TokenTestEURC,
		"xrp":       stableips.TokenXRP,
		"sol":       stableips.TokenSOL,
	}
	for symbol, want := range cases {
		recipient := "rE8AB7Fs8QCFDB1H2HTehdGkXkgDX3dYEh"
		if stableips.EvmToken(want) {
			recipient = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
		}
		token, err := ValidateTransfer(recipient, "1", symbol)
		if err != nil {
			t.Fatalf("symbol %q: %v", symbol, err)
		}
		if token != want {
			t.Fatalf("symbol %q resolved to %s, want %s", symbol, token, want)
		}
	}
}

func TestValidateTransferChecksEvmRecipients(t *testing.T) {
	// one checksum character off
	_, err := ValidateTransfer("0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "1", "USDC")
	requireValidationCode(t, err, stableips.ErrCodeInvalidEvmAddress)

	// not hex at all
	_, err = ValidateTransfer("rE8AB7Fs8QCFDB1H2HTehdGkXkgDX3dYEh", "1", "eth")
	requireValidationCode(t, err, stableips.ErrCodeInvalidEvmAddress)

	// all-lowercase skips the checksum
	if _, err := ValidateTransfer("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "1", "eth"); err != nil {
		t.Fatalf("lowercase address rejected: %v", err)
	}

	// surrounding whitespace is tolerated
	if _, err := ValidateTransfer("  0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed ", "1", "usdc"); err != nil {
		t.Fatalf("padded address rejected: %v", err)
	}
}

func TestValidateTransferLeavesOtherChainsToAdapters(t *testing.T) {
	if _, err := ValidateTransfer("not-an-xrp-address", "0.000001", "xrp"); err != nil {
		t.Fatalf("xrp recipient must not be pre-validated: %v", err)
	}
	if _, err := ValidateTransfer("not-a-solana-pubkey", "2", "sol"); err != nil {
		t.Fatalf("sol recipient must not be pre-validated: %v", err)
	}
}
