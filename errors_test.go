package stableips

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMessageFormatting(t *testing.T) {
	err := NewValidationError(ErrCodeUnsupportedToken, "token DOGE is not supported", nil)
	expected := "unsupported_token: token DOGE is not supported"
	if err.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, err.Error())
	}
}

func TestKeyFormatErrorClassification(t *testing.T) {
	base := NewKeyFormatError(ErrCodeRegenerateWallet, "stored seed is a legacy address; regenerate the XRP wallet")
	wrapped := fmt.Errorf("sign payment: %w", base)

	var kfe *KeyFormatError
	if !errors.As(wrapped, &kfe) {
		t.Fatal("expected KeyFormatError to be recoverable through wrapping")
	}
	if kfe.Code != ErrCodeRegenerateWallet {
		t.Fatalf("expected code %q, got %q", ErrCodeRegenerateWallet, kfe.Code)
	}
}

func TestBalanceErrorMessageFormatting(t *testing.T) {
	err := NewBalanceError("2.5", "10", TokenUSDC)
	expected := "insufficient balance: have 2.5, need 10 USDC"
	if err.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, err.Error())
	}
}

func TestNetworkErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError(NetworkSolana, "getTransaction", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected NetworkError to unwrap to its cause")
	}
	expected := "SOLANA getTransaction: connection refused"
	if err.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, err.Error())
	}

	bare := NewNetworkError(NetworkEthereum, "eth_blockNumber", nil)
	expected = "ETHEREUM eth_blockNumber failed"
	if bare.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, bare.Error())
	}
}

func TestConfigAndNotFoundErrorFormatting(t *testing.T) {
	cfg := NewConfigError("evm.funding.privateKey", "required for test-token minting")
	if cfg.Error() != "configuration evm.funding.privateKey: required for test-token minting" {
		t.Fatalf("unexpected config error text: %q", cfg.Error())
	}

	nf := NewNotFoundError("user", "42")
	if nf.Error() != "user not found: 42" {
		t.Fatalf("unexpected not-found error text: %q", nf.Error())
	}
}
