package wallet

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/ledger"
	"github.com/graphtrek/stableips-sub001/registry"
)

// InitiateTransfer validates the request, routes it to the owning chain
// adapter, blocks until the chain returns a transaction hash, and appends
// the PENDING ledger entry. A failed submission writes nothing.
func (s *Service) InitiateTransfer(ctx context.Context, userID uint64, recipient, amount, symbol string) (*ledger.Entry, error) {
	token, err := ValidateTransfer(recipient, amount, symbol)
	if err != nil {
		return nil, err
	}
	recipient = strings.TrimSpace(recipient)
	amount = strings.TrimSpace(amount)

	u, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}

	adapter, key := s.route(token, u)
	hash, err := adapter.Transfer(ctx, key, recipient, amount, token)
	if err != nil {
		s.log.Warn("transfer submission failed",
			zap.Uint64("user_id", u.ID),
			zap.String("token", string(token)),
			zap.Error(err))
		return nil, err
	}

	entry, err := s.entries.Append(&ledger.Entry{
		UserID:    u.ID,
		Recipient: recipient,
		Amount:    amount,
		Token:     token,
		Network:   adapter.Network(),
		TxHash:    hash,
		Status:    stableips.StatusPending,
		Type:      stableips.EntryTransfer,
	})
	if err != nil {
		s.log.Error("submitted transfer could not be recorded",
			zap.Uint64("user_id", u.ID),
			zap.String("tx_hash", hash),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record transfer %s: %w", hash, err)
	}

	s.log.Info("transfer submitted",
		zap.Uint64("entry_id", entry.ID),
		zap.Uint64("user_id", u.ID),
		zap.String("token", string(token)),
		zap.String("tx_hash", hash))
	return entry, nil
}

// route picks the adapter and user credential for a token: SOL to Solana,
// XRP to the XRP Ledger, every other supported token to the EVM chain.
func (s *Service) route(token stableips.Token, u *registry.User) (stableips.ChainAdapter, string) {
	switch token {
	case stableips.TokenSOL:
		return s.sol, u.SolanaSecretKeyB64
	case stableips.TokenXRP:
		return s.xrp, u.XrpSeedHex
	default:
		return s.evm, u.EvmPrivateKeyHex
	}
}
