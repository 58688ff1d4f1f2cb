package wallet

import (
	"context"
	"time"

	"go.uber.org/zap"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/ledger"
	"github.com/graphtrek/stableips-sub001/registry"
)

// testTokenAmount is the fixed mint size for each test-token request.
const testTokenAmount = "1000"

// RecordFunding writes the ledger entry for a system-initiated credit. A
// non-empty hash records as CONFIRMED, anything else as FAILED. Funding is
// never PENDING, so the monitor never revisits it.
func (s *Service) RecordFunding(userID uint64, recipient, amount string, token stableips.Token, network stableips.Network, txHash string, entryType stableips.EntryType) (*ledger.Entry, error) {
	status := stableips.StatusFailed
	if txHash != "" {
		status = stableips.StatusConfirmed
	}
	return s.entries.Append(&ledger.Entry{
		UserID:    userID,
		Recipient: recipient,
		Amount:    amount,
		Token:     token,
		Network:   network,
		TxHash:    txHash,
		Status:    status,
		Type:      entryType,
	})
}

// recordFundingOutcome records a funding attempt, logging the adapter error
// instead of propagating it. The returned error is a store failure only.
func (s *Service) recordFundingOutcome(userID uint64, recipient, amount string, token stableips.Token, network stableips.Network, txHash string, entryType stableips.EntryType, cause error) (*ledger.Entry, error) {
	if cause != nil {
		s.log.Warn("funding failed",
			zap.Uint64("user_id", userID),
			zap.String("token", string(token)),
			zap.String("type", string(entryType)),
			zap.Error(cause))
	}
	entry, err := s.RecordFunding(userID, recipient, amount, token, network, txHash, entryType)
	if err != nil {
		s.log.Error("funding entry not recorded",
			zap.Uint64("user_id", userID),
			zap.String("token", string(token)),
			zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// fundNewUser drips starter balances onto a fresh user's EVM and XRP
// addresses. Solana is left unfunded at creation; the airdrop verb covers it
// on demand.
func (s *Service) fundNewUser(ctx context.Context, u *registry.User) {
	if s.funding.EVMPrivateKey == "" {
		s.log.Info("eth funding key not configured, skipping drip",
			zap.Uint64("user_id", u.ID))
	} else {
		hash, err := s.evm.Transfer(ctx, s.funding.EVMPrivateKey, u.EvmAddress, s.funding.InitialETH, stableips.TokenETH)
		s.recordFundingOutcome(u.ID, u.EvmAddress, s.funding.InitialETH,
			stableips.TokenETH, stableips.NetworkEthereum, hash, stableips.EntryFunding, err)
	}

	s.fundXrp(ctx, u)
}

// fundXrp credits a user's XRP address: a real Payment when a funding secret
// is configured, the public faucet otherwise. Faucet credits are recorded
// under a synthetic tracking hash; the faucet reports none worth trusting.
func (s *Service) fundXrp(ctx context.Context, u *registry.User) {
	if s.funding.XRPSecret != "" {
		hash, err := s.xrp.Transfer(ctx, s.funding.XRPSecret, u.XrpAddress, s.funding.InitialXRP, stableips.TokenXRP)
		s.recordFundingOutcome(u.ID, u.XrpAddress, s.funding.InitialXRP,
			stableips.TokenXRP, stableips.NetworkXRP, hash, stableips.EntryFunding, err)
		return
	}

	var hash string
	err := s.faucet.Fund(ctx, u.XrpAddress, s.funding.InitialXRP)
	if err == nil {
		hash = stableips.SyntheticHash(u.XrpAddress, time.Now())
	}
	s.recordFundingOutcome(u.ID, u.XrpAddress, s.funding.InitialXRP,
		stableips.TokenXRP, stableips.NetworkXRP, hash, stableips.EntryFaucetFunding, err)
}

// TestTokenFunding reports the mint hashes for a test-token request.
type TestTokenFunding struct {
	USDC string `json:"usdc"`
	EURC string `json:"eurc"`
}

// FundTestTokens mints the two test stablecoins to the user's EVM address.
// Both mints are attempted and recorded; the first failure is surfaced after
// the second attempt completes.
func (s *Service) FundTestTokens(ctx context.Context, userID uint64) (*TestTokenFunding, error) {
	u, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	if s.funding.EVMPrivateKey == "" {
		return nil, stableips.NewConfigError("evm.funding.privateKey",
			"test token minting requires a minter key")
	}

	usdcHash, usdcErr := s.mintFor(ctx, u, stableips.TokenTestUSDC)
	eurcHash, eurcErr := s.mintFor(ctx, u, stableips.TokenTestEURC)
	if usdcErr != nil {
		return nil, usdcErr
	}
	if eurcErr != nil {
		return nil, eurcErr
	}
	return &TestTokenFunding{USDC: usdcHash, EURC: eurcHash}, nil
}

func (s *Service) mintFor(ctx context.Context, u *registry.User, token stableips.Token) (string, error) {
	hash, err := s.minter.Mint(ctx, s.funding.EVMPrivateKey, u.EvmAddress, testTokenAmount, token)
	s.recordFundingOutcome(u.ID, u.EvmAddress, testTokenAmount,
		token, stableips.NetworkEthereum, hash, stableips.EntryMinting, err)
	return hash, err
}

// FundSolana airdrops the configured SOL amount onto the user's address and
// records the outcome. Airdrop failures are recorded, not surfaced.
func (s *Service) FundSolana(ctx context.Context, userID uint64) (*ledger.Entry, error) {
	u, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}

	hash, err := s.drop.Airdrop(ctx, u.SolanaPublicKey, s.funding.InitialSOL)
	return s.recordFundingOutcome(u.ID, u.SolanaPublicKey, s.funding.InitialSOL,
		stableips.TokenSOL, stableips.NetworkSolana, hash, stableips.EntryFaucetFunding, err)
}
