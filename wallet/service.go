// Package wallet is the orchestration core: the validation gate, the
// transfer dispatcher, the funding recorder, and the verbs the HTTP layer
// exposes. It owns no chain logic; everything on-chain goes through the
// adapters.
package wallet

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/ledger"
	"github.com/graphtrek/stableips-sub001/registry"
)

// Minter mints test ERC-20 tokens to an address with a privileged key. The
// EVM adapter implements it.
type Minter interface {
	Mint(ctx context.Context, key, recipient, amount string, token stableips.Token) (string, error)
}

// FaucetFunder asks an external testnet faucet to credit an XRP address.
type FaucetFunder interface {
	Fund(ctx context.Context, addr, xrpAmount string) error
}

// Airdropper requests devnet SOL credits. The Solana adapter implements it.
type Airdropper interface {
	Airdrop(ctx context.Context, address, amount string) (string, error)
}

// FundingConfig says how new wallets get their starter balances.
type FundingConfig struct {
	// EVMPrivateKey signs the ETH drip and test-token mints. Empty skips
	// ETH funding and makes FundTestTokens a configuration error.
	EVMPrivateKey string

	// InitialETH is the decimal ETH dripped to each new user (default 10).
	InitialETH string

	// XRPSecret, when set, funds new XRP addresses with a real Payment
	// instead of the public faucet.
	XRPSecret string

	// InitialXRP is the decimal XRP requested per funding (default 10).
	InitialXRP string

	// InitialSOL is the decimal SOL requested per airdrop (default 1).
	InitialSOL string
}

// Config wires a Service.
type Config struct {
	Users  *registry.Store
	Ledger *ledger.Store

	EVM    stableips.ChainAdapter
	XRP    stableips.ChainAdapter
	Solana stableips.ChainAdapter

	// Minter is usually the EVM adapter.
	Minter Minter

	// Faucet is the XRP testnet faucet client.
	Faucet FaucetFunder

	// Airdrop is usually the Solana adapter.
	Airdrop Airdropper

	// Tokens are the EVM tokens included in balance listings, in display
	// order. Native assets are always included.
	Tokens []stableips.Token

	Funding FundingConfig

	Logger *zap.Logger
}

// Service implements the five public verbs over the registry, the ledger,
// and the three chain adapters. Safe for concurrent use.
type Service struct {
	users   *registry.Store
	entries *ledger.Store

	evm    stableips.ChainAdapter
	xrp    stableips.ChainAdapter
	sol    stableips.ChainAdapter
	minter Minter
	faucet FaucetFunder
	drop   Airdropper

	evmTokens []stableips.Token
	funding   FundingConfig
	log       *zap.Logger
}

// NewService builds the service. Unset funding amounts fall back to their
// defaults; an unset logger falls back to a nop logger.
func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	funding := cfg.Funding
	if funding.InitialETH == "" {
		funding.InitialETH = "10"
	}
	if funding.InitialXRP == "" {
		funding.InitialXRP = "10"
	}
	if funding.InitialSOL == "" {
		funding.InitialSOL = "1"
	}

	return &Service{
		users:     cfg.Users,
		entries:   cfg.Ledger,
		evm:       cfg.EVM,
		xrp:       cfg.XRP,
		sol:       cfg.Solana,
		minter:    cfg.Minter,
		faucet:    cfg.Faucet,
		drop:      cfg.Airdrop,
		evmTokens: cfg.Tokens,
		funding:   funding,
		log:       log,
	}
}

// CreateUser returns the existing user under username, or creates one with
// fresh credentials on all three chains and records its starter funding.
// Funding failures are recorded in the ledger, not surfaced.
func (s *Service) CreateUser(ctx context.Context, username string) (*registry.User, error) {
	username = strings.TrimSpace(username)

	u, err := s.users.ByUsername(username)
	if err == nil {
		return u, nil
	}
	var notFound *stableips.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	u, err = s.users.Create(username)
	if err != nil {
		return nil, err
	}
	s.log.Info("created user",
		zap.Uint64("user_id", u.ID),
		zap.String("username", u.Username))

	s.fundNewUser(ctx, u)
	return u, nil
}

// TransactionList groups a user's ledger entries the way the UI shows them,
// each list newest first.
type TransactionList struct {
	Sent     []*ledger.Entry `json:"sent"`
	Received []*ledger.Entry `json:"received"`
	All      []*ledger.Entry `json:"all"`
	Funding  []*ledger.Entry `json:"funding"`
}

// ListTransactions returns the user's sent, received, merged, and funding
// entries. Received covers all three chain addresses; All is the union of
// Sent and Received with duplicates removed.
func (s *Service) ListTransactions(userID uint64) (*TransactionList, error) {
	u, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}

	sent, err := s.entries.BySender(userID)
	if err != nil {
		return nil, err
	}

	var received []*ledger.Entry
	for _, addr := range u.Addresses() {
		batch, err := s.entries.ByRecipient(addr)
		if err != nil {
			return nil, err
		}
		received = append(received, batch...)
	}
	sortEntries(received)

	funding, err := s.entries.ByUserAndTypes(userID,
		stableips.EntryFunding, stableips.EntryMinting,
		stableips.EntryFaucetFunding, stableips.EntryExternalFunding)
	if err != nil {
		return nil, err
	}

	return &TransactionList{
		Sent:     orEmpty(sent),
		Received: orEmpty(received),
		All:      mergeEntries(sent, received),
		Funding:  orEmpty(funding),
	}, nil
}

// RegenerateXrpWallet mints a fresh XRP credential triple for the user and
// funds the new address. The old address keeps its ledger history.
func (s *Service) RegenerateXrpWallet(ctx context.Context, userID uint64) (*registry.User, error) {
	u, err := s.users.ReplaceXrpCredentials(userID)
	if err != nil {
		return nil, err
	}
	s.log.Info("regenerated xrp wallet",
		zap.Uint64("user_id", u.ID),
		zap.String("address", u.XrpAddress))

	s.fundXrp(ctx, u)
	return u, nil
}

// Balance is one asset position on one chain.
type Balance struct {
	Network stableips.Network `json:"network"`
	Token   stableips.Token   `json:"token"`
	Address string            `json:"address"`
	Amount  string            `json:"amount"`
}

// Balances reads the user's native balances plus the configured EVM tokens.
func (s *Service) Balances(ctx context.Context, userID uint64) ([]Balance, error) {
	u, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}

	positions := []struct {
		adapter stableips.ChainAdapter
		address string
		token   stableips.Token
	}{
		{s.evm, u.EvmAddress, stableips.TokenETH},
		{s.xrp, u.XrpAddress, stableips.TokenXRP},
		{s.sol, u.SolanaPublicKey, stableips.TokenSOL},
	}
	for _, token := range s.evmTokens {
		positions = append(positions, struct {
			adapter stableips.ChainAdapter
			address string
			token   stableips.Token
		}{s.evm, u.EvmAddress, token})
	}

	balances := make([]Balance, 0, len(positions))
	for _, p := range positions {
		amount, err := p.adapter.Balance(ctx, p.address, p.token)
		if err != nil {
			return nil, err
		}
		balances = append(balances, Balance{
			Network: p.adapter.Network(),
			Token:   p.token,
			Address: p.address,
			Amount:  amount,
		})
	}
	return balances, nil
}

// sortEntries orders entries newest first, breaking timestamp ties by id.
func sortEntries(entries []*ledger.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// mergeEntries unions two lists, dropping duplicate ids. A user transferring
// to one of their own addresses appears in both inputs but only once here.
func mergeEntries(a, b []*ledger.Entry) []*ledger.Entry {
	seen := make(map[uint64]bool, len(a)+len(b))
	merged := make([]*ledger.Entry, 0, len(a)+len(b))
	for _, e := range a {
		if !seen[e.ID] {
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}
	for _, e := range b {
		if !seen[e.ID] {
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}
	sortEntries(merged)
	return merged
}

func orEmpty(entries []*ledger.Entry) []*ledger.Entry {
	if entries == nil {
		return []*ledger.Entry{}
	}
	return entries
}
