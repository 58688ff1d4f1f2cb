package stableips

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Network identifies one of the supported ledgers.
type Network string

const (
	NetworkEthereum Network = "ETHEREUM"
	NetworkXRP      Network = "XRP"
	NetworkSolana   Network = "SOLANA"
)

// Token is a transferable asset symbol.
type Token string

const (
	TokenETH      Token = "ETH"
	TokenUSDC     Token = "USDC"
	TokenEURC     Token = "EURC"
	TokenTestUSDC Token = "TEST-USDC"
	TokenTestEURC Token = "TEST-EURC"
	TokenXRP      Token = "XRP"
	TokenSOL      Token = "SOL"
)

// Status is the lifecycle state of a ledger entry. PENDING is the only
// non-terminal state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
	StatusTimeout   Status = "TIMEOUT"
	StatusDropped   Status = "DROPPED"
)

// EntryType distinguishes user-initiated transfers from system-initiated
// credits.
type EntryType string

const (
	EntryTransfer        EntryType = "TRANSFER"
	EntryFunding         EntryType = "FUNDING"
	EntryMinting         EntryType = "MINTING"
	EntryFaucetFunding   EntryType = "FAUCET_FUNDING"
	EntryExternalFunding EntryType = "EXTERNAL_FUNDING"
)

// SyntheticFaucetHashPrefix marks tracking identifiers stored in place of a
// real transaction hash when the XRP faucet does not return one. The monitor
// skips entries carrying it.
const SyntheticFaucetHashPrefix = "XRP_FAUCET_"

// tokenNetworks is the allowed (network, token) matrix.
var tokenNetworks = map[Token]Network{
	TokenETH:      NetworkEthereum,
	TokenUSDC:     NetworkEthereum,
	TokenEURC:     NetworkEthereum,
	TokenTestUSDC: NetworkEthereum,
	TokenTestEURC: NetworkEthereum,
	TokenXRP:      NetworkXRP,
	TokenSOL:      NetworkSolana,
}

// tokenDecimals is each token's smallest-unit scale: wei for ETH and EURC,
// 6 for USDC, drops for XRP, lamports for SOL.
var tokenDecimals = map[Token]int{
	TokenETH:      18,
	TokenUSDC:     6,
	TokenEURC:     18,
	TokenTestUSDC: 6,
	TokenTestEURC: 18,
	TokenXRP:      6,
	TokenSOL:      9,
}

// ParseToken resolves a case-insensitive symbol to a supported token.
func ParseToken(symbol string) (Token, bool) {
	t := Token(strings.ToUpper(strings.TrimSpace(symbol)))
	if _, ok := tokenNetworks[t]; !ok {
		return "", false
	}
	return t, true
}

// NetworkForToken returns the ledger a token lives on.
func NetworkForToken(t Token) (Network, bool) {
	n, ok := tokenNetworks[t]
	return n, ok
}

// TokenDecimals returns the smallest-unit scale for a token.
func TokenDecimals(t Token) (int, bool) {
	d, ok := tokenDecimals[t]
	return d, ok
}

// ValidPair reports whether a (network, token) combination is allowed.
func ValidPair(n Network, t Token) bool {
	want, ok := tokenNetworks[t]
	return ok && want == n
}

// EvmToken reports whether a token settles on the EVM chain. Recipients of
// EVM-family tokens are checksum-validated before dispatch; XRP and SOL
// recipients are left to their adapters.
func EvmToken(t Token) bool {
	return tokenNetworks[t] == NetworkEthereum
}

// Terminal reports whether a status can no longer transition.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// IsSyntheticHash reports whether a stored hash is a faucet tracking
// identifier rather than a chain transaction hash.
func IsSyntheticHash(hash string) bool {
	return strings.HasPrefix(hash, SyntheticFaucetHashPrefix)
}

// SyntheticHash builds the tracking id recorded for a faucet credit that has
// no reportable transaction hash.
func SyntheticHash(addr string, now time.Time) string {
	prefix := addr
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s%s_%d", SyntheticFaucetHashPrefix, prefix, now.UnixMilli())
}

// Keypair holds a freshly generated chain credential. Secret is encoded the
// way the owning chain persists it: hex for EVM private keys, 32-hex entropy
// for XRPL seeds, base64 for Solana secret keys.
type Keypair struct {
	Address string
	Secret  string
}

// Receipt is the chain-neutral view of a transaction lookup.
type Receipt struct {
	Mined       bool
	OK          bool
	BlockNumber uint64
}

// ChainAdapter is implemented once per supported ledger. Amounts cross this
// boundary as decimal strings; each adapter owns the conversion to its
// smallest unit. Every RPC-backed call takes a context and may block up to
// the adapter's own timeout.
type ChainAdapter interface {
	// Network returns the ledger this adapter serves.
	Network() Network

	// GenerateKeypair creates a fresh credential from the CSPRNG.
	GenerateKeypair() (Keypair, error)

	// Balance returns the decimal balance of an address for a token.
	Balance(ctx context.Context, address string, token Token) (string, error)

	// Transfer signs and submits a value movement, blocking until the chain
	// returns a transaction hash or the submission fails.
	Transfer(ctx context.Context, key, recipient, amount string, token Token) (string, error)

	// Receipt looks up a submitted transaction. A not-yet-mined transaction
	// returns Mined=false with a nil error.
	Receipt(ctx context.Context, txHash string) (*Receipt, error)

	// LatestBlock returns the current chain head number. Only the EVM
	// adapter gives it meaning; others report 0.
	LatestBlock(ctx context.Context) (uint64, error)
}
