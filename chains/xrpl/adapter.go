// Package xrpl talks to the XRP Ledger over rippled's JSON-RPC: key
// generation and seed material handling, drop-denominated balances and
// payments, validation lookups for the monitor, and the testnet faucet.
package xrpl

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	ripplecrypto "github.com/rubblelabs/ripple/crypto"
	rippledata "github.com/rubblelabs/ripple/data"

	stableips "github.com/graphtrek/stableips-sub001"
)

const (
	dropsScale = 6

	// Fee bounds in drops. The open-ledger fee is used when sane, clamped
	// so a spiking ledger cannot drain senders.
	defaultFeeDrops = 10
	maxFeeDrops     = 10000

	seedCacheSize = 512
)

// Adapter is the XRP Ledger side of the chain boundary. Derived signing keys
// are cached per seed material; the cache is pure and safe to lose.
type Adapter struct {
	rpc   *RPCClient
	seeds *lru.Cache[string, ripplecrypto.Key]
}

// NewAdapter creates an adapter against one rippled endpoint.
func NewAdapter(rpcURL string) (*Adapter, error) {
	seeds, err := lru.New[string, ripplecrypto.Key](seedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("xrpl: seed cache: %w", err)
	}
	return &Adapter{
		rpc:   NewRPCClient(rpcURL),
		seeds: seeds,
	}, nil
}

// Network returns the ledger this adapter serves.
func (a *Adapter) Network() stableips.Network {
	return stableips.NetworkXRP
}

// GenerateKeypair draws 16 bytes of entropy, derives the ED25519 account and
// returns the entropy as 32 hex characters, the persisted seed form.
func (a *Adapter) GenerateKeypair() (stableips.Keypair, error) {
	entropy := make([]byte, 16)
	if _, err := rand.Read(entropy); err != nil {
		return stableips.Keypair{}, fmt.Errorf("xrpl: read entropy: %w", err)
	}
	key, err := ripplecrypto.NewEd25519Key(entropy)
	if err != nil {
		return stableips.Keypair{}, fmt.Errorf("xrpl: derive key: %w", err)
	}
	addr, err := accountAddress(key)
	if err != nil {
		return stableips.Keypair{}, err
	}

	material := hex.EncodeToString(entropy)
	a.seeds.Add(material, key)
	return stableips.Keypair{Address: addr, Secret: material}, nil
}

// Balance returns the XRP balance of an address as a decimal string. An
// account missing from the ledger has simply never been funded: balance 0.
func (a *Adapter) Balance(ctx context.Context, address string, token stableips.Token) (string, error) {
	if token != stableips.TokenXRP {
		return "", fmt.Errorf("xrpl: unsupported token %s", token)
	}

	info, err := a.rpc.AccountInfo(ctx, address)
	if IsAccountNotFound(err) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return dropsToDecimal(info.AccountData.Balance)
}

// Transfer signs and submits a Payment in drops, requiring the engine result
// tesSUCCESS, and returns the transaction hash.
func (a *Adapter) Transfer(ctx context.Context, key, recipient, amount string, token stableips.Token) (string, error) {
	if token != stableips.TokenXRP {
		return "", fmt.Errorf("xrpl: unsupported token %s", token)
	}
	signingKey, err := a.signingKey(key)
	if err != nil {
		return "", err
	}
	sender, err := accountAddress(signingKey)
	if err != nil {
		return "", err
	}
	drops, err := amountToDrops(amount)
	if err != nil {
		return "", err
	}

	// Sender sequence and balance come from the same lookup.
	info, err := a.rpc.AccountInfo(ctx, sender)
	if IsAccountNotFound(err) {
		return "", stableips.NewBalanceError("0", amount, token)
	}
	if err != nil {
		return "", err
	}
	feeDrops, err := a.openLedgerFee(ctx)
	if err != nil {
		return "", err
	}

	balance, ok := new(big.Int).SetString(info.AccountData.Balance, 10)
	if !ok {
		return "", fmt.Errorf("xrpl: bad balance %q for %s", info.AccountData.Balance, sender)
	}
	needed := new(big.Int).Add(big.NewInt(drops), big.NewInt(feeDrops))
	if balance.Cmp(needed) < 0 {
		available := stableips.FormatAmount(balance, dropsScale)
		return "", stableips.NewBalanceError(available, amount, token)
	}

	tx, err := buildPayment(sender, recipient, info.AccountData.Sequence, feeDrops, drops)
	if err != nil {
		return "", err
	}
	if err := rippledata.Sign(tx, signingKey, nil); err != nil {
		return "", fmt.Errorf("xrpl: sign payment: %w", err)
	}
	_, raw, err := rippledata.Raw(tx)
	if err != nil {
		return "", fmt.Errorf("xrpl: serialize payment: %w", err)
	}

	result, err := a.rpc.Submit(ctx, strings.ToUpper(hex.EncodeToString(raw)))
	if err != nil {
		return "", err
	}
	if result.EngineResult != EngineResultSuccess {
		return "", fmt.Errorf("xrpl: submit rejected with %s: %s",
			result.EngineResult, result.EngineResultMessage)
	}
	return tx.GetHash().String(), nil
}

// Receipt looks up a transaction. A hash rippled has no record of is a
// not-yet-validated submission, not an error.
func (a *Adapter) Receipt(ctx context.Context, txHash string) (*stableips.Receipt, error) {
	res, err := a.rpc.Tx(ctx, txHash)
	if IsTxnNotFound(err) {
		return &stableips.Receipt{Mined: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stableips.Receipt{
		Mined:       res.Validated,
		OK:          res.Validated && res.Meta.TransactionResult == EngineResultSuccess,
		BlockNumber: res.LedgerIndex,
	}, nil
}

// LatestBlock is meaningless for XRP confirmation tracking; validation is
// binary.
func (a *Adapter) LatestBlock(ctx context.Context) (uint64, error) {
	return 0, nil
}

// signingKey returns the cached key for seed material, deriving and caching
// it on first use.
func (a *Adapter) signingKey(material string) (ripplecrypto.Key, error) {
	if key, ok := a.seeds.Get(material); ok {
		return key, nil
	}
	entropy, err := DecodeSeed(material)
	if err != nil {
		return nil, err
	}
	key, err := ripplecrypto.NewEd25519Key(entropy)
	if err != nil {
		return nil, fmt.Errorf("xrpl: derive key: %w", err)
	}
	a.seeds.Add(material, key)
	return key, nil
}

func (a *Adapter) openLedgerFee(ctx context.Context) (int64, error) {
	res, err := a.rpc.Fee(ctx)
	if err != nil {
		return 0, err
	}
	fee, err := strconv.ParseInt(res.Drops.OpenLedgerFee, 10, 64)
	if err != nil || fee <= 0 {
		fee = defaultFeeDrops
	}
	if fee > maxFeeDrops {
		fee = maxFeeDrops
	}
	return fee, nil
}

func buildPayment(sender, recipient string, sequence uint32, feeDrops, amountDrops int64) (*rippledata.Payment, error) {
	senderAccount, err := rippledata.NewAccountFromAddress(sender)
	if err != nil {
		return nil, fmt.Errorf("xrpl: bad sender address %q: %w", sender, err)
	}
	destination, err := rippledata.NewAccountFromAddress(recipient)
	if err != nil {
		return nil, fmt.Errorf("xrpl: bad destination address %q: %w", recipient, err)
	}
	amount, err := rippledata.NewAmount(amountDrops)
	if err != nil {
		return nil, fmt.Errorf("xrpl: bad amount %d drops: %w", amountDrops, err)
	}
	fee, err := rippledata.NewNativeValue(feeDrops)
	if err != nil {
		return nil, fmt.Errorf("xrpl: bad fee %d drops: %w", feeDrops, err)
	}

	return &rippledata.Payment{
		TxBase: rippledata.TxBase{
			TransactionType: rippledata.PAYMENT,
			Account:         *senderAccount,
			Sequence:        sequence,
			Fee:             *fee,
		},
		Destination: *destination,
		Amount:      *amount,
	}, nil
}

func accountAddress(key ripplecrypto.Key) (string, error) {
	account, err := ripplecrypto.NewAccountId(key.Id(nil))
	if err != nil {
		return "", fmt.Errorf("xrpl: derive account id: %w", err)
	}
	return account.String(), nil
}

func amountToDrops(amount string) (int64, error) {
	units, err := stableips.ParseAmount(amount, dropsScale)
	if err != nil {
		return 0, stableips.NewValidationError(stableips.ErrCodeInvalidAmount, err.Error(), nil)
	}
	if units.Sign() <= 0 || !units.IsInt64() {
		return 0, stableips.NewValidationError(stableips.ErrCodeInvalidAmount,
			fmt.Sprintf("amount %s is out of range for XRP", amount), nil)
	}
	return units.Int64(), nil
}

func dropsToDecimal(drops string) (string, error) {
	units, ok := new(big.Int).SetString(drops, 10)
	if !ok {
		return "", fmt.Errorf("xrpl: bad drops value %q", drops)
	}
	return stableips.FormatAmount(units, dropsScale), nil
}
