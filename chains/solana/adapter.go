// Package solana talks to a Solana cluster over JSON-RPC: key generation,
// lamport-denominated balances and system transfers, devnet airdrops, and
// finalized-transaction lookups for the monitor.
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	stableips "github.com/graphtrek/stableips-sub001"
)

const (
	lamportsScale = 9

	rpcTimeout = 10 * time.Second

	// airdropSettleDelay is how long an airdropped credit takes to become
	// visible to balance reads on devnet.
	airdropSettleDelay = 2 * time.Second
)

// Adapter is the Solana side of the chain boundary. The RPC client is safe
// for concurrent use.
type Adapter struct {
	client  *rpc.Client
	timeout time.Duration
}

// NewAdapter creates an adapter against one cluster endpoint.
func NewAdapter(rpcURL string) *Adapter {
	return &Adapter{
		client:  rpc.New(rpcURL),
		timeout: rpcTimeout,
	}
}

// Network returns the ledger this adapter serves.
func (a *Adapter) Network() stableips.Network {
	return stableips.NetworkSolana
}

// GenerateKeypair creates a fresh ED25519 wallet. The secret is the 64-byte
// private key in base64, the persisted form.
func (a *Adapter) GenerateKeypair() (stableips.Keypair, error) {
	wallet := solanago.NewWallet()
	return stableips.Keypair{
		Address: wallet.PublicKey().String(),
		Secret:  base64.StdEncoding.EncodeToString(wallet.PrivateKey),
	}, nil
}

// Balance returns the SOL balance of an address as a decimal string.
func (a *Adapter) Balance(ctx context.Context, address string, token stableips.Token) (string, error) {
	if token != stableips.TokenSOL {
		return "", fmt.Errorf("solana: unsupported token %s", token)
	}
	pubkey, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("solana: bad address %q: %w", address, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.client.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkSolana, "getBalance", err)
	}
	return stableips.FormatAmount(new(big.Int).SetUint64(out.Value), lamportsScale), nil
}

// Transfer signs and submits a system transfer in lamports and returns the
// transaction signature.
func (a *Adapter) Transfer(ctx context.Context, key, recipient, amount string, token stableips.Token) (string, error) {
	if token != stableips.TokenSOL {
		return "", fmt.Errorf("solana: unsupported token %s", token)
	}
	signer, err := parseKey(key)
	if err != nil {
		return "", err
	}
	lamports, err := amountToLamports(amount)
	if err != nil {
		return "", err
	}
	to, err := solanago.PublicKeyFromBase58(recipient)
	if err != nil {
		return "", fmt.Errorf("solana: bad recipient address %q: %w", recipient, err)
	}
	from := signer.PublicKey()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Check balance
	balance, err := a.client.GetBalance(ctx, from, rpc.CommitmentFinalized)
	if err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkSolana, "getBalance", err)
	}
	if balance.Value < lamports {
		available := stableips.FormatAmount(new(big.Int).SetUint64(balance.Value), lamportsScale)
		return "", stableips.NewBalanceError(available, amount, token)
	}

	latest, err := a.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkSolana, "getLatestBlockhash", err)
	}

	ix := system.NewTransferInstruction(lamports, from, to).Build()
	tx, err := solanago.NewTransactionBuilder().
		AddInstruction(ix).
		SetRecentBlockHash(latest.Value.Blockhash).
		SetFeePayer(from).
		Build()
	if err != nil {
		return "", fmt.Errorf("solana: build transaction: %w", err)
	}

	if _, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(from) {
			return &signer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("solana: sign transaction: %w", err)
	}

	sig, err := a.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkSolana, "sendTransaction", err)
	}
	return sig.String(), nil
}

// Airdrop requests devnet lamports for an address and waits the settle delay
// so an immediate balance read sees the credit.
func (a *Adapter) Airdrop(ctx context.Context, address, amount string) (string, error) {
	pubkey, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("solana: bad address %q: %w", address, err)
	}
	lamports, err := amountToLamports(amount)
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	sig, err := a.client.RequestAirdrop(reqCtx, pubkey, lamports, rpc.CommitmentFinalized)
	if err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkSolana, "requestAirdrop", err)
	}

	time.Sleep(airdropSettleDelay)
	return sig.String(), nil
}

// Receipt looks up a transaction at finalized commitment. A signature the
// cluster has no record of is still in flight, not an error.
func (a *Adapter) Receipt(ctx context.Context, txHash string) (*stableips.Receipt, error) {
	sig, err := solanago.SignatureFromBase58(txHash)
	if err != nil {
		return nil, fmt.Errorf("solana: bad signature %q: %w", txHash, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment: rpc.CommitmentFinalized,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return &stableips.Receipt{Mined: false}, nil
	}
	if err != nil {
		return nil, stableips.NewNetworkError(stableips.NetworkSolana, "getTransaction", err)
	}
	return &stableips.Receipt{
		Mined:       true,
		OK:          out.Meta == nil || out.Meta.Err == nil,
		BlockNumber: out.Slot,
	}, nil
}

// LatestBlock is meaningless for Solana confirmation tracking; finality is
// binary at the commitment level.
func (a *Adapter) LatestBlock(ctx context.Context) (uint64, error) {
	return 0, nil
}

func parseKey(material string) (solanago.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return nil, stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
			"Solana secret key is not valid base64")
	}
	if len(raw) != 64 {
		return nil, stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
			fmt.Sprintf("Solana secret key is %d bytes, want 64", len(raw)))
	}
	return solanago.PrivateKey(raw), nil
}

func amountToLamports(amount string) (uint64, error) {
	units, err := stableips.ParseAmount(amount, lamportsScale)
	if err != nil {
		return 0, stableips.NewValidationError(stableips.ErrCodeInvalidAmount, err.Error(), nil)
	}
	if units.Sign() <= 0 || !units.IsUint64() {
		return 0, stableips.NewValidationError(stableips.ErrCodeInvalidAmount,
			fmt.Sprintf("amount %s is out of range for SOL", amount), nil)
	}
	return units.Uint64(), nil
}
