// Package evm talks to an EVM chain over JSON-RPC: key generation, native
// and ERC-20 balances and transfers, privileged test-token mints, and
// receipt lookups for the monitor.
package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"

	stableips "github.com/graphtrek/stableips-sub001"
)

// Adapter is the EVM side of the chain boundary. One instance is shared by
// all callers; the underlying RPC client is safe for concurrent use.
type Adapter struct {
	client  *ethclient.Client
	chainID *big.Int
	tokens  map[stableips.Token]common.Address
	erc20   abi.ABI
	timeout time.Duration
}

// NewAdapter dials the RPC endpoint and maps ERC-20 tokens to their contract
// addresses. HTTP dialing is lazy; a bad endpoint surfaces on first use.
func NewAdapter(rpcURL string, chainID int64, tokenAddrs map[stableips.Token]string) (*Adapter, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, stableips.NewNetworkError(stableips.NetworkEthereum, "dial", err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(erc20ABI)))
	if err != nil {
		return nil, fmt.Errorf("evm: parse ERC-20 ABI: %w", err)
	}
	tokens := make(map[stableips.Token]common.Address, len(tokenAddrs))
	for token, addr := range tokenAddrs {
		if err := ValidateAddress(addr); err != nil {
			return nil, stableips.NewConfigError(
				"evm.token."+strings.ToLower(string(token)),
				fmt.Sprintf("bad contract address %q", addr))
		}
		tokens[token] = common.HexToAddress(addr)
	}
	return &Adapter{
		client:  client,
		chainID: big.NewInt(chainID),
		tokens:  tokens,
		erc20:   parsed,
		timeout: rpcTimeout,
	}, nil
}

// Network returns the ledger this adapter serves.
func (a *Adapter) Network() stableips.Network {
	return stableips.NetworkEthereum
}

// GenerateKeypair creates a fresh secp256k1 key. The secret is the private
// key hex without a 0x prefix.
func (a *Adapter) GenerateKeypair() (stableips.Keypair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return stableips.Keypair{}, fmt.Errorf("evm: generate key: %w", err)
	}
	return stableips.Keypair{
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Secret:  hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

// Balance returns the decimal balance of an address: wei-scaled for ETH, the
// token's own scale for ERC-20s.
func (a *Adapter) Balance(ctx context.Context, address string, token stableips.Token) (string, error) {
	decimals, ok := stableips.TokenDecimals(token)
	if !ok || !stableips.EvmToken(token) {
		return "", fmt.Errorf("evm: unsupported token %s", token)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	units, err := a.balanceUnits(ctx, common.HexToAddress(address), token)
	if err != nil {
		return "", err
	}
	return stableips.FormatAmount(units, decimals), nil
}

// Transfer signs and submits a native or ERC-20 transfer and returns the
// transaction hash. The sender's balance is checked first so an unfundable
// transfer never reaches the chain.
func (a *Adapter) Transfer(ctx context.Context, key, recipient, amount string, token stableips.Token) (string, error) {
	decimals, ok := stableips.TokenDecimals(token)
	if !ok || !stableips.EvmToken(token) {
		return "", fmt.Errorf("evm: unsupported token %s", token)
	}
	prv, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return "", stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
			"EVM private key is not valid hex")
	}
	units, err := stableips.ParseAmount(amount, decimals)
	if err != nil {
		return "", stableips.NewValidationError(stableips.ErrCodeInvalidAmount, err.Error(), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	from := crypto.PubkeyToAddress(prv.PublicKey)
	to := common.HexToAddress(recipient)

	// Check balance
	balance, err := a.balanceUnits(ctx, from, token)
	if err != nil {
		return "", err
	}
	if balance.Cmp(units) < 0 {
		return "", stableips.NewBalanceError(stableips.FormatAmount(balance, decimals), amount, token)
	}

	if token == stableips.TokenETH {
		return a.submit(ctx, prv, &to, units, nil)
	}
	contract, err := a.contractFor(token)
	if err != nil {
		return "", err
	}
	data, err := a.erc20.Pack("transfer", to, units)
	if err != nil {
		return "", fmt.Errorf("evm: pack transfer: %w", err)
	}
	return a.submit(ctx, prv, &contract, nil, data)
}

// Mint calls the privileged mint on a test token contract. The key must be
// the contract's minter; a non-minter submission mines but reverts.
func (a *Adapter) Mint(ctx context.Context, minterKey, recipient, amount string, token stableips.Token) (string, error) {
	decimals, ok := stableips.TokenDecimals(token)
	if !ok || !stableips.EvmToken(token) || token == stableips.TokenETH {
		return "", fmt.Errorf("evm: cannot mint %s", token)
	}
	prv, err := crypto.HexToECDSA(strings.TrimPrefix(minterKey, "0x"))
	if err != nil {
		return "", stableips.NewKeyFormatError(stableips.ErrCodeUnsupportedFormat,
			"EVM private key is not valid hex")
	}
	units, err := stableips.ParseAmount(amount, decimals)
	if err != nil {
		return "", stableips.NewValidationError(stableips.ErrCodeInvalidAmount, err.Error(), nil)
	}
	contract, err := a.contractFor(token)
	if err != nil {
		return "", err
	}
	data, err := a.erc20.Pack("mint", common.HexToAddress(recipient), units)
	if err != nil {
		return "", fmt.Errorf("evm: pack mint: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.submit(ctx, prv, &contract, nil, data)
}

// Receipt looks up a transaction. Not-yet-mined is not an error.
func (a *Adapter) Receipt(ctx context.Context, txHash string) (*stableips.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	r, err := a.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return &stableips.Receipt{Mined: false}, nil
	}
	if err != nil {
		return nil, stableips.NewNetworkError(stableips.NetworkEthereum, "eth_getTransactionReceipt", err)
	}
	return &stableips.Receipt{
		Mined:       true,
		OK:          r.Status == types.ReceiptStatusSuccessful,
		BlockNumber: r.BlockNumber.Uint64(),
	}, nil
}

// LatestBlock returns the current head number, the basis for confirmation
// counting.
func (a *Adapter) LatestBlock(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	n, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, stableips.NewNetworkError(stableips.NetworkEthereum, "eth_blockNumber", err)
	}
	return n, nil
}

func (a *Adapter) balanceUnits(ctx context.Context, addr common.Address, token stableips.Token) (*big.Int, error) {
	if token == stableips.TokenETH {
		wei, err := a.client.BalanceAt(ctx, addr, nil)
		if err != nil {
			return nil, stableips.NewNetworkError(stableips.NetworkEthereum, "eth_getBalance", err)
		}
		return wei, nil
	}

	contract, err := a.contractFor(token)
	if err != nil {
		return nil, err
	}
	data, err := a.erc20.Pack("balanceOf", addr)
	if err != nil {
		return nil, fmt.Errorf("evm: pack balanceOf: %w", err)
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, stableips.NewNetworkError(stableips.NetworkEthereum, "eth_call", err)
	}
	values, err := a.erc20.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("evm: decode balanceOf result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("evm: unexpected balanceOf result arity %d", len(values))
	}
	units, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evm: unexpected balanceOf result type %T", values[0])
	}
	return units, nil
}

// submit builds, signs and broadcasts one transaction. Nil data is a native
// value transfer at the fixed 21000 gas; contract calls are estimated with
// headroom.
func (a *Adapter) submit(ctx context.Context, prv *ecdsa.PrivateKey, to *common.Address, value *big.Int, data []byte) (string, error) {
	if value == nil {
		value = new(big.Int)
	}
	from := crypto.PubkeyToAddress(prv.PublicKey)

	nonce, err := a.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkEthereum, "eth_getTransactionCount", err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkEthereum, "eth_gasPrice", err)
	}

	gas := params.TxGas
	if len(data) > 0 {
		gas, err = a.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: to, Value: value, Data: data})
		if err != nil {
			return "", stableips.NewNetworkError(stableips.NetworkEthereum, "eth_estimateGas", err)
		}
		gas += gas / 5
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), prv)
	if err != nil {
		return "", fmt.Errorf("evm: sign transaction: %w", err)
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return "", stableips.NewNetworkError(stableips.NetworkEthereum, "eth_sendRawTransaction", err)
	}
	return signed.Hash().Hex(), nil
}

func (a *Adapter) contractFor(token stableips.Token) (common.Address, error) {
	contract, ok := a.tokens[token]
	if !ok {
		return common.Address{}, stableips.NewConfigError(
			"evm.token."+strings.ToLower(string(token)),
			"no contract address configured")
	}
	return contract, nil
}
