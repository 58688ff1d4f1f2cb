// Package config loads the daemon's settings from an optional YAML file,
// STABLEIPS_* environment overrides, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	stableips "github.com/graphtrek/stableips-sub001"
)

const (
	envPrefix         = "STABLEIPS"
	defaultConfigName = "stableips"
)

// TokenAddresses holds the ERC-20 contract addresses. An empty address
// disables that token.
type TokenAddresses struct {
	USDC     string
	EURC     string
	TestUSDC string
	TestEURC string
}

// EVMFunding configures the drip sent to every new user's EVM account.
type EVMFunding struct {
	// PrivateKey signs funding transfers and test-token mints. Leaving it
	// empty skips the ETH drip and disables minting.
	PrivateKey string
	InitialETH string
}

// EVM is the Ethereum-side configuration.
type EVM struct {
	RPCURL  string
	ChainID int64
	Funding EVMFunding
	Tokens  TokenAddresses
}

// XRPFunding selects how new XRP accounts are activated: from a configured
// secret when present, otherwise through the public faucet.
type XRPFunding struct {
	Secret     string
	InitialXRP string
}

// XRP is the XRP Ledger configuration.
type XRP struct {
	RPCURL    string
	FaucetURL string
	Funding   XRPFunding
}

// SolanaFunding configures the devnet airdrop amount.
type SolanaFunding struct {
	InitialSOL string
}

// Solana is the Solana-side configuration.
type Solana struct {
	RPCURL  string
	Funding SolanaFunding
}

// Monitor tunes the background status loop.
type Monitor struct {
	Period           time.Duration
	InitialDelay     time.Duration
	MaxAge           time.Duration
	EVMConfirmations uint64
}

// Config is the fully resolved daemon configuration.
type Config struct {
	Listen  string
	DataDir string
	EVM     EVM
	XRP     XRP
	Solana  Solana
	Monitor Monitor
}

// Load reads the configuration at path, applies environment overrides, and
// validates the result. An empty path falls back to stableips.yaml in the
// working directory, which may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	return build(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("data.dir", "stableips-data")

	v.SetDefault("evm.funding.initialEth", "10")

	// xrp.faucet.url has no default here; the faucet client falls back to
	// the public testnet faucet when it is empty.
	v.SetDefault("xrp.funding.initialXrp", "10")

	v.SetDefault("sol.funding.initialSol", "1")

	v.SetDefault("monitor.period", "30s")
	v.SetDefault("monitor.initialDelay", "10s")
	v.SetDefault("monitor.maxAgeHours", 24)
	v.SetDefault("monitor.evmConfirmations", 3)
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Listen:  v.GetString("listen"),
		DataDir: v.GetString("data.dir"),
		EVM: EVM{
			RPCURL:  v.GetString("evm.rpc.url"),
			ChainID: v.GetInt64("evm.chain.id"),
			Funding: EVMFunding{
				PrivateKey: v.GetString("evm.funding.privateKey"),
			},
			Tokens: TokenAddresses{
				USDC:     v.GetString("evm.token.usdc.address"),
				EURC:     v.GetString("evm.token.eurc.address"),
				TestUSDC: v.GetString("evm.token.testUsdc.address"),
				TestEURC: v.GetString("evm.token.testEurc.address"),
			},
		},
		XRP: XRP{
			RPCURL:    v.GetString("xrp.rpc.url"),
			FaucetURL: v.GetString("xrp.faucet.url"),
			Funding: XRPFunding{
				Secret: v.GetString("xrp.funding.secret"),
			},
		},
		Solana: Solana{
			RPCURL: v.GetString("sol.rpc.url"),
		},
	}

	if cfg.EVM.RPCURL != "" && cfg.EVM.ChainID == 0 {
		return nil, stableips.NewConfigError("evm.chain.id", "required when evm.rpc.url is set")
	}

	var err error
	if cfg.EVM.Funding.InitialETH, err = amountKey(v, "evm.funding.initialEth"); err != nil {
		return nil, err
	}
	if cfg.XRP.Funding.InitialXRP, err = amountKey(v, "xrp.funding.initialXrp"); err != nil {
		return nil, err
	}
	if cfg.Solana.Funding.InitialSOL, err = amountKey(v, "sol.funding.initialSol"); err != nil {
		return nil, err
	}

	if cfg.Monitor.Period, err = durationKey(v, "monitor.period"); err != nil {
		return nil, err
	}
	if cfg.Monitor.InitialDelay, err = durationKey(v, "monitor.initialDelay"); err != nil {
		return nil, err
	}

	hours := v.GetInt64("monitor.maxAgeHours")
	if hours <= 0 {
		return nil, stableips.NewConfigError("monitor.maxAgeHours", fmt.Sprintf("bad hour count %q", v.GetString("monitor.maxAgeHours")))
	}
	cfg.Monitor.MaxAge = time.Duration(hours) * time.Hour

	confs := v.GetInt64("monitor.evmConfirmations")
	if confs <= 0 {
		return nil, stableips.NewConfigError("monitor.evmConfirmations", fmt.Sprintf("bad block count %q", v.GetString("monitor.evmConfirmations")))
	}
	cfg.Monitor.EVMConfirmations = uint64(confs)

	return cfg, nil
}

// EVMTokenMap returns the configured ERC-20 contracts keyed by token,
// omitting the ones left unset. Address validation happens when the EVM
// adapter is constructed.
func (c *Config) EVMTokenMap() map[stableips.Token]string {
	out := make(map[stableips.Token]string, 4)
	for token, addr := range map[stableips.Token]string{
		stableips.TokenUSDC:     c.EVM.Tokens.USDC,
		stableips.TokenEURC:     c.EVM.Tokens.EURC,
		stableips.TokenTestUSDC: c.EVM.Tokens.TestUSDC,
		stableips.TokenTestEURC: c.EVM.Tokens.TestEURC,
	} {
		if addr != "" {
			out[token] = addr
		}
	}
	return out
}

// EVMTokens lists the configured ERC-20 tokens in a fixed display order.
func (c *Config) EVMTokens() []stableips.Token {
	var out []stableips.Token
	for _, t := range []struct {
		token stableips.Token
		addr  string
	}{
		{stableips.TokenUSDC, c.EVM.Tokens.USDC},
		{stableips.TokenEURC, c.EVM.Tokens.EURC},
		{stableips.TokenTestUSDC, c.EVM.Tokens.TestUSDC},
		{stableips.TokenTestEURC, c.EVM.Tokens.TestEURC},
	} {
		if t.addr != "" {
			out = append(out, t.token)
		}
	}
	return out
}

// amountKey reads a decimal amount and rejects anything the ledger would
// later refuse to record.
func amountKey(v *viper.Viper, key string) (string, error) {
	raw := strings.TrimSpace(v.GetString(key))
	units, err := stableips.ParseAmount(raw, 18)
	if err != nil || units.Sign() <= 0 {
		return "", stableips.NewConfigError(key, fmt.Sprintf("bad amount %q", raw))
	}
	return raw, nil
}

func durationKey(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, stableips.NewConfigError(key, fmt.Sprintf("bad duration %q", raw))
	}
	if d <= 0 {
		return 0, stableips.NewConfigError(key, "duration must be positive")
	}
	return d, nil
}
