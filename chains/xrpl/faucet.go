package xrpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	stableips "github.com/graphtrek/stableips-sub001"
)

// DefaultFaucetURL is the public XRP testnet faucet.
const DefaultFaucetURL = "https://faucet.altnet.rippletest.net/accounts"

// Faucet asks the testnet faucet to credit an address. The faucet is an
// external service outside the ledger protocol and its response carries no
// trustworthy transaction hash, so callers record a synthetic tracking id
// for successful requests instead.
type Faucet struct {
	url        string
	httpClient *http.Client
}

// FaucetConfig configures the faucet client.
type FaucetConfig struct {
	// URL is the faucet endpoint (optional, defaults to the public testnet
	// faucet)
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// NewFaucet creates a faucet client.
func NewFaucet(config *FaucetConfig) *Faucet {
	if config == nil {
		config = &FaucetConfig{}
	}

	url := config.URL
	if url == "" {
		url = DefaultFaucetURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &Faucet{url: url, httpClient: httpClient}
}

type faucetRequest struct {
	Destination string `json:"destination"`
	XrpAmount   string `json:"xrpAmount,omitempty"`
}

// Fund requests a credit of xrpAmount (decimal XRP, empty for the faucet's
// default) to addr. The response body is drained and discarded.
func (f *Faucet) Fund(ctx context.Context, addr, xrpAmount string) error {
	body, err := json.Marshal(faucetRequest{Destination: addr, XrpAmount: xrpAmount})
	if err != nil {
		return fmt.Errorf("failed to marshal faucet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create faucet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return stableips.NewNetworkError(stableips.NetworkXRP, "faucet", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return stableips.NewNetworkError(stableips.NetworkXRP, "faucet",
			fmt.Errorf("faucet returned %d: %s", resp.StatusCode, string(raw)))
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
