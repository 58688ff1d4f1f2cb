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

// ============================================================================
// rippled JSON-RPC client
// ============================================================================

// RPCClient speaks the rippled JSON-RPC dialect: a POST body naming the
// method with a single params object, and a "result" envelope that carries
// either the payload or an error code. Only the four methods the adapter
// needs are exposed.
type RPCClient struct {
	url        string
	httpClient *http.Client
}

// NewRPCClient creates a client for one rippled endpoint.
func NewRPCClient(url string) *RPCClient {
	return &RPCClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AccountInfoResult is the subset of account_info the adapter reads. Balance
// is a drops string.
type AccountInfoResult struct {
	AccountData struct {
		Account  string `json:"Account"`
		Balance  string `json:"Balance"`
		Sequence uint32 `json:"Sequence"`
	} `json:"account_data"`
	Validated bool `json:"validated"`
}

// FeeResult is the subset of the fee command the adapter reads.
type FeeResult struct {
	Drops struct {
		OpenLedgerFee string `json:"open_ledger_fee"`
		MinimumFee    string `json:"minimum_fee"`
	} `json:"drops"`
}

// SubmitResult is the subset of submit the adapter reads.
type SubmitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultCode    int    `json:"engine_result_code"`
	EngineResultMessage string `json:"engine_result_message"`
	Accepted            bool   `json:"accepted"`
}

// TxResult is the subset of the tx command the adapter reads. Validated
// means the transaction is in a closed, validated ledger.
type TxResult struct {
	Hash        string `json:"hash"`
	LedgerIndex uint64 `json:"ledger_index"`
	Validated   bool   `json:"validated"`
	Meta        struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}

// AccountInfo fetches balance and sequence for an account against the last
// validated ledger.
func (c *RPCClient) AccountInfo(ctx context.Context, account string) (*AccountInfoResult, error) {
	params := map[string]interface{}{
		"account":      account,
		"ledger_index": "validated",
	}
	var result AccountInfoResult
	if err := c.call(ctx, "account_info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Fee fetches the current open-ledger fee.
func (c *RPCClient) Fee(ctx context.Context) (*FeeResult, error) {
	var result FeeResult
	if err := c.call(ctx, "fee", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit broadcasts a signed transaction blob (uppercase hex).
func (c *RPCClient) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	params := map[string]interface{}{
		"tx_blob": txBlob,
	}
	var result SubmitResult
	if err := c.call(ctx, "submit", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tx looks up a transaction by hash.
func (c *RPCClient) Tx(ctx context.Context, hash string) (*TxResult, error) {
	params := map[string]interface{}{
		"transaction": hash,
		"binary":      false,
	}
	var result TxResult
	if err := c.call(ctx, "tx", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	request := map[string]interface{}{
		"method": method,
	}
	if params != nil {
		request["params"] = []interface{}{params}
	}
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stableips.NewNetworkError(stableips.NetworkXRP, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return stableips.NewNetworkError(stableips.NetworkXRP, method,
			fmt.Errorf("rippled returned %d: %s", resp.StatusCode, string(raw)))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return stableips.NewNetworkError(stableips.NetworkXRP, method,
			fmt.Errorf("failed to decode response: %w", err))
	}

	// rippled reports failures inside the result envelope.
	var status struct {
		Status       string `json:"status"`
		Error        string `json:"error"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(envelope.Result, &status); err != nil {
		return stableips.NewNetworkError(stableips.NetworkXRP, method,
			fmt.Errorf("failed to decode result status: %w", err))
	}
	if status.Error != "" {
		return &RPCError{Code: status.Error, Message: status.ErrorMessage}
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return stableips.NewNetworkError(stableips.NetworkXRP, method,
			fmt.Errorf("failed to decode %s result: %w", method, err))
	}
	return nil
}
