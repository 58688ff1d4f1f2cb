package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/ledger"
	"github.com/graphtrek/stableips-sub001/registry"
	"github.com/graphtrek/stableips-sub001/storage"
	"github.com/graphtrek/stableips-sub001/wallet"
)

// stubAdapter submits nothing and scripts deterministic hashes. Addresses
// differ within their first eight characters so synthetic faucet hashes
// minted in the same millisecond stay unique.
type stubAdapter struct {
	network    stableips.Network
	hashPrefix string

	mu          sync.Mutex
	seq         int
	keyn        int
	transferErr error
}

func (a *stubAdapter) Network() stableips.Network { return a.network }

func (a *stubAdapter) GenerateKeypair() (stableips.Keypair, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keyn++
	prefix := strings.ToLower(string(a.network))[:3]
	return stableips.Keypair{
		Address: fmt.Sprintf("%s%d-addr", prefix, a.keyn),
		Secret:  fmt.Sprintf("%s%d-secret", prefix, a.keyn),
	}, nil
}

func (a *stubAdapter) Balance(context.Context, string, stableips.Token) (string, error) {
	return "5", nil
}

func (a *stubAdapter) Transfer(context.Context, string, string, string, stableips.Token) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.transferErr != nil {
		return "", a.transferErr
	}
	return a.nextHashLocked(), nil
}

func (a *stubAdapter) Mint(context.Context, string, string, string, stableips.Token) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextHashLocked(), nil
}

func (a *stubAdapter) Receipt(context.Context, string) (*stableips.Receipt, error) {
	return &stableips.Receipt{}, nil
}

func (a *stubAdapter) LatestBlock(context.Context) (uint64, error) { return 0, nil }

func (a *stubAdapter) nextHashLocked() string {
	a.seq++
	return fmt.Sprintf("%s%04d", a.hashPrefix, a.seq)
}

type stubFaucet struct{ err error }

func (f *stubFaucet) Fund(context.Context, string, string) error { return f.err }

type stubAirdrop struct{ hash string }

func (d *stubAirdrop) Airdrop(context.Context, string, string) (string, error) {
	return d.hash, nil
}

type apiEnv struct {
	srv *Server
	svc *wallet.Service
	evm *stubAdapter
	xrp *stubAdapter
	sol *stubAdapter
}

func defaultFunding() wallet.FundingConfig {
	return wallet.FundingConfig{
		EVMPrivateKey: "funding-key",
		InitialETH:    "10",
		InitialXRP:    "10",
		InitialSOL:    "1",
	}
}

func newAPIEnv(t *testing.T, funding wallet.FundingConfig) *apiEnv {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	evm := &stubAdapter{network: stableips.NetworkEthereum, hashPrefix: "0x" + strings.Repeat("fe", 10)}
	xrp := &stubAdapter{network: stableips.NetworkXRP, hashPrefix: strings.Repeat("D00D", 8)}
	sol := &stubAdapter{network: stableips.NetworkSolana, hashPrefix: "SoLSig"}
	log := zaptest.NewLogger(t)

	svc := wallet.NewService(wallet.Config{
		Users:   registry.NewStore(db, evm, xrp, sol),
		Ledger:  ledger.NewStore(db),
		EVM:     evm,
		XRP:     xrp,
		Solana:  sol,
		Minter:  evm,
		Faucet:  &stubFaucet{},
		Airdrop: &stubAirdrop{hash: "SoLDropA1"},
		Tokens:  []stableips.Token{stableips.TokenUSDC, stableips.TokenEURC},
		Funding: funding,
		Logger:  log,
	})

	return &apiEnv{
		srv: NewServer(svc, log),
		svc: svc,
		evm: evm,
		xrp: xrp,
		sol: sol,
	}
}

func (env *apiEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	return rec
}

func (env *apiEnv) user(t *testing.T, username string) *registry.User {
	t.Helper()
	u, err := env.svc.CreateUser(context.Background(), username)
	require.NoError(t, err)
	return u
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	decodeBody(t, rec, &body)
	return body
}

func TestCreateUserEndpoint(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())

	rec := env.do(t, http.MethodPost, "/users", map[string]string{"username": "alice"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json; charset=UTF-8", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var got map[string]interface{}
	decodeBody(t, rec, &got)
	require.Equal(t, "alice", got["username"])
	require.NotEmpty(t, got["evmAddress"])
	require.NotEmpty(t, got["xrpAddress"])
	require.NotEmpty(t, got["solanaPublicKey"])
	for _, secret := range []string{"evmPrivateKeyHex", "xrpSeedHex", "solanaSecretKeyB64"} {
		_, leaked := got[secret]
		require.False(t, leaked, "response leaks %s", secret)
	}
}

func TestCreateUserRejectsBadJSON(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, errCodeInvalidRequest, decodeError(t, rec).Code)
}

func TestTransferEndpoint(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/transfers", u.ID), map[string]string{
		"recipient": "rDestination1",
		"amount":    "2.5",
		"token":     "XRP",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var entry ledger.Entry
	decodeBody(t, rec, &entry)
	require.Equal(t, stableips.StatusPending, entry.Status)
	require.Equal(t, stableips.NetworkXRP, entry.Network)
	require.Equal(t, "rDestination1", entry.Recipient)
	require.NotEmpty(t, entry.TxHash)
}

func TestTransferRejectsBadAmount(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/transfers", u.ID), map[string]string{
		"recipient": "rDestination1",
		"amount":    "abc",
		"token":     "XRP",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, stableips.ErrCodeInvalidAmount, body.Code)
	require.Equal(t, "abc", body.Details["amount"])
}

func TestTransferInsufficientBalanceIs422(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")
	env.xrp.transferErr = stableips.NewBalanceError("0.5", "2", stableips.TokenXRP)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/transfers", u.ID), map[string]string{
		"recipient": "rDestination1",
		"amount":    "2",
		"token":     "XRP",
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "insufficient_balance", body.Code)
	require.Equal(t, "0.5", body.Details["available"])
	require.Equal(t, "2", body.Details["required"])
}

func TestTransferNetworkFailureIs502(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")
	env.sol.transferErr = stableips.NewNetworkError(stableips.NetworkSolana, "sendTransaction",
		fmt.Errorf("connection refused"))

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/transfers", u.ID), map[string]string{
		"recipient": "9yQ5TDuzzzR2uFfVkNlItJvBDDsNhMRc4iY3PaMEqiap",
		"amount":    "1",
		"token":     "SOL",
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "network", decodeError(t, rec).Code)
}

func TestUnknownUserIs404(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())

	rec := env.do(t, http.MethodPost, "/users/42/transfers", map[string]string{
		"recipient": "rDestination1",
		"amount":    "1",
		"token":     "XRP",
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestMalformedUserIDIs400(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())

	rec := env.do(t, http.MethodGet, "/users/abc/balances", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, errCodeInvalidRequest, decodeError(t, rec).Code)
}

func TestTransactionsEndpoint(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")
	_, err := env.svc.InitiateTransfer(context.Background(), u.ID, "rDestination1", "2", "XRP")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/users/%d/transactions", u.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var list wallet.TransactionList
	decodeBody(t, rec, &list)
	require.Len(t, list.Sent, 3, "drip, faucet credit, transfer")
	require.Len(t, list.Received, 2, "the two funding credits land on the user's own addresses")
	require.Len(t, list.Funding, 2)
	require.Len(t, list.All, 3)
}

func TestRegenerateXrpWalletEndpoint(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/xrp-wallet", u.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got userResponse
	decodeBody(t, rec, &got)
	require.Equal(t, u.ID, got.ID)
	require.NotEmpty(t, got.XrpAddress)
	require.NotEqual(t, u.XrpAddress, got.XrpAddress)
}

func TestFundTestTokensEndpoint(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/test-tokens", u.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got wallet.TestTokenFunding
	decodeBody(t, rec, &got)
	require.NotEmpty(t, got.USDC)
	require.NotEmpty(t, got.EURC)
}

func TestFundTestTokensWithoutMinterKeyIs409(t *testing.T) {
	funding := defaultFunding()
	funding.EVMPrivateKey = ""
	env := newAPIEnv(t, funding)
	u := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/test-tokens", u.ID), nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "configuration", body.Code)
	require.Equal(t, "evm.funding.privateKey", body.Details["key"])
}

func TestSolanaFaucetEndpoint(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/users/%d/solana-faucet", u.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var entry ledger.Entry
	decodeBody(t, rec, &entry)
	require.Equal(t, stableips.EntryFaucetFunding, entry.Type)
	require.Equal(t, stableips.StatusConfirmed, entry.Status)
	require.Equal(t, "SoLDropA1", entry.TxHash)
}

func TestBalancesEndpoint(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())
	u := env.user(t, "alice")

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/users/%d/balances", u.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var balances []wallet.Balance
	decodeBody(t, rec, &balances)
	require.Len(t, balances, 5)
	require.Equal(t, stableips.TokenETH, balances[0].Token)
	require.Equal(t, stableips.TokenXRP, balances[1].Token)
	require.Equal(t, stableips.TokenSOL, balances[2].Token)
	require.Equal(t, stableips.TokenUSDC, balances[3].Token)
	require.Equal(t, stableips.TokenEURC, balances[4].Token)
}

func TestRequestIDEchoesClientHeader(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"username":"alice"}`))
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	require.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestMethodNotAllowed(t *testing.T) {
	env := newAPIEnv(t, defaultFunding())

	rec := env.do(t, http.MethodGet, "/users", nil)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
