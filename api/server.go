// Package api exposes the wallet verbs as a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/registry"
	"github.com/graphtrek/stableips-sub001/wallet"
)

const (
	requestIDHeader = "X-Request-Id"

	// errCodeInvalidRequest covers request-shape problems the wallet layer
	// never sees: unparsable bodies and malformed path ids.
	errCodeInvalidRequest = "invalid_request"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server routes HTTP requests to the wallet service and maps its errors to
// status codes. It implements http.Handler.
type Server struct {
	svc    *wallet.Service
	log    *zap.Logger
	router *mux.Router
}

// NewServer builds the router with all routes and middleware registered.
func NewServer(svc *wallet.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{svc: svc, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.withRequestID, s.withAccessLog)
	s.router.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{id}/transfers", s.handleInitiateTransfer).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{id}/transactions", s.handleListTransactions).Methods(http.MethodGet)
	s.router.HandleFunc("/users/{id}/xrp-wallet", s.handleRegenerateXrpWallet).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{id}/test-tokens", s.handleFundTestTokens).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{id}/solana-faucet", s.handleFundSolana).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{id}/balances", s.handleBalances).Methods(http.MethodGet)
}

// Serve runs the API on addr until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	s.log.Info("http server listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		s.log.Info("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// userResponse is the public view of a user. Secret material stays
// server-side.
type userResponse struct {
	ID              uint64    `json:"id"`
	Username        string    `json:"username"`
	EvmAddress      string    `json:"evmAddress,omitempty"`
	XrpAddress      string    `json:"xrpAddress,omitempty"`
	SolanaPublicKey string    `json:"solanaPublicKey,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toUserResponse(u *registry.User) *userResponse {
	return &userResponse{
		ID:              u.ID,
		Username:        u.Username,
		EvmAddress:      u.EvmAddress,
		XrpAddress:      u.XrpAddress,
		SolanaPublicKey: u.SolanaPublicKey,
		CreatedAt:       u.CreatedAt,
	}
}

type createUserRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.svc.CreateUser(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
}

func (s *Server) handleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.svc.InitiateTransfer(r.Context(), id, req.Recipient, req.Amount, req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.svc.ListTransactions(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRegenerateXrpWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.svc.RegenerateXrpWallet(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleFundTestTokens(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.FundTestTokens(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFundSolana(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.svc.FundSolana(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balances, err := s.svc.Balances(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balances)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return stableips.NewValidationError(errCodeInvalidRequest, "request body must be valid JSON", nil)
	}
	return nil
}

func pathUserID(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, stableips.NewValidationError(errCodeInvalidRequest,
			fmt.Sprintf("bad user id %q", raw), nil)
	}
	return id, nil
}

// errorResponse is the wire shape of every error this API returns.
type errorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func errorBody(err error) (int, errorResponse) {
	var vErr *stableips.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorResponse{Code: vErr.Code, Message: vErr.Message, Details: vErr.Details}
	}
	var kErr *stableips.KeyFormatError
	if errors.As(err, &kErr) {
		return http.StatusBadRequest, errorResponse{Code: kErr.Code, Message: kErr.Message}
	}
	var nfErr *stableips.NotFoundError
	if errors.As(err, &nfErr) {
		return http.StatusNotFound, errorResponse{Code: "not_found", Message: nfErr.Error()}
	}
	var cfgErr *stableips.ConfigError
	if errors.As(err, &cfgErr) {
		return http.StatusConflict, errorResponse{
			Code:    "configuration",
			Message: cfgErr.Message,
			Details: map[string]interface{}{"key": cfgErr.Key},
		}
	}
	var balErr *stableips.BalanceError
	if errors.As(err, &balErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    "insufficient_balance",
			Message: balErr.Error(),
			Details: map[string]interface{}{
				"available": balErr.Available,
				"required":  balErr.Required,
				"asset":     balErr.Asset,
			},
		}
	}
	var netErr *stableips.NetworkError
	if errors.As(err, &netErr) {
		return http.StatusBadGateway, errorResponse{Code: "network", Message: netErr.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Code: "internal", Message: "internal error"}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}
