package stableips

import "fmt"

// Validation error codes
const (
	ErrCodeInvalidAmount     = "invalid_amount"
	ErrCodeMissingRecipient  = "missing_recipient"
	ErrCodeUnsupportedToken  = "unsupported_token"
	ErrCodeInvalidEvmAddress = "invalid_evm_address"
)

// Key format error codes
const (
	ErrCodeRegenerateWallet  = "regenerate_wallet"
	ErrCodeUnsupportedFormat = "unsupported_format"
)

// ValidationError reports an input rejected before dispatch. Surfaced
// verbatim to the caller; never retried.
type ValidationError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// KeyFormatError reports a stored key or seed that cannot be parsed. These
// are permanent: the caller is instructed to regenerate, never to retry.
type KeyFormatError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewKeyFormatError creates a new key format error
func NewKeyFormatError(code, message string) *KeyFormatError {
	return &KeyFormatError{Code: code, Message: message}
}

// BalanceError reports a pre-submit or submit-time balance check failure.
type BalanceError struct {
	Available string `json:"available"`
	Required  string `json:"required"`
	Asset     Token  `json:"asset"`
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s %s", e.Available, e.Required, e.Asset)
}

// NewBalanceError creates a new insufficient balance error
//
// Args:
//
//	available: Decimal balance the sender holds
//	required: Decimal amount the operation needs
//	asset: Token the amounts are denominated in
//
// Returns:
//
//	*BalanceError
func NewBalanceError(available, required string, asset Token) *BalanceError {
	return &BalanceError{Available: available, Required: required, Asset: asset}
}

// NetworkError reports a transient RPC failure. The transfer path surfaces
// it; the monitor path leaves the entry PENDING and logs.
type NetworkError struct {
	Network Network `json:"network"`
	Op      string  `json:"op"`
	Err     error   `json:"-"`
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s", e.Network, e.Op, e.Err.Error())
	}
	return fmt.Sprintf("%s %s failed", e.Network, e.Op)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new transient network error
func NewNetworkError(network Network, op string, err error) *NetworkError {
	return &NetworkError{Network: network, Op: op, Err: err}
}

// ConfigError reports a required configuration key missing at the moment it
// is needed.
type ConfigError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Message)
}

// NewConfigError creates a new configuration error
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message}
}

// NotFoundError reports a ledger or registry lookup miss.
type NotFoundError struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}
