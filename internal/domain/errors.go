package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes exposed on the wire. Callers key retry decisions off
// these, so they must never change once published.
const (
	CodeAlreadyProcessed    = "ALREADY_PROCESSED"
	CodeAlreadyUsed         = "ALREADY_USED"
	CodeTokenConflict       = "TOKEN_CONFLICT"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenNotFound       = "TOKEN_NOT_FOUND"
	CodeTokenNotYetValid    = "TOKEN_NOT_YET_VALID"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeInsufficientPayment = "INSUFFICIENT_PAYMENT"
	CodeInsufficientAmount  = "INSUFFICIENT_AMOUNT"
	CodeTxNotFound          = "TX_NOT_FOUND"
	CodeTxFailed            = "TX_FAILED"
	CodeWrongRecipient      = "WRONG_RECIPIENT"
	CodeVerificationFailed  = "VERIFICATION_FAILED"
	CodeApiNotFound         = "API_NOT_FOUND"
	CodeApiInactive         = "API_INACTIVE"
	CodeProviderNotFound    = "PROVIDER_NOT_FOUND"
	CodeProviderInactive    = "PROVIDER_INACTIVE"
	CodeUpstreamUnreachable = "UPSTREAM_UNREACHABLE"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnknownNetwork      = "UNKNOWN_NETWORK"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is the taxonomy error carried from services up to the wire. Status is
// the HTTP status the gateway responds with; Retryable tells the caller
// whether resubmitting the same request can ever succeed.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Status    int            `json:"-"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail returns the error with one structured detail attached.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func newErr(code, message string, status int, retryable bool) func() *Error {
	return func() *Error {
		return &Error{Code: code, Message: message, Status: status, Retryable: retryable}
	}
}

// Constructors return fresh values so callers can attach per-request details
// without racing on shared state.
var (
	ErrAlreadyProcessed    = newErr(CodeAlreadyProcessed, "transaction has already been processed", http.StatusConflict, false)
	ErrAlreadyUsed         = newErr(CodeAlreadyUsed, "token has already been used", http.StatusGone, false)
	ErrTokenConflict       = newErr(CodeTokenConflict, "token was consumed by a concurrent request", http.StatusConflict, false)
	ErrTokenExpired        = newErr(CodeTokenExpired, "token has expired", http.StatusGone, false)
	ErrTokenNotFound       = newErr(CodeTokenNotFound, "token not found", http.StatusNotFound, false)
	ErrTokenNotYetValid    = newErr(CodeTokenNotYetValid, "token is not valid yet", http.StatusForbidden, false)
	ErrInvalidToken        = newErr(CodeInvalidToken, "token is not valid for this request", http.StatusForbidden, false)
	ErrInsufficientPayment = newErr(CodeInsufficientPayment, "payment does not cover a single call", http.StatusPaymentRequired, true)
	ErrInsufficientAmount  = newErr(CodeInsufficientAmount, "on-chain amount is below the required amount", http.StatusPaymentRequired, true)
	ErrTxNotFound          = newErr(CodeTxNotFound, "transaction not found on chain", http.StatusNotFound, true)
	ErrTxFailed            = newErr(CodeTxFailed, "transaction failed on chain", http.StatusPaymentRequired, false)
	ErrWrongRecipient      = newErr(CodeWrongRecipient, "transaction recipient does not match the provider payout address", http.StatusPaymentRequired, false)
	ErrVerificationFailed  = newErr(CodeVerificationFailed, "could not verify transaction on chain", http.StatusBadGateway, true)
	ErrApiNotFound         = newErr(CodeApiNotFound, "api not found", http.StatusNotFound, false)
	ErrApiInactive         = newErr(CodeApiInactive, "api is not active", http.StatusForbidden, true)
	ErrProviderNotFound    = newErr(CodeProviderNotFound, "provider not found", http.StatusNotFound, false)
	ErrProviderInactive    = newErr(CodeProviderInactive, "provider is not active", http.StatusForbidden, true)
	ErrUpstreamUnreachable = newErr(CodeUpstreamUnreachable, "upstream endpoint unreachable", http.StatusBadGateway, true)
	ErrUpstreamError       = newErr(CodeUpstreamError, "upstream endpoint returned an error", http.StatusBadGateway, true)
	ErrUnauthorized        = newErr(CodeUnauthorized, "missing or invalid credentials", http.StatusUnauthorized, false)
	ErrBadRequest          = newErr(CodeBadRequest, "malformed request", http.StatusBadRequest, false)
	ErrUnknownNetwork      = newErr(CodeUnknownNetwork, "network is not supported", http.StatusBadRequest, false)
	ErrInternal            = newErr(CodeInternal, "internal error", http.StatusInternalServerError, false)
)

// Wrap attaches a cause without leaking it to the wire; Error.cause is only
// visible in logs.
func Wrap(e *Error, cause error) *Error {
	e.cause = cause
	return e
}

// AsError extracts a taxonomy error, or wraps unknown errors as internal.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Wrap(ErrInternal(), err)
}
