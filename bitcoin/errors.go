// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
	"fmt"
	"time"
)

// Category defines broad class of inscription failure.
type Category string

const (
	// CategoryNetwork defines failures of external connectivity.
	CategoryNetwork Category = "NETWORK"
	// CategoryWallet defines failures around funds, UTXOs and signing.
	CategoryWallet Category = "WALLET"
	// CategoryValidation defines failures of caller-supplied data.
	CategoryValidation Category = "VALIDATION"
	// CategorySystem defines internal and environmental failures.
	CategorySystem Category = "SYSTEM"
)

// Severity defines how serious an inscription failure is.
type Severity string

const (
	// SeverityInfo defines informational severity.
	SeverityInfo Severity = "INFO"
	// SeverityWarning defines warning severity.
	SeverityWarning Severity = "WARNING"
	// SeverityError defines error severity.
	SeverityError Severity = "ERROR"
	// SeverityCritical defines critical severity. Critical errors must never be retried.
	SeverityCritical Severity = "CRITICAL"
)

// Code defines stable identifier of an inscription failure kind.
type Code string

const (
	// CodeNetworkDisconnected defines lost connectivity to an external service.
	CodeNetworkDisconnected Code = "NETWORK_DISCONNECTED"
	// CodeRequestTimeout defines an external request that did not complete in time.
	CodeRequestTimeout Code = "REQUEST_TIMEOUT"
	// CodeAPIError defines an external service responding with an error.
	CodeAPIError Code = "API_ERROR"

	// CodeInsufficientFunds defines that provided UTXOs do not cover the target amount.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	// CodeInvalidUTXO defines an unusable funding output.
	CodeInvalidUTXO Code = "INVALID_UTXO"
	// CodeMissingUTXO defines that no funding output was provided.
	CodeMissingUTXO Code = "MISSING_UTXO"
	// CodeSigningError defines a failed signature operation.
	CodeSigningError Code = "SIGNING_ERROR"
	// CodeCommitTxFailed defines a failed commit transaction build.
	CodeCommitTxFailed Code = "COMMIT_TX_FAILED"
	// CodeRevealTxFailed defines a failed reveal transaction build.
	CodeRevealTxFailed Code = "REVEAL_TX_FAILED"

	// CodeInvalidInput defines malformed caller-supplied data.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeContentTooLarge defines inscription content above the allowed size.
	CodeContentTooLarge Code = "CONTENT_TOO_LARGE"
	// CodeInvalidFeeRate defines a non-positive fee rate.
	CodeInvalidFeeRate Code = "INVALID_FEE_RATE"
	// CodeInvalidTransaction defines a transaction failing extraction or serialization.
	CodeInvalidTransaction Code = "INVALID_TRANSACTION"

	// CodeUnexpectedError defines an unclassified internal failure.
	CodeUnexpectedError Code = "UNEXPECTED_ERROR"
	// CodeInitializationFailed defines a failed pre-flight environment check.
	CodeInitializationFailed Code = "INITIALIZATION_FAILED"
	// CodeStateError defines an illegal lifecycle transition.
	CodeStateError Code = "STATE_ERROR"
)

// codeInfo defines fixed user-facing mapping for every error code.
var codeInfo = map[Code]struct {
	category    Category
	severity    Severity
	message     string
	suggestion  string
	recoverable bool
}{
	CodeNetworkDisconnected:  {CategoryNetwork, SeverityError, "connection to the bitcoin network service was lost", "check connectivity and retry", true},
	CodeRequestTimeout:       {CategoryNetwork, SeverityWarning, "request to an external service timed out", "retry with a longer timeout", true},
	CodeAPIError:             {CategoryNetwork, SeverityError, "external service responded with an error", "inspect the service response and retry", true},
	CodeInsufficientFunds:    {CategoryWallet, SeverityError, "provided UTXOs do not cover the required amount", "add funds or lower the fee rate", false},
	CodeInvalidUTXO:          {CategoryWallet, SeverityError, "funding output is unusable", "verify the outpoint and its value", false},
	CodeMissingUTXO:          {CategoryWallet, SeverityError, "no funding outputs were provided", "fetch unspent outputs before building", false},
	CodeSigningError:         {CategoryWallet, SeverityCritical, "transaction signing failed", "verify the private key matches the reveal public key", false},
	CodeCommitTxFailed:       {CategoryWallet, SeverityError, "commit transaction construction failed", "inspect the wrapped cause", false},
	CodeRevealTxFailed:       {CategoryWallet, SeverityError, "reveal transaction construction failed", "inspect the wrapped cause", false},
	CodeInvalidInput:         {CategoryValidation, SeverityError, "provided input is invalid", "correct the input and rebuild", false},
	CodeContentTooLarge:      {CategoryValidation, SeverityError, "inscription content exceeds the allowed size", "reduce or compress the content", false},
	CodeInvalidFeeRate:       {CategoryValidation, SeverityError, "fee rate must be positive", "supply a fee rate of at least 1 sat/vB", false},
	CodeInvalidTransaction:   {CategoryValidation, SeverityCritical, "transaction failed validation or extraction", "rebuild the transaction from scratch", false},
	CodeUnexpectedError:      {CategorySystem, SeverityCritical, "unexpected internal error", "report the wrapped cause", false},
	CodeInitializationFailed: {CategorySystem, SeverityError, "environment pre-flight check failed", "verify external services are reachable", true},
	CodeStateError:           {CategorySystem, SeverityError, "illegal transaction lifecycle transition", "track re-attempts as new entities", false},
}

// InscriptionError is the structured error type attached to every failed
// builder call. Created at the point of failure, never mutated.
type InscriptionError struct {
	Code        Code              `json:"code"`
	Category    Category          `json:"category"`
	Severity    Severity          `json:"severity"`
	Message     string            `json:"message"`
	Suggestion  string            `json:"suggestion,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
	Recoverable bool              `json:"recoverable"`
	Timestamp   time.Time         `json:"timestamp"`

	cause error
}

// NewError is a constructor for InscriptionError with fixed mapping by code.
func NewError(code Code) *InscriptionError {
	info, ok := codeInfo[code]
	if !ok {
		info = codeInfo[CodeUnexpectedError]
		code = CodeUnexpectedError
	}

	return &InscriptionError{
		Code:        code,
		Category:    info.category,
		Severity:    info.severity,
		Message:     info.message,
		Suggestion:  info.suggestion,
		Recoverable: info.recoverable,
		Timestamp:   time.Now().UTC(),
	}
}

// WithDetail returns the error with an attached context detail.
func (e *InscriptionError) WithDetail(key, value string) *InscriptionError {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value

	return e
}

// WithDetailf returns the error with an attached formatted context detail.
func (e *InscriptionError) WithDetailf(key, format string, args ...any) *InscriptionError {
	return e.WithDetail(key, fmt.Sprintf(format, args...))
}

// WithCause returns the error wrapping the underlying cause.
func (e *InscriptionError) WithCause(cause error) *InscriptionError {
	e.cause = cause

	return e
}

// Error returns error description.
func (e *InscriptionError) Error() string {
	errMsg := fmt.Sprintf("[%s/%s] %s: %s", e.Category, e.Code, e.Severity, e.Message)
	if e.cause != nil {
		errMsg += ": " + e.cause.Error()
	}

	return errMsg
}

// Unwrap returns the underlying cause if any.
func (e *InscriptionError) Unwrap() error {
	return e.cause
}

// Is implements comparator method for [errors] package. Errors with equal
// codes are considered equal regardless of details.
func (e *InscriptionError) Is(target error) bool {
	var other *InscriptionError
	if !errors.As(target, &other) {
		return false
	}

	return e.Code == other.Code
}

// ErrorCode returns the inscription error code carried by err, or
// UNEXPECTED_ERROR when err is not an InscriptionError.
func ErrorCode(err error) Code {
	var iErr *InscriptionError
	if errors.As(err, &iErr) {
		return iErr.Code
	}

	return CodeUnexpectedError
}

// IsRecoverable reports whether err may be retried.
// Unknown error types are never retried.
func IsRecoverable(err error) bool {
	var iErr *InscriptionError
	if errors.As(err, &iErr) {
		return iErr.Recoverable && iErr.Severity != SeverityCritical
	}

	return false
}
