// Package actions orchestrates user write actions against the protocol:
// collecting a post (the multi-step on-chain flow), publishing and
// deleting posts.
package actions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotAuthenticated means the caller has no session client.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrWalletUnavailable means the action needs an on-chain signature
	// but no wallet bridge is connected for the account.
	ErrWalletUnavailable = errors.New("no wallet connected")

	// ErrChainSwitchRejected means the user declined the network switch
	// request. Not retryable by the orchestrator.
	ErrChainSwitchRejected = errors.New("network switch rejected")

	// ErrChainNotRegistered means the wallet does not know the required
	// chain. Not retryable by the orchestrator.
	ErrChainNotRegistered = errors.New("required network not registered in wallet")
)

// ValidationError is a failed precondition check. Each precondition
// produces its own user-facing reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// InsufficientBalanceError is the distinguished "add funds" outcome. The
// protocol exposes no structured error code for it, so it is recognized
// by message text (see classifyUpstreamError).
type InsufficientBalanceError struct {
	Message string
}

func (e *InsufficientBalanceError) Error() string {
	return e.Message
}

// UpstreamError wraps any other protocol or storage failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyUpstreamError distinguishes insufficient-balance failures from
// generic upstream errors. Matching is on case-sensitive substrings of the
// upstream message; brittle, but the protocol provides nothing better
// today. Keep the match here so a structured code can replace it at one
// site.
func classifyUpstreamError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "Not enough balance") || strings.Contains(msg, "insufficient") {
		return &InsufficientBalanceError{Message: msg}
	}
	return &UpstreamError{Op: op, Err: err}
}
