// Package backend adapts text-generation services to a single call shape:
// given a prompt, return up to N raw completions.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region types

// Prompt is one generation request.
type Prompt struct {
	System      string
	User        string
	Persona     string
	MaxTokens   int
	Temperature float32
}

// Text renders the completion-style prompt used by local models:
// "<System>\nUser: <User>\n<Persona>:".
func (p Prompt) Text() string {
	return p.System + "\nUser: " + p.User + "\n" + p.EchoMarker()
}

// EchoMarker is the line prefix after which a completion model's own text begins.
func (p Prompt) EchoMarker() string {
	if p.Persona == "" {
		return ""
	}
	return p.Persona + ":"
}

// Backend produces raw completions. Implementations never retry or sleep;
// they may return fewer than samples strings. Every error wraps exactly one
// of ErrTransient or ErrPermanent.
type Backend interface {
	Complete(ctx context.Context, p Prompt, samples int) ([]string, error)
}

// #endregion types

// #region errors

var (
	// ErrTransient marks failures worth retrying: timeouts, overload, network.
	ErrTransient = errors.New("transient backend error")
	// ErrPermanent marks failures that will not resolve by retrying:
	// missing credentials, rejected requests, unknown models.
	ErrPermanent = errors.New("permanent backend error")
)

// Transient wraps err as ErrTransient.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent wraps err as ErrPermanent.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err is classified permanent. Unclassified
// errors count as transient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// ClassifyHTTP wraps err according to an HTTP status code. A zero status,
// meaning no response arrived, is transient.
func ClassifyHTTP(statusCode int, err error) error {
	switch {
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		return Transient(err)
	case statusCode >= 400:
		return Permanent(err)
	default:
		return Transient(err)
	}
}

// ClassifyGRPC wraps err according to its gRPC status code.
func ClassifyGRPC(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument,
		codes.NotFound, codes.Unimplemented, codes.FailedPrecondition:
		return Permanent(err)
	default:
		return Transient(err)
	}
}

// #endregion errors
