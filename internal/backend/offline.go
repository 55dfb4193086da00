package backend

import (
	"context"
	"errors"
)

// Offline is the backend used when no model is reachable or configured.
// Every call fails permanently so the caller falls back immediately.
type Offline struct {
	Reason string
}

// Complete always returns ErrPermanent.
func (o Offline) Complete(context.Context, Prompt, int) ([]string, error) {
	reason := o.Reason
	if reason == "" {
		reason = "no backend configured"
	}
	return nil, Permanent(errors.New(reason))
}
