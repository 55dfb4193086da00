package feedback

import (
	"context"
	"fmt"
	"time"
)

// #region vote

// Vote is the direction of a single vote event.
type Vote string

const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// ParseVote maps a wire value to a Vote.
func ParseVote(s string) (Vote, error) {
	switch Vote(s) {
	case VoteUp, VoteDown:
		return Vote(s), nil
	default:
		return "", fmt.Errorf("unknown vote %q", s)
	}
}

// #endregion vote

// #region record

// UnknownText is recorded when a vote arrives for a candidate the store no longer holds.
const UnknownText = "Unknown text"

// Record is one row of the vote log. Written once, never mutated.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Voter     string    `json:"voter"`
	Vote      Vote      `json:"vote"`
	Text      string    `json:"text"`
}

// Recorder appends vote records to durable storage.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// #endregion record
