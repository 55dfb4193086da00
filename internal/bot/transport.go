package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/sproto/internal/feedback"
)

// #region transport

// Action is one selectable button attached to a sent message.
type Action struct {
	Label   string
	Payload string
}

// Transport is the chat platform as seen by the bot.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string, actions []Action) error
	Answer(ctx context.Context, selectionID, text string) error
	ClearActions(ctx context.Context, chatID int64, messageID int) error
}

// Command is an inbound generation request. Text is the argument with the
// command name already removed.
type Command struct {
	ChatID int64
	Voter  string
	Text   string
}

// Selection is an inbound button press.
type Selection struct {
	ID        string
	ChatID    int64
	MessageID int
	Voter     string
	Payload   string
}

// Event carries exactly one of Command or Selection.
type Event struct {
	Command   *Command
	Selection *Selection
}

// #endregion transport

// #region payload

// MaxPayloadBytes is the transport's ceiling for a button payload.
const MaxPayloadBytes = 64

// ErrPayloadTooLarge is returned when an encoded payload exceeds MaxPayloadBytes.
var ErrPayloadTooLarge = errors.New("payload too large")

const payloadSep = "|"

// EncodePayload renders "<vote>|<id>".
func EncodePayload(v feedback.Vote, id string) (string, error) {
	if _, err := feedback.ParseVote(string(v)); err != nil {
		return "", err
	}
	p := string(v) + payloadSep + id
	if len(p) > MaxPayloadBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(p))
	}
	return p, nil
}

// DecodePayload splits a payload produced by EncodePayload.
func DecodePayload(s string) (feedback.Vote, string, error) {
	raw, id, ok := strings.Cut(s, payloadSep)
	if !ok || id == "" {
		return "", "", fmt.Errorf("malformed payload %q", s)
	}
	v, err := feedback.ParseVote(raw)
	if err != nil {
		return "", "", err
	}
	return v, id, nil
}

// #endregion payload
