// Package telegram connects the bot to the Telegram Bot API by long polling.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/sproto/internal/bot"
	"github.com/danielpatrickdp/sproto/internal/logging"
)

// #region types

// API is the subset of *tgbotapi.BotAPI the client uses.
type API interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client implements bot.Transport over the Telegram Bot API.
type Client struct {
	api         API
	command     string
	pollTimeout int
	retryDelay  time.Duration
	log         *zap.Logger
}

var _ bot.Transport = (*Client)(nil)

// #endregion types

// #region constructor

// New logs in with token and returns a client that reacts to /command.
// endpoint is a Bot API URL format with two %s verbs (token, method); empty
// means the public API.
func New(token, endpoint, command string, pollTimeout int, log *zap.Logger) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	c := NewWithAPI(api, command, pollTimeout, log)
	c.log.Info("telegram connected", zap.String("bot", api.Self.UserName))
	return c, nil
}

// NewWithAPI creates a Client over an injected API.
func NewWithAPI(api API, command string, pollTimeout int, log *zap.Logger) *Client {
	if pollTimeout < 0 {
		pollTimeout = 0
	}
	return &Client{
		api:         api,
		command:     strings.TrimPrefix(command, "/"),
		pollTimeout: pollTimeout,
		retryDelay:  3 * time.Second,
		log:         logging.OrNop(log).Named("telegram"),
	}
}

// #endregion constructor

// #region transport

// Send posts text with actions rendered as one row of inline buttons.
func (c *Client) Send(ctx context.Context, chatID int64, text string, actions []bot.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(actions) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(actions))
		for _, a := range actions {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Payload))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Answer acknowledges a button press.
func (c *Client) Answer(ctx context.Context, selectionID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(selectionID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// ClearActions removes the inline keyboard from a sent message. A zero
// messageID is a no-op.
func (c *Client) ClearActions(ctx context.Context, chatID int64, messageID int) error {
	if messageID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.EditMessageReplyMarkupConfig{
		BaseEdit: tgbotapi.BaseEdit{ChatID: chatID, MessageID: messageID},
	}
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("clear keyboard: %w", err)
	}
	return nil
}

// #endregion transport

// #region polling

// Events long-polls for updates until ctx is done and emits the ones the bot
// handles. The channel is closed when polling stops. GetUpdates itself cannot
// be interrupted, so an in-flight poll finishes (up to pollTimeout) first.
func (c *Client) Events(ctx context.Context) <-chan bot.Event {
	out := make(chan bot.Event)
	go func() {
		defer close(out)
		cfg := tgbotapi.NewUpdate(0)
		cfg.Timeout = c.pollTimeout
		cfg.AllowedUpdates = []string{"message", "callback_query"}

		for ctx.Err() == nil {
			updates, err := c.api.GetUpdates(cfg)
			if err != nil {
				c.log.Warn("get updates failed", zap.Error(err), zap.Duration("retry_in", c.retryDelay))
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.retryDelay):
				}
				continue
			}
			for _, u := range updates {
				if u.UpdateID >= cfg.Offset {
					cfg.Offset = u.UpdateID + 1
				}
				ev, ok := ToEvent(u, c.command)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ToEvent converts an update into a bot event. Messages other than
// /command and updates without a sender are ignored.
func ToEvent(u tgbotapi.Update, command string) (bot.Event, bool) {
	switch {
	case u.Message != nil:
		m := u.Message
		if !m.IsCommand() || !strings.EqualFold(m.Command(), command) || m.Chat == nil {
			return bot.Event{}, false
		}
		return bot.Event{Command: &bot.Command{
			ChatID: m.Chat.ID,
			Voter:  voterID(m.From, m.Chat.ID),
			Text:   CommandText(m.CommandArguments()),
		}}, true

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		sel := &bot.Selection{ID: q.ID, Payload: q.Data}
		if q.Message != nil {
			sel.MessageID = q.Message.MessageID
			if q.Message.Chat != nil {
				sel.ChatID = q.Message.Chat.ID
			}
		}
		sel.Voter = voterID(q.From, sel.ChatID)
		return bot.Event{Selection: sel}, true
	}
	return bot.Event{}, false
}

// CommandText trims the command argument and strips surrounding double quotes.
func CommandText(args string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(args), `"`))
}

func voterID(u *tgbotapi.User, chatID int64) string {
	if u != nil {
		return strconv.FormatInt(u.ID, 10)
	}
	return strconv.FormatInt(chatID, 10)
}

// #endregion polling
