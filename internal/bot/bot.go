// Package bot wires generation, the candidate store and the vote log to a
// chat transport: commands fan out into votable variants, and button presses
// become vote records.
package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/sproto/internal/candidate"
	"github.com/danielpatrickdp/sproto/internal/feedback"
	"github.com/danielpatrickdp/sproto/internal/generator"
	"github.com/danielpatrickdp/sproto/internal/logging"
)

// Generator produces exactly n variants for a source text.
type Generator interface {
	Generate(ctx context.Context, source string, n int) generator.Result
}

// Config holds the bot's user-facing settings.
type Config struct {
	Command  string // without the leading slash
	Variants int
}

// Button labels.
const (
	UpLabel   = "👍"
	DownLabel = "👎"
)

// Bot handles one command or selection per call and is safe for concurrent use.
type Bot struct {
	transport Transport
	gen       Generator
	store     *candidate.Store
	recorder  feedback.Recorder
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
}

// New creates a Bot.
func New(t Transport, gen Generator, store *candidate.Store, rec feedback.Recorder, cfg Config, log *zap.Logger) *Bot {
	if cfg.Command == "" {
		cfg.Command = "sproto"
	}
	return &Bot{
		transport: t,
		gen:       gen,
		store:     store,
		recorder:  rec,
		cfg:       cfg,
		log:       logging.OrNop(log).Named("bot"),
		now:       time.Now,
	}
}

// Usage is the reply to a command with no text.
func (b *Bot) Usage() string {
	return "Usage: /" + b.cfg.Command + " your text here"
}

// #region command

// HandleCommand generates variants for cmd.Text and sends each with an
// up/down pair. A variant that cannot be sent is taken back out of the store.
func (b *Bot) HandleCommand(ctx context.Context, cmd Command) error {
	ctx, log := logging.WithRequest(ctx, b.log)
	log = log.With(zap.String("voter", cmd.Voter), zap.Int64("chat", cmd.ChatID))

	if cmd.Text == "" {
		return b.transport.Send(ctx, cmd.ChatID, b.Usage(), nil)
	}

	res := b.gen.Generate(ctx, cmd.Text, b.cfg.Variants)
	log.Info("generated variants",
		zap.Int("count", len(res.Variants)),
		zap.Int("from_backend", res.FromBackend),
		zap.Int("from_templates", res.FromTemplates),
		zap.Int("calls", res.Calls),
	)

	var errs []error
	for _, v := range res.Variants {
		id := b.store.Put(cmd.Voter, v)
		actions, err := voteActions(id)
		if err != nil {
			b.store.Take(id)
			log.Error("cannot encode vote payload", zap.String("id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if err := b.transport.Send(ctx, cmd.ChatID, v, actions); err != nil {
			b.store.Take(id)
			log.Warn("send variant failed", zap.String("id", id), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func voteActions(id string) ([]Action, error) {
	up, err := EncodePayload(feedback.VoteUp, id)
	if err != nil {
		return nil, err
	}
	down, err := EncodePayload(feedback.VoteDown, id)
	if err != nil {
		return nil, err
	}
	return []Action{{Label: UpLabel, Payload: up}, {Label: DownLabel, Payload: down}}, nil
}

// #endregion command

// #region selection

// HandleSelection records a vote. The selection is always answered and its
// buttons cleared; a vote log failure is reported to the operator only.
// A repeated selection on an already-consumed candidate records nothing.
func (b *Bot) HandleSelection(ctx context.Context, sel Selection) error {
	ctx, log := logging.WithRequest(ctx, b.log)
	log = log.With(zap.String("voter", sel.Voter), zap.Int64("chat", sel.ChatID), zap.Int("message", sel.MessageID))

	vote, id, err := DecodePayload(sel.Payload)
	if err != nil {
		log.Warn("undecodable selection", zap.String("payload", sel.Payload), zap.Error(err))
	} else {
		b.recordVote(ctx, log, sel.Voter, vote, id)
	}

	var errs []error
	if err := b.transport.Answer(ctx, sel.ID, ""); err != nil {
		errs = append(errs, err)
	}
	if err := b.transport.ClearActions(ctx, sel.ChatID, sel.MessageID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Bot) recordVote(ctx context.Context, log *zap.Logger, voter string, vote feedback.Vote, id string) {
	entry, status := b.store.Take(id)
	log = log.With(zap.String("id", id), zap.Stringer("status", status), zap.String("vote", string(vote)))

	var text string
	switch status {
	case candidate.Found:
		text = entry.Text
	case candidate.Missing:
		text = feedback.UnknownText
	case candidate.Consumed:
		log.Debug("repeat selection ignored")
		return
	}

	rec := feedback.Record{Timestamp: b.now().UTC(), Voter: voter, Vote: vote, Text: text}
	if err := b.recorder.Record(ctx, rec); err != nil {
		log.Error("vote log write failed", zap.Error(err))
		return
	}
	log.Info("vote recorded")
}

// #endregion selection
