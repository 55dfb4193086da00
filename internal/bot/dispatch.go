package bot

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/sproto/internal/logging"
)

// Handler is the part of Bot the dispatcher drives.
type Handler interface {
	HandleCommand(ctx context.Context, cmd Command) error
	HandleSelection(ctx context.Context, sel Selection) error
}

// Dispatcher runs one goroutine per inbound event, at most maxInFlight at a
// time, so a slow generation for one user never holds up another.
type Dispatcher struct {
	handler     Handler
	maxInFlight int
	log         *zap.Logger
}

// NewDispatcher creates a Dispatcher. maxInFlight < 1 means 1.
func NewDispatcher(h Handler, maxInFlight int, log *zap.Logger) *Dispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Dispatcher{handler: h, maxInFlight: maxInFlight, log: logging.OrNop(log).Named("dispatch")}
}

// Run consumes events until the channel closes (returning nil) or ctx is done
// (returning ctx.Err()), then waits for in-flight handlers. Handler errors are
// logged and never stop the loop.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) error {
	var g errgroup.Group
	g.SetLimit(d.maxInFlight)

	defer func() { _ = g.Wait() }()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			// blocks while maxInFlight handlers are running
			g.Go(func() error {
				d.handle(ctx, ev)
				return nil
			})
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked", zap.Any("panic", r))
		}
	}()

	switch {
	case ev.Command != nil:
		if err := d.handler.HandleCommand(ctx, *ev.Command); err != nil {
			d.log.Warn("command handling failed", zap.String("voter", ev.Command.Voter), zap.Error(err))
		}
	case ev.Selection != nil:
		if err := d.handler.HandleSelection(ctx, *ev.Selection); err != nil {
			d.log.Warn("selection handling failed", zap.String("voter", ev.Selection.Voter), zap.Error(err))
		}
	default:
		d.log.Debug("empty event dropped")
	}
}
