// Package generator turns one source text into exactly N display-ready
// variants, driving a backend under a bounded call budget and falling back to
// offline text when the backend cannot deliver.
package generator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/sproto/internal/backend"
	"github.com/danielpatrickdp/sproto/internal/extractor"
	"github.com/danielpatrickdp/sproto/internal/logging"
)

// #region constants

const (
	defaultAttempts = 3 // batched calls before single-sample top-ups
	baseTokens      = 64
	tokensPerWord   = 8
	maxTokens       = 512
)

// #endregion constants

// #region types

// Config shapes generation.
type Config struct {
	Variants    int // used when Generate is asked for n < 1
	MaxAttempts int // batched attempts; 0 means 3
	Profile     extractor.Profile
	Templates   bool // fill shortfall from style templates; otherwise Placeholder
	Persona     string
	Temperature float32
}

// PromptSource supplies the current system prompt.
type PromptSource interface {
	Current() string
}

// StaticPrompt is a PromptSource that never changes.
type StaticPrompt string

// Current returns s.
func (s StaticPrompt) Current() string { return string(s) }

// Result is the outcome of one Generate call.
type Result struct {
	Variants      []string
	FromBackend   int
	FromTemplates int // includes placeholders
	Calls         int
	Permanent     bool // a permanent backend error stopped generation
}

// Generator drives a backend to produce variants.
type Generator struct {
	backend backend.Backend
	prompt  PromptSource
	cfg     Config
	log     *zap.Logger
}

// #endregion types

// #region constructor

// New creates a Generator. Zero-valued Config fields get defaults.
func New(b backend.Backend, prompt PromptSource, cfg Config, log *zap.Logger) *Generator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultAttempts
	}
	if cfg.Variants <= 0 {
		cfg.Variants = 2
	}
	if cfg.Profile.MaxRunes <= 0 {
		cfg.Profile = extractor.Chat
	}
	if prompt == nil {
		prompt = StaticPrompt("")
	}
	return &Generator{backend: b, prompt: prompt, cfg: cfg, log: logging.OrNop(log).Named("generator")}
}

// #endregion constructor

// #region generate

// Generate returns exactly n variants for source, all passing the configured
// filter. It never fails: backend errors are logged and the shortfall is
// filled offline. Transient errors are retried within the call budget of
// MaxAttempts batched calls plus at most n single-sample calls; a permanent
// error or a done ctx stops all further calls.
func (g *Generator) Generate(ctx context.Context, source string, n int) Result {
	if n < 1 {
		n = g.cfg.Variants
	}
	log := logging.FromContext(ctx, g.log).With(zap.Int("want", n))

	p := backend.Prompt{
		System:      g.prompt.Current(),
		User:        source,
		Persona:     g.cfg.Persona,
		MaxTokens:   MaxNewTokens(source),
		Temperature: g.cfg.Temperature,
	}

	var res Result
	have := newAccumulator(n)

	call := func(samples int) bool {
		if ctx.Err() != nil {
			return false
		}
		res.Calls++
		raws, err := g.backend.Complete(ctx, p, samples)
		if err != nil {
			if backend.IsPermanent(err) {
				res.Permanent = true
				log.Error("backend permanent failure", zap.Int("call", res.Calls), zap.Error(err))
				return false
			}
			log.Warn("backend transient failure", zap.Int("call", res.Calls), zap.Error(err))
			return true
		}
		before := have.len()
		have.add(extractor.ExtractAll(raws, p.EchoMarker(), g.cfg.Profile))
		log.Debug("backend call",
			zap.Int("call", res.Calls),
			zap.Int("raw", len(raws)),
			zap.Int("accepted", have.len()-before),
		)
		return true
	}

	for attempt := 0; attempt < g.cfg.MaxAttempts && !have.full(); attempt++ {
		if !call(n) {
			break
		}
	}
	if !res.Permanent {
		for topUp := 0; topUp < n && !have.full(); topUp++ {
			if !call(1) {
				break
			}
		}
	}

	res.FromBackend = have.len()
	shortfall := n - have.len()
	if shortfall > 0 {
		var fill []string
		if g.cfg.Templates {
			fill = templateVariants(source, shortfall, g.cfg.Profile, have.seen)
		} else {
			fill = placeholders(shortfall, have.seen)
		}
		have.add(fill)
		res.FromTemplates = shortfall
		log.Info("filled shortfall offline",
			zap.Int("count", shortfall),
			zap.Bool("templates", g.cfg.Templates),
			zap.Bool("permanent", res.Permanent),
		)
	}

	res.Variants = have.items[:n]
	return res
}

// MaxNewTokens sizes the completion budget from the source length:
// 64 plus 8 per word, capped at 512.
func MaxNewTokens(source string) int {
	t := baseTokens + tokensPerWord*len(strings.Fields(source))
	if t > maxTokens {
		return maxTokens
	}
	return t
}

// #endregion generate

// #region accumulator

// accumulator keeps novel variants in arrival order.
type accumulator struct {
	want  int
	items []string
	seen  map[string]struct{}
}

func newAccumulator(want int) *accumulator {
	return &accumulator{want: want, seen: make(map[string]struct{}, want)}
}

func (a *accumulator) add(vs []string) {
	for _, v := range vs {
		if a.full() {
			return
		}
		if _, dup := a.seen[v]; dup {
			continue
		}
		a.seen[v] = struct{}{}
		a.items = append(a.items, v)
	}
}

func (a *accumulator) len() int   { return len(a.items) }
func (a *accumulator) full() bool { return len(a.items) >= a.want }

// #endregion accumulator
