// Command sproto runs the Telegram bot: /sproto <text> replies with votable
// rewrites, and every vote is appended to the feedback log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/sproto/internal/backend"
	"github.com/danielpatrickdp/sproto/internal/bot"
	"github.com/danielpatrickdp/sproto/internal/candidate"
	"github.com/danielpatrickdp/sproto/internal/config"
	"github.com/danielpatrickdp/sproto/internal/extractor"
	"github.com/danielpatrickdp/sproto/internal/feedback"
	"github.com/danielpatrickdp/sproto/internal/generator"
	"github.com/danielpatrickdp/sproto/internal/logging"
	"github.com/danielpatrickdp/sproto/internal/telegram"
)

// #region main

// overrides are command-line settings that win over file and environment.
type overrides struct {
	configPath string
	envFile    string
	backend    string
	model      string
	promptPath string
	variants   int
	logLevel   string
	dev        bool
	watch      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:          "sproto",
		Short:        "Telegram bot that rewrites text and collects votes on the variants",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configPath, o.envFile)
			if err != nil {
				return err
			}
			o.apply(&cfg, cmd.Flags())
			cfg.FillCredential(os.LookupEnv)
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file (default sproto.yaml if present)")
	f.StringVar(&o.envFile, "env-file", "", "dotenv file (default .env if present)")
	f.StringVar(&o.backend, "backend", "", fmt.Sprintf("generation backend %v", config.ValidBackends))
	f.StringVar(&o.model, "model", "", "model name for the backend")
	f.StringVar(&o.promptPath, "prompt", "", "system prompt file")
	f.IntVarP(&o.variants, "variants", "n", 0, "variants per request")
	f.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&o.dev, "dev", false, "human-readable console logs")
	f.BoolVar(&o.watch, "watch-prompt", false, "reload the prompt file when it changes")
	return cmd
}

// apply copies every flag the user set onto cfg.
func (o overrides) apply(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("backend") && o.backend != cfg.Backend.Kind {
		// the key from the file or environment belonged to the old backend
		cfg.Backend.Kind = o.backend
		cfg.Backend.APIKey = ""
	}
	if flags.Changed("model") {
		cfg.Backend.Model = o.model
	}
	if flags.Changed("prompt") {
		cfg.PromptPath = o.promptPath
	}
	if flags.Changed("variants") {
		cfg.Generation.Variants = o.variants
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("dev") {
		cfg.Logging.Development = o.dev
	}
	if flags.Changed("watch-prompt") {
		cfg.WatchPrompt = o.watch
	}
}

// #endregion main

// #region run

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	prompt, err := config.LoadPrompt(cfg.PromptPath, log)
	if err != nil {
		return err
	}
	profile, err := extractor.ProfileByName(cfg.Generation.Profile)
	if err != nil {
		return err
	}

	b, closer, err := backend.New(ctx, cfg.Backend, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	gen := generator.New(b, prompt, generator.Config{
		Variants:    cfg.Generation.Variants,
		Profile:     profile,
		Templates:   cfg.Generation.Templates,
		Persona:     cfg.Generation.Persona,
		Temperature: cfg.Backend.Temperature,
	}, log)

	rec, closeRec, err := openRecorder(cfg.Feedback, log)
	if err != nil {
		return err
	}
	defer closeRec()

	tg, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.APIEndpoint, cfg.Telegram.Command, cfg.Telegram.PollTimeout, log)
	if err != nil {
		return err
	}

	store := candidate.NewStore(cfg.Candidates.TTL, log)
	sproto := bot.New(tg, gen, store, rec, bot.Config{Command: cfg.Telegram.Command, Variants: cfg.Generation.Variants}, log)
	dispatcher := bot.NewDispatcher(sproto, cfg.MaxInFlight, log)

	log.Info("sproto started",
		zap.String("backend", cfg.Backend.Kind),
		zap.String("model", cfg.Backend.Model),
		zap.String("command", "/"+cfg.Telegram.Command),
		zap.Int("variants", cfg.Generation.Variants),
		zap.String("feedback", cfg.Feedback.Path),
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Candidates.TTL > 0 && cfg.Candidates.SweepEvery > 0 {
		g.Go(func() error {
			store.Run(gctx, cfg.Candidates.SweepEvery)
			return nil
		})
	}
	if cfg.WatchPrompt {
		g.Go(func() error {
			if err := prompt.Watch(gctx); err != nil {
				log.Warn("prompt watcher stopped", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		return dispatcher.Run(gctx, tg.Events(gctx))
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info("sproto stopped")
		return nil
	}
	return err
}

// openRecorder returns the CSV vote log, mirrored into SQL when a DSN is set.
func openRecorder(cfg config.FeedbackConfig, log *zap.Logger) (feedback.Recorder, func(), error) {
	log = logging.OrNop(log)
	file := feedback.NewFileRecorder(cfg.Path)
	if cfg.MirrorDSN == "" {
		return file, func() {}, nil
	}

	db, dialect, err := feedback.OpenMirror(cfg.MirrorDSN)
	if err != nil {
		return nil, nil, err
	}
	log.Info("vote mirror enabled", zap.String("dialect", string(dialect)))
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn("close vote mirror", zap.Error(err))
		}
	}
	return feedback.Multi(file, feedback.NewSQLRecorder(db, dialect)), closeDB, nil
}

// #endregion run
