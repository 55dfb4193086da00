// Package config loads sproto settings from defaults, an optional YAML file,
// a .env file and the environment, then validates them.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/sproto/internal/extractor"
)

// ErrConfig marks configuration that cannot start the service.
var ErrConfig = errors.New("configuration error")

// #region types

// Config holds all sproto configuration.
type Config struct {
	Telegram    TelegramConfig   `yaml:"telegram"`
	PromptPath  string           `yaml:"prompt_path"`
	WatchPrompt bool             `yaml:"watch_prompt"` // reload the prompt file when it changes
	Backend     BackendConfig    `yaml:"backend"`
	Generation  GenerationConfig `yaml:"generation"`
	Feedback    FeedbackConfig   `yaml:"feedback"`
	Candidates  CandidateConfig  `yaml:"candidates"`
	MaxInFlight int              `yaml:"max_in_flight"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// TelegramConfig configures the chat transport.
type TelegramConfig struct {
	Token       string `yaml:"token"`
	Command     string `yaml:"command"`
	PollTimeout int    `yaml:"poll_timeout"` // seconds; also bounds shutdown latency
	APIEndpoint string `yaml:"api_endpoint"` // format with token and method verbs; empty is the public API
}

// BackendConfig selects and configures the text-generation backend.
type BackendConfig struct {
	Kind        string        `yaml:"kind"` // offline, sidecar, ollama, openai, gemini
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	SidecarAddr string        `yaml:"sidecar_addr"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
}

// GenerationConfig shapes how variants are produced.
type GenerationConfig struct {
	Variants  int    `yaml:"variants"`
	Profile   string `yaml:"profile"`
	Templates bool   `yaml:"templates"`
	Persona   string `yaml:"persona"`
}

// FeedbackConfig locates the vote log and its optional SQL mirror.
type FeedbackConfig struct {
	Path      string `yaml:"path"`
	MirrorDSN string `yaml:"mirror_dsn"`
}

// CandidateConfig bounds how long an unvoted variant is remembered.
type CandidateConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	SweepEvery time.Duration `yaml:"sweep_every"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Backend kinds.
const (
	BackendOffline = "offline"
	BackendSidecar = "sidecar"
	BackendOllama  = "ollama"
	BackendOpenAI  = "openai"
	BackendGemini  = "gemini"
)

// ValidBackends lists every supported backend kind.
var ValidBackends = []string{BackendOffline, BackendSidecar, BackendOllama, BackendOpenAI, BackendGemini}

// #endregion types

// #region defaults

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Telegram:   TelegramConfig{Command: "sproto", PollTimeout: 10},
		PromptPath: "prompt.txt",
		Backend: BackendConfig{
			Kind:        BackendOffline,
			Model:       "gpt2",
			SidecarAddr: "localhost:50051",
			Timeout:     60 * time.Second,
			Temperature: 0.8,
		},
		Generation: GenerationConfig{
			Variants:  2,
			Profile:   extractor.Chat.Name,
			Templates: true,
			Persona:   "Gremlin",
		},
		Feedback:    FeedbackConfig{Path: "feedback.csv"},
		Candidates:  CandidateConfig{TTL: 48 * time.Hour, SweepEvery: 10 * time.Minute},
		MaxInFlight: 16,
		Logging:     LoggingConfig{Level: "info"},
	}
}

// #endregion defaults

// #region load

// Load layers defaults, the YAML file at path, the .env file at envFile and
// the process environment, in that order. An empty path falls back to
// sproto.yaml and an empty envFile to .env; either may be absent.
func Load(path, envFile string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = "sproto.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	if envFile == "" {
		envFile = ".env"
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("%w: load %s: %v", ErrConfig, envFile, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	strs := map[string]*string{
		"TELEGRAM_TOKEN":        &c.Telegram.Token,
		"MODEL_NAME":            &c.Backend.Model,
		"PROMPT_PATH":           &c.PromptPath,
		"SPROTO_BACKEND":        &c.Backend.Kind,
		"SPROTO_API_KEY":        &c.Backend.APIKey,
		"SPROTO_BASE_URL":       &c.Backend.BaseURL,
		"SPROTO_SIDECAR_ADDR":   &c.Backend.SidecarAddr,
		"SPROTO_PROFILE":        &c.Generation.Profile,
		"SPROTO_PERSONA":        &c.Generation.Persona,
		"SPROTO_FEEDBACK_PATH":  &c.Feedback.Path,
		"SPROTO_MIRROR_DSN":     &c.Feedback.MirrorDSN,
		"SPROTO_LOG_LEVEL":      &c.Logging.Level,
		"SPROTO_COMMAND":        &c.Telegram.Command,
		"TELEGRAM_API_ENDPOINT": &c.Telegram.APIEndpoint,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SPROTO_VARIANTS":      &c.Generation.Variants,
		"SPROTO_MAX_IN_FLIGHT": &c.MaxInFlight,
	}
	for key, dst := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not an integer", ErrConfig, key, v)
			}
			*dst = n
		}
	}

	durs := map[string]*time.Duration{
		"SPROTO_CANDIDATE_TTL":   &c.Candidates.TTL,
		"SPROTO_BACKEND_TIMEOUT": &c.Backend.Timeout,
	}
	for key, dst := range durs {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not a duration", ErrConfig, key, v)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"SPROTO_TEMPLATES":    &c.Generation.Templates,
		"SPROTO_WATCH_PROMPT": &c.WatchPrompt,
	}
	for key, dst := range bools {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not a boolean", ErrConfig, key, v)
			}
			*dst = b
		}
	}

	if v, ok := get("SPROTO_TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("%w: SPROTO_TEMPERATURE=%q is not a number", ErrConfig, v)
		}
		c.Backend.Temperature = float32(f)
	}

	c.FillCredential(lookup)
	return nil
}

// FillCredential takes the provider's own API key variable when no key is set.
// Call it again after changing the backend kind.
func (c *Config) FillCredential(lookup func(string) (string, bool)) {
	if c.Backend.APIKey != "" {
		return
	}
	var key string
	switch c.Backend.Kind {
	case BackendOpenAI:
		key = "OPENAI_API_KEY"
	case BackendGemini:
		key = "GEMINI_API_KEY"
	default:
		return
	}
	if v, ok := lookup(key); ok {
		c.Backend.APIKey = strings.TrimSpace(v)
	}
}

// #endregion load

// #region validate

// Validate reports the first setting that prevents startup, wrapped in ErrConfig.
// A remote backend without a credential is not an error here; it fails
// permanently on first use instead.
func (c Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: TELEGRAM_TOKEN is not set", ErrConfig)
	}
	if strings.TrimSpace(c.Telegram.Command) == "" {
		return fmt.Errorf("%w: command name is empty", ErrConfig)
	}
	if _, err := os.ReadFile(c.PromptPath); err != nil {
		return fmt.Errorf("%w: prompt file: %v", ErrConfig, err)
	}
	if c.Generation.Variants < 1 {
		return fmt.Errorf("%w: variants must be at least 1, got %d", ErrConfig, c.Generation.Variants)
	}
	if _, err := extractor.ProfileByName(c.Generation.Profile); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if !slices.Contains(ValidBackends, c.Backend.Kind) {
		return fmt.Errorf("%w: unknown backend %q (valid: %v)", ErrConfig, c.Backend.Kind, ValidBackends)
	}
	if c.Backend.Kind == BackendSidecar && c.Backend.SidecarAddr == "" {
		return fmt.Errorf("%w: sidecar backend needs an address", ErrConfig)
	}
	if c.Feedback.Path == "" {
		return fmt.Errorf("%w: feedback path is empty", ErrConfig)
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("%w: max in flight must be at least 1, got %d", ErrConfig, c.MaxInFlight)
	}
	return nil
}

// NeedsCredential reports whether a remote backend is selected without an API key.
func (b BackendConfig) NeedsCredential() bool {
	return (b.Kind == BackendOpenAI || b.Kind == BackendGemini) && b.APIKey == ""
}

// #endregion validate
