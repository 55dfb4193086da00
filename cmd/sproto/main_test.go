package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/sproto/internal/config"
	"github.com/danielpatrickdp/sproto/internal/feedback"
)

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--backend", "openai", "--model", "gpt-4o-mini", "-n", "4", "--watch-prompt"}))

	cfg := config.DefaultConfig()
	cfg.Backend.APIKey = "sidecar-has-no-key-anyway"
	cfg.Logging.Level = "warn"

	o := overrides{backend: "openai", model: "gpt-4o-mini", variants: 4, watch: true}
	o.apply(&cfg, cmd.Flags())

	require.Equal(t, config.BackendOpenAI, cfg.Backend.Kind)
	require.Empty(t, cfg.Backend.APIKey)
	require.Equal(t, "gpt-4o-mini", cfg.Backend.Model)
	require.Equal(t, 4, cfg.Generation.Variants)
	require.True(t, cfg.WatchPrompt)
	require.Equal(t, "warn", cfg.Logging.Level, "unset flags leave config alone")

	lookup := func(k string) (string, bool) {
		if k == "OPENAI_API_KEY" {
			return "sk-test", true
		}
		return "", false
	}
	cfg.FillCredential(lookup)
	require.Equal(t, "sk-test", cfg.Backend.APIKey)
}

func TestFlagsSameBackendKeepsKey(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--backend", "gemini"}))

	cfg := config.DefaultConfig()
	cfg.Backend.Kind = config.BackendGemini
	cfg.Backend.APIKey = "g-key"
	overrides{backend: "gemini"}.apply(&cfg, cmd.Flags())
	require.Equal(t, "g-key", cfg.Backend.APIKey)
}

func TestOpenRecorderMirrors(t *testing.T) {
	dir := t.TempDir()
	cfg := config.FeedbackConfig{
		Path:      filepath.Join(dir, "feedback.csv"),
		MirrorDSN: filepath.Join(dir, "votes.db"),
	}
	rec, closeRec, err := openRecorder(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	r := feedback.Record{Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), Voter: "7", Vote: feedback.VoteUp, Text: "hi"}
	require.NoError(t, rec.Record(context.Background(), r))
	closeRec()

	fromFile, err := feedback.ReadFile(cfg.Path)
	require.NoError(t, err)
	require.Equal(t, []feedback.Record{r}, fromFile)

	db, dialect, err := feedback.OpenMirror(cfg.MirrorDSN)
	require.NoError(t, err)
	defer db.Close()
	fromDB, err := feedback.ListVotes(context.Background(), db, dialect, 0)
	require.NoError(t, err)
	require.Equal(t, []feedback.Record{r}, fromDB)
}

func TestOpenRecorderFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.csv")
	rec, closeRec, err := openRecorder(config.FeedbackConfig{Path: path}, nil)
	require.NoError(t, err)
	defer closeRec()
	_, ok := rec.(*feedback.FileRecorder)
	require.True(t, ok)

	require.NoError(t, rec.Record(context.Background(), feedback.Record{Voter: "1", Vote: feedback.VoteDown, Text: "x"}))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestValidateFailsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	dir := t.TempDir()
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", filepath.Join(dir, "none.env"), "--config", ""})
	cmd.SetOut(&discard{})
	cmd.SetErr(&discard{})
	err := cmd.Execute()
	require.ErrorIs(t, err, config.ErrConfig)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
