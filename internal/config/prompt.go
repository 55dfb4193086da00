package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/sproto/internal/logging"
)

// #region prompt-file

// PromptFile holds the trimmed contents of the system prompt file. Current is
// safe to call while Watch reloads it.
type PromptFile struct {
	path    string
	current atomic.Pointer[string]
	log     *zap.Logger
}

// LoadPrompt reads path once. A missing or unreadable file is an ErrConfig.
func LoadPrompt(path string, log *zap.Logger) (*PromptFile, error) {
	p := &PromptFile{path: path, log: logging.OrNop(log).Named("prompt")}
	text, err := readPrompt(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	p.current.Store(&text)
	return p, nil
}

// Current returns the last successfully loaded prompt.
func (p *PromptFile) Current() string {
	return *p.current.Load()
}

// Path returns the file being served.
func (p *PromptFile) Path() string { return p.path }

// Reload rereads the file. On a read error or an empty file the previous
// prompt stays in place and the error is returned.
func (p *PromptFile) Reload() error {
	text, err := readPrompt(p.path)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("prompt file %s is empty", p.path)
	}
	p.current.Store(&text)
	return nil
}

func readPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// #endregion prompt-file

// #region watch

// Watch reloads the prompt whenever the file is written or recreated, until
// ctx is done. The parent directory is watched so editors that save by
// rename are picked up.
func (p *PromptFile) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(p.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", p.path, err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := p.Reload(); err != nil {
				p.log.Warn("prompt reload failed, keeping previous prompt", zap.Error(err))
				continue
			}
			p.log.Info("prompt reloaded", zap.Int("chars", len(p.Current())))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn("prompt watcher error", zap.Error(err))
		}
	}
}

// #endregion watch
