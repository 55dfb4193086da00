package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/sproto/internal/config"
	"github.com/danielpatrickdp/sproto/internal/logging"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// New builds the backend selected by cfg. The returned Closer releases any
// connection it holds. A remote backend without a credential is not an error:
// it is returned as Offline so every call fails permanently.
func New(ctx context.Context, cfg config.BackendConfig, log *zap.Logger) (Backend, io.Closer, error) {
	log = logging.OrNop(log).Named("backend")

	if cfg.NeedsCredential() {
		log.Error("backend has no credential; every request will fall back", zap.String("kind", cfg.Kind))
		return Offline{Reason: cfg.Kind + " api key is not set"}, nopCloser, nil
	}

	var (
		b      Backend
		closer io.Closer = nopCloser
	)
	switch cfg.Kind {
	case config.BackendOffline, "":
		b = Offline{}
	case config.BackendSidecar:
		s, err := NewSidecar(cfg.SidecarAddr)
		if err != nil {
			return nil, nil, err
		}
		b, closer = s, s
	case config.BackendOllama:
		b = NewOllama(cfg.BaseURL, cfg.Model, &http.Client{})
	case config.BackendOpenAI:
		b = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case config.BackendGemini:
		g, err := NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL, nil)
		if err != nil {
			return nil, nil, err
		}
		b = g
	default:
		return nil, nil, fmt.Errorf("%w: unknown backend %q", config.ErrConfig, cfg.Kind)
	}

	log.Info("backend ready", zap.String("kind", cfg.Kind), zap.String("model", cfg.Model), zap.Duration("timeout", cfg.Timeout))
	return WithTimeout(b, cfg.Timeout), closer, nil
}

// #region timeout

type timed struct {
	Backend
	timeout time.Duration
}

// WithTimeout bounds every Complete call on b. A non-positive timeout returns b unchanged.
func WithTimeout(b Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		return b
	}
	return timed{Backend: b, timeout: timeout}
}

func (t timed) Complete(ctx context.Context, p Prompt, samples int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Backend.Complete(ctx, p, samples)
}

// #endregion timeout
