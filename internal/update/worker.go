package update

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"aria/internal/errors"
	"aria/internal/logging"
	"aria/internal/observability"
)

const (
	defaultCheckInterval = 15 * time.Minute
	defaultFetchTimeout  = 30 * time.Second
	maxEnvelopeBytes     = 8 << 20
)

// Envelope is the downloaded update document: the manifest bytes plus the
// detached signature over them, both base64-encoded.
type Envelope struct {
	Manifest  string `json:"manifest"`
	Signature string `json:"signature"`
}

// WorkerConfig configures the update worker. Key and endpoint are supplied
// as configuration, never hard-coded.
type WorkerConfig struct {
	ManifestURL     string
	PublicKeyBase64 string
	Interval        time.Duration
	FetchTimeout    time.Duration
	Retry           errors.RetryConfig
}

// Worker periodically downloads a release manifest, verifies its signature,
// and hands verified manifests to the apply callback. Network failures are
// retried with bounded backoff; malformed key or signature material is
// terminal and surfaced for operator attention instead of being retried.
type Worker struct {
	config   WorkerConfig
	verifier *Verifier
	client   *http.Client
	logger   logging.Logger
	metrics  *observability.MetricsCollector

	// OnVerified receives the raw manifest bytes of each verified update.
	// The apply step itself happens downstream.
	onVerified func(manifest []byte)
	// onTerminal is invoked once per terminal configuration failure.
	onTerminal func(err error)

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWorker creates a worker. The public key is decoded and length-checked
// up front; bad key material fails fast as a configuration error.
func NewWorker(config WorkerConfig, onVerified func(manifest []byte), onTerminal func(err error), logger logging.Logger, metrics *observability.MetricsCollector) (*Worker, error) {
	if config.ManifestURL == "" {
		return nil, errors.NewConfigError("manifest URL required", nil)
	}
	verifier, err := NewVerifierBase64(config.PublicKeyBase64)
	if err != nil {
		return nil, err
	}
	if config.Interval <= 0 {
		config.Interval = defaultCheckInterval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaultFetchTimeout
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = errors.DefaultRetryConfig()
	}
	return &Worker{
		config:     config,
		verifier:   verifier,
		client:     &http.Client{Timeout: config.FetchTimeout},
		logger:     logging.OrNop(logger),
		metrics:    metrics,
		onVerified: onVerified,
		onTerminal: onTerminal,
		stopped:    make(chan struct{}),
	}, nil
}

// Start launches the periodic check loop on its own goroutine, so fetch and
// signature verification never block the caller. The loop exits when ctx is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()

		w.CheckOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopped:
				return
			case <-ticker.C:
				w.CheckOnce(ctx)
			}
		}
	}()
}

// Stop terminates the check loop. Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
	})
}

// CheckOnce performs a single fetch-and-verify cycle.
func (w *Worker) CheckOnce(ctx context.Context) {
	envelope, err := errors.RetryWithResult(ctx, w.config.Retry, func(ctx context.Context) (Envelope, error) {
		return w.fetch(ctx)
	})
	if err != nil {
		w.metrics.RecordManifestCheck(ctx, false)
		if errors.IsConfig(err) {
			w.terminal(err)
			return
		}
		w.logger.Warn("Update check failed: %v", err)
		return
	}

	manifest, err := base64.StdEncoding.DecodeString(envelope.Manifest)
	if err != nil {
		w.metrics.RecordManifestCheck(ctx, false)
		w.terminal(errors.NewConfigError("decode manifest payload", err))
		return
	}

	verified := w.verifier.Verify(manifest, envelope.Signature)
	w.metrics.RecordManifestCheck(ctx, verified)
	if !verified {
		// A bad signature is a logical "not verified", not an exception.
		// The update must not proceed.
		w.logger.Warn("Update manifest failed signature verification, discarding")
		return
	}

	w.logger.Info("Update manifest verified (%d bytes)", len(manifest))
	if w.onVerified != nil {
		w.onVerified(manifest)
	}
}

// fetch downloads and decodes the update envelope. Transport failures are
// transient; a malformed envelope body is configuration-shaped and terminal.
func (w *Worker) fetch(ctx context.Context) (Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.config.ManifestURL, nil)
	if err != nil {
		return Envelope{}, errors.NewConfigError("build manifest request", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return Envelope{}, errors.NewTransientError(err, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("manifest fetch returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return Envelope{}, errors.NewTransientError(err, "")
		}
		return Envelope{}, errors.NewPermanentError(err, "")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return Envelope{}, errors.NewTransientError(err, "")
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Envelope{}, errors.NewConfigError("decode update envelope", err)
	}
	if envelope.Manifest == "" || envelope.Signature == "" {
		return Envelope{}, errors.NewConfigError("update envelope missing manifest or signature", nil)
	}
	return envelope, nil
}

func (w *Worker) terminal(err error) {
	w.logger.Error("Update worker terminal error: %v", err)
	if w.onTerminal != nil {
		w.onTerminal(err)
	}
}
