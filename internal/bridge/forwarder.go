package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"canvasbridge/internal/comfy"
	"canvasbridge/internal/logging"
)

const (
	forwardQueueDepth   = 16
	forwardRetryBackoff = 500 * time.Millisecond
	trackTimeout        = 2 * time.Minute
)

// ForwardResult reports the outcome of one background forward.
type ForwardResult struct {
	StatusCode int
	Attempts   int
	Err        error
}

// Forwarder delivers trigger payloads to the pipeline host from a single
// supervised worker goroutine. Ingestion enqueues and moves on; delivery
// failures are retried a bounded number of times, then logged and published
// on the results channel for anyone observing.
type Forwarder struct {
	client        *comfy.Client
	logger        *slog.Logger
	retries       int
	trackProgress bool

	queue   chan map[string]any
	results chan ForwardResult

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewForwarder constructs a forwarder; retries is the number of additional
// attempts after the first failure.
func NewForwarder(client *comfy.Client, retries int, trackProgress bool, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &Forwarder{
		client:        client,
		logger:        logger.With(logging.String("component", "forwarder")),
		retries:       retries,
		trackProgress: trackProgress,
		queue:         make(chan map[string]any, forwardQueueDepth),
		results:       make(chan ForwardResult, forwardQueueDepth),
	}
}

// Start launches the worker. It runs until ctx is cancelled.
func (f *Forwarder) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		f.wg.Add(1)
		go f.run(ctx)
	})
}

// Wait blocks until the worker has exited.
func (f *Forwarder) Wait() {
	f.wg.Wait()
}

// Enqueue schedules a payload for delivery. It never blocks: when the queue
// is saturated the payload is dropped and the drop is logged, since a newer
// ingestion will enqueue again anyway.
func (f *Forwarder) Enqueue(payload map[string]any) bool {
	select {
	case f.queue <- payload:
		return true
	default:
		f.logger.Warn("forward queue saturated, dropping trigger")
		return false
	}
}

// Results exposes forward outcomes. The channel is buffered and lossy:
// results are dropped when nobody reads, never blocking delivery.
func (f *Forwarder) Results() <-chan ForwardResult {
	return f.results
}

func (f *Forwarder) run(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-f.queue:
			f.deliver(ctx, payload)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, payload map[string]any) {
	var (
		result   *comfy.SubmitResult
		err      error
		attempts int
	)

	for attempts = 1; attempts <= f.retries+1; attempts++ {
		result, err = f.client.SubmitPrompt(ctx, payload)
		if err == nil && result.OK() {
			break
		}
		if ctx.Err() != nil {
			return
		}
		if attempts <= f.retries {
			f.logger.Debug("forward attempt failed, retrying",
				logging.Int("attempt", attempts),
				logging.Error(err))
			select {
			case <-time.After(forwardRetryBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
	if attempts > f.retries+1 {
		attempts = f.retries + 1
	}

	outcome := ForwardResult{Attempts: attempts, Err: err}
	if result != nil {
		outcome.StatusCode = result.StatusCode
	}

	switch {
	case err != nil:
		f.logger.Warn("auto-forward failed", logging.Error(err), logging.Int("attempts", attempts))
	case !result.OK():
		f.logger.Warn("auto-forward rejected by host",
			logging.Int("status", result.StatusCode),
			logging.Int("attempts", attempts))
	default:
		f.logger.Info("auto-forward accepted",
			logging.Int("status", result.StatusCode),
			logging.Int("attempts", attempts))
		if f.trackProgress {
			if promptID := result.PromptID(); promptID != "" {
				trackCtx, cancel := context.WithTimeout(ctx, trackTimeout)
				go func() {
					defer cancel()
					f.client.TrackPrompt(trackCtx, promptID)
				}()
			}
		}
	}

	select {
	case f.results <- outcome:
	default:
	}
}
