package node

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"canvasbridge/internal/logging"
	"canvasbridge/internal/session"
)

const (
	// placeholderSize matches the canvas default so graphs keep a sane
	// aspect ratio when no image has been drawn yet.
	placeholderSize = 1024

	promptFetchTimeout  = 800 * time.Millisecond
	retryInterval       = 120 * time.Millisecond
	defaultPullTimeout  = 3 * time.Second
	imageRequestTimeout = 5 * time.Second
)

// Producer pulls the latest canvas image and prompt bundle from the bridge
// for the pipeline host's graph. It must always yield an image: when nothing
// arrives before the deadline it falls back to a blank placeholder so the
// graph stays runnable.
type Producer struct {
	bridgeURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// PullOptions bounds a single pull.
type PullOptions struct {
	// Wait keeps trying until Timeout elapses. When false the producer
	// makes exactly one attempt.
	Wait    bool
	Timeout time.Duration
}

// PullResult is what the producer feeds into the graph.
type PullResult struct {
	Tensor      *Tensor
	Prompt      string
	Negative    string
	Strength    float64
	Seed        int64
	Placeholder bool
}

// NewProducer constructs a producer for the given bridge base URL.
func NewProducer(bridgeURL string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Producer{
		bridgeURL:  strings.TrimRight(bridgeURL, "/"),
		httpClient: &http.Client{},
		logger:     logger.With(logging.String("component", "producer-node")),
	}
}

// Pull fetches the current input image, falling back to a placeholder, then
// merges the prompt bundle on a best-effort basis.
func (p *Producer) Pull(ctx context.Context, opts PullOptions) (*PullResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPullTimeout
	}
	deadline := time.Now().Add(opts.Timeout)

	result := &PullResult{
		Strength: 1.0,
	}

	tensor := p.fetchImage(ctx, opts, deadline)
	if tensor == nil {
		tensor = Blank(placeholderSize, placeholderSize)
		result.Placeholder = true
	}
	result.Tensor = tensor

	// One best-effort prompt fetch; prior defaults survive any failure.
	p.mergePrompt(ctx, result)

	return result, ctx.Err()
}

func (p *Producer) fetchImage(ctx context.Context, opts PullOptions, deadline time.Time) *Tensor {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		url := p.bridgeURL + "/get/input"
		if opts.Wait {
			url = fmt.Sprintf("%s?wait=1&timeout_ms=%d", url, remaining.Milliseconds())
		}

		tensor, err := p.requestImage(ctx, url, remaining+imageRequestTimeout)
		if err != nil {
			p.logger.Debug("input fetch failed", logging.Error(err))
			if !opts.Wait || ctx.Err() != nil {
				return nil
			}
			select {
			case <-time.After(retryInterval):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if tensor != nil {
			return tensor
		}
		if !opts.Wait {
			return nil
		}
		// 204 from a long poll means the wait timed out server-side.
	}
}

func (p *Producer) requestImage(ctx context.Context, url string, timeout time.Duration) (*Tensor, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

func (p *Producer) mergePrompt(ctx context.Context, result *PullResult) {
	reqCtx, cancel := context.WithTimeout(ctx, promptFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.bridgeURL+"/get/prompt", nil)
	if err != nil {
		return
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("prompt fetch failed", logging.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	var bundle struct {
		Prompt   *string  `json:"prompt"`
		Negative *string  `json:"negative"`
		Strength *float64 `json:"strength"`
		Seed     *int64   `json:"seed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		p.logger.Debug("prompt decode failed", logging.Error(err))
		return
	}

	if bundle.Prompt != nil {
		result.Prompt = *bundle.Prompt
	}
	if bundle.Negative != nil {
		result.Negative = *bundle.Negative
	}
	if bundle.Strength != nil {
		s := *bundle.Strength
		if s < session.MinStrength {
			s = session.MinStrength
		}
		if s > session.MaxStrength {
			s = session.MaxStrength
		}
		result.Strength = s
	}
	if bundle.Seed != nil && *bundle.Seed >= 0 {
		result.Seed = *bundle.Seed
	}
}
