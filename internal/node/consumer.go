package node

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"canvasbridge/internal/logging"
)

const pushTimeout = 10 * time.Second

// Consumer publishes rendered results back to the bridge so the canvas can
// display them.
type Consumer struct {
	bridgeURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewConsumer constructs a consumer for the given bridge base URL.
func NewConsumer(bridgeURL string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{
		bridgeURL:  strings.TrimRight(bridgeURL, "/"),
		httpClient: &http.Client{Timeout: pushTimeout},
		logger:     logger.With(logging.String("component", "consumer-node")),
	}
}

// Push uploads the rendered image. When raw is non-nil it is sent as-is
// instead of encoding the tensor, which preserves the sampler's original
// bytes for formats the tensor round trip would lose.
func (c *Consumer) Push(ctx context.Context, tensor *Tensor, raw []byte) error {
	data := raw
	if data == nil {
		if tensor == nil {
			return fmt.Errorf("push output: no image provided")
		}
		encoded, err := tensor.EncodePNG()
		if err != nil {
			return fmt.Errorf("push output: %w", err)
		}
		data = encoded
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "output.png")
	if err != nil {
		return fmt.Errorf("push output: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("push output: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("push output: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL+"/push/output", &body)
	if err != nil {
		return fmt.Errorf("push output: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push output: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push output: bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	c.logger.Debug("output delivered", logging.Int("bytes", len(data)))
	return nil
}
