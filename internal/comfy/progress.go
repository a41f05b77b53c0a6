package comfy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"canvasbridge/internal/logging"
)

// wsMessage is the subset of the pipeline host's event stream the tracker
// cares about. Everything else is ignored.
type wsMessage struct {
	Type string `json:"type"`
	Data struct {
		PromptID string  `json:"prompt_id"`
		Node     *string `json:"node"`
		Value    int     `json:"value"`
		Max      int     `json:"max"`
	} `json:"data"`
}

// TrackPrompt follows the host's websocket event stream and logs execution
// progress for the given prompt until it finishes, the socket fails, or the
// context ends. It is purely observational: every outcome is logged, none is
// returned, because nobody waits on a background forward.
func (c *Client) TrackPrompt(ctx context.Context, promptID string) {
	wsURL, err := c.websocketURL()
	if err != nil {
		c.logger.Warn("progress tracking unavailable", logging.Error(err))
		return
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.logger.Debug("progress socket dial failed", logging.Error(err))
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("progress socket closed", logging.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Binary preview frames and unknown payloads are expected.
			continue
		}
		if msg.Data.PromptID != "" && msg.Data.PromptID != promptID {
			continue
		}

		switch msg.Type {
		case "progress":
			c.logger.Debug("prompt progress",
				logging.String("prompt_id", promptID),
				logging.Int("value", msg.Data.Value),
				logging.Int("max", msg.Data.Max))
		case "executing":
			// A null node for our prompt means execution completed.
			if msg.Data.Node == nil && msg.Data.PromptID == promptID {
				c.logger.Info("prompt execution finished", logging.String("prompt_id", promptID))
				return
			}
		case "execution_error":
			c.logger.Warn("prompt execution failed", logging.String("prompt_id", promptID))
			return
		}
	}
}
