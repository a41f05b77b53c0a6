package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"canvasbridge/internal/config"
)

const requestTimeout = 15 * time.Second

type commandContext struct {
	urlFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	httpClient *http.Client
}

func newCommandContext(urlFlag, configFlag *string) *commandContext {
	return &commandContext{
		urlFlag:    urlFlag,
		configFlag: configFlag,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) bridgeURL() string {
	if c.urlFlag != nil && strings.TrimSpace(*c.urlFlag) != "" {
		return strings.TrimRight(strings.TrimSpace(*c.urlFlag), "/")
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return strings.TrimRight(cfg.BridgeURL(), "/")
	}
	return "http://127.0.0.1:8765"
}

// getJSON issues a GET against the bridge and decodes the JSON body into out.
func (c *commandContext) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bridgeURL()+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapBridgeError(err, c.bridgeURL())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge returned %d for %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postJSON issues a POST with a JSON body and returns the raw response.
func (c *commandContext) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL()+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, wrapBridgeError(err, c.bridgeURL())
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func wrapBridgeError(err error, url string) error {
	return fmt.Errorf("connect to bridge at %s: %w (start the daemon with `canvasbridge serve`)", url, err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
