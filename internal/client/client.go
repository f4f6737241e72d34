// Package client talks to a running relay and stores the plugin it returns.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pluginrelay/internal/domain/entity"
)

const DefaultServerURL = "http://localhost:5000"

type Client struct {
	baseURL string
	client  *http.Client
}

// New returns a client for the relay at baseURL. A nil httpClient gets a
// client with a generous timeout, since one generation can take minutes.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Generate asks the relay for a plugin. On any failure the returned code is
// entity.FallbackCode and err says what went wrong.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(entity.GenerateRequest{Prompt: prompt})
	if err != nil {
		return entity.FallbackCode, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return entity.FallbackCode, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return entity.FallbackCode, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return entity.FallbackCode, fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out entity.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return entity.FallbackCode, fmt.Errorf("decode response: %w", err)
	}
	return out.Code, nil
}

// SaveToFile writes code to dir/custom-plugin.php and returns the path.
func SaveToFile(dir, code string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, entity.PluginFileName)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
