package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// envelope mirrors the API's response wrapper with the payload left
// raw for the caller to decode.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client is a minimal HTTP client for the daemon API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient connects to the daemon at addr and obtains a token for
// userID.
func NewClient(addr, userID string) (*Client, error) {
	c := &Client{
		base: "http://" + addr + "/api/v1",
		http: &http.Client{Timeout: 10 * time.Second},
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(http.MethodPost, "/auth/token", map[string]string{"userId": userID}, &out); err != nil {
		return nil, fmt.Errorf("cannot reach daemon at %s: %w", addr, err)
	}
	c.token = out.Token
	return c, nil
}

func (c *Client) Get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *Client) Post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *Client) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("bad response (%d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
