// Package dashboard is a thin client for the publisher account API that
// backs the account pages.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Account is the subset of the upstream account document the webapp reads.
type Account struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayname"`
	Email       string `json:"email"`
}

// Client talks to the dashboard account API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetAccount fetches the caller's account document. authorization is passed
// through verbatim as the Authorization header.
func (c *Client) GetAccount(ctx context.Context, authorization string) (Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/dev/api/account", nil)
	if err != nil {
		return Account{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("fetch account: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Account{}, statusError("fetch account", res)
	}

	var account Account
	if err := json.NewDecoder(res.Body).Decode(&account); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}

// PatchUsername updates the account's short namespace, the field the
// upstream API uses for the public username.
func (c *Client) PatchUsername(ctx context.Context, authorization, username string) error {
	payload, err := json.Marshal(map[string]string{"short_namespace": username})
	if err != nil {
		return fmt.Errorf("marshal username patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/dev/api/account", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("patch username: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError("patch username", res)
	}
	return nil
}

func statusError(op string, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Errorf("%s: dashboard status %d", op, res.StatusCode)
	}
	return fmt.Errorf("%s: dashboard status %d: %s", op, res.StatusCode, text)
}
