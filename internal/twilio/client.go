// Package twilio is a minimal client for the Twilio Messages API, used
// as the outbound SMS collaborator.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

type Client struct {
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	logger     *slog.Logger
	baseURL    string
}

func NewClient(accountSID, authToken, from string, logger *slog.Logger) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		baseURL:    defaultBaseURL,
	}
}

// SetBaseURL points the client at a test server.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send dispatches one SMS and returns the provider message SID.
// Provider rejections are surfaced as errors; the caller does not retry.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			return "", fmt.Errorf("twilio error %d: %s (code %d)", resp.StatusCode, errResp.Message, errResp.Code)
		}
		return "", fmt.Errorf("twilio error %d: %s", resp.StatusCode, string(respBody))
	}

	var msg messageResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return "", fmt.Errorf("parse twilio response: %w", err)
	}
	if msg.SID == "" {
		return "", fmt.Errorf("twilio response missing sid")
	}

	c.logger.Debug("sms dispatched", "sid", msg.SID, "status", msg.Status)
	return msg.SID, nil
}
