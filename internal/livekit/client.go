// Package livekit provisions the outbound call: a room, an agent
// dispatch, and a SIP participant that dials the target. It talks to
// the LiveKit server's Twirp endpoints directly.
package livekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	createRoomPath       = "/twirp/livekit.RoomService/CreateRoom"
	createDispatchPath   = "/twirp/livekit.AgentDispatchService/CreateDispatch"
	createSIPParticipant = "/twirp/livekit.SIP/CreateSIPParticipant"
	participantIdentity  = "phone-target"
)

// ProvisioningError reports which of the three sequential call-setup
// steps failed. Earlier steps are not rolled back.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

type Client struct {
	host      string
	apiKey    string
	apiSecret string
	trunkID   string
	agentName string
	client    *http.Client
	logger    *slog.Logger
}

func NewClient(url, apiKey, apiSecret, trunkID, agentName string, logger *slog.Logger) *Client {
	return &Client{
		host:      normalizeHost(url),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		trunkID:   trunkID,
		agentName: agentName,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// SetHost points the client at a test server.
func (c *Client) SetHost(host string) {
	c.host = normalizeHost(host)
}

// Originate runs the three provisioning steps in order: create the
// room, dispatch the voice agent with its metadata, then create the SIP
// participant which places the actual phone call. Any failure aborts
// the sequence and is surfaced as a ProvisioningError.
func (c *Client) Originate(ctx context.Context, room, phone, targetName, metadata string) error {
	if err := c.createRoom(ctx, room); err != nil {
		return &ProvisioningError{Step: "create_room", Err: err}
	}
	c.logger.Info("room created", "room", room)

	if err := c.dispatchAgent(ctx, room, metadata); err != nil {
		return &ProvisioningError{Step: "dispatch_agent", Err: err}
	}
	c.logger.Info("agent dispatched", "room", room, "agent", c.agentName)

	if err := c.createTelephonyParticipant(ctx, room, phone, targetName); err != nil {
		return &ProvisioningError{Step: "create_sip_participant", Err: err}
	}
	c.logger.Info("sip participant created", "room", room, "trunk", c.trunkID)

	return nil
}

func (c *Client) createRoom(ctx context.Context, room string) error {
	return c.twirpPost(ctx, createRoomPath, room, map[string]any{
		"name": room,
	})
}

func (c *Client) dispatchAgent(ctx context.Context, room, metadata string) error {
	return c.twirpPost(ctx, createDispatchPath, room, map[string]any{
		"agent_name": c.agentName,
		"room":       room,
		"metadata":   metadata,
	})
}

func (c *Client) createTelephonyParticipant(ctx context.Context, room, phone, targetName string) error {
	return c.twirpPost(ctx, createSIPParticipant, room, map[string]any{
		"sip_trunk_id":         c.trunkID,
		"sip_call_to":          phone,
		"room_name":            room,
		"participant_identity": participantIdentity,
		"participant_name":     targetName,
	})
}

func (c *Client) twirpPost(ctx context.Context, path, room string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	token, err := c.accessToken(room)
	if err != nil {
		return fmt.Errorf("sign access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("livekit post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("livekit error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// normalizeHost maps a LiveKit websocket URL to its HTTP API base.
func normalizeHost(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	default:
		return strings.TrimRight(url, "/")
	}
}
