// Package bus carries the live-call event streams over NATS. The
// external voice worker publishes transcription and conversation events
// for its room; the pipeline subscribes and feeds them to the session
// recorder.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// CallObserver receives the two call event streams. Handlers must be
// cheap: they run on the NATS delivery goroutine.
type CallObserver interface {
	OnTranscription(text string, final bool)
	OnAgentUtterance(role string, parts []string)
}

// SubscribeCallEvents wires a room's transcription and agent streams to
// the observer. NATS delivers each subject's messages in publish order;
// no ordering holds between the two subjects.
func (c *Client) SubscribeCallEvents(room string, obs CallObserver) error {
	if err := c.subscribe(TranscriptionSubject(room), func(data []byte) {
		handleTranscription(data, obs, c.logger)
	}); err != nil {
		return err
	}
	return c.subscribe(AgentSubject(room), func(data []byte) {
		handleAgentUtterance(data, obs, c.logger)
	})
}

// SubscribeCallEnded invokes fn once the worker reports the call over.
func (c *Client) SubscribeCallEnded(room string, fn func(CallEndedEvent)) error {
	return c.subscribe(EndedSubject(room), func(data []byte) {
		var evt CallEndedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.logger.Error("failed to parse call ended event", "error", err)
			return
		}
		fn(evt)
	})
}

func (c *Client) subscribe(subject string, handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}

func handleTranscription(data []byte, obs CallObserver, logger *slog.Logger) {
	var evt TranscriptionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		logger.Error("failed to parse transcription event", "error", err)
		return
	}
	obs.OnTranscription(evt.Text, evt.Final)
}

func handleAgentUtterance(data []byte, obs CallObserver, logger *slog.Logger) {
	var evt AgentUtteranceEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		logger.Error("failed to parse agent utterance event", "error", err)
		return
	}
	obs.OnAgentUtterance(evt.Role, evt.Content)
}
