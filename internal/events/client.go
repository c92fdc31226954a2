package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects published and consumed by chatlens.
const (
	// SubjectExportStored is emitted by upstream collectors when a chat
	// export file has landed and is ready for analysis.
	SubjectExportStored = "chatlens.export.stored"

	// SubjectAnalyzed is emitted after a conversation's analytics have
	// been computed and stored.
	SubjectAnalyzed = "chatlens.conversation.analyzed"
)

// ExportStored is the payload on SubjectExportStored.
type ExportStored struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	DateOrder string `json:"date_order,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Analyzed is the payload on SubjectAnalyzed.
type Analyzed struct {
	ConversationID string `json:"conversation_id"`
	Messages       int    `json:"messages"`
	Participants   int    `json:"participants"`
	Diagnostics    int    `json:"diagnostics"`
	Timestamp      string `json:"timestamp"`
}

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

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
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
