package event

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	defaultSubjectPrefix = "gymmaster"
	publishTimeout       = 5 * time.Second
)

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Stream        string
}

// NATSBridge republishes bus events to JetStream as <prefix>.<event>.
type NATSBridge struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
	logger *zap.Logger
}

// NewNATSBridge returns nil, nil when no URL is configured.
func NewNATSBridge(ctx context.Context, cfg NATSConfig, logger *zap.Logger) (*NATSBridge, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.SubjectPrefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("gymmaster-api"))
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if stream := strings.TrimSpace(cfg.Stream); stream != "" {
		if err := ensureStream(ctx, js, stream, prefix+".>"); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &NATSBridge{conn: conn, js: js, prefix: prefix, logger: logger}, nil
}

func (n *NATSBridge) Attach(bus *Bus) {
	if n == nil || bus == nil {
		return
	}
	bus.Tap(func(event string, payload any) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := n.Publish(ctx, event, payload); err != nil {
			n.logger.Warn("forward event to nats failed", zap.String("event", event), zap.Error(err))
		}
	})
}

func (n *NATSBridge) Publish(ctx context.Context, event string, payload any) error {
	if n == nil {
		return errors.New("nil nats bridge")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(n.prefix, event))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	_, err = n.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

func (n *NATSBridge) Close() {
	if n == nil || n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

func Subject(prefix, event string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return prefix + "." + strings.TrimSpace(event)
}

func ensureStream(ctx context.Context, js nats.JetStreamContext, stream, subject string) error {
	_, err := js.StreamInfo(stream, nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}, nats.Context(ctx))
	return err
}
