package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/resilience"
)

const DefaultSubject = "caselaw.snapshots"

// Notifier announces new snapshot versions. Every subscriber receives every
// message: each API instance activates snapshots on its own.
type Notifier struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string, options Options) (*Notifier, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	name := options.Name
	if name == "" {
		name = "scc-caselaw-rag"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Notifier{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func (n *Notifier) PublishSnapshot(ctx context.Context, version string) error {
	call := func(_ context.Context) error {
		if err := n.conn.Publish(n.subject, []byte(version)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return n.conn.FlushTimeout(2 * time.Second)
	}

	var err error
	if n.executor != nil {
		err = n.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return publishError(version, err)
}

// SubscribeSnapshots blocks until ctx is done, then drains the subscription.
func (n *Notifier) SubscribeSnapshots(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		version := strings.TrimSpace(string(msg.Data))
		if version == "" {
			slog.Warn("snapshot_notification_empty", "subject", msg.Subject)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, version); err != nil {
			slog.Error("snapshot_notification_failed", "version", version, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
