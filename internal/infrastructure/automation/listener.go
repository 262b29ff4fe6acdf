package automation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/quorvia/erpcore/internal/usecase"
)

// Subscriber hands out a message channel per topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Listener connects EventDriven workflows to the event bus: each
// delivery on a subscribed topic triggers one execution carrying the
// event payload as trigger data. Trigger configs are re-read every
// refresh interval so new subscriptions attach without a restart.
type Listener struct {
	uc      *usecase.AutomationUseCase
	sub     Subscriber
	logger  *slog.Logger
	refresh time.Duration

	mu     sync.RWMutex
	routes map[string][]string
}

// ListenerConfig for Listener.
type ListenerConfig struct {
	UseCase    *usecase.AutomationUseCase
	Subscriber Subscriber
	Logger     *slog.Logger
	Refresh    time.Duration // How often trigger configs are re-read
}

// NewListener creates a new Listener.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Refresh == 0 {
		cfg.Refresh = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{
		uc:      cfg.UseCase,
		sub:     cfg.Subscriber,
		logger:  cfg.Logger,
		refresh: cfg.Refresh,
		routes:  make(map[string][]string),
	}
}

// Start subscribes and blocks until the context is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("automation event listener started",
		slog.Duration("refresh", l.refresh))

	subscribed := make(map[string]struct{})
	if err := l.sync(ctx, subscribed); err != nil {
		l.logger.Error("reading event subscriptions failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("automation event listener shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := l.sync(ctx, subscribed); err != nil {
				l.logger.Error("refreshing event subscriptions failed", slog.String("error", err.Error()))
			}
		}
	}
}

// sync swaps in the current routing table and opens channels for
// topics seen for the first time. Channels stay open once created; a
// delivery on a topic no route points at is dropped after the Ack.
func (l *Listener) sync(ctx context.Context, subscribed map[string]struct{}) error {
	routes, err := l.uc.EventSubscriptions(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.routes = routes
	l.mu.Unlock()

	for topic := range routes {
		if _, ok := subscribed[topic]; ok {
			continue
		}
		ch, err := l.sub.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		subscribed[topic] = struct{}{}
		go l.consume(ctx, topic, ch)
	}
	return nil
}

func (l *Listener) consume(ctx context.Context, topic string, ch <-chan *message.Message) {
	for msg := range ch {
		l.mu.RLock()
		codes := l.routes[topic]
		l.mu.RUnlock()

		for _, code := range codes {
			exec, err := l.uc.Trigger(ctx, usecase.TriggerInput{
				WorkflowCode:  code,
				TriggerData:   json.RawMessage(msg.Payload),
				CorrelationID: msg.UUID,
			})
			if err != nil {
				l.logger.Error("event trigger failed",
					slog.String("topic", topic),
					slog.String("workflow_code", code),
					slog.String("error", err.Error()))
				continue
			}
			l.logger.Info("event triggered execution",
				slog.String("topic", topic),
				slog.String("workflow_code", code),
				slog.String("execution_id", exec.ID))
		}
		msg.Ack()
	}
}
