package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

const defaultFeedSize = 64

// Publisher emits bot events to a frame queue and to in-process feeds.
// Without a queue manager only the feeds receive events. A nil Publisher
// drops everything passed to EmitAsync.
type Publisher struct {
	queues   queue.Manager
	queueRef string
	source   string

	mu    sync.RWMutex
	feeds map[string]chan Envelope
}

// NewPublisher creates a publisher that also publishes to queueRef.
func NewPublisher(queues queue.Manager, source, queueRef string) *Publisher {
	return &Publisher{
		queues:   queues,
		queueRef: queueRef,
		source:   source,
		feeds:    make(map[string]chan Envelope),
	}
}

// NewLocalPublisher creates a publisher without a queue.
func NewLocalPublisher(source string) *Publisher {
	return NewPublisher(nil, source, "")
}

func (p *Publisher) envelope(eventType EventType, conversationID string, data any) (Envelope, error) {
	raw, err := sonic.ConfigStd.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return Envelope{
		ID:             xid.New().String(),
		Type:           eventType,
		Source:         p.source,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
		Data:           raw,
	}, nil
}

// Emit builds an envelope for data, hands it to every feed and publishes it
// to the queue. A full feed loses the event; the queue never does.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, conversationID string, data any) error {
	env, err := p.envelope(eventType, conversationID, data)
	if err != nil {
		return err
	}

	p.mu.RLock()
	for name, feed := range p.feeds {
		select {
		case feed <- env:
		default:
			slog.WarnContext(ctx, "event feed full, dropping event",
				slog.String("feed", name),
				slog.String("event_type", string(eventType)),
				slog.String("conversation_id", conversationID))
		}
	}
	p.mu.RUnlock()

	if p.queues == nil {
		return nil
	}
	if err := p.queues.Publish(ctx, p.queueRef, env); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// EmitAsync emits and only logs failures, for callers an event must never
// fail.
func (p *Publisher) EmitAsync(ctx context.Context, eventType EventType, conversationID string, data any) {
	if p == nil {
		return
	}
	if err := p.Emit(ctx, eventType, conversationID, data); err != nil {
		slog.WarnContext(ctx, "emit event failed",
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()))
	}
}

// Subscribe opens a named feed. Unsubscribe with the same name closes it.
func (p *Publisher) Subscribe(name string, size int) <-chan Envelope {
	if size <= 0 {
		size = defaultFeedSize
	}
	feed := make(chan Envelope, size)
	p.mu.Lock()
	p.feeds[name] = feed
	p.mu.Unlock()
	return feed
}

// Unsubscribe closes and removes the named feed.
func (p *Publisher) Unsubscribe(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if feed, ok := p.feeds[name]; ok {
		close(feed)
		delete(p.feeds, name)
	}
}
