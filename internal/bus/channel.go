// Package bus provides event bus implementations for Kestrel.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/contractops/kestrel/internal/domain"
)

const defaultInboxSize = 1000

// subKey scopes subscriptions to one tenant and topic. Tenants never
// see each other's messages.
type subKey struct {
	tenantID string
	topic    string
}

// ChannelBus is the in-process event bus for single-node deployments.
// Each subscriber owns a buffered inbox drained by its own goroutine;
// delivery is non-blocking, so a subscriber whose inbox is full loses
// the message. Dropped counts those losses.
type ChannelBus struct {
	mu        sync.RWMutex
	inboxSize int
	subs      map[subKey]map[string]*channelSubscription
	closed    bool

	dropped atomic.Int64
}

type channelSubscription struct {
	id      string
	key     subKey
	handler domain.MessageHandler
	inbox   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
	bus     *ChannelBus
}

// NewChannelBus creates an in-process bus. inboxSize is the per-subscriber
// buffer; zero or negative selects the default.
func NewChannelBus(inboxSize int) *ChannelBus {
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}
	return &ChannelBus{
		inboxSize: inboxSize,
		subs:      make(map[subKey]map[string]*channelSubscription),
	}
}

// Publish delivers a message to every subscriber of the tenant's topic.
// Subscribers with a full inbox are skipped, not waited for.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	key := subKey{tenantID: tenantID, topic: topic}
	targets := make([]*channelSubscription, 0, len(b.subs[key]))
	for _, sub := range b.subs[key] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	msg := newMessage(tenantID, topic, payload)
	for _, sub := range targets {
		select {
		case sub.inbox <- msg:
		default:
			b.dropped.Add(1)
			slog.Warn("subscriber inbox full, message dropped",
				"tenant_id", tenantID,
				"topic", topic,
				"subscription_id", sub.id,
			)
		}
	}

	return nil
}

// Subscribe registers a handler for a tenant's topic and starts draining
// its inbox.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		id:      uuid.New().String(),
		key:     subKey{tenantID: tenantID, topic: topic},
		handler: handler,
		inbox:   make(chan *domain.Message, b.inboxSize),
		ctx:     subCtx,
		cancel:  cancel,
		bus:     b,
	}

	if b.subs[sub.key] == nil {
		b.subs[sub.key] = make(map[string]*channelSubscription)
	}
	b.subs[sub.key][sub.id] = sub

	go sub.drain()

	return sub, nil
}

// drain delivers inbox messages to the handler until the subscription
// context ends.
func (s *channelSubscription) drain() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.inbox:
			if msg == nil {
				return
			}
			if err := s.handler(s.ctx, msg); err != nil {
				slog.Error("subscriber handler failed",
					"topic", s.key.topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Request publishes to a topic and waits for a single reply on an
// ephemeral reply topic.
func (b *ChannelBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, tenantID, topic, payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("request timeout")
	}
}

// Ping reports whether the bus accepts traffic.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Dropped returns how many messages were lost to full subscriber
// inboxes since the bus was created.
func (b *ChannelBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops all subscriptions and rejects further traffic.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, group := range b.subs {
		for _, sub := range group {
			sub.cancel()
		}
	}
	b.subs = make(map[subKey]map[string]*channelSubscription)

	return nil
}

// remove detaches a subscription so later publishes skip it.
func (b *ChannelBus) remove(sub *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group := b.subs[sub.key]
	delete(group, sub.id)
	if len(group) == 0 {
		delete(b.subs, sub.key)
	}
}

// Unsubscribe detaches the subscription and stops its drain goroutine.
func (s *channelSubscription) Unsubscribe() error {
	s.bus.remove(s)
	s.cancel()
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.key.topic
}
