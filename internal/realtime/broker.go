package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"officedj/internal/core"
	"officedj/internal/player"
)

// BroadcastChannel is the Redis pub/sub channel every instance shares.
const BroadcastChannel = "broadcast"

// envelope wraps every message on the wire so clients can route by type.
type envelope struct {
	Type   string            `json:"type"`
	Change *core.ChangeEvent `json:"change,omitempty"`
	Title  string            `json:"title,omitempty"`
	Body   string            `json:"body,omitempty"`
	Player any               `json:"player,omitempty"`
	Sound  any               `json:"sound,omitempty"`
}

// Broker routes change events and notices through Redis and fans them out to
// the websocket hub and to in-process subscribers. Local writes round-trip
// through Redis like everyone else's, so a single code path handles both.
type Broker struct {
	rdb    *redis.Client
	hub    *Hub
	logger *zap.Logger

	mutex       sync.RWMutex
	subscribers []chan core.ChangeEvent
}

func NewBroker(rdb *redis.Client, hub *Hub, logger *zap.Logger) *Broker {
	return &Broker{
		rdb:    rdb,
		hub:    hub,
		logger: logger,
	}
}

// Publish sends a change event to the shared channel. Errors are logged, not
// returned: the row mutation already committed and must not be rolled back
// over a fan-out failure.
func (b *Broker) Publish(ctx context.Context, event core.ChangeEvent) {
	data, err := json.Marshal(envelope{Type: "change", Change: &event})
	if err != nil {
		b.logger.Error("Failed to encode change event", zap.Error(err))
		return
	}
	if err := b.rdb.Publish(ctx, BroadcastChannel, data).Err(); err != nil {
		b.logger.Error("Failed to publish change event", zap.Error(err))
	}
}

// Notify pushes a transient user-visible notice to all clients.
func (b *Broker) Notify(ctx context.Context, title, body string) {
	data, err := json.Marshal(envelope{Type: "notice", Title: title, Body: body})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, BroadcastChannel, data).Err(); err != nil {
		b.logger.Warn("Failed to publish notice", zap.Error(err))
	}
}

// PublishPlayerCommand broadcasts a control instruction for the embedded
// video player running in the elected playback tab.
func (b *Broker) PublishPlayerCommand(ctx context.Context, cmd player.EmbeddedCommand) {
	data, err := json.Marshal(envelope{Type: "player", Player: cmd})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, BroadcastChannel, data).Err(); err != nil {
		b.logger.Warn("Failed to publish player command", zap.Error(err))
	}
}

// PublishSound broadcasts a soundboard trigger to every connected client.
func (b *Broker) PublishSound(ctx context.Context, event any) {
	data, err := json.Marshal(envelope{Type: "sound", Sound: event})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, BroadcastChannel, data).Err(); err != nil {
		b.logger.Warn("Failed to publish sound event", zap.Error(err))
	}
}

// Subscribe registers an in-process consumer of change events. The channel is
// buffered; a consumer that falls far behind loses events, which is safe
// because consumers reconcile against the store on every event anyway.
func (b *Broker) Subscribe() <-chan core.ChangeEvent {
	ch := make(chan core.ChangeEvent, 32)
	b.mutex.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mutex.Unlock()
	return ch
}

// Run consumes the Redis channel until ctx is canceled, forwarding each
// message to the hub and decoded change events to in-process subscribers.
func (b *Broker) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, BroadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch([]byte(msg.Payload))
		}
	}
}

func (b *Broker) dispatch(payload []byte) {
	b.hub.Broadcast(payload)

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warn("Malformed broadcast payload", zap.Error(err))
		return
	}
	if env.Type != "change" || env.Change == nil {
		return
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- *env.Change:
		default:
			b.logger.Warn("In-process subscriber lagging, event dropped",
				zap.String("table", env.Change.Table))
		}
	}
}
