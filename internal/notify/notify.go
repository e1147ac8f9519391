// Package notify carries "this key changed" events between local store
// handles, in-process or across processes through NATS.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Event reports a write to a local store key by the handle named Origin.
type Event struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// Bus delivers events to subscribers of a key. Delivery is asynchronous;
// publishers never wait for handlers.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(key string, fn func(Event)) (unsubscribe func(), err error)
}

// queueSize bounds pending events per subscriber. An event only asks the
// receiver to reload, so one already queued covers any that are dropped.
const queueSize = 16

// MemoryBus is a Bus for handles sharing one process.
type MemoryBus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	key string
	ch  chan Event
}

func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	return &MemoryBus{
		logger: logger,
		subs:   make(map[int]*subscriber),
	}
}

func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if s.key != ev.Key {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.logger.Debug("subscriber queue full, dropping event", "key", ev.Key)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(key string, fn func(Event)) (func(), error) {
	s := &subscriber{key: key, ch: make(chan Event, queueSize)}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		for ev := range s.ch {
			fn(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}, nil
}
