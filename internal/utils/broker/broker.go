// broker/broker.go
package broker

import (
	"sync"

	"astroconnect_go_backend/internal/models"
)

// Broker is an in-process push feed for session messages. Delivery is
// at-least-once from the subscriber's point of view; deduplication by
// message id is the consumer's responsibility.
type Broker struct {
	subscribers map[string][]chan models.Message
	mu          sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan models.Message),
	}
}

func (b *Broker) Subscribe(sessionID string) <-chan models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.Message, 16)
	b.subscribers[sessionID] = append(b.subscribers[sessionID], ch)
	return ch
}

func (b *Broker) Unsubscribe(sessionID string, ch <-chan models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chans, ok := b.subscribers[sessionID]; ok {
		for i, c := range chans {
			if c == ch {
				b.subscribers[sessionID] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
	}
}

func (b *Broker) Publish(sessionID string, msg models.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Subscriber not draining; dropping here is preferable to
			// blocking the publisher. The history fetch covers gaps.
		}
	}
}
