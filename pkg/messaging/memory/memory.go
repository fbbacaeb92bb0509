// Package memory is an in-process Broker used by tests and single-binary
// deployments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/evura/portal-api/pkg/messaging"
)

const defaultBuffer = 256

type Broker struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	closed bool
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		queues: make(map[string]chan []byte),
		buffer: buffer,
	}
}

var _ messaging.Broker = (*Broker)(nil)

func (b *Broker) queue(channel string) (chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, messaging.ErrClosed
	}
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan []byte, b.buffer)
		b.queues[channel] = q
	}
	return q, nil
}

func (b *Broker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	q, err := b.queue(channel)
	if err != nil {
		return err
	}
	select {
	case q <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe hands out the channel's queue. Messages published before the
// subscription are buffered.
func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	q, err := b.queue(channel)
	if err != nil {
		return nil, err
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-q:
				if !ok {
					return
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	return nil
}
