package output_storage

import (
	"errors"
	"sync"
)

// ErrBroadcasterStopped is returned by Subscribe once Stop has been called.
var ErrBroadcasterStopped = errors.New("failed to subscribe: broadcaster is stopped")

// Broadcaster fans a value out to every subscriber. Delivery never blocks:
// a subscriber whose buffer is full loses its oldest pending value.
type Broadcaster[T any] struct {
	messageReceiver chan T

	// pubMu serialises Publish and Stop so nothing is sent after close.
	pubMu  sync.Mutex
	closed bool

	mu          sync.Mutex
	subscribers map[chan T]struct{}
	stopped     bool
}

func RunNewBroadcaster[T any]() *Broadcaster[T] {
	broadcaster := &Broadcaster[T]{
		messageReceiver: make(chan T, 1),
		subscribers:     make(map[chan T]struct{}),
	}

	go broadcaster.start()

	return broadcaster
}

func (broadcaster *Broadcaster[T]) start() {
	for msg := range broadcaster.messageReceiver {
		broadcaster.mu.Lock()
		for s := range broadcaster.subscribers {
			select {
			case s <- msg:
			default:
				// channel is full, drop the oldest value
				select {
				case <-s:
				default:
				}
				s <- msg
			}
		}
		broadcaster.mu.Unlock()
	}

	broadcaster.mu.Lock()
	for s := range broadcaster.subscribers {
		close(s)
	}
	broadcaster.subscribers = map[chan T]struct{}{}
	broadcaster.stopped = true
	broadcaster.mu.Unlock()
	logger.Debug("broadcaster stopped")
}

// Stop closes every subscriber channel after pending values are delivered.
// Calling Stop again has no effect.
func (broadcaster *Broadcaster[T]) Stop() {
	broadcaster.pubMu.Lock()
	defer broadcaster.pubMu.Unlock()
	if broadcaster.closed {
		return
	}
	broadcaster.closed = true
	close(broadcaster.messageReceiver)
}

func (broadcaster *Broadcaster[T]) Subscribe() (chan T, error) {
	// Use a buffer of 1 so we can drop stale notifications without blocking.
	ch := make(chan T, 1)
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return nil, ErrBroadcasterStopped
	}
	broadcaster.subscribers[ch] = struct{}{}
	return ch, nil
}

// Unsubscribe removes and closes subscriberSender. Channels already closed by
// Stop are left alone.
func (broadcaster *Broadcaster[T]) Unsubscribe(subscriberSender chan T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if _, ok := broadcaster.subscribers[subscriberSender]; !ok {
		return
	}
	delete(broadcaster.subscribers, subscriberSender)
	close(subscriberSender)
}

// Publish queues msg for fanout. Publishing after Stop is a no-op.
func (broadcaster *Broadcaster[T]) Publish(msg T) {
	broadcaster.pubMu.Lock()
	defer broadcaster.pubMu.Unlock()
	if broadcaster.closed {
		return
	}
	select {
	case broadcaster.messageReceiver <- msg:
	default:
		// channel is full, drop the oldest value
		select {
		case <-broadcaster.messageReceiver:
		default:
		}
		broadcaster.messageReceiver <- msg
	}
}
