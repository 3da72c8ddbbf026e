package output_storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultLimit is the retention bound used when none is given.
const DefaultLimit = 256 << 10

// node represents an element in the singly linked list.
// It carries a payload (byte slice) and an atomic pointer to the next node.
type node struct {
	data []byte
	next atomic.Pointer[node]
}

var logger = slog.New(slog.DiscardHandler).With("component", "output_storage")

// OutputStorage is a single-writer, lock-free, append-only list of byte slices
// with bounded retention. Readers start from the oldest retained chunk; once
// the retained size exceeds the limit the oldest chunks are released by
// advancing the first pointer. A subscriber already walking the list keeps
// its own position, so it never misses chunks that were released after it
// started.
type OutputStorage struct {
	// first is the node before the oldest retained chunk. It starts as the sentinel.
	first atomic.Pointer[node]
	tail  *node // only touched by the writer

	limit    int64
	retained atomic.Int64
	dropped  atomic.Int64

	broadcaster *Broadcaster[struct{}]
	stopOnce    sync.Once
	done        chan struct{}
}

// Option configures an OutputStorage.
type Option func(*OutputStorage)

// WithLimit bounds the retained bytes. The newest chunk is always retained,
// even when it alone exceeds the limit. A non-positive limit disables the bound.
func WithLimit(limit int) Option {
	return func(s *OutputStorage) {
		s.limit = int64(limit)
	}
}

// RunNewOutputStorage creates a new, empty OutputStorage.
func RunNewOutputStorage(opts ...Option) *OutputStorage {
	sentinel := &node{}
	s := &OutputStorage{
		tail:        sentinel,
		limit:       DefaultLimit,
		broadcaster: RunNewBroadcaster[struct{}](),
		done:        make(chan struct{}),
	}
	s.first.Store(sentinel)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stop marks the end of the stream. Subscribers receive what is left and then
// see their channel closed. Stop may be called more than once.
func (s *OutputStorage) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.done)
		s.broadcaster.Stop()
	})
}

// Done is closed once Stop has been called.
func (s *OutputStorage) Done() <-chan struct{} {
	return s.done
}

// Append adds the provided byte slice to the end of the list. Only one
// goroutine may append at a time.
// Note: The slice is stored as-is; if callers may mutate the slice afterward,
// they should pass a copy (e.g., append([]byte(nil), data...)).
func (s *OutputStorage) Append(data []byte) {
	if s == nil {
		return
	}

	newTail := &node{data: data}
	s.tail.next.Store(newTail)
	s.tail = newTail

	s.retained.Add(int64(len(data)))
	s.trim()

	s.broadcaster.Publish(struct{}{})
}

// trim releases the oldest chunks while the retained size is over the limit.
func (s *OutputStorage) trim() {
	if s.limit <= 0 {
		return
	}
	for s.retained.Load() > s.limit {
		first := s.first.Load()
		oldest := first.next.Load()
		if oldest == nil || oldest == s.tail {
			return
		}
		s.first.Store(oldest)
		s.retained.Add(-int64(len(oldest.data)))
		s.dropped.Add(int64(len(oldest.data)))
	}
}

// Retained returns the number of bytes currently kept.
func (s *OutputStorage) Retained() int {
	if s == nil {
		return 0
	}
	return int(s.retained.Load())
}

// Dropped returns the number of bytes released by the retention bound.
func (s *OutputStorage) Dropped() int {
	if s == nil {
		return 0
	}
	return int(s.dropped.Load())
}

func (s *OutputStorage) subscribeRunningProcess(ctx context.Context, notifier chan struct{}, ch chan []byte) {
	id := uuid.New()
	logger.Debug("subscriber started", "id", id)
	defer close(ch)
	defer s.broadcaster.Unsubscribe(notifier)

	prev := s.first.Load()
	for {
		current := prev.next.Load()
		if current == nil {
			select {
			case _, ok := <-notifier:
				if !ok {
					// writer is done; flush whatever was appended before Stop
					s.drain(ctx, prev, ch)
					logger.Debug("subscriber finished", "id", id)
					return
				}
				continue
			case <-ctx.Done():
				logger.Debug("subscriber cancelled", "id", id)
				return
			}
		}
		prev = current

		select {
		case ch <- current.data:
		case <-ctx.Done():
			logger.Debug("subscriber cancelled", "id", id)
			return
		}
	}
}

func (s *OutputStorage) drain(ctx context.Context, prev *node, ch chan []byte) {
	for current := prev.next.Load(); current != nil; current = current.next.Load() {
		select {
		case ch <- current.data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *OutputStorage) subscribeStoppedProcess(ctx context.Context, ch chan []byte) {
	defer close(ch)
	s.drain(ctx, s.first.Load(), ch)
}

// Subscribe streams the retained chunks followed by live ones. The channel is
// closed after Stop once everything has been delivered.
func (s *OutputStorage) Subscribe(capacity int) <-chan []byte {
	return s.SubscribeContext(context.Background(), capacity)
}

// SubscribeContext is Subscribe with an early exit: the channel is closed
// when ctx ends.
func (s *OutputStorage) SubscribeContext(ctx context.Context, capacity int) <-chan []byte {
	ch := make(chan []byte, capacity)
	notifier, err := s.broadcaster.Subscribe()
	if err == nil {
		go s.subscribeRunningProcess(ctx, notifier, ch)
	} else {
		go s.subscribeStoppedProcess(ctx, ch)
	}

	return ch
}

// ForEach iterates over all retained byte slices in insertion order.
// The iterator function receives each slice; if it returns false, iteration stops early.
func (s *OutputStorage) ForEach(iter func([]byte) bool) {
	if s == nil || iter == nil {
		return
	}
	cur := s.first.Load().next.Load()
	for cur != nil {
		if !iter(cur.data) {
			return
		}
		cur = cur.next.Load()
	}
}

// Bytes concatenates all retained byte slices into a single slice.
func (s *OutputStorage) Bytes() []byte {
	total := 0
	slices := make([][]byte, 0, 16)
	s.ForEach(func(b []byte) bool {
		slices = append(slices, b)
		total += len(b)
		return true
	})
	out := make([]byte, 0, total)
	for _, b := range slices {
		out = append(out, b...)
	}
	return out
}

// Tail returns at most n of the most recent retained bytes.
func (s *OutputStorage) Tail(n int) []byte {
	b := s.Bytes()
	if n >= 0 && len(b) > n {
		return b[len(b)-n:]
	}
	return b
}

// String returns all retained byte slices concatenated into a single string.
func (s *OutputStorage) String() string {
	return string(s.Bytes())
}
