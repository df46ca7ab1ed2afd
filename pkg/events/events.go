package events

import (
	"container/heap"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/containerrt/pkg/log"
)

// Priority ranks events for dispatch ordering. Higher values are always
// dispatched strictly before lower ones; within one priority, delivery is
// FIFO by publish order.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// MetaValue is a discriminated union over the value types event metadata may
// carry (string, int, float64, bool), matching the container data model.
type MetaValue struct {
	str    string
	i      int64
	f      float64
	b      bool
	isStr  bool
	isInt  bool
	isF64  bool
	isBool bool
}

func StringMeta(s string) MetaValue { return MetaValue{str: s, isStr: true} }
func IntMeta(i int64) MetaValue     { return MetaValue{i: i, isInt: true} }
func FloatMeta(f float64) MetaValue { return MetaValue{f: f, isF64: true} }
func BoolMeta(b bool) MetaValue     { return MetaValue{b: b, isBool: true} }

// String renders the value regardless of its underlying type, for logging.
func (m MetaValue) String() string {
	switch {
	case m.isStr:
		return m.str
	case m.isInt:
		return fmt.Sprintf("%d", m.i)
	case m.isF64:
		return fmt.Sprintf("%g", m.f)
	case m.isBool:
		return fmt.Sprintf("%t", m.b)
	default:
		return ""
	}
}

// Event is an immutable (once published) record flowing through the bus.
type Event struct {
	ID        uint64
	Type      string
	Data      string
	Timestamp time.Time
	Priority  Priority
	Metadata  map[string]MetaValue
}

// Listener receives dispatched events. A listener must not block for long
// periods: a slow listener delays every other subscriber of the same event,
// but never blocks the publisher.
type Listener func(*Event)

type subscription struct {
	id       uint64
	pattern  string
	re       *regexp.Regexp // nil when pattern is "*" or has no wildcard
	exact    bool
	listener Listener
	active   atomic.Bool
}

type batchConfig struct {
	interval time.Duration
	maxBatch int
	buffer   []*Event
	oldest   time.Time
}

// Statistics is a point-in-time snapshot of bus activity.
type Statistics struct {
	Published           uint64
	Processed           uint64
	Dropped             uint64
	ActiveSubscriptions int
	Pending             int
}

// Bus is a bounded, priority-ordered, pattern-addressable event dispatcher.
// A Bus must be created with NewBus and stopped with Stop; it is not a
// process-wide singleton (see DESIGN.md, "global event-bus singleton").
type Bus struct {
	mu          sync.Mutex
	cond        *sync.Cond
	queue       eventHeap
	capacity    int
	subsMu      sync.RWMutex
	subs        map[uint64]*subscription
	nextSubID   uint64
	nextEventID uint64
	published   atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	batchMu     sync.Mutex
	batches     map[string]*batchConfig
	stopCh      chan struct{}
	stopped     atomic.Bool
	wg          sync.WaitGroup
	logger      zerolog.Logger
}

type queuedEvent struct {
	event *Event
	seq   uint64
}

type eventHeap []*queuedEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].event.Priority != h[j].event.Priority {
		return h[i].event.Priority > h[j].event.Priority
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*queuedEvent)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DefaultCapacity bounds the pending queue when NewBus is called with
// capacity <= 0.
const DefaultCapacity = 4096

// NewBus constructs a Bus and starts its dispatcher goroutine.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{
		capacity: capacity,
		subs:     make(map[uint64]*subscription),
		batches:  make(map[string]*batchConfig),
		stopCh:   make(chan struct{}),
		logger:   log.WithComponent("events"),
	}
	b.cond = sync.NewCond(&b.mu)
	b.wg.Add(1)
	go b.dispatchLoop()
	return b
}

// Subscribe registers listener for events whose Type matches pattern ('*'
// matches any run of characters, anchored; a pattern with no '*' matches
// only that literal type). Returns a subscription id usable with
// Unsubscribe.
func (b *Bus) Subscribe(pattern string, priority Priority, listener Listener) uint64 {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	b.nextSubID++
	id := b.nextSubID
	sub := &subscription{id: id, pattern: pattern, listener: listener}
	sub.active.Store(true)

	switch {
	case pattern == "*":
		// matches everything; leave re nil, exact false.
	case !strings.Contains(pattern, "*"):
		sub.exact = true
	default:
		sub.re = compilePattern(pattern)
	}

	b.subs[id] = sub
	return id
}

// Unsubscribe removes a subscription. Idempotent: unknown or already-removed
// ids are silently ignored.
func (b *Bus) Unsubscribe(id uint64) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	if sub, ok := b.subs[id]; ok {
		sub.active.Store(false)
		delete(b.subs, id)
	}
}

// Matches reports whether eventType satisfies pattern: "*" matches all, a
// pattern without '*' matches by exact string equality, and any other
// pattern treats '*' as a ".*" wildcard anchored at both ends.
func Matches(eventType, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return eventType == pattern
	}
	return compilePattern(pattern).MatchString(eventType)
}

func compilePattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := "^" + strings.Join(parts, ".*") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		// QuoteMeta guarantees a valid expression; unreachable in practice.
		return regexp.MustCompile("$^")
	}
	return re
}

// Publish enqueues event for dispatch. Non-blocking: if the queue is at
// capacity the event is dropped and recorded in Statistics rather than
// back-pressuring the caller. If event.Type has batching enabled, the event
// is buffered instead of queued immediately.
func (b *Bus) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.mu.Lock()
	b.nextEventID++
	event.ID = b.nextEventID
	b.mu.Unlock()

	b.published.Add(1)

	b.batchMu.Lock()
	if cfg, ok := b.batches[event.Type]; ok {
		if len(cfg.buffer) == 0 {
			cfg.oldest = event.Timestamp
		}
		cfg.buffer = append(cfg.buffer, event)
		full := len(cfg.buffer) >= cfg.maxBatch
		b.batchMu.Unlock()
		if full {
			b.flushBatch(event.Type)
		}
		return
	}
	b.batchMu.Unlock()

	b.enqueue(event)
}

func (b *Bus) enqueue(event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) >= b.capacity {
		b.dropped.Add(1)
		b.logger.Warn().Str("type", event.Type).Msg("event queue full, dropping event")
		return
	}
	heap.Push(&b.queue, &queuedEvent{event: event, seq: event.ID})
	b.cond.Signal()
}

// EnableBatching buffers events of exactly eventType; a batch flushes when
// either maxBatch events have accumulated or the oldest buffered event's age
// exceeds interval.
func (b *Bus) EnableBatching(eventType string, interval time.Duration, maxBatch int) {
	if maxBatch <= 0 {
		maxBatch = 1
	}
	b.batchMu.Lock()
	b.batches[eventType] = &batchConfig{interval: interval, maxBatch: maxBatch}
	b.batchMu.Unlock()

	b.wg.Add(1)
	go b.batchTicker(eventType, interval)
}

func (b *Bus) batchTicker(eventType string, interval time.Duration) {
	defer b.wg.Done()
	if interval <= 0 {
		interval = time.Second
	}
	tick := interval / 2
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.batchMu.Lock()
			cfg, ok := b.batches[eventType]
			expired := ok && len(cfg.buffer) > 0 && time.Since(cfg.oldest) >= cfg.interval
			b.batchMu.Unlock()
			if expired {
				b.flushBatch(eventType)
			}
			b.batchMu.Lock()
			_, stillBatching := b.batches[eventType]
			b.batchMu.Unlock()
			if !stillBatching {
				return
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) flushBatch(eventType string) {
	b.batchMu.Lock()
	cfg, ok := b.batches[eventType]
	if !ok || len(cfg.buffer) == 0 {
		b.batchMu.Unlock()
		return
	}
	pending := cfg.buffer
	cfg.buffer = nil
	b.batchMu.Unlock()

	for _, e := range pending {
		b.enqueue(e)
	}
}

// Flush blocks until every currently buffered batch has been dispatched and
// the pending queue has fully drained.
func (b *Bus) Flush() {
	b.batchMu.Lock()
	types := make([]string, 0, len(b.batches))
	for t := range b.batches {
		types = append(types, t)
	}
	b.batchMu.Unlock()
	for _, t := range types {
		b.flushBatch(t)
	}

	for {
		b.mu.Lock()
		empty := len(b.queue) == 0
		b.mu.Unlock()
		if empty && b.published.Load() == b.processed.Load()+b.dropped.Load() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Statistics returns a snapshot of bus activity.
func (b *Bus) Statistics() Statistics {
	b.mu.Lock()
	pending := len(b.queue)
	b.mu.Unlock()

	b.subsMu.RLock()
	active := len(b.subs)
	b.subsMu.RUnlock()

	return Statistics{
		Published:           b.published.Load(),
		Processed:           b.processed.Load(),
		Dropped:             b.dropped.Load(),
		ActiveSubscriptions: active,
		Pending:             pending,
	}
}

// Stop terminates the dispatcher goroutine and any batch tickers. The
// dispatcher delivers the events already in the pending queue before it
// exits; events still held in a batch buffer are not delivered unless Flush
// is called first.
func (b *Bus) Stop() {
	if b.stopped.CompareAndSwap(false, true) {
		close(b.stopCh)
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	}
	b.wg.Wait()
}

func (b *Bus) dispatchLoop() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.stopped.Load() {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.stopped.Load() {
			b.mu.Unlock()
			return
		}
		item := heap.Pop(&b.queue).(*queuedEvent)
		b.mu.Unlock()

		b.dispatch(item.event)
		b.processed.Add(1)
	}
}

func (b *Bus) dispatch(event *Event) {
	b.subsMu.RLock()
	matched := make([]*subscription, 0, 4)
	for _, sub := range b.subs {
		if !sub.active.Load() {
			continue
		}
		if subMatches(sub, event.Type) {
			matched = append(matched, sub)
		}
	}
	b.subsMu.RUnlock()

	for _, sub := range matched {
		b.invokeListener(sub, event)
	}
}

func (b *Bus) invokeListener(sub *subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Uint64("subscription_id", sub.id).
				Str("type", event.Type).
				Interface("panic", r).
				Msg("event listener panicked, isolating")
		}
	}()
	sub.listener(event)
}

func subMatches(sub *subscription, eventType string) bool {
	if sub.pattern == "*" {
		return true
	}
	if sub.exact {
		return sub.pattern == eventType
	}
	return sub.re.MatchString(eventType)
}
