package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	cases := []struct {
		eventType, pattern string
		want               bool
	}{
		{"container.started", "*", true},
		{"container.started", "container.started", true},
		{"container.started", "container.stopped", false},
		{"container.started", "container.*", true},
		{"cgroup.oom", "container.*", false},
		{"container.oom.killed", "container.*.killed", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Matches(c.eventType, c.pattern), "%s vs %s", c.eventType, c.pattern)
	}
}

func TestPublishDispatchesToMatchingSubscribersOnly(t *testing.T) {
	b := NewBus(16)
	defer b.Stop()

	var gotA, gotB int32
	b.Subscribe("container.*", Normal, func(e *Event) { atomic.AddInt32(&gotA, 1) })
	b.Subscribe("cgroup.*", Normal, func(e *Event) { atomic.AddInt32(&gotB, 1) })

	b.Publish(&Event{Type: "container.started"})
	b.Flush()

	assert.EqualValues(t, 1, atomic.LoadInt32(&gotA))
	assert.EqualValues(t, 0, atomic.LoadInt32(&gotB))
}

func TestPriorityOrdering(t *testing.T) {
	b := NewBus(64)
	defer b.Stop()

	var mu sync.Mutex
	var order []string

	b.Subscribe("*", Normal, func(e *Event) {
		mu.Lock()
		order = append(order, e.Data)
		mu.Unlock()
	})

	// Publish before the dispatcher has a chance to drain, so all three
	// land in the queue together and priority ordering governs delivery.
	b.Publish(&Event{Type: "x", Data: "low", Priority: Low})
	b.Publish(&Event{Type: "x", Data: "critical", Priority: Critical})
	b.Publish(&Event{Type: "x", Data: "normal", Priority: Normal})

	b.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, "critical", order[0])
	assert.Equal(t, "normal", order[1])
	assert.Equal(t, "low", order[2])
}

func TestUnsubscribeIsIdempotentAndStopsDelivery(t *testing.T) {
	b := NewBus(16)
	defer b.Stop()

	var count int32
	id := b.Subscribe("*", Normal, func(e *Event) { atomic.AddInt32(&count, 1) })

	b.Publish(&Event{Type: "a"})
	b.Flush()
	assert.EqualValues(t, 1, atomic.LoadInt32(&count))

	b.Unsubscribe(id)
	b.Unsubscribe(id) // idempotent

	b.Publish(&Event{Type: "a"})
	b.Flush()
	assert.EqualValues(t, 1, atomic.LoadInt32(&count))
}

func TestStatisticsTracksPublishedAndActiveSubscriptions(t *testing.T) {
	b := NewBus(16)
	defer b.Stop()

	id1 := b.Subscribe("*", Normal, func(e *Event) {})
	b.Subscribe("*", Normal, func(e *Event) {})

	b.Publish(&Event{Type: "a"})
	b.Publish(&Event{Type: "b"})
	b.Flush()

	stats := b.Statistics()
	assert.EqualValues(t, 2, stats.Published)
	assert.EqualValues(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.ActiveSubscriptions)
	assert.Equal(t, 0, stats.Pending)

	b.Unsubscribe(id1)
	stats = b.Statistics()
	assert.Equal(t, 1, stats.ActiveSubscriptions)
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	b := NewBus(1)
	defer b.Stop()

	block := make(chan struct{})
	b.Subscribe("*", Normal, func(e *Event) { <-block })

	b.Publish(&Event{Type: "a"}) // picked up by dispatcher, blocks inside listener
	time.Sleep(10 * time.Millisecond)
	b.Publish(&Event{Type: "b"}) // fills the one queue slot
	b.Publish(&Event{Type: "c"}) // queue full, dropped

	close(block)
	b.Flush()

	stats := b.Statistics()
	assert.EqualValues(t, 1, stats.Dropped)
}

func TestEnableBatchingGroupsByCount(t *testing.T) {
	b := NewBus(16)
	defer b.Stop()

	var count int32
	b.Subscribe("batch.*", Normal, func(e *Event) { atomic.AddInt32(&count, 1) })
	b.EnableBatching("batch.metric", time.Hour, 3)

	b.Publish(&Event{Type: "batch.metric", Data: "1"})
	b.Publish(&Event{Type: "batch.metric", Data: "2"})
	assert.EqualValues(t, 0, atomic.LoadInt32(&count), "batch below maxBatch should not dispatch yet")

	b.Publish(&Event{Type: "batch.metric", Data: "3"})
	b.Flush()
	assert.EqualValues(t, 3, atomic.LoadInt32(&count))
}

func TestListenerPanicIsIsolated(t *testing.T) {
	b := NewBus(16)
	defer b.Stop()

	var ranSecond int32
	b.Subscribe("*", Normal, func(e *Event) { panic("boom") })
	b.Subscribe("*", Normal, func(e *Event) { atomic.AddInt32(&ranSecond, 1) })

	b.Publish(&Event{Type: "a"})
	b.Flush()

	assert.EqualValues(t, 1, atomic.LoadInt32(&ranSecond))
}
