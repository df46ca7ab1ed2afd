/*
Package events implements containerrt's bounded, priority-ordered event bus.

Where the teacher package broadcast every event to every subscriber over an
unordered channel, this Bus adds three things the container lifecycle needs:
glob-style pattern subscriptions, strict priority ordering within the pending
queue, and optional per-type batching. A single dispatcher goroutine drains a
priority heap and invokes matching listeners; listener panics/errors are
isolated so one bad subscriber never stalls delivery to the rest.

	Publish(event) ──▶ bounded heap (by priority, then FIFO) ──▶ dispatcher ──▶ matching listeners

Publish never blocks: a full queue drops the incoming event and records it in
Statistics rather than back-pressuring the caller.
*/
package events
