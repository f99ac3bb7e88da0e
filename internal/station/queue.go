/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package station

import (
	"github.com/pkg/errors"

	"stad/internal/wifi"
)

// ErrQueueFull is returned by Post when the bounded event queue has no
// spare capacity. Callers posting from a foreign (callback) context must
// not block, so a full queue is reported rather than waited out.
var ErrQueueFull = errors.New("station: event queue full")

// EventQueue is C2: a bounded FIFO of wifi.Event values posted by
// callbacks, timers, and commands, and dequeued exactly once by the
// supervisor's single dispatch loop.
type EventQueue struct {
	ch chan wifi.Event
}

// NewEventQueue returns an EventQueue with the given capacity.
func NewEventQueue(capacity int) *EventQueue {
	return &EventQueue{ch: make(chan wifi.Event, capacity)}
}

// Post enqueues e without blocking. It is the only operation permitted
// from a radio-adapter callback or timer context.
func (q *EventQueue) Post(e wifi.Event) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks indefinitely until an event is available. This is
// suspension point 1 of the concurrency model.
func (q *EventQueue) Dequeue() wifi.Event {
	return <-q.ch
}

// Len reports the number of events currently buffered, for tests asserting
// that nothing further was auto-queued.
func (q *EventQueue) Len() int {
	return len(q.ch)
}
