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
	"fmt"
	"time"
)

// paceTracker tracks how frequently reconnection episodes start. Once limit
// of them fall within period, tick reports an error so the supervisor
// can log a "reconnecting too quickly" breadcrumb; it never changes retry
// timing itself. Unlike the teacher's version this reads time through a
// Clock rather than time.Now directly, so tests can drive it with a
// FakeClock instead of sleeping in real time.
type paceTracker struct {
	now    func() time.Time
	limit  int
	period time.Duration
	starts []time.Time
}

// newPaceTracker defines a paceTracker with the given rate limit, reading
// the current time from clock.
func newPaceTracker(clock Clock, limit int, period time.Duration) *paceTracker {
	return &paceTracker{
		now:    clock.Now,
		limit:  limit,
		period: period,
		starts: make([]time.Time, limit),
	}
}

// reset clears the recorded occurrence history, as reset_counts does.
func (p *paceTracker) reset() {
	p.starts = make([]time.Time, p.limit)
}

// tick records one occurrence and reports an error if limit occurrences
// have now happened within period.
func (p *paceTracker) tick() error {
	now := p.now()
	p.starts = append(p.starts[1:p.limit], now)
	if delta := now.Sub(p.starts[0]); delta < p.period {
		return fmt.Errorf("%d reconnection episodes in %v", p.limit, delta)
	}
	return nil
}
