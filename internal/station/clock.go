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

import "time"

// Clock is the C1 clock/timer service: the one seam through which the
// supervisor's two bounded suspension points (the scan-complete wait and
// the retry-policy delay) and the DHCP-poll cadence reach real time. A
// RealClock is used in production; tests inject a FakeClock so a
// MaxRetryMS-scale back-off doesn't make the suite slow.
type Clock interface {
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
	Now() time.Time
}

// Ticker abstracts *time.Ticker so FakeClock can hand out a channel it
// controls.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is the production Clock, delegating straight to package time.
type RealClock struct{}

// Sleep implements Clock.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// After implements Clock.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewTicker implements Clock.
func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
