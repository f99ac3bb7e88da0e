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
	"sync"
	"time"

	"stad/internal/wifi"
)

// scanGate is C3: the scan semaphore pair. scan-in-progress provides
// mutual exclusion over the single outstanding ScanJob; scan-complete
// wakes the initiator once the radio adapter's scan callback has finished
// writing results.
type scanGate struct {
	mu         sync.Mutex
	inProgress bool

	resultsMu sync.Mutex
	results   []wifi.ScanResult
	completeC chan struct{}
}

func newScanGate() *scanGate {
	return &scanGate{}
}

// tryAcquire attempts to take the scan-in-progress semaphore, returning
// false if a scan is already outstanding.
func (g *scanGate) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inProgress {
		return false
	}
	g.inProgress = true
	g.resultsMu.Lock()
	g.results = nil
	g.completeC = make(chan struct{})
	g.resultsMu.Unlock()
	return true
}

// release gives back the scan-in-progress semaphore.
func (g *scanGate) release() {
	g.mu.Lock()
	g.inProgress = false
	g.mu.Unlock()
}

// onResult is the callback handed to radio.Adapter.StartScan. It runs on
// the radio SDK's own context: it may only write into the buffer fenced by
// scan-in-progress and, on the final (sentinel) call, signal scan-complete.
// It must never call back into the machine synchronously.
func (g *scanGate) onResult(r wifi.ScanResult, sentinel bool) {
	g.resultsMu.Lock()
	defer g.resultsMu.Unlock()
	if sentinel {
		close(g.completeC)
		return
	}
	g.results = append(g.results, r)
}

// waitComplete blocks on scan-complete, bounded by the clock's After(d).
// This is suspension point 2. It returns the buffered results and whether
// the wait ended in a timeout (in which case results should be ignored and
// the scan treated as abandoned, per spec).
func (g *scanGate) waitComplete(clock Clock, d time.Duration) ([]wifi.ScanResult, bool) {
	select {
	case <-g.completeC:
		g.resultsMu.Lock()
		defer g.resultsMu.Unlock()
		return g.results, false
	case <-clock.After(d):
		return nil, true
	}
}
