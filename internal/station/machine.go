/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package station implements the supervisor's core: the clock/timer
// service, bounded event queue, scan semaphore pair, the state machine
// driving association/DHCP/reconnection, and the supervisor task that
// wires them together.
package station

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"stad/internal/dhcpstack"
	"stad/internal/notify"
	"stad/internal/radio"
	"stad/internal/retry"
	"stad/internal/wifi"

	"github.com/satori/uuid"
)

// Machine is C6: it consumes events dequeued by the supervisor, drives
// transitions, updates the device-state bitset, and emits upward
// notifications through the gate. All of its methods run on the single
// supervisor goroutine; nothing here is safe to call concurrently except
// the explicitly thread-safe accessors.
type Machine struct {
	radio radio.Adapter
	stack dhcpstack.Stack
	gate  *notify.Gate
	queue *EventQueue
	clock Clock
	log   *zap.SugaredLogger

	securityPolicy radio.SecurityPolicy

	scan          *scanGate
	timer         Ticker
	pollMS        time.Duration
	scanTimeoutMS uint

	retry         *retry.State
	everConnected bool
	episodeID     uuid.UUID
	pace          *paceTracker

	stateMu   sync.RWMutex
	state     wifi.StateSet
	provision wifi.Provision
	apInfo    wifi.ApInfo

	onMetricJoinAttempt func()
	onMetricJoinFailure func()
	onMetricReconnect   func()
	onMetricRetryMS     func(uint)
}

// Config bundles the collaborators Machine needs at construction.
type Config struct {
	Radio          radio.Adapter
	Stack          dhcpstack.Stack
	Gate           *notify.Gate
	Queue          *EventQueue
	Clock          Clock
	Log            *zap.SugaredLogger
	SecurityPolicy radio.SecurityPolicy

	// PollMS overrides the DHCP/IPv6 poll cadence (default wifi.DHCPPollMS)
	// and ScanTimeoutMS overrides the internal scan deadline (default
	// wifi.ScanTimeoutMS). Both are zero-value-means-default so most
	// callers, including every test, can leave them unset; cmd/ap.stad
	// wires them from its env-configurable tunables.
	PollMS        time.Duration
	ScanTimeoutMS uint
}

// NewMachine constructs a Machine ready to accept events once started.
func NewMachine(c Config) *Machine {
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.SecurityPolicy == nil {
		c.SecurityPolicy = radio.DefaultSecurityPolicy(false)
	}
	pollMS := c.PollMS
	if pollMS == 0 {
		pollMS = wifi.DHCPPollMS * time.Millisecond
	}
	scanTimeoutMS := c.ScanTimeoutMS
	if scanTimeoutMS == 0 {
		scanTimeoutMS = wifi.ScanTimeoutMS
	}
	return &Machine{
		radio:          c.Radio,
		stack:          c.Stack,
		gate:           c.Gate,
		queue:          c.Queue,
		clock:          c.Clock,
		log:            c.Log,
		securityPolicy: c.SecurityPolicy,
		scan:           newScanGate(),
		retry:          retry.NewState(),
		pollMS:         pollMS,
		scanTimeoutMS:  scanTimeoutMS,
		pace:           newPaceTracker(c.Clock, reconnectPaceLimit, reconnectPacePeriod),
	}
}

// reconnectPaceLimit/reconnectPacePeriod bound how many reconnection
// episodes are tolerated before the supervisor logs an instability warning,
// matching the cadence ap.wifid applies to a crash-looping hostapd.
const (
	reconnectPaceLimit  = 4
	reconnectPacePeriod = time.Minute
)

// SetMetricsHooks wires optional callbacks invoked on retry-relevant
// transitions; cmd/ap.stad uses these to drive internal/metrics without
// this package importing it directly.
func (m *Machine) SetMetricsHooks(joinAttempt, joinFailure, reconnect func(), retryMS func(uint)) {
	m.onMetricJoinAttempt = joinAttempt
	m.onMetricJoinFailure = joinFailure
	m.onMetricReconnect = reconnect
	m.onMetricRetryMS = retryMS
}

// State returns a thread-safe snapshot of the device-state bitset.
func (m *Machine) State() wifi.StateSet {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// IsStaConnected implements the "is_sta_connected" downward query.
func (m *Machine) IsStaConnected() bool {
	return m.State().Has(wifi.StaConnected)
}

// ApInfo returns the most recently observed access point info.
func (m *Machine) ApInfo() wifi.ApInfo {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.apInfo
}

// ApExt is the extended access point view returned by get_ap_ext: the
// cached ApInfo plus a live RSSI read and link statistics queried
// directly from the radio adapter.
type ApExt struct {
	ApInfo wifi.ApInfo
	RSSI   int
	Stats  radio.Stats
}

// GetApExt implements the get_ap_ext command: ApInfo as last observed by a
// scan or join, refreshed with a live RSSI sample and the adapter's link
// statistics. RSSI and stats queries fail silently (zero value) when the
// adapter has nothing current to report, e.g. while disconnected.
func (m *Machine) GetApExt() ApExt {
	ext := ApExt{ApInfo: m.ApInfo()}
	if rssi, err := m.radio.GetRSSI(); err == nil {
		ext.RSSI = rssi
	}
	if stats, err := m.radio.GetStats(); err == nil {
		ext.Stats = stats
	}
	return ext
}

// ResetCounts implements the reset_counts command: zero the retry policy's
// counters and the reconnection pace tracker, without touching the current
// connection state or notification flags. Matches the teacher's
// reset-statistics affordance (Brightgate's "reset_counts" equivalent
// clears the same failure bookkeeping without tearing down a live link).
func (m *Machine) ResetCounts() {
	m.retry.Reset()
	m.pace.reset()
}

// SetProvision installs credentials and marks the station provisioned.
// Matches the round-trip law: SetProvision(p); Provision() == p.
func (m *Machine) SetProvision(p wifi.Provision) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.provision = p
	m.state = m.state.Set(wifi.StaProvisioned)
	return nil
}

// Provision returns the current credentials and whether any are set.
func (m *Machine) Provision() (wifi.Provision, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.provision, m.state.Has(wifi.StaProvisioned)
}

// ClearProvision removes any stored credentials.
func (m *Machine) ClearProvision() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.provision = wifi.Provision{}
	m.state = m.state.Clear(wifi.StaProvisioned)
}

func (m *Machine) setState(f func(wifi.StateSet) wifi.StateSet) {
	m.stateMu.Lock()
	m.state = f(m.state)
	m.stateMu.Unlock()
}

// Dispatch processes a single dequeued event. It is called only from the
// supervisor's event loop goroutine.
func (m *Machine) Dispatch(e wifi.Event) {
	switch e.Kind {
	case wifi.EventStationStartJoin:
		m.handleStartJoin()
	case wifi.EventStationConnect:
		m.handleJoinResult(e.Success)
	case wifi.EventStationDoDhcp:
		m.handleStationDoDhcp()
	case wifi.EventDhcpPoll:
		m.handleDhcpPoll()
	case wifi.EventStationDhcpDone:
		m.handleStationDhcpDone()
	case wifi.EventStationDisconnect:
		m.handleStationDisconnect()
	case wifi.EventScan:
		m.handleScan(e.Job)
	case wifi.EventApStart, wifi.EventApStop:
		// Reserved; no-op in this core.
	}
}

// sleepThenPost is suspension point 3: the retry-policy delay. It is
// called inline from Dispatch, so the supervisor's single goroutine blocks
// here and no other event is processed until the delay elapses, matching
// the cooperative single-task model.
func (m *Machine) sleepThenPost(e wifi.Event, delay time.Duration) {
	m.clock.Sleep(delay)
	if err := m.queue.Post(e); err != nil {
		m.log.Warnf("dropping %s on full queue: %v", e.Kind, err)
	}
}

func (m *Machine) handleStartJoin() {
	state := m.State()
	if !state.Has(wifi.StaProvisioned) || state.Any(wifi.StaConnecting|wifi.StaConnected) {
		return
	}

	prov, _ := m.Provision()
	security := m.refineSecurityByScan(prov.SSID)

	if m.onMetricJoinAttempt != nil {
		m.onMetricJoinAttempt()
	}
	outcome, err := m.radio.Connect(prov.SSID, security, prov.PSK)
	if err != nil {
		m.log.Warnf("connect(%s) failed synchronously: %v", prov.SSID, err)
		m.retryAfterFailure()
		return
	}
	if outcome == radio.Pending {
		m.setState(func(s wifi.StateSet) wifi.StateSet { return s.Set(wifi.StaConnecting) })
		return
	}
	// Ok: treat as an immediate, synchronous success. StaConnecting is set
	// first so the success path's staleness guard accepts it.
	m.setState(func(s wifi.StateSet) wifi.StateSet { return s.Set(wifi.StaConnecting) })
	m.handleJoinResult(true)
}

// refineSecurityByScan performs the internal best-effort scan described in
// the StationStartJoin row of the transition table: scan for the target
// SSID to capture ApInfo and a refined security kind before connecting; the
// security seen in the first result is passed through the security policy.
// If the scan gate is busy, times out, fails, or the policy rejects the
// observed security, security defaults to the policy's mapping for Wpa3:
// Wpa3 when WPA3 transition is enabled, Wpa2 otherwise.
func (m *Machine) refineSecurityByScan(ssid string) wifi.Security {
	def, _ := m.securityPolicy(wifi.SecurityWpa3)

	if !m.scan.tryAcquire() {
		return def
	}
	defer m.scan.release()

	cfg := radio.DefaultScanCfg()
	outcome, err := m.radio.StartScan(ssid, cfg, m.scan.onResult)
	if err != nil {
		return def
	}
	if outcome != radio.Pending {
		return def
	}

	results, timedOut := m.scan.waitComplete(m.clock, time.Duration(m.scanTimeoutMS)*time.Millisecond)
	if timedOut || len(results) == 0 {
		return def
	}

	best := results[0]
	m.stateMu.Lock()
	m.apInfo = wifi.ApInfo{BSSID: best.BSSID, Security: best.Security, RSSI: best.RSSI}
	m.stateMu.Unlock()
	if sec, err := m.securityPolicy(best.Security); err == nil {
		return sec
	}
	return def
}

func (m *Machine) retryAfterFailure() {
	out := m.retry.Next()
	if m.onMetricJoinFailure != nil {
		m.onMetricJoinFailure()
	}
	if m.onMetricRetryMS != nil {
		m.onMetricRetryMS(m.retry.RetryIntervalMS)
	}
	if out.Exhausted {
		m.log.Infow("first-join regime exhausted, going idle", "retries", m.retry.JoinRetries)
		return
	}
	m.sleepThenPost(wifi.Event{Kind: wifi.EventStationStartJoin}, time.Duration(out.DelayMS)*time.Millisecond)
}

// handleJoinResult handles both the StationConnect event (success==true)
// and the join-failure callback path (success==false). The radio
// adapter's callback only ever posts wifi.EventStationConnect with the
// appropriate Success value; this keeps the foreign-context callback
// restricted to "post an event", per the concurrency model.
// handleJoinResult's staleness guard differs by outcome: a stale success
// is only ever meaningful following a StartJoin, so it requires
// StaConnecting (§4.3's spurious-callback tie-break). A failure, however,
// is also how the core learns of an unsolicited link loss while already
// associated (§9 S3) — the vendor SDK reuses the join callback for that
// case — so a failure is accepted whenever either StaConnecting or
// StaConnected holds, and dropped only when neither does.
func (m *Machine) handleJoinResult(success bool) {
	state := m.State()
	if success {
		if !state.Has(wifi.StaConnecting) {
			m.log.Debugw("dropping stale join-success callback")
			return
		}
		m.setState(func(s wifi.StateSet) wifi.StateSet {
			return s.Clear(wifi.StaConnecting).Set(wifi.StaConnected)
		})
		m.retry.Reset()
		m.gate.ResetQuiet()
		m.everConnected = true
		m.episodeID = uuid.NewV4()
		m.log.Infow("join succeeded, starting connectivity episode", "episode", m.episodeID.String())
		if m.onMetricRetryMS != nil {
			m.onMetricRetryMS(m.retry.RetryIntervalMS)
		}
		if err := m.stack.SetLinkUp(); err != nil {
			m.log.Warnf("set_link_up: %v", err)
		}
		if err := m.queue.Post(wifi.Event{Kind: wifi.EventStationDoDhcp}); err != nil {
			m.log.Warnf("posting StationDoDhcp: %v", err)
		}
		return
	}

	if !state.Any(wifi.StaConnecting | wifi.StaConnected) {
		m.log.Debugw("dropping stale join-failure callback")
		return
	}

	m.setState(func(s wifi.StateSet) wifi.StateSet {
		return s.Clear(wifi.StaConnecting | wifi.StaConnected)
	})
	wasFirstEpisode := !m.retry.IsReconnection
	if m.everConnected {
		m.retry.IsReconnection = true
	}
	if wasFirstEpisode && m.retry.IsReconnection {
		if m.onMetricReconnect != nil {
			m.onMetricReconnect()
		}
		if err := m.pace.tick(); err != nil {
			m.log.Warnf("reconnecting too quickly: %v", err)
		}
	}
	m.retryAfterFailure()
}

func (m *Machine) handleStationDoDhcp() {
	if !m.State().Has(wifi.StaConnected) {
		return
	}
	m.startDHCPTimer()
}

func (m *Machine) startDHCPTimer() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.NewTicker(m.pollMS)
	go func(t Ticker, q *EventQueue) {
		for range t.C() {
			_ = q.Post(wifi.Event{Kind: wifi.EventDhcpPoll})
		}
	}(m.timer, m.queue)
}

func (m *Machine) stopDHCPTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) handleDhcpPoll() {
	if !m.State().Has(wifi.StaConnected) {
		return
	}

	mac := m.radio.GetMAC()

	state, lease, err := m.stack.PollDHCPv4()
	if err != nil {
		m.log.Warnf("dhcp poll: %v", err)
	} else {
		switch state {
		case dhcpstack.DHCPv4AddressAssigned:
			if !m.gate.NotifiedIPv4() {
				m.gate.NotifyIPv4(lease.Addr, mac, m.episodeID.String())
				if err := m.queue.Post(wifi.Event{Kind: wifi.EventStationDhcpDone}); err != nil {
					m.log.Warnf("posting StationDhcpDone: %v", err)
				}
			}
		case dhcpstack.DHCPv4Off:
			if m.gate.NotifiedIPv4() {
				m.gate.NotifyIPv4Lost(m.episodeID.String())
			}
		}
	}

	v6, err := m.stack.IPv6State()
	if err != nil {
		m.log.Warnf("ipv6 state: %v", err)
		return
	}
	if v6 == dhcpstack.IPv6Preferred && !m.gate.NotifiedIPv6() {
		m.gate.NotifyIPv6(mac, m.episodeID.String())
		if err := m.queue.Post(wifi.Event{Kind: wifi.EventStationDhcpDone}); err != nil {
			m.log.Warnf("posting StationDhcpDone: %v", err)
		}
	}
}

func (m *Machine) handleStationDhcpDone() {
	if !m.State().Has(wifi.StaConnected) {
		return
	}
	m.stopDHCPTimer()
	m.setState(func(s wifi.StateSet) wifi.StateSet { return s.Set(wifi.StaDhcpDone) })
}

// handleStationDisconnect handles link loss from the lower layer as well
// as an explicit wifi_disconnect command. The transition table's "apply C5
// reconnection regime" is read here as bookkeeping only (mark the regime,
// reset the gate) rather than an automatic immediate re-join: an explicit
// disconnect (S6) must not trigger a reconnection attempt on its own, and
// an unsolicited link loss is always observed through a join-failure
// callback first, which is what actually drives the next StationStartJoin.
func (m *Machine) handleStationDisconnect() {
	if err := m.radio.Disconnect(); err != nil {
		m.log.Warnf("disconnect: %v", err)
	}
	m.stopDHCPTimer()
	m.setState(func(s wifi.StateSet) wifi.StateSet {
		return s.Clear(wifi.StaConnecting | wifi.StaConnected | wifi.StaDhcpDone)
	})
	if err := m.stack.SetLinkDown(); err != nil {
		m.log.Warnf("set_link_down: %v", err)
	}
	m.log.Infow("connectivity episode ended", "episode", m.episodeID.String())
	m.gate.ResetOnDisconnect(m.episodeID.String())
	if m.everConnected {
		m.retry.IsReconnection = true
	}
	if err := m.queue.Post(wifi.Event{Kind: wifi.EventStationDoDhcp}); err != nil {
		m.log.Warnf("posting StationDoDhcp: %v", err)
	}
}

func (m *Machine) handleScan(job *wifi.ScanJob) {
	if job == nil {
		return
	}
	if m.State().Has(wifi.ScanStarted) {
		return // a Scan event while ScanStarted is set is dropped
	}
	if !m.scan.tryAcquire() {
		return
	}
	m.setState(func(s wifi.StateSet) wifi.StateSet { return s.Set(wifi.ScanStarted) })

	var cfg radio.ScanCfg
	if m.State().Has(wifi.StaConnected) {
		cfg = radio.DefaultScanCfg()
	}

	finish := func() {
		m.setState(func(s wifi.StateSet) wifi.StateSet { return s.Clear(wifi.ScanStarted) })
		m.scan.release()
	}

	outcome, err := m.radio.StartScan(job.SSIDFilter, cfg, m.scan.onResult)
	if err != nil {
		m.log.Warnf("start_scan: %v", err)
		job.Callback(wifi.ScanResult{IsSentinel: true})
		finish()
		return
	}
	if outcome != radio.Pending {
		job.Callback(wifi.ScanResult{IsSentinel: true})
		finish()
		return
	}

	results, timedOut := m.scan.waitComplete(m.clock, time.Duration(m.scanTimeoutMS)*time.Millisecond)
	if timedOut {
		m.log.Warnf("scan timed out after %d ms", m.scanTimeoutMS)
		job.Callback(wifi.ScanResult{IsSentinel: true})
		finish()
		return
	}

	for _, r := range results {
		if job.Matches(r.SSID) {
			job.Callback(r)
		}
	}
	job.Callback(wifi.ScanResult{IsSentinel: true})
	finish()
}
