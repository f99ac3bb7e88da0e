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
	"time"

	"github.com/pkg/errors"

	"go.uber.org/zap"

	"stad/internal/dhcpstack"
	"stad/internal/notify"
	"stad/internal/radio"
	"stad/internal/wifi"
)

// ErrAllocationFailed names the allocation-failure kind of the error
// taxonomy. NewSupervisor builds its queue, gate and machine with plain Go
// allocation and has no error return, so no function in this package
// returns it.
var ErrAllocationFailed = errors.New("station: allocation failed")

// Supervisor is C8: it owns construction of C1-C7, runs the startup
// sequence, and drives the event loop (dequeue, dispatch) until Stop is
// called.
type Supervisor struct {
	machine *Machine
	queue   *EventQueue
	radio   radio.Adapter
	emit    notify.Emitter
	log     *zap.SugaredLogger

	bleReady func()
	done     chan struct{}
}

// Tuning bundles the daemon's configurable timing knobs, sourced from
// environment variables by cmd/ap.stad (see its config.go); zero values
// fall back to the spec's documented defaults.
type Tuning struct {
	PollMS        time.Duration
	ScanTimeoutMS uint
}

// NewSupervisor wires the collaborators and returns a Supervisor that has
// not yet been started.
func NewSupervisor(r radio.Adapter, stack dhcpstack.Stack, emit notify.Emitter, log *zap.SugaredLogger, clock Clock, secPolicy radio.SecurityPolicy, tuning Tuning) *Supervisor {
	queue := NewEventQueue(64)
	gate := notify.NewGate(emit)
	m := NewMachine(Config{
		Radio:          r,
		Stack:          stack,
		Gate:           gate,
		Queue:          queue,
		Clock:          clock,
		Log:            log,
		SecurityPolicy: secPolicy,
		PollMS:         tuning.PollMS,
		ScanTimeoutMS:  tuning.ScanTimeoutMS,
	})
	return &Supervisor{
		machine: m,
		queue:   queue,
		radio:   r,
		emit:    emit,
		log:     log,
		done:    make(chan struct{}),
	}
}

// OnBLEReady registers the callback invoked once, during Start, to release
// the BLE-init synchronization signal (§5: the core signals BLE-init
// readiness via a single binary signal after its own init completes).
func (s *Supervisor) OnBLEReady(f func()) {
	s.bleReady = f
}

// Machine exposes the underlying state machine for command-API callers
// (SetProvision, IsStaConnected, etc).
func (s *Supervisor) Machine() *Machine {
	return s.machine
}

// Start performs the C8 startup order: radio_adapter.init, then release
// the BLE-init signal, then mark DevReady. It does not yet run the event
// loop; call Run for that. A radio Init failure is fatal: Start returns it
// wrapped, and the supervisor does not start.
func (s *Supervisor) Start() error {
	onJoin := func(success bool) {
		// Radio-SDK callback context: post only, never mutate state here.
		_ = s.queue.Post(wifi.Event{Kind: wifi.EventStationConnect, Success: success})
	}
	if err := s.radio.Init(onJoin); err != nil {
		return errors.Wrap(err, "radio init")
	}
	s.emit.WifiStarted()
	if s.bleReady != nil {
		s.bleReady()
	}
	s.machine.setState(func(st wifi.StateSet) wifi.StateSet { return st.Set(wifi.DevReady) })
	return nil
}

// Run blocks, dequeuing and dispatching events until Stop is called.
func (s *Supervisor) Run() {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		e := s.queue.Dequeue()
		s.machine.Dispatch(e)
	}
}

// Stop requests the event loop to exit after its current dispatch. It does
// not itself unblock a Dequeue in progress; callers typically post a
// final no-op event (e.g. ApStop) to wake it.
func (s *Supervisor) Stop() {
	close(s.done)
}

// Shutdown is Stop plus a wake-up: it posts an ApStop event so a Run
// blocked on an empty queue notices s.done on its next loop iteration
// instead of waiting for an unrelated event to arrive.
func (s *Supervisor) Shutdown() {
	s.Stop()
	_ = s.queue.Post(wifi.Event{Kind: wifi.EventApStop})
}

// --- Command API (§6 "Connectivity manager command API") ---

// Connect posts StationStartJoin unconditionally; the machine's own guard
// drops it when the station is not provisioned or is already connecting or
// connected. The returned error only reports a full event queue.
func (s *Supervisor) Connect() error {
	return s.queue.Post(wifi.Event{Kind: wifi.EventStationStartJoin})
}

// Disconnect posts StationDisconnect.
func (s *Supervisor) Disconnect() error {
	return s.queue.Post(wifi.Event{Kind: wifi.EventStationDisconnect})
}

// SetProvision implements set_provision.
func (s *Supervisor) SetProvision(p wifi.Provision) error {
	return s.machine.SetProvision(p)
}

// GetProvision implements get_provision.
func (s *Supervisor) GetProvision() (wifi.Provision, bool) {
	return s.machine.Provision()
}

// ClearProvision implements clear_provision.
func (s *Supervisor) ClearProvision() {
	s.machine.ClearProvision()
}

// StartScan implements start_scan: a user-initiated scan distinct from the
// machine's internal pre-join scan.
func (s *Supervisor) StartScan(ssidFilter string, cb func(wifi.ScanResult)) error {
	job := &wifi.ScanJob{
		SSIDFilter: ssidFilter,
		Callback:   cb,
	}
	return s.queue.Post(wifi.Event{Kind: wifi.EventScan, Job: job})
}

// IsStaConnected implements is_sta_connected.
func (s *Supervisor) IsStaConnected() bool {
	return s.machine.IsStaConnected()
}

// GetApInfo implements get_ap_info.
func (s *Supervisor) GetApInfo() wifi.ApInfo {
	return s.machine.ApInfo()
}

// GetApExt implements get_ap_ext.
func (s *Supervisor) GetApExt() ApExt {
	return s.machine.GetApExt()
}

// ResetCounts implements reset_counts.
func (s *Supervisor) ResetCounts() {
	s.machine.ResetCounts()
}
