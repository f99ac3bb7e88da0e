/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package radio is the thin, testable facade over the vendor Wi-Fi SDK: a
// small set of synchronous and asynchronous operations, callback
// registration, and the mapping from the core's security enum to the
// radio's.
package radio

import (
	"fmt"

	"stad/internal/wifi"

	"github.com/pkg/errors"
)

// ErrAlreadyInitialized is returned by a second Init call.
var ErrAlreadyInitialized = errors.New("radio: already initialized")

// ErrNotProvisioned is returned by Connect when no credentials have been set.
var ErrNotProvisioned = errors.New("radio: not provisioned")

// ErrAlreadyInProgress is returned when a connect or scan is requested while
// one is already outstanding.
var ErrAlreadyInProgress = errors.New("radio: operation already in progress")

// ErrInvalidArg is returned for an unrecognized security kind; no callback
// follows a connect call that fails this way.
var ErrInvalidArg = errors.New("radio: invalid argument")

// Kind classifies a RadioError for the core's propagation policy.
type Kind int

// Error kinds.
const (
	KindTransient Kind = iota
	KindFatal
)

// Error wraps a raw SDK error code together with the core's classification
// of whether it should be retried (Transient) or surfaced and idled
// (Fatal).
type Error struct {
	Code int
	Kind Kind
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Kind == KindFatal {
		kind = "fatal"
	}
	return fmt.Sprintf("radio: sdk error %d (%s)", e.Code, kind)
}

// Outcome is returned by the two asynchronous operations, Connect and
// StartScan: Pending means a callback will follow; Ok means the operation
// is already complete (no callback). A synchronous failure is reported
// through the accompanying non-nil error instead.
type Outcome int

// Possible synchronous outcomes of an asynchronous operation.
const (
	Pending Outcome = iota
	Ok
)

// SecurityPolicy maps the core's security enum to whatever the radio's own
// enum would be, expressed here as a normalized wifi.Security so a sim or
// real adapter can apply it uniformly. This resolves the "WPA vs WPA2
// mapping" open question by making the mapping an injectable policy rather
// than a hard-coded switch.
type SecurityPolicy func(wifi.Security) (wifi.Security, error)

// DefaultSecurityPolicy implements the mapping recorded in SPEC_FULL.md:
// Open and Wep pass through unchanged, Wpa and Wpa2 both map to a
// WpaWpa2Mixed equivalent (represented here as SecurityWpa2, since this
// module does not model the radio's enum separately from the core's), and
// Wpa3 maps to a Wpa3-transition equivalent, falling back to Wpa2 when
// wpa3Transition is false (WPA3 transition mode not compiled in).
func DefaultSecurityPolicy(wpa3Transition bool) SecurityPolicy {
	return func(s wifi.Security) (wifi.Security, error) {
		switch s {
		case wifi.SecurityOpen, wifi.SecurityWep:
			return s, nil
		case wifi.SecurityWpa, wifi.SecurityWpa2:
			return wifi.SecurityWpa2, nil
		case wifi.SecurityWpa3:
			if wpa3Transition {
				return wifi.SecurityWpa3, nil
			}
			return wifi.SecurityWpa2, nil
		default:
			return wifi.SecurityUnspecified, ErrInvalidArg
		}
	}
}

// JoinCallback is invoked once per Connect call that returned Pending,
// exactly once, with success or failure. It runs on the SDK's own context
// and must only post an event, never call back into the adapter.
type JoinCallback func(success bool)

// ScanCallback delivers each matched result, then a final call with
// sentinel set to signal completion, mirroring the SDK's own contract. Like
// JoinCallback it must only post events.
type ScanCallback func(result wifi.ScanResult, sentinel bool)

// ScanCfg configures an in-progress scan, matching the advanced-scan
// parameters named in the supervisor's contract.
type ScanCfg struct {
	ActiveDwellUs  int
	PassiveDwellUs int
	RSSIFloor      int
	PeriodicSec    int
}

// DefaultScanCfg returns the advanced-scan parameters used while
// associated: active 15 ms, passive 20 ms, RSSI floor -40 dBm, periodicity
// 10 s.
func DefaultScanCfg() ScanCfg {
	return ScanCfg{
		ActiveDwellUs:  wifi.ScanActiveUs,
		PassiveDwellUs: wifi.ScanPassiveUs,
		RSSIFloor:      wifi.ScanRSSIFloor,
		PeriodicSec:    wifi.ScanPeriodicSec,
	}
}

// Adapter is the facade every concrete radio binding (vendor SDK shim, or
// the Sim test double) must implement. Callers obtain asynchronous results
// only through the callbacks registered in Init/Connect/StartScan; the
// adapter itself never blocks waiting for them.
type Adapter interface {
	// Init brings up the radio, caches the station MAC, and registers the
	// join callback; scan callbacks are supplied per call to StartScan. A
	// second call returns ErrAlreadyInitialized.
	Init(onJoin JoinCallback) error

	// Connect starts an asynchronous association. psk is ignored for Open
	// networks.
	Connect(ssid string, sec wifi.Security, psk string) (Outcome, error)

	// Disconnect tears down any current or in-progress association.
	Disconnect() error

	// StartScan begins an asynchronous scan; onResult is invoked once per
	// match (as filtered by the caller, not the adapter) and once more
	// with sentinel set. An empty ssidFilter scans unfiltered.
	StartScan(ssidFilter string, cfg ScanCfg, onResult ScanCallback) (Outcome, error)

	// GetRSSI returns the signal strength of the current association, in
	// signed dBm (the SDK reports an unsigned magnitude; the adapter
	// negates it at this boundary).
	GetRSSI() (int, error)

	// GetStats returns opaque adapter/link statistics.
	GetStats() (Stats, error)

	// GetMAC returns the station's own MAC address, cached at Init time.
	GetMAC() [6]byte
}

// Stats is a minimal link-statistics snapshot; the vendor SDK's native
// statistics struct is out of scope (§1 Non-goals), so this only carries
// what the supervisor itself consumes for metrics.
type Stats struct {
	TxPackets uint64
	RxPackets uint64
	TxErrors  uint64
}
