/*
 * COPYRIGHT 2017 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package wifi defines the shared data model for the station connectivity
// supervisor: credentials, device state, observed access points, and the
// event variant consumed by the state machine.
package wifi

import "fmt"

// Security identifies the authentication scheme of a network, either as
// provisioned by the connectivity manager or as observed in a scan result.
type Security int

// Recognized security kinds.
const (
	SecurityUnspecified Security = iota
	SecurityOpen
	SecurityWep
	SecurityWpa
	SecurityWpa2
	SecurityWpa3
)

func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "open"
	case SecurityWep:
		return "wep"
	case SecurityWpa:
		return "wpa"
	case SecurityWpa2:
		return "wpa2"
	case SecurityWpa3:
		return "wpa3"
	default:
		return "unspecified"
	}
}

// Provision is the set of credentials the connectivity manager hands to the
// supervisor before a connect command is accepted. It is held in RAM only
// for the life of the process; nothing here is persisted.
type Provision struct {
	SSID     string
	PSK      string
	Security Security
}

// Validate enforces the credential invariants from the data model: an SSID
// between 1 and 32 bytes and a PSK no longer than 64 bytes.
func (p Provision) Validate() error {
	n := len(p.SSID)
	if n < 1 || n > 32 {
		return fmt.Errorf("ssid length %d out of range [1,32]", n)
	}
	if len(p.PSK) > 64 {
		return fmt.Errorf("psk length %d exceeds 64", len(p.PSK))
	}
	return nil
}

// StateSet is a bitset of simultaneously-held device states. Flags combine;
// see the package-level invariants enforced by Machine rather than by this
// type itself (a bare bitset can't refuse an illegal combination it was
// never asked to produce).
type StateSet uint32

// Individual state flags.
const (
	DevReady StateSet = 1 << iota
	StaProvisioned
	StaConnecting
	StaConnected
	StaDhcpDone
	ScanStarted
)

// StaReady is not an independent bit; it is defined as StaConnected with
// StaDhcpDone also set, and is tested rather than stored.
const staReadyMask = StaConnected | StaDhcpDone

// Has reports whether every bit in mask is set.
func (s StateSet) Has(mask StateSet) bool {
	return s&mask == mask
}

// Any reports whether at least one bit in mask is set.
func (s StateSet) Any(mask StateSet) bool {
	return s&mask != 0
}

// Set returns s with every bit in mask set.
func (s StateSet) Set(mask StateSet) StateSet {
	return s | mask
}

// Clear returns s with every bit in mask cleared.
func (s StateSet) Clear(mask StateSet) StateSet {
	return s &^ mask
}

// Ready reports whether the derived StaReady condition holds.
func (s StateSet) Ready() bool {
	return s.Has(staReadyMask)
}

func (s StateSet) String() string {
	names := []struct {
		bit  StateSet
		name string
	}{
		{DevReady, "DevReady"},
		{StaProvisioned, "StaProvisioned"},
		{StaConnecting, "StaConnecting"},
		{StaConnected, "StaConnected"},
		{StaDhcpDone, "StaDhcpDone"},
		{ScanStarted, "ScanStarted"},
	}
	out := ""
	for _, n := range names {
		if s.Has(n.bit) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "(none)"
	}
	return out
}

// ApInfo describes an access point as observed during a scan or association.
type ApInfo struct {
	BSSID    [6]byte
	Channel  int
	Security Security
	RSSI     int // signed dBm
}

// Retry-policy tuning constants (§4.2 of the supervisor's contract).
const (
	MinRetryMS      = 1000
	MaxRetryMS      = 60000
	FixedRetryMS    = 5000
	MaxJoinRetries  = 5
	DHCPPollMS      = 250
	ScanTimeoutMS   = 10000
	ScanActiveUs    = 15000
	ScanPassiveUs   = 20000
	ScanRSSIFloor   = -40
	ScanPeriodicSec = 10
)

// EventKind tags the variant carried by Event.
type EventKind int

// Event kinds consumed by the state machine.
const (
	EventStationConnect EventKind = iota
	EventStationDisconnect
	EventStationStartJoin
	EventStationDoDhcp
	EventStationDhcpDone
	EventDhcpPoll
	EventScan
	EventApStart
	EventApStop
)

func (k EventKind) String() string {
	switch k {
	case EventStationConnect:
		return "StationConnect"
	case EventStationDisconnect:
		return "StationDisconnect"
	case EventStationStartJoin:
		return "StationStartJoin"
	case EventStationDoDhcp:
		return "StationDoDhcp"
	case EventStationDhcpDone:
		return "StationDhcpDone"
	case EventDhcpPoll:
		return "DhcpPoll"
	case EventScan:
		return "Scan"
	case EventApStart:
		return "ApStart"
	case EventApStop:
		return "ApStop"
	default:
		return "unknown"
	}
}

// Event is the tagged variant posted to the supervisor's event queue by
// callbacks, timers, and commands. Only the fields relevant to Kind are
// populated; the rest are zero.
type Event struct {
	Kind    EventKind
	Success bool   // join-complete / join-failure discriminator
	IPv4    [4]byte
	AP      ApInfo
	Job     *ScanJob // set only on EventScan
}

// ScanResult is delivered once per matched network during a scan, and a
// final time with IsSentinel set to signal completion.
type ScanResult struct {
	SSID       string
	BSSID      [6]byte
	RSSI       int
	Security   Security
	IsSentinel bool
}

// ScanJob describes one outstanding scan request. At most one may be
// outstanding at a time; this is enforced by the scan-in-progress semaphore,
// not by this type.
type ScanJob struct {
	SSIDFilter string // empty means no filter
	Callback   func(ScanResult)
}

// Matches reports whether a scanned SSID satisfies the job's filter, using
// the bounded case-sensitive prefix semantics preserved from the original
// source (see SPEC_FULL.md Open Question 2): a match is
// strncmp(filter, candidate, min(len(filter), len(candidate))) == 0. An
// empty filter matches everything.
func (j *ScanJob) Matches(candidateSSID string) bool {
	if j.SSIDFilter == "" {
		return true
	}
	n := len(j.SSIDFilter)
	if len(candidateSSID) < n {
		n = len(candidateSSID)
	}
	return j.SSIDFilter[:n] == candidateSSID[:n]
}
