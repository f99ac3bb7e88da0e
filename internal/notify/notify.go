/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package notify implements the idempotent upward notification gate: each
// of wifi-connected, ipv4-acquired, and ipv6-acquired fires at most once
// per connectivity episode, except that NotifyIPv4Lost re-arms
// ipv4-acquired within the same episode.
package notify

// Emitter receives upward notifications. The supervisor wires a concrete
// implementation (logging, internal/bus, both) at construction time; the
// gate itself only decides when to call it. Every notification but
// WifiStarted carries the episode ID the state machine minted for the
// connectivity episode it belongs to, so a log line or bus event can be
// correlated back to the join that produced it.
type Emitter interface {
	// WifiStarted fires exactly once, after the radio adapter's init
	// succeeds; it is not part of the idempotent trio the gate manages
	// and is called directly by the supervisor at startup, before any
	// episode exists.
	WifiStarted()
	WifiConnected(apMAC [6]byte, episodeID string)
	IPv4Acquired(addr [4]byte, episodeID string)
	IPv6Acquired(episodeID string)
	IPLost(episodeID string)
	IPv6Lost(episodeID string)
}

// Gate tracks which notifications have already fired in the current
// episode and suppresses duplicates. It is not safe for concurrent use;
// the state machine is its only caller.
type Gate struct {
	emit Emitter

	notifiedConnectivity bool
	notifiedIPv4         bool
	notifiedIPv6         bool
}

// NewGate returns a Gate that forwards to emit.
func NewGate(emit Emitter) *Gate {
	return &Gate{emit: emit}
}

// NotifyIPv4 emits ipv4-acquired at most once, then opportunistically
// triggers wifi-connected (IP reachability is what makes the link "usable"
// to the outer layer). episodeID tags both with the connectivity episode
// currently in progress.
func (g *Gate) NotifyIPv4(addr [4]byte, apMAC [6]byte, episodeID string) {
	if !g.notifiedIPv4 {
		g.emit.IPv4Acquired(addr, episodeID)
		g.notifiedIPv4 = true
	}
	g.maybeNotifyConnectivity(apMAC, episodeID)
}

// NotifyIPv6 emits ipv6-acquired at most once, then opportunistically
// triggers wifi-connected.
func (g *Gate) NotifyIPv6(apMAC [6]byte, episodeID string) {
	if !g.notifiedIPv6 {
		g.emit.IPv6Acquired(episodeID)
		g.notifiedIPv6 = true
	}
	g.maybeNotifyConnectivity(apMAC, episodeID)
}

func (g *Gate) maybeNotifyConnectivity(apMAC [6]byte, episodeID string) {
	if !g.notifiedConnectivity && (g.notifiedIPv4 || g.notifiedIPv6) {
		g.emit.WifiConnected(apMAC, episodeID)
		g.notifiedConnectivity = true
	}
}

// ResetOnDisconnect clears all three notification flags and emits ip-lost
// and ipv6-lost, as happens on every StationDisconnect event. episodeID is
// the episode that just ended.
func (g *Gate) ResetOnDisconnect(episodeID string) {
	g.notifiedConnectivity = false
	g.notifiedIPv4 = false
	g.notifiedIPv6 = false
	g.emit.IPLost(episodeID)
	g.emit.IPv6Lost(episodeID)
}

// NotifyIPv4Lost emits ip-lost and clears just the IPv4 notification flag,
// used when the stack reports the interface has gone Off without a full
// disconnect episode.
func (g *Gate) NotifyIPv4Lost(episodeID string) {
	g.notifiedIPv4 = false
	g.emit.IPLost(episodeID)
}

// ResetQuiet clears all three notification flags without emitting
// anything, used on a fresh successful join where there is no prior
// episode's state to announce as lost.
func (g *Gate) ResetQuiet() {
	g.notifiedConnectivity = false
	g.notifiedIPv4 = false
	g.notifiedIPv6 = false
}

// Connected reports whether wifi-connected has fired in the current
// episode.
func (g *Gate) Connected() bool {
	return g.notifiedConnectivity
}

// NotifiedIPv4 reports whether ipv4-acquired has already fired this
// episode.
func (g *Gate) NotifiedIPv4() bool {
	return g.notifiedIPv4
}

// NotifiedIPv6 reports whether ipv6-acquired has already fired this
// episode.
func (g *Gate) NotifiedIPv6() bool {
	return g.notifiedIPv6
}
