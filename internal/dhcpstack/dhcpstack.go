/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package dhcpstack is the downward contract the supervisor uses to drive
// the host TCP/IP stack: bring the STA link up/down and poll the DHCPv4
// client and IPv6 address-autoconfiguration state. It is kept as its own
// package, distinct from the state machine, so tests can fake it.
package dhcpstack

import "github.com/krolaw/dhcp4"

// DHCPv4State mirrors the small set of states the supervisor's DhcpPoll
// handler distinguishes: whether the interface currently holds a lease.
type DHCPv4State int

// Possible DHCPv4 client states, as reported by dhcp_poll.
const (
	DHCPv4Off DHCPv4State = iota
	DHCPv4Pending
	DHCPv4AddressAssigned
)

// IPv6AddrState mirrors the address states reported by
// netif_ip6_addr_state for the STA interface's first address.
type IPv6AddrState int

// Possible IPv6 address states.
const (
	IPv6Invalid IPv6AddrState = iota
	IPv6Tentative
	IPv6Deprecated
	IPv6Preferred
)

// Lease is the DHCPv4 client's current lease information, valid only when
// PollDHCPv4 reports DHCPv4AddressAssigned.
type Lease struct {
	Addr       [4]byte
	Router     [4]byte
	DNS        [4]byte
	LeaseSecs  uint32
	MessageType dhcp4.MessageType
}

// Stack is the contract the supervisor uses to drive the host network
// stack. A real implementation binds to the board's lwIP/BSD-socket-style
// netif; SimStack below is the in-process test double.
type Stack interface {
	// SetLinkUp brings the STA netif up, as the state machine does on
	// StationConnect before starting DHCP.
	SetLinkUp() error
	// SetLinkDown brings the STA netif down, as the state machine does on
	// StationDisconnect.
	SetLinkDown() error
	// PollDHCPv4 is the synchronous, non-blocking poll the DhcpPoll event
	// handler calls on cadence DHCPPollMS.
	PollDHCPv4() (DHCPv4State, Lease, error)
	// IPv6State reports the first IPv6 address's current state.
	IPv6State() (IPv6AddrState, error)
}

// SimStack is a deterministic in-process Stack for tests. A test drives it
// by setting the exported fields directly before the supervisor's next
// DhcpPoll tick, mirroring how a real lwIP stack's state changes
// asynchronously between polls.
type SimStack struct {
	Up bool

	DHCPv4    DHCPv4State
	Lease     Lease
	IPv6      IPv6AddrState
	PollError error
}

// NewSimStack returns a SimStack with both families initially unbound.
func NewSimStack() *SimStack {
	return &SimStack{DHCPv4: DHCPv4Off, IPv6: IPv6Invalid}
}

// SetLinkUp implements Stack.
func (s *SimStack) SetLinkUp() error {
	s.Up = true
	return nil
}

// SetLinkDown implements Stack.
func (s *SimStack) SetLinkDown() error {
	s.Up = false
	s.DHCPv4 = DHCPv4Off
	s.IPv6 = IPv6Invalid
	return nil
}

// PollDHCPv4 implements Stack.
func (s *SimStack) PollDHCPv4() (DHCPv4State, Lease, error) {
	if s.PollError != nil {
		return DHCPv4Off, Lease{}, s.PollError
	}
	return s.DHCPv4, s.Lease, nil
}

// IPv6State implements Stack.
func (s *SimStack) IPv6State() (IPv6AddrState, error) {
	return s.IPv6, nil
}

// AssignIPv4 is a test helper that sets up a lease as a real DHCP client
// would report after an ACK, tagging it with the dhcp4 library's own
// MessageType constant so the simulated stack speaks the same wire
// vocabulary a real krolaw/dhcp4-based client would.
func (s *SimStack) AssignIPv4(addr [4]byte) {
	s.DHCPv4 = DHCPv4AddressAssigned
	s.Lease = Lease{
		Addr:        addr,
		LeaseSecs:   3600,
		MessageType: dhcp4.ACK,
	}
}
