package dhcpstack

import (
	"testing"

	"github.com/krolaw/dhcp4"
	"github.com/stretchr/testify/require"
)

func TestSimStackLinkDownClearsFamilies(t *testing.T) {
	s := NewSimStack()
	s.AssignIPv4([4]byte{10, 0, 0, 42})
	s.IPv6 = IPv6Preferred

	require.NoError(t, s.SetLinkDown())

	state, _, err := s.PollDHCPv4()
	require.NoError(t, err)
	require.Equal(t, DHCPv4Off, state)

	ipv6, err := s.IPv6State()
	require.NoError(t, err)
	require.Equal(t, IPv6Invalid, ipv6)
}

func TestSimStackAssignIPv4UsesDHCP4Ack(t *testing.T) {
	s := NewSimStack()
	s.AssignIPv4([4]byte{192, 168, 1, 2})

	state, lease, err := s.PollDHCPv4()
	require.NoError(t, err)
	require.Equal(t, DHCPv4AddressAssigned, state)
	require.Equal(t, dhcp4.ACK, lease.MessageType)
	require.Equal(t, [4]byte{192, 168, 1, 2}, lease.Addr)
}
