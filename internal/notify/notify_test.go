package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	connected int
	ipv4      int
	ipv6      int
	ipLost    int
	ipv6Lost  int
	lastV4    [4]byte
	lastMAC   [6]byte
	lastEpID  string
}

func (f *fakeEmitter) WifiStarted() {}
func (f *fakeEmitter) WifiConnected(mac [6]byte, episodeID string) {
	f.connected++
	f.lastMAC = mac
	f.lastEpID = episodeID
}
func (f *fakeEmitter) IPv4Acquired(a [4]byte, episodeID string) {
	f.ipv4++
	f.lastV4 = a
	f.lastEpID = episodeID
}
func (f *fakeEmitter) IPv6Acquired(episodeID string) { f.ipv6++; f.lastEpID = episodeID }
func (f *fakeEmitter) IPLost(episodeID string)       { f.ipLost++; f.lastEpID = episodeID }
func (f *fakeEmitter) IPv6Lost(episodeID string)     { f.ipv6Lost++; f.lastEpID = episodeID }

func TestGateDedupesPerEpisode(t *testing.T) {
	f := &fakeEmitter{}
	g := NewGate(f)
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	addr := [4]byte{10, 0, 0, 42}

	g.NotifyIPv4(addr, mac, "ep-1")
	g.NotifyIPv4(addr, mac, "ep-1")
	g.NotifyIPv4(addr, mac, "ep-1")

	require.Equal(t, 1, f.ipv4, "ipv4-acquired must fire at most once per episode")
	require.Equal(t, 1, f.connected, "wifi-connected must fire once triggered by ipv4")
	require.Equal(t, mac, f.lastMAC)
	require.Equal(t, addr, f.lastV4)
	require.Equal(t, "ep-1", f.lastEpID)
}

func TestGateIPv6TriggersConnectivity(t *testing.T) {
	f := &fakeEmitter{}
	g := NewGate(f)
	mac := [6]byte{9, 9, 9, 9, 9, 9}

	g.NotifyIPv6(mac, "ep-2")
	g.NotifyIPv6(mac, "ep-2")

	require.Equal(t, 1, f.ipv6)
	require.Equal(t, 1, f.connected)
	require.Equal(t, "ep-2", f.lastEpID)
}

func TestResetOnDisconnectClearsAndEmitsLost(t *testing.T) {
	f := &fakeEmitter{}
	g := NewGate(f)
	mac := [6]byte{1, 1, 1, 1, 1, 1}
	g.NotifyIPv4([4]byte{1, 2, 3, 4}, mac, "ep-3")
	require.True(t, g.Connected())

	g.ResetOnDisconnect("ep-3")
	require.False(t, g.Connected())
	require.Equal(t, 1, f.ipLost)
	require.Equal(t, 1, f.ipv6Lost)
	require.Equal(t, "ep-3", f.lastEpID)

	// a fresh episode can re-fire wifi-connected
	g.NotifyIPv4([4]byte{1, 2, 3, 4}, mac, "ep-4")
	require.Equal(t, 2, f.connected)
}

func TestResetQuietEmitsNothing(t *testing.T) {
	f := &fakeEmitter{}
	g := NewGate(f)
	mac := [6]byte{1, 1, 1, 1, 1, 1}
	g.NotifyIPv4([4]byte{1, 2, 3, 4}, mac, "ep-5")

	g.ResetQuiet()
	require.False(t, g.Connected())
	require.Equal(t, 0, f.ipLost)
	require.Equal(t, 0, f.ipv6Lost)
}

func TestNotifyIPv4LostEmitsAndClearsFlag(t *testing.T) {
	f := &fakeEmitter{}
	g := NewGate(f)
	mac := [6]byte{2, 2, 2, 2, 2, 2}
	g.NotifyIPv4([4]byte{1, 2, 3, 4}, mac, "ep-6")
	require.True(t, g.NotifiedIPv4())

	g.NotifyIPv4Lost("ep-6")
	require.False(t, g.NotifiedIPv4())
	require.Equal(t, 1, f.ipLost)
	require.Equal(t, "ep-6", f.lastEpID)
}
