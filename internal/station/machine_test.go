package station

import (
	"sync"
	"testing"
	"time"

	"stad/internal/dhcpstack"
	"stad/internal/notify"
	"stad/internal/radio"
	"stad/internal/wifi"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// noDelayClock resolves After/Sleep immediately, so the retry-policy delay
// never makes a test wait. The join tests built by newTestMachine disable
// the machine's internal pre-join scan, so no bounded scan wait is reached
// on that path. DHCP-poll ticks are driven explicitly via Dispatch in these tests, not by
// the ticker, so NewTicker's channel never needs to fire.
type noDelayClock struct{}

func (noDelayClock) Sleep(time.Duration) {}

func (noDelayClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (noDelayClock) NewTicker(time.Duration) Ticker { return &noopTicker{} }

func (noDelayClock) Now() time.Time { return time.Unix(0, 0) }

type noopTicker struct{ ch chan time.Time }

func (t *noopTicker) C() <-chan time.Time {
	if t.ch == nil {
		t.ch = make(chan time.Time)
	}
	return t.ch
}
func (t *noopTicker) Stop() {}

type recordingEmitter struct {
	started      int
	connected    int
	connectedMAC [6]byte
	ipv4         int
	lastV4       [4]byte
	ipv6         int
	ipLost       int
	ipv6Lost     int
	lastEpID     string
}

func (r *recordingEmitter) WifiStarted() { r.started++ }
func (r *recordingEmitter) WifiConnected(m [6]byte, episodeID string) {
	r.connected++
	r.connectedMAC = m
	r.lastEpID = episodeID
}
func (r *recordingEmitter) IPv4Acquired(a [4]byte, episodeID string) {
	r.ipv4++
	r.lastV4 = a
	r.lastEpID = episodeID
}
func (r *recordingEmitter) IPv6Acquired(episodeID string) { r.ipv6++; r.lastEpID = episodeID }
func (r *recordingEmitter) IPLost(episodeID string)       { r.ipLost++; r.lastEpID = episodeID }
func (r *recordingEmitter) IPv6Lost(episodeID string)     { r.ipv6Lost++; r.lastEpID = episodeID }

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	return l.Sugar()
}

func newTestMachine(t *testing.T, sim *radio.SimAdapter, stack *dhcpstack.SimStack, emit *recordingEmitter) *Machine {
	t.Helper()
	sim.DisableScan = true // join tests don't exercise the internal pre-join scan
	gate := notify.NewGate(emit)
	m := NewMachine(Config{
		Radio: sim,
		Stack: stack,
		Gate:  gate,
		Queue: NewEventQueue(64),
		Clock: noDelayClock{},
		Log:   testLogger(t),
	})
	require.NoError(t, sim.Init(func(success bool) {
		_ = m.queue.Post(wifi.Event{Kind: wifi.EventStationConnect, Success: success})
	}))
	return m
}

// S1 — cold boot, first join, IPv4 acquired.
func TestS1ColdBootFirstJoinIPv4(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{1, 2, 3, 4, 5, 6})
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)

	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "secret12", Security: wifi.SecurityWpa2}))

	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	require.True(t, m.State().Has(wifi.StaConnecting))

	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: true})
	require.True(t, m.State().Has(wifi.StaConnected))
	require.False(t, m.State().Has(wifi.StaConnecting))

	m.Dispatch(wifi.Event{Kind: wifi.EventStationDoDhcp})

	stack.AssignIPv4([4]byte{10, 0, 0, 42})
	m.Dispatch(wifi.Event{Kind: wifi.EventDhcpPoll})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationDhcpDone})

	require.Equal(t, 1, emit.ipv4)
	require.Equal(t, [4]byte{10, 0, 0, 42}, emit.lastV4)
	require.Equal(t, 1, emit.connected)
	require.True(t, m.State().Ready())
	require.NotEmpty(t, emit.lastEpID)
	require.Equal(t, m.episodeID.String(), emit.lastEpID)

	// repeated polls must not re-notify (invariant 3)
	m.Dispatch(wifi.Event{Kind: wifi.EventDhcpPoll})
	require.Equal(t, 1, emit.ipv4)
	require.Equal(t, 1, emit.connected)
}

// S2 — first-join failure exhaustion.
func TestS2FirstJoinExhaustion(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{})
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)

	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "wrongpw", Security: wifi.SecurityWpa2}))

	// the first wifi.MaxJoinRetries-1 failures each queue another StartJoin
	// (noDelayClock makes the FixedRetryMS sleep instant), so the
	// supervisor loop would keep retrying automatically in production.
	for i := 0; i < int(wifi.MaxJoinRetries)-1; i++ {
		m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
		require.True(t, m.State().Has(wifi.StaConnecting), "attempt %d", i+1)
		m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: false})
		require.False(t, m.State().Has(wifi.StaConnecting))
		require.False(t, m.State().Has(wifi.StaConnected))
		m.queue.Dequeue() // drain the re-posted StationStartJoin
	}
	require.Equal(t, uint(wifi.MaxJoinRetries-1), m.retry.JoinRetries)

	// the MaxJoinRetries-th failed attempt (the 5th connect invocation
	// overall, matching S2) crosses the budget and the regime goes idle:
	// no further StartJoin is auto-queued.
	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: false})
	require.Equal(t, uint(wifi.MaxJoinRetries), m.retry.JoinRetries)
	require.Equal(t, 0, m.queue.Len())

	require.Equal(t, 0, emit.connected)
	require.Equal(t, 0, emit.ipv4)
}

// S3 — reconnection back-off after a prior successful join.
func TestS3ReconnectionBackoff(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{9, 9, 9, 9, 9, 9})
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)
	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "secret12", Security: wifi.SecurityWpa2}))

	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: true})
	require.True(t, m.everConnected)

	// unsolicited join-failure while connected (not currently joining): the
	// vendor SDK reuses the join callback to report a dropped link, so this
	// is accepted (StaConnected satisfies the staleness guard) rather than
	// dropped as spurious.
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: false})
	require.False(t, m.State().Has(wifi.StaConnected))
	require.True(t, m.retry.IsReconnection)

	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: true})
	require.True(t, m.State().Has(wifi.StaConnected))
	require.Equal(t, uint(0), m.retry.JoinRetries)
	require.False(t, m.retry.IsReconnection)
}

// S4 — IPv6-only acquisition: DHCPv4 never assigns an address, but the
// stack's first IPv6 address reaches Preferred. wifi-connected must still
// fire, triggered by the IPv6 path, and ipv4-acquired must never fire.
func TestS4IPv6OnlyAcquisition(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{7, 7, 7, 7, 7, 7})
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)

	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "secret12", Security: wifi.SecurityWpa2}))

	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: true})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationDoDhcp})

	// DHCPv4 stays off; only the IPv6 address reaches Preferred.
	m.Dispatch(wifi.Event{Kind: wifi.EventDhcpPoll})
	require.Equal(t, 0, emit.ipv4)
	require.Equal(t, 0, emit.connected)

	stack.IPv6 = dhcpstack.IPv6Preferred
	m.Dispatch(wifi.Event{Kind: wifi.EventDhcpPoll})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationDhcpDone})

	require.Equal(t, 1, emit.ipv6)
	require.Equal(t, 1, emit.connected)
	require.Equal(t, 0, emit.ipv4)
	require.True(t, m.State().Has(wifi.StaDhcpDone))

	// repeated polls must not re-notify.
	m.Dispatch(wifi.Event{Kind: wifi.EventDhcpPoll})
	require.Equal(t, 1, emit.ipv6)
	require.Equal(t, 1, emit.connected)
}

// S5 — scan with filter.
func TestS5ScanWithFilter(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{})
	sim.DisableScan = false
	sim.ScanStarted = make(chan struct{}, 1)
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}

	gate := notify.NewGate(emit)
	m := NewMachine(Config{
		Radio: sim,
		Stack: stack,
		Gate:  gate,
		Queue: NewEventQueue(64),
		Clock: RealClock{}, // a real bounded wait, released promptly below
		Log:   testLogger(t),
	})
	require.NoError(t, sim.Init(func(bool) {}))

	var collector matchCollector
	job := &wifi.ScanJob{
		SSIDFilter: "LabAP",
		Callback:   collector.collect,
	}

	done := make(chan struct{})
	go func() {
		m.Dispatch(wifi.Event{Kind: wifi.EventScan, Job: job})
		close(done)
	}()

	<-sim.ScanStarted
	sim.TriggerScanResults([]wifi.ScanResult{
		{SSID: "LabAP-5G", RSSI: -55},
		{SSID: "LabAP", RSSI: -40},
		{SSID: "Guest", RSSI: -70},
	})
	<-done

	require.Equal(t, []string{"LabAP-5G", "LabAP"}, collector.matched)
	require.True(t, collector.sawSentinel)
	require.False(t, m.State().Has(wifi.ScanStarted))
}

type matchCollector struct {
	mu          sync.Mutex
	matched     []string
	sawSentinel bool
}

func (c *matchCollector) collect(r wifi.ScanResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.IsSentinel {
		c.sawSentinel = true
		return
	}
	c.matched = append(c.matched, r.SSID)
}

// S6 — disconnect during StaConnecting.
func TestS6DisconnectDuringJoin(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{})
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)
	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "secret12", Security: wifi.SecurityWpa2}))

	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	require.True(t, m.State().Has(wifi.StaConnecting))

	m.Dispatch(wifi.Event{Kind: wifi.EventStationDisconnect})
	require.False(t, m.State().Has(wifi.StaConnecting))
	require.Equal(t, 1, emit.ipLost)
	require.Equal(t, 1, emit.ipv6Lost)
	require.Equal(t, 0, emit.connected)

	// a stale join-success callback arriving after the disconnect must be
	// dropped (StaConnecting guard).
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: true})
	require.False(t, m.State().Has(wifi.StaConnected))
	require.Equal(t, 0, emit.connected)
}

func TestDhcpPollNoopWhenNotConnected(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{})
	stack := dhcpstack.NewSimStack()
	stack.AssignIPv4([4]byte{1, 2, 3, 4})
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)

	m.Dispatch(wifi.Event{Kind: wifi.EventDhcpPoll})
	require.Equal(t, 0, emit.ipv4)
}

// TestReconnectionBackoffAppliesRealDelays drives the reconnection regime
// through a FakeClock instead of noDelayClock, confirming that
// retryAfterFailure actually sleeps the delay invariant 7 prescribes
// (doubling after each sleep, capped at MaxRetryMS) rather than merely
// computing it.
func TestReconnectionBackoffAppliesRealDelays(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{})
	sim.DisableScan = true
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	clock := NewFakeClock()
	gate := notify.NewGate(emit)
	m := NewMachine(Config{
		Radio: sim,
		Stack: stack,
		Gate:  gate,
		Queue: NewEventQueue(64),
		Clock: clock,
		Log:   testLogger(t),
	})
	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "secret12", Security: wifi.SecurityWpa2}))

	// First join succeeds so the regime becomes reconnection.
	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: true})
	require.True(t, m.everConnected)

	wantDelays := []time.Duration{
		wifi.MinRetryMS * time.Millisecond,
		2 * wifi.MinRetryMS * time.Millisecond,
		4 * wifi.MinRetryMS * time.Millisecond,
	}
	for _, want := range wantDelays {
		m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})

		done := make(chan struct{})
		go func() {
			m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: false})
			close(done)
		}()

		for clock.NumWaiters() == 0 {
			time.Sleep(time.Millisecond)
		}
		before := clock.Now()
		clock.Advance(want)
		<-done
		require.Equal(t, before.Add(want), clock.Now())
		m.queue.Dequeue() // drain the re-posted StationStartJoin
	}
}

func TestGetApExtReflectsRadioQueries(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{})
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)

	ext := m.GetApExt()
	require.Equal(t, -50, ext.RSSI) // SimAdapter's fixed default

	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "secret12", Security: wifi.SecurityWpa2}))
	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: true})
	require.True(t, m.State().Has(wifi.StaConnected))

	ext = m.GetApExt()
	require.Equal(t, m.ApInfo(), ext.ApInfo)
}

func TestResetCountsClearsRetryState(t *testing.T) {
	sim := radio.NewSimAdapter([6]byte{})
	stack := dhcpstack.NewSimStack()
	emit := &recordingEmitter{}
	m := newTestMachine(t, sim, stack, emit)

	require.NoError(t, m.SetProvision(wifi.Provision{SSID: "LabAP", PSK: "secret12", Security: wifi.SecurityWpa2}))
	m.Dispatch(wifi.Event{Kind: wifi.EventStationStartJoin})
	m.Dispatch(wifi.Event{Kind: wifi.EventStationConnect, Success: false})
	require.Equal(t, uint(1), m.retry.JoinRetries)

	m.ResetCounts()
	require.Equal(t, uint(0), m.retry.JoinRetries)
	require.Equal(t, uint(wifi.MinRetryMS), m.retry.RetryIntervalMS)
}
