package radio

import (
	"testing"

	"stad/internal/wifi"

	"github.com/stretchr/testify/require"
)

func TestDefaultSecurityPolicyMapping(t *testing.T) {
	policy := DefaultSecurityPolicy(false)

	cases := []struct {
		in   wifi.Security
		want wifi.Security
	}{
		{wifi.SecurityOpen, wifi.SecurityOpen},
		{wifi.SecurityWep, wifi.SecurityWep},
		{wifi.SecurityWpa, wifi.SecurityWpa2},
		{wifi.SecurityWpa2, wifi.SecurityWpa2},
		{wifi.SecurityWpa3, wifi.SecurityWpa2}, // wpa3Transition off: falls back
	}
	for _, c := range cases {
		got, err := policy(c.in)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}

	_, err := policy(wifi.SecurityUnspecified)
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestDefaultSecurityPolicyWpa3Transition(t *testing.T) {
	policy := DefaultSecurityPolicy(true)
	got, err := policy(wifi.SecurityWpa3)
	require.NoError(t, err)
	require.Equal(t, wifi.SecurityWpa3, got)
}

func TestSimAdapterInitIdempotent(t *testing.T) {
	s := NewSimAdapter([6]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, s.Init(func(bool) {}))
	require.ErrorIs(t, s.Init(func(bool) {}), ErrAlreadyInitialized)
}

func TestSimAdapterConnectPendingThenCallback(t *testing.T) {
	s := NewSimAdapter([6]byte{})
	var gotSuccess bool
	var called bool
	require.NoError(t, s.Init(func(success bool) {
		called = true
		gotSuccess = success
	}))

	outcome, err := s.Connect("LabAP", wifi.SecurityWpa2, "secret12")
	require.NoError(t, err)
	require.Equal(t, Pending, outcome)
	require.False(t, called, "callback must not fire synchronously")

	s.TriggerJoin(true)
	require.True(t, called)
	require.True(t, gotSuccess)
}

func TestSimAdapterScanSequenceEndsWithSentinel(t *testing.T) {
	s := NewSimAdapter([6]byte{})
	require.NoError(t, s.Init(func(bool) {}))

	var results []wifi.ScanResult
	outcome, err := s.StartScan("", DefaultScanCfg(), func(r wifi.ScanResult, sentinel bool) {
		results = append(results, r)
		_ = sentinel
	})
	require.NoError(t, err)
	require.Equal(t, Pending, outcome)

	s.TriggerScanResults([]wifi.ScanResult{
		{SSID: "LabAP-5G", RSSI: -55},
		{SSID: "LabAP", RSSI: -40},
	})
	require.Len(t, results, 3) // 2 matches + sentinel
}
