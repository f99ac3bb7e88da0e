package radio

import (
	"sync"

	"stad/internal/wifi"
)

// SimAdapter is a deterministic in-process test double standing in for the
// vendor SDK binding. Scripted outcomes let tests drive join-success,
// join-failure, and scan-result sequences without a real radio. All
// callback delivery is synchronous-but-decoupled: Trigger* methods are
// meant to be invoked from the test, exactly as a real SDK would invoke
// them from its own foreign context, and they only ever call the
// registered callback (never mutate SimAdapter's own state from within the
// callback).
type SimAdapter struct {
	mu sync.Mutex

	mac      [6]byte
	initDone bool
	onJoin   JoinCallback
	onScan   ScanCallback

	connecting bool
	scanning   bool

	rssi  int
	stats Stats

	// NextConnectErr, when non-nil, is returned synchronously by the next
	// Connect call instead of Pending.
	NextConnectErr error
	// NextScanErr, when non-nil, is returned synchronously by the next
	// StartScan call instead of Pending.
	NextScanErr error
	// DisableScan, when true, makes every StartScan call return
	// synchronously with ErrInvalidArg instead of Pending. Tests that
	// only care about the join path use this to skip the state
	// machine's internal pre-join scan deterministically.
	DisableScan bool

	// ScanStarted receives a value each time StartScan successfully
	// returns Pending, letting a test synchronize with the moment the
	// scan callback has been registered before calling
	// TriggerScanResults. Sends are non-blocking; a test that doesn't
	// care can leave it nil or undrained.
	ScanStarted chan struct{}
}

// NewSimAdapter returns a SimAdapter reporting the given MAC from GetMAC.
func NewSimAdapter(mac [6]byte) *SimAdapter {
	return &SimAdapter{mac: mac, rssi: -50}
}

// Init implements Adapter.
func (s *SimAdapter) Init(onJoin JoinCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initDone {
		return ErrAlreadyInitialized
	}
	s.onJoin = onJoin
	s.initDone = true
	return nil
}

// Connect implements Adapter. Unlike StartScan, it does not refuse a second
// call while one is outstanding: that serialization is the Machine's own
// responsibility (it never issues a second Connect while StaConnecting or
// StaConnected), so the adapter stays a thin pass-through here rather than
// duplicating state the caller already owns.
func (s *SimAdapter) Connect(ssid string, sec wifi.Security, psk string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ssid == "" {
		return Ok, ErrNotProvisioned
	}
	if err := s.NextConnectErr; err != nil {
		s.NextConnectErr = nil
		return Ok, err
	}
	s.connecting = true
	return Pending, nil
}

// Disconnect implements Adapter.
func (s *SimAdapter) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connecting = false
	return nil
}

// StartScan implements Adapter.
func (s *SimAdapter) StartScan(ssidFilter string, cfg ScanCfg, onResult ScanCallback) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanning {
		return Ok, ErrAlreadyInProgress
	}
	if s.DisableScan {
		return Ok, ErrInvalidArg
	}
	if err := s.NextScanErr; err != nil {
		s.NextScanErr = nil
		return Ok, err
	}
	s.scanning = true
	s.onScan = onResult
	if s.ScanStarted != nil {
		select {
		case s.ScanStarted <- struct{}{}:
		default:
		}
	}
	return Pending, nil
}

// GetRSSI implements Adapter.
func (s *SimAdapter) GetRSSI() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rssi, nil
}

// GetStats implements Adapter.
func (s *SimAdapter) GetStats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, nil
}

// GetMAC implements Adapter.
func (s *SimAdapter) GetMAC() [6]byte {
	return s.mac
}

// TriggerJoin delivers a join-complete callback, as a real SDK would from
// its own context after an asynchronous Connect.
func (s *SimAdapter) TriggerJoin(success bool) {
	s.mu.Lock()
	s.connecting = false
	cb := s.onJoin
	s.mu.Unlock()
	if cb != nil {
		cb(success)
	}
}

// TriggerScanResults delivers results in order and then the terminating
// sentinel, as a real SDK's scan-complete callback would.
func (s *SimAdapter) TriggerScanResults(results []wifi.ScanResult) {
	s.mu.Lock()
	s.scanning = false
	cb := s.onScan
	s.mu.Unlock()
	if cb == nil {
		return
	}
	for _, r := range results {
		cb(r, false)
	}
	cb(wifi.ScanResult{}, true)
}
