/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Command ap.stad is the Wi-Fi station connectivity supervisor daemon: it
// wires the radio adapter, the TCP/IP stack contract, the notification
// bus, and Prometheus instrumentation around the internal/station
// supervisor, then runs its event loop until signaled.
package main

import (
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stad/internal/aplog"
	"stad/internal/bus"
	"stad/internal/dhcpstack"
	"stad/internal/metrics"
	"stad/internal/radio"
	"stad/internal/station"
)

const pname = "ap.stad"

var (
	promAddr = flag.String("promhttp-address", ":7211",
		"Prometheus publication HTTP port.")
	busEndpoint = flag.String("bus-endpoint", "tcp://127.0.0.1:3131",
		"ZMQ PUB endpoint the connectivity manager subscribes to.")
	logLevel = flag.String("log-level", "info",
		"Initial log level (debug, info, warn, error).")
	wpa3Transition = flag.Bool("wpa3-transition", false,
		"Join Wpa3 networks, and default to Wpa3 when the pre-join scan fails, in Wpa3-transition mode instead of falling back to Wpa2.")
)

// logEmitter logs every upward notification at Info level; it is combined
// with the bus.Publisher so a notification is both visible locally and
// forwarded to the outer connectivity manager.
type logEmitter struct {
	log interface {
		Infow(msg string, kv ...interface{})
	}
}

func (e logEmitter) WifiStarted() { e.log.Infow("wifi-started") }
func (e logEmitter) WifiConnected(mac [6]byte, episodeID string) {
	e.log.Infow("wifi-connected", "ap_mac", mac, "episode", episodeID)
}
func (e logEmitter) IPv4Acquired(addr [4]byte, episodeID string) {
	e.log.Infow("ipv4-acquired", "addr", addr, "episode", episodeID)
}
func (e logEmitter) IPv6Acquired(episodeID string) {
	e.log.Infow("ipv6-acquired", "episode", episodeID)
}
func (e logEmitter) IPLost(episodeID string) { e.log.Infow("ip-lost", "episode", episodeID) }
func (e logEmitter) IPv6Lost(episodeID string) {
	e.log.Infow("ipv6-lost", "episode", episodeID)
}

// multiEmitter fans a notification out to every emitter in order. A
// publish failure in one (e.g. the bus socket not yet subscribed) never
// blocks the others.
type multiEmitter []interface {
	WifiStarted()
	WifiConnected(mac [6]byte, episodeID string)
	IPv4Acquired(addr [4]byte, episodeID string)
	IPv6Acquired(episodeID string)
	IPLost(episodeID string)
	IPv6Lost(episodeID string)
}

func (m multiEmitter) WifiStarted() {
	for _, e := range m {
		e.WifiStarted()
	}
}
func (m multiEmitter) WifiConnected(mac [6]byte, episodeID string) {
	for _, e := range m {
		e.WifiConnected(mac, episodeID)
	}
}
func (m multiEmitter) IPv4Acquired(addr [4]byte, episodeID string) {
	for _, e := range m {
		e.IPv4Acquired(addr, episodeID)
	}
}
func (m multiEmitter) IPv6Acquired(episodeID string) {
	for _, e := range m {
		e.IPv6Acquired(episodeID)
	}
}
func (m multiEmitter) IPLost(episodeID string) {
	for _, e := range m {
		e.IPLost(episodeID)
	}
}
func (m multiEmitter) IPv6Lost(episodeID string) {
	for _, e := range m {
		e.IPv6Lost(episodeID)
	}
}

func main() {
	rand.Seed(time.Now().UnixNano())
	flag.Parse()

	slog, err := aplog.New(pname)
	if err != nil {
		panic(err)
	}
	defer slog.Sync()
	if err := aplog.SetLevel(*logLevel); err != nil {
		slog.Warnf("invalid log level %q: %v", *logLevel, err)
	}
	slog.Infof("starting")

	reg := prometheus.NewRegistry()
	met := metrics.New()
	if err := met.Register(reg); err != nil {
		slog.Fatalf("registering metrics: %v", err)
	}
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*promAddr, nil); err != nil {
			slog.Warnf("prometheus http server exited: %v", err)
		}
	}()

	pub, err := bus.NewPublisher(pname, *busEndpoint)
	if err != nil {
		slog.Fatalf("cannot start notification bus: %v", err)
	}
	defer pub.Close()

	emit := multiEmitter{logEmitter{log: slog}, pub}

	// The real vendor-SDK and lwIP bindings are out of this supervisor's
	// scope (spec §1); ap.stad wires the in-process simulators as the
	// concrete collaborators at this seam. A production build replaces
	// these two constructors with real bindings without touching
	// internal/station.
	mac := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	adapter := radio.NewSimAdapter(mac)
	stack := dhcpstack.NewSimStack()

	secPolicy := radio.DefaultSecurityPolicy(*wpa3Transition)
	tuning := station.Tuning{
		PollMS:        pollInterval,
		ScanTimeoutMS: uint(scanTimeoutMS),
	}

	sup := station.NewSupervisor(adapter, stack, emit, slog, station.RealClock{}, secPolicy, tuning)
	sup.OnBLEReady(func() {
		slog.Debugf("releasing BLE-init signal")
	})
	sup.Machine().SetMetricsHooks(
		func() { met.JoinAttempts.Inc() },
		func() { met.JoinFailures.Inc() },
		func() { met.ReconnectEpisodes.Inc() },
		func(ms uint) { met.CurrentRetryMS.Set(float64(ms)) },
	)

	if err := sup.Start(); err != nil {
		slog.Fatalf("ap.stad failed to start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		sup.Run()
		close(done)
	}()

	sig := make(chan os.Signal, 3)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	s := <-sig
	slog.Infof("received signal %v, shutting down", s)

	_ = sup.Disconnect()
	sup.Shutdown()

	// deadman: if the event loop hasn't wound down within the deadline
	// (e.g. the radio adapter's Disconnect never calls back), log and
	// exit anyway rather than hang the process on a stuck shutdown.
	deadman := time.AfterFunc(shutdownDeadline, func() {
		slog.Warnf("shutdown did not complete within %s, exiting anyway", shutdownDeadline)
		os.Exit(1)
	})
	<-done
	deadman.Stop()

	slog.Infof("stopped")
}
