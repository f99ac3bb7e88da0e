/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package bus publishes the station connectivity supervisor's upward
// notifications to an out-of-process connectivity manager over a ZeroMQ PUB
// socket, topic-prefixed multipart frames matching the broker's own wire
// shape. Unlike the broker it publishes to, this package owns a wire body it
// marshals itself (JSON) rather than a protoc-generated message, since no
// .proto source for these events exists in this project.
package bus

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	zmq "github.com/pebbe/zmq4"
)

// Topic names published on this socket.
const (
	TopicWifiStarted   = "net.wifi.started"
	TopicWifiConnected = "net.wifi.connected"
	TopicIPv4Acquired  = "net.wifi.ipv4_acquired"
	TopicIPv6Acquired  = "net.wifi.ipv6_acquired"
	TopicIPLost        = "net.wifi.ip_lost"
	TopicIPv6Lost      = "net.wifi.ipv6_lost"
)

// EventNotification is the JSON wire body for every topic this package
// publishes. Fields irrelevant to a given topic are left zero. EpisodeID
// correlates a notification with the connectivity episode the state
// machine minted it under, letting a subscriber line up e.g. an
// ipv4_acquired event with the wifi_connected event from the same join.
type EventNotification struct {
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	EpisodeID string    `json:"episode_id,omitempty"`
	APMAC     string    `json:"ap_mac,omitempty"`
	IPv4      string    `json:"ipv4,omitempty"`
}

// Publisher is a ZMQ PUB-socket wrapper implementing notify.Emitter. It is
// safe for concurrent use; all sends are serialized behind publisherMtx,
// matching broker.Broker.Publish's locking discipline.
type Publisher struct {
	name string

	publisherMtx sync.Mutex
	publisher    *zmq.Socket
}

// NewPublisher creates and connects a PUB socket to endpoint (e.g.
// "tcp://127.0.0.1:3131"). The returned Publisher is ready to call as a
// notify.Emitter immediately; ZMQ's PUB sockets queue locally until a
// subscriber attaches, so no handshake is required before the first send.
func NewPublisher(name, endpoint string) (*Publisher, error) {
	if name == "" {
		return nil, errors.New("bus: publisher must be given a name")
	}
	sock, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, errors.Wrap(err, "bus: new socket")
	}
	if err := sock.Connect(endpoint); err != nil {
		sock.Close()
		return nil, errors.Wrapf(err, "bus: connect %s", endpoint)
	}
	return &Publisher{name: name, publisher: sock}, nil
}

// Close releases the underlying socket.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}

func (p *Publisher) publish(topic string, ev EventNotification) error {
	ev.Sender = p.name
	ev.Timestamp = time.Now()
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrapf(err, "bus: marshal %s", topic)
	}
	p.publisherMtx.Lock()
	_, err = p.publisher.SendMessage(topic, body)
	p.publisherMtx.Unlock()
	if err != nil {
		return errors.Wrapf(err, "bus: send %s", topic)
	}
	return nil
}

// WifiStarted implements notify.Emitter.
func (p *Publisher) WifiStarted() {
	_ = p.publish(TopicWifiStarted, EventNotification{})
}

// WifiConnected implements notify.Emitter.
func (p *Publisher) WifiConnected(apMAC [6]byte, episodeID string) {
	mac := net.HardwareAddr(apMAC[:])
	_ = p.publish(TopicWifiConnected, EventNotification{EpisodeID: episodeID, APMAC: mac.String()})
}

// IPv4Acquired implements notify.Emitter.
func (p *Publisher) IPv4Acquired(addr [4]byte, episodeID string) {
	ip := net.IPv4(addr[0], addr[1], addr[2], addr[3])
	_ = p.publish(TopicIPv4Acquired, EventNotification{EpisodeID: episodeID, IPv4: ip.String()})
}

// IPv6Acquired implements notify.Emitter.
func (p *Publisher) IPv6Acquired(episodeID string) {
	_ = p.publish(TopicIPv6Acquired, EventNotification{EpisodeID: episodeID})
}

// IPLost implements notify.Emitter.
func (p *Publisher) IPLost(episodeID string) {
	_ = p.publish(TopicIPLost, EventNotification{EpisodeID: episodeID})
}

// IPv6Lost implements notify.Emitter.
func (p *Publisher) IPv6Lost(episodeID string) {
	_ = p.publish(TopicIPv6Lost, EventNotification{EpisodeID: episodeID})
}
