package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	zmq "github.com/pebbe/zmq4"
)

func TestNewPublisherRejectsEmptyName(t *testing.T) {
	_, err := NewPublisher("", "tcp://127.0.0.1:15559")
	require.Error(t, err)
}

func TestPublishRoundTrip(t *testing.T) {
	sub, err := zmq.NewSocket(zmq.SUB)
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, sub.Bind("tcp://127.0.0.1:15559"))
	require.NoError(t, sub.SetSubscribe(""))

	p, err := NewPublisher("stad-test", "tcp://127.0.0.1:15559")
	require.NoError(t, err)
	defer p.Close()

	// ZMQ's slow-joiner: give the subscriber a moment to attach before the
	// first publish, matching the broker's own connect-then-send pattern.
	time.Sleep(100 * time.Millisecond)

	p.WifiConnected([6]byte{1, 2, 3, 4, 5, 6}, "ep-test-1")

	msg, err := sub.RecvMessageBytes(0)
	require.NoError(t, err)
	require.Equal(t, TopicWifiConnected, string(msg[0]))

	var ev EventNotification
	require.NoError(t, json.Unmarshal(msg[1], &ev))
	require.Equal(t, "stad-test", ev.Sender)
	require.Equal(t, "01:02:03:04:05:06", ev.APMAC)
	require.Equal(t, "ep-test-1", ev.EpisodeID)
}
