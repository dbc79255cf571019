package mqttline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/databus/pkg/databus"
	"github.com/robotalks/databus/pkg/periph"
)

type memBroker struct {
	lock     sync.Mutex
	subs     map[string][]Handler
	retained map[string][]byte
}

func newMemBroker() *memBroker {
	return &memBroker{subs: make(map[string][]Handler), retained: make(map[string][]byte)}
}

func (m *memBroker) Publish(topic string, payload []byte, retain bool) error {
	m.lock.Lock()
	if retain {
		m.retained[topic] = payload
	}
	var handlers []Handler
	for pattern, hs := range m.subs {
		if MatchTopic(topic, pattern) {
			handlers = append(handlers, hs...)
		}
	}
	m.lock.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

func (m *memBroker) Subscribe(topic string, handler Handler) error {
	m.lock.Lock()
	m.subs[topic] = append(m.subs[topic], handler)
	retained := make(map[string][]byte)
	for t, p := range m.retained {
		if MatchTopic(t, topic) {
			retained[t] = p
		}
	}
	m.lock.Unlock()
	for t, p := range retained {
		handler(t, p)
	}
	return nil
}

func newTestBinding(t *testing.T, broker Transport, node string) *Binding {
	b, err := New(Config{ID: 1, Line: "bus0", Node: node, Transport: broker})
	require.NoError(t, err)
	return b
}

func TestNewRequiresLine(t *testing.T) {
	_, err := New(Config{Node: "a"})
	require.ErrorIs(t, err, ErrNoLine)
}

func TestNewRejectsTopicCharacters(t *testing.T) {
	for _, cfg := range []Config{
		{Line: "bus/0", Node: "a"},
		{Line: "bus0", Node: "a+b"},
		{Line: "bus#", Node: "a"},
	} {
		_, err := New(cfg)
		require.ErrorIs(t, err, ErrBadName)
	}
}

func TestDefaultNodesOnOneHostHearEachOther(t *testing.T) {
	broker := newMemBroker()
	ba, err := New(Config{ID: 1, Line: "bus0", Transport: broker})
	require.NoError(t, err)
	bb, err := New(Config{ID: 1, Line: "bus0", Transport: broker})
	require.NoError(t, err)
	require.NotEqual(t, ba.cfg.Node, bb.cfg.Node)

	da, err := databus.New(ba, 9600, databus.WithVectors(periph.NewVectors()))
	require.NoError(t, err)
	db, err := databus.New(bb, 9600, databus.WithVectors(periph.NewVectors()))
	require.NoError(t, err)

	da.SendByte(0x7e)
	require.True(t, db.IsByteReceived())
	require.Equal(t, byte(0x7e), db.LastByte())
	require.False(t, da.IsByteReceived())
}

func TestVirtualLineRoundTrip(t *testing.T) {
	broker := newMemBroker()
	ba, bb := newTestBinding(t, broker, "a"), newTestBinding(t, broker, "b")
	da, err := databus.New(ba, 115200, databus.WithVectors(periph.NewVectors()))
	require.NoError(t, err)
	db, err := databus.New(bb, 115200, databus.WithVectors(periph.NewVectors()))
	require.NoError(t, err)

	da.SendByte(0x7E)
	require.True(t, db.IsByteReceived())
	require.Equal(t, byte(0x7E), db.LastByte())
	require.False(t, da.IsByteReceived())

	db.SendByte(0x01)
	require.True(t, da.IsByteReceived())
	require.Equal(t, byte(0x01), da.LastByte())
	require.False(t, db.IsByteReceived())
}

func TestBytesDroppedWhileTransmitting(t *testing.T) {
	broker := newMemBroker()
	b := newTestBinding(t, broker, "a")
	require.NoError(t, b.Init(9600))
	var got []byte
	b.Attach(periph.ReceiveFunc(func(v byte) { got = append(got, v) }))

	b.SetTransmit()
	require.NoError(t, broker.Publish("bus0/tx/b", []byte{0x10}, false))
	require.Empty(t, got)
	require.Equal(t, uint32(1), b.Dropped())

	b.SetReceive()
	require.NoError(t, broker.Publish("bus0/tx/b", []byte{0x11, 0x12}, false))
	require.Equal(t, []byte{0x11, 0x12}, got)
}

func TestOwnBytesIgnored(t *testing.T) {
	broker := newMemBroker()
	b := newTestBinding(t, broker, "a")
	require.NoError(t, b.Init(9600))
	var got []byte
	b.Attach(periph.ReceiveFunc(func(v byte) { got = append(got, v) }))
	b.TransmitByte(0x33)
	require.Empty(t, got)
}

func TestBaudAnnounced(t *testing.T) {
	broker := newMemBroker()
	b := newTestBinding(t, broker, "a")
	require.NoError(t, b.Init(19200))
	require.Equal(t, []byte("19200"), broker.retained["bus0/baud/a"])
}
