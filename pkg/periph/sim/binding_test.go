package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/databus/pkg/periph"
)

func TestBindingRecordsEvents(t *testing.T) {
	b := New(2)
	require.Equal(t, periph.ID(2), b.ID())
	require.NoError(t, b.Init(19200))
	b.SetTransmit()
	b.TransmitByte(0x55)
	b.SetReceive()

	require.Equal(t, []Event{
		{Kind: EventInit, Baud: 19200},
		{Kind: EventTransmit, Transmitting: true},
		{Kind: EventEmit, Byte: 0x55, Transmitting: true},
		{Kind: EventReceive},
	}, b.Events())
	require.Equal(t, []byte{0x55}, b.Emitted())
	require.Equal(t, uint32(19200), b.Baud())
	require.False(t, b.Transmitting())

	b.Reset()
	require.Empty(t, b.Events())
}

func TestBindingFire(t *testing.T) {
	b := New(0)
	require.False(t, b.Fire(1), "no handler attached")

	var got []byte
	b.Attach(periph.ReceiveFunc(func(v byte) { got = append(got, v) }))
	require.True(t, b.Fire(0x41))

	b.SetTransmit()
	require.False(t, b.Fire(0x42), "bytes are lost while transmitting")
	b.SetReceive()
	require.True(t, b.Fire(0x43))
	require.Equal(t, []byte{0x41, 0x43}, got)

	require.Panics(t, func() { b.Attach(periph.ReceiveFunc(func(byte) {})) })
}

func TestBindingInitFailure(t *testing.T) {
	b := New(0)
	b.FailInit = true
	require.Equal(t, ErrInitFailed, b.Init(9600))
	require.Empty(t, b.Events())
}

func TestLineDelivery(t *testing.T) {
	a, b, c := New(0), New(1), New(2)
	NewLine().Connect(a, b, c)

	var gotB, gotC []byte
	b.Attach(periph.ReceiveFunc(func(v byte) { gotB = append(gotB, v) }))
	c.Attach(periph.ReceiveFunc(func(v byte) { gotC = append(gotC, v) }))

	a.SetTransmit()
	a.TransmitByte(0x7e)
	a.SetReceive()

	require.Equal(t, []byte{0x7e}, gotB)
	require.Equal(t, []byte{0x7e}, gotC)
}

func TestLineCollision(t *testing.T) {
	a, b := New(0), New(1)
	line := NewLine().Connect(a, b)
	b.Attach(periph.ReceiveFunc(func(byte) { t.Fatal("byte must not be received while transmitting") }))

	b.SetTransmit()
	a.SetTransmit()
	a.TransmitByte(0x01)
	require.Equal(t, 1, line.Collisions())
}

func TestEchoLostWhileTransmitting(t *testing.T) {
	b := New(0)
	b.Echo = true
	var got []byte
	b.Attach(periph.ReceiveFunc(func(v byte) { got = append(got, v) }))

	b.SetTransmit()
	b.TransmitByte(0x55)
	b.SetReceive()
	require.Empty(t, got)

	b.TransmitByte(0x56)
	require.Equal(t, []byte{0x56}, got)
}
