package periph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedOwner struct{ name string }

func (*namedOwner) HandleReceive(byte) {}

func TestVectorsClaim(t *testing.T) {
	v := NewVectors()
	first, second := &namedOwner{"a"}, &namedOwner{"b"}

	require.NoError(t, v.Claim(1, "bus-a", first))
	require.Same(t, first, v.Owner(1))
	require.Nil(t, v.Owner(0))

	err := v.Claim(1, "bus-b", second)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPeripheralBusy))
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, ID(1), conflict.ID)
	require.Equal(t, "bus-a", conflict.Owner)
	require.Equal(t, "bus-b", conflict.Claimant)
	require.Same(t, first, v.Owner(1), "owner must not be replaced")

	require.NoError(t, v.Claim(2, "bus-b", second))
}

func TestVectorsInvalidID(t *testing.T) {
	v := NewVectors()
	err := v.Claim(MaxPeripherals, "bus", &namedOwner{})
	require.True(t, errors.Is(err, ErrInvalidID))
	require.Nil(t, v.Owner(MaxPeripherals))
	require.False(t, ID(MaxPeripherals).Valid())
	require.True(t, ID(MaxPeripherals-1).Valid())
}

func TestReceiveFunc(t *testing.T) {
	var got []byte
	var h ReceiveHandler = ReceiveFunc(func(b byte) { got = append(got, b) })
	h.HandleReceive(0x41)
	h.HandleReceive(0x42)
	require.Equal(t, []byte{0x41, 0x42}, got)
}
