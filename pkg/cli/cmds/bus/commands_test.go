package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/databus/pkg/databus"
	"github.com/robotalks/databus/pkg/periph"
	"github.com/robotalks/databus/pkg/periph/sim"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []byte
	}{
		{"single", []string{"7e"}, []byte{0x7e}},
		{"prefixed", []string{"0x01", "0XFF"}, []byte{0x01, 0xff}},
		{"odd", []string{"a"}, []byte{0x0a}},
		{"packed", []string{"a0b1c2"}, []byte{0xa0, 0xb1, 0xc2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBytes(tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
	for _, bad := range []string{"zz", "7e8", "0x", ""} {
		_, err := ParseBytes([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestWatch(t *testing.T) {
	b := sim.New(0)
	d, err := databus.New(b, 9600, databus.WithVectors(periph.NewVectors()))
	require.NoError(t, err)

	go func() {
		for _, v := range []byte{1, 2, 3} {
			b.Fire(v)
			time.Sleep(20 * time.Millisecond)
		}
	}()
	got := Watch(d, 200*time.Millisecond)
	require.Equal(t, []byte{1, 2, 3}, got)
}
