package bus

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/databus/pkg/cli/sh"
	"github.com/robotalks/databus/pkg/databus"
)

const watchPollInterval = time.Millisecond

// ParseBytes parses arguments like "7e", "0x01", "a" or "a0b1c2" into bytes.
// A single digit is a byte on its own; longer arguments need an even number
// of digits.
func ParseBytes(args []string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		digits := strings.TrimPrefix(strings.ToLower(arg), "0x")
		switch {
		case digits == "":
			return nil, fmt.Errorf("invalid byte %q: no digits", arg)
		case len(digits) == 1:
			digits = "0" + digits
		case len(digits)%2 == 1:
			return nil, fmt.Errorf("invalid byte %q: odd number of digits", arg)
		}
		data, err := hex.DecodeString(digits)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q: %v", arg, err)
		}
		out = append(out, data...)
	}
	return out, nil
}

// Watch polls d until timeout and returns every byte picked up.
func Watch(d *databus.Driver, timeout time.Duration) []byte {
	var got []byte
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.IsByteReceived() {
			got = append(got, d.LastByte())
			continue
		}
		time.Sleep(watchPollInterval)
	}
	return got
}

type recvResult struct {
	Received bool  `json:"received"`
	Byte     *byte `json:"byte,omitempty"`
}

var (
	// SendCmd sends bytes onto the bus.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "HEX...",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HEX required"))
				return
			}
			data, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			d := sh.DriverFrom(c)
			for _, b := range data {
				d.SendByte(b)
			}
			sh.Output(c, map[string]int{"sent": len(data)}, "OK")
		}),
	}

	// RecvCmd checks and clears the received flag.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"r"},
		Help:    "",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			d := sh.DriverFrom(c)
			if !d.IsByteReceived() {
				sh.Output(c, recvResult{}, "No byte")
				return
			}
			b := d.LastByte()
			sh.Output(c, recvResult{Received: true, Byte: &b}, fmt.Sprintf("%02x", b))
		}),
	}

	// LastCmd shows the last received byte without touching the flag.
	LastCmd = ishell.Cmd{
		Name: "last",
		Help: "",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			b := sh.DriverFrom(c).LastByte()
			sh.Output(c, map[string]byte{"byte": b}, fmt.Sprintf("%02x", b))
		}),
	}

	// DirCmd shows the bus direction.
	DirCmd = ishell.Cmd{
		Name: "dir",
		Help: "",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			dir := sh.DriverFrom(c).Direction().String()
			sh.Output(c, map[string]string{"direction": dir}, dir)
		}),
	}

	// WatchCmd prints bytes received within a duration.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "DURATION",
		Func: sh.MustBeOpened(func(c *ishell.Context) {
			timeout := time.Second
			if len(c.Args) > 0 {
				val, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("Invalid DURATION: %v", err))
					return
				}
				timeout = val
			}
			got := Watch(sh.DriverFrom(c), timeout)
			ints := make([]int, len(got))
			for n, b := range got {
				ints[n] = int(b)
			}
			sh.Output(c, ints, hex.EncodeToString(got))
		}),
	}
)

func init() {
	sh.AddCmds(
		&SendCmd,
		&RecvCmd,
		&LastCmd,
		&DirCmd,
		&WatchCmd,
	)
}
