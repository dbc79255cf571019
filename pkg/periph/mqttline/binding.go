package mqttline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"
	"go.uber.org/atomic"

	"github.com/robotalks/databus/pkg/env"
	"github.com/robotalks/databus/pkg/periph"
)

// Transport is the publish/subscribe service carrying a virtual line.
// Topics are relative to the transport's prefix.
type Transport interface {
	Publish(topic string, payload []byte, retain bool) error
	Subscribe(topic string, handler Handler) error
}

// Config configures a Binding.
type Config struct {
	ID periph.ID
	// Line names the shared virtual line.
	Line string
	// Node identifies this participant. Defaults to env.NodeID() with a
	// per-binding suffix.
	Node string
	// BrokerURL is used when Transport is nil.
	BrokerURL string
	// Transport overrides the MQTT connection.
	Transport Transport
}

var (
	// ErrNoLine is returned when the line name is missing.
	ErrNoLine = errors.New("virtual line name required")
	// ErrBadName is returned for a line or node name that is not a single
	// MQTT topic level.
	ErrBadName = errors.New("name must not contain '/', '+' or '#'")
)

var bindingSeq atomic.Uint32

// Binding emulates a half-duplex wire over MQTT. Every participant
// publishes each emitted byte to <line>/tx/<node> and listens on
// <line>/tx/+. Bytes arriving while this node transmits are lost, like
// on a real transceiver with the receiver disabled.
type Binding struct {
	cfg          Config
	transport    Transport
	queue        *Queue
	baud         atomic.Uint32
	transmitting atomic.Bool
	dropped      atomic.Uint32

	lock    sync.RWMutex
	handler periph.ReceiveHandler
}

// New creates a Binding.
func New(cfg Config) (*Binding, error) {
	if cfg.Line == "" {
		return nil, ErrNoLine
	}
	if cfg.Node == "" {
		cfg.Node = fmt.Sprintf("%s-%d", env.NodeID(), bindingSeq.Inc())
	}
	for _, name := range []string{cfg.Line, cfg.Node} {
		if strings.ContainsAny(name, "/+#") {
			return nil, fmt.Errorf("%q: %w", name, ErrBadName)
		}
	}
	return &Binding{cfg: cfg, transport: cfg.Transport}, nil
}

// Name returns a display name.
func (b *Binding) Name() string {
	return "mqtt:" + b.cfg.Line + "/" + b.cfg.Node
}

// ID implements periph.Binding.
func (b *Binding) ID() periph.ID {
	return b.cfg.ID
}

// Dropped returns the number of bytes discarded while transmitting.
func (b *Binding) Dropped() uint32 {
	return b.dropped.Load()
}

// Init implements periph.Binding. It connects to the broker, announces
// the baud rate and subscribes to the line.
func (b *Binding) Init(baudRate uint32) error {
	if b.transport == nil {
		opts, prefix, err := ClientOptionsFromURL(b.cfg.BrokerURL)
		if err != nil {
			return fmt.Errorf("broker url: %w", err)
		}
		q := NewQueue(opts, prefix)
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("connect %s: %w", b.cfg.BrokerURL, token.Error())
		}
		b.queue, b.transport = q, q
	}
	b.baud.Store(baudRate)
	if err := b.transport.Subscribe(b.cfg.Line+"/baud/+", b.onBaud); err != nil {
		return err
	}
	if err := b.transport.Subscribe(b.cfg.Line+"/tx/+", b.onByte); err != nil {
		return err
	}
	return b.transport.Publish(b.topic("baud"), []byte(strconv.FormatUint(uint64(baudRate), 10)), true)
}

// SetTransmit implements periph.Binding.
func (b *Binding) SetTransmit() {
	b.transmitting.Store(true)
}

// SetReceive implements periph.Binding.
func (b *Binding) SetReceive() {
	b.transmitting.Store(false)
}

// TransmitByte implements periph.Binding. It returns once the broker
// client has sent the byte.
func (b *Binding) TransmitByte(v byte) {
	if err := b.transport.Publish(b.topic("tx"), []byte{v}, false); err != nil {
		glog.Warningf("%s: transmit %02x: %v", b.Name(), v, err)
	}
}

// Attach implements periph.Binding.
func (b *Binding) Attach(h periph.ReceiveHandler) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.handler != nil {
		glog.Warningf("%s: receive handler already attached", b.Name())
		return
	}
	b.handler = h
}

// Close disconnects the broker client created by Init.
func (b *Binding) Close() error {
	if b.queue != nil {
		return b.queue.Close()
	}
	return nil
}

func (b *Binding) topic(kind string) string {
	return b.cfg.Line + "/" + kind + "/" + b.cfg.Node
}

func senderOf(topic string) string {
	return topic[strings.LastIndex(topic, "/")+1:]
}

func (b *Binding) onByte(topic string, payload []byte) {
	if senderOf(topic) == b.cfg.Node {
		return
	}
	if b.transmitting.Load() {
		b.dropped.Add(uint32(len(payload)))
		glog.V(3).Infof("%s: dropped %d bytes from %s", b.Name(), len(payload), senderOf(topic))
		return
	}
	b.lock.RLock()
	h := b.handler
	b.lock.RUnlock()
	if h == nil {
		return
	}
	for _, v := range payload {
		h.HandleReceive(v)
	}
}

func (b *Binding) onBaud(topic string, payload []byte) {
	node := senderOf(topic)
	if node == b.cfg.Node {
		return
	}
	rate, err := strconv.ParseUint(string(payload), 10, 32)
	if err != nil {
		glog.Warningf("%s: bad baud announcement from %s: %q", b.Name(), node, payload)
		return
	}
	if own := b.baud.Load(); uint32(rate) != own {
		glog.Warningf("%s: node %s runs at %d baud, local %d", b.Name(), node, rate, own)
	}
}
