// Package config loads bus definitions and checks them before any
// peripheral is touched.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robotalks/databus/pkg/databus"
	fx "github.com/robotalks/databus/pkg/framework"
	"github.com/robotalks/databus/pkg/periph"
	"github.com/robotalks/databus/pkg/periph/mqttline"
	"github.com/robotalks/databus/pkg/periph/serialport"
	"github.com/robotalks/databus/pkg/periph/sim"
)

// Binding kinds.
const (
	BindingSerial = "serial"
	BindingMQTT   = "mqtt"
	BindingSim    = "sim"
)

// Direction line kinds for serial buses.
const (
	DirectionRTS  = "rts"
	DirectionGPIO = "gpio"
)

// Bus describes one bus instance.
type Bus struct {
	Name       string    `json:"name"`
	Peripheral periph.ID `json:"peripheral"`
	Binding    string    `json:"binding"`
	BaudRate   int64     `json:"baud_rate"`

	// serial
	Device    string `json:"device,omitempty"`
	Direction string `json:"direction,omitempty"`
	DEPin     string `json:"de_pin,omitempty"`
	Invert    bool   `json:"invert,omitempty"`

	// mqtt
	Line string `json:"line,omitempty"`
}

// Config is the content of a bus configuration file.
type Config struct {
	Buses []Bus `json:"buses"`

	// MQTTBrokerURL and Node apply to mqtt buses. Not part of the file.
	MQTTBrokerURL string `json:"-"`
	Node          string `json:"-"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}

// Parse decodes a configuration.
func Parse(data []byte) (*Config, error) {
	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, err
	}
	for n := range conf.Buses {
		if conf.Buses[n].Binding == "" {
			conf.Buses[n].Binding = BindingSerial
		}
	}
	return &conf, nil
}

// Find returns the bus with name.
func (c *Config) Find(name string) (*Bus, bool) {
	for n := range c.Buses {
		if c.Buses[n].Name == name {
			return &c.Buses[n], true
		}
	}
	return nil, false
}

// Validate reports every problem in the configuration. Two buses bound to
// the same peripheral produce a *periph.ConflictError.
func (c *Config) Validate() error {
	var errs fx.AggregatedError
	names := make(map[string]bool)
	var owners [periph.MaxPeripherals]string
	for n, bus := range c.Buses {
		label := bus.Name
		if label == "" {
			label = fmt.Sprintf("buses[%d]", n)
			errs.Add(fmt.Errorf("%s: name required", label))
		} else if names[bus.Name] {
			errs.Add(fmt.Errorf("%s: duplicated name", label))
		}
		names[bus.Name] = true
		if bus.BaudRate <= 0 || bus.BaudRate > int64(^uint32(0)) {
			errs.Add(fmt.Errorf("%s: %w: %d", label, periph.ErrInvalidBaudRate, bus.BaudRate))
		}
		if err := bus.validateBinding(); err != nil {
			errs.Add(fmt.Errorf("%s: %w", label, err))
		}
		if !bus.Peripheral.Valid() {
			errs.Add(fmt.Errorf("%s: %w: %d", label, periph.ErrInvalidID, bus.Peripheral))
			continue
		}
		if owner := owners[bus.Peripheral]; owner != "" {
			errs.Add(&periph.ConflictError{ID: bus.Peripheral, Owner: owner, Claimant: label})
			continue
		}
		owners[bus.Peripheral] = label
	}
	return errs.Aggregate()
}

func (b *Bus) validateBinding() error {
	switch b.Binding {
	case BindingSerial:
		if b.Device == "" {
			return errors.New("device required")
		}
		switch b.Direction {
		case "", DirectionRTS:
		case DirectionGPIO:
			if b.DEPin == "" {
				return errors.New("de_pin required for gpio direction")
			}
		default:
			return fmt.Errorf("unknown direction %q", b.Direction)
		}
	case BindingMQTT:
		if b.Line == "" {
			return errors.New("line required")
		}
		if strings.ContainsAny(b.Line, "/+#") {
			return fmt.Errorf("line %q must not contain '/', '+' or '#'", b.Line)
		}
	case BindingSim:
	default:
		return fmt.Errorf("unknown binding %q", b.Binding)
	}
	return nil
}

// Instance is an opened bus.
type Instance struct {
	Bus     Bus
	Driver  *databus.Driver
	Binding periph.Binding
}

// Runnable returns the binding's receive loop, if it has one.
func (i *Instance) Runnable() fx.Runnable {
	if r, ok := i.Binding.(fx.Runnable); ok {
		return r
	}
	return nil
}

// Close releases the underlying device.
func (i *Instance) Close() error {
	if c, ok := i.Binding.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewBinding creates the binding described by the bus.
func (c *Config) NewBinding(bus Bus) (periph.Binding, error) {
	if err := bus.validateBinding(); err != nil {
		return nil, fmt.Errorf("%s: %w", bus.Name, err)
	}
	switch bus.Binding {
	case BindingSerial:
		cfg := serialport.Config{ID: bus.Peripheral, Device: bus.Device, InvertRTS: bus.Invert}
		if bus.Direction == DirectionGPIO {
			line, err := serialport.OpenGPIOLine(bus.DEPin, bus.Invert)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", bus.Name, err)
			}
			cfg.Line = line
		}
		return serialport.New(cfg), nil
	case BindingMQTT:
		b, err := mqttline.New(mqttline.Config{
			ID:        bus.Peripheral,
			Line:      bus.Line,
			Node:      c.Node,
			BrokerURL: c.MQTTBrokerURL,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", bus.Name, err)
		}
		return b, nil
	default:
		return sim.New(bus.Peripheral), nil
	}
}

// Open creates the binding and the driver for a bus, claiming its
// peripheral in vectors.
func (c *Config) Open(bus Bus, vectors *periph.Vectors) (*Instance, error) {
	if bus.BaudRate <= 0 || bus.BaudRate > int64(^uint32(0)) {
		return nil, fmt.Errorf("%s: %w: %d", bus.Name, periph.ErrInvalidBaudRate, bus.BaudRate)
	}
	binding, err := c.NewBinding(bus)
	if err != nil {
		return nil, err
	}
	d, err := databus.New(binding, uint32(bus.BaudRate),
		databus.WithName(bus.Name), databus.WithVectors(vectors))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", bus.Name, err)
	}
	return &Instance{Bus: bus, Driver: d, Binding: binding}, nil
}
