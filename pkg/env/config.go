package env

import (
	"flag"
	"os"
)

// Config provides common options shared by databus commands.
type Config struct {
	// ConfigFile is the path of the bus configuration in JSON.
	ConfigFile string
	// MQTTBrokerURL is used by buses bound to a virtual MQTT line.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	// Node identifies this participant on virtual lines. Empty lets each
	// binding derive a unique one from NodeID.
	Node string
}

var defaultConfig = Config{
	ConfigFile:    "databus.json",
	MQTTBrokerURL: "mqtt://localhost:1883/databus/",
}

func init() {
	if val := os.Getenv("DATABUS_CONFIG"); val != "" {
		defaultConfig.ConfigFile = val
	}
	if val := os.Getenv("DATABUS_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("DATABUS_NODE"); val != "" {
		defaultConfig.Node = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "Bus configuration file")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for virtual lines")
	flag.StringVar(&defaultConfig.Node, "node", defaultConfig.Node, "Node ID on virtual lines")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
