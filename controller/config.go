package controller

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the daemon configuration. Every field has a default so the
// daemon starts with no config file at all.
type Config struct {
	Listen      string     `yaml:"listen"`
	Database    string     `yaml:"database"`
	TickSeconds int        `yaml:"tick_seconds"`
	I2CAddress  byte       `yaml:"i2c_address"`
	DevMode     bool       `yaml:"dev_mode"`
	MQTT        MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

func DefaultConfig() Config {
	return Config{
		Listen:      ":8080",
		Database:    "aquadoser.db",
		TickSeconds: 30,
		I2CAddress:  0x10,
		MQTT: MQTTConfig{
			Broker:   "tcp://homeassistant.local:1883",
			ClientID: "aquadoser",
		},
	}
}

// LoadConfig reads the yaml file at path over the defaults. A missing file is
// not an error; it just means defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}
