// Package server implements the packet relay fabric: it accepts a bounded
// set of peers, establishes a secure session with each, enforces
// visibility-set fan-out for audio, and relays control-plane state changes.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerProperties is the relay's reloadable configuration surface,
// supplied by the CLI collaborator.
type ServerProperties struct {
	Port            uint16 `yaml:"port"`
	MaxClients      uint16 `yaml:"max_clients"`
	Motd            string `yaml:"motd"`
	PositioningType string `yaml:"positioning_type"`
	Language        string `yaml:"language"`
}

// DefaultServerProperties returns sane defaults for a standalone relay.
func DefaultServerProperties() ServerProperties {
	return ServerProperties{
		Port:            9980,
		MaxClients:      32,
		PositioningType: "spatial",
		Language:        "en",
	}
}

// LoadServerProperties reads and parses a YAML properties file, used both
// at startup and by the CLI's reload command.
func LoadServerProperties(path string) (ServerProperties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerProperties{}, fmt.Errorf("server: read properties: %w", err)
	}
	props := DefaultServerProperties()
	if err := yaml.Unmarshal(data, &props); err != nil {
		return ServerProperties{}, fmt.Errorf("server: parse properties: %w", err)
	}
	return props, nil
}

// Config bundles the relay's reloadable properties with the protocol
// version it advertises and requires of incoming LoginRequests.
type Config struct {
	ServerProperties
	Major, Minor, Build uint16
}

// DefaultConfig returns a Config with default properties and version 1.0.0.
func DefaultConfig() Config {
	return Config{ServerProperties: DefaultServerProperties(), Major: 1}
}
