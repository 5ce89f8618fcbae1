// Package main provides the command-line interface for the VoiceCraft
// relay server: a standalone process embedding the server package over a
// real UDP transport.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/voicecraft/voicecraft-core/server"
	"github.com/voicecraft/voicecraft-core/transport"
)

// cliConfig holds the parsed command-line flags.
type cliConfig struct {
	listenAddr      string
	configPath      string
	port            uint
	maxClients      uint
	motd            string
	positioningType string
	language        string
	major           uint
	minor           uint
	build           uint
	logLevel        string
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.listenAddr, "listen", ":9980", "UDP address to bind")
	flag.StringVar(&cfg.configPath, "config", "", "ServerProperties YAML file (overrides individual flags if set)")
	flag.UintVar(&cfg.port, "port", 9980, "Advertised port (ServerProperties.Port)")
	flag.UintVar(&cfg.maxClients, "max-clients", 32, "Maximum concurrent peers")
	flag.StringVar(&cfg.motd, "motd", "", "Message of the day advertised in InfoResponse")
	flag.StringVar(&cfg.positioningType, "positioning-type", "spatial", "Positioning model advertised in InfoResponse")
	flag.StringVar(&cfg.language, "language", "en", "Default language advertised in InfoResponse")
	flag.UintVar(&cfg.major, "version-major", 1, "Protocol major version required of clients")
	flag.UintVar(&cfg.minor, "version-minor", 0, "Protocol minor version required of clients")
	flag.UintVar(&cfg.build, "version-build", 0, "Protocol build number advertised to clients")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()
	return cfg
}

func (c *cliConfig) serverProperties() server.ServerProperties {
	return server.ServerProperties{
		Port:            uint16(c.port),
		MaxClients:      uint16(c.maxClients),
		Motd:            c.motd,
		PositioningType: c.positioningType,
		Language:        c.language,
	}
}

func (c *cliConfig) validate() error {
	if c.port == 0 || c.port > 65535 {
		return fmt.Errorf("invalid port: must be between 1 and 65535")
	}
	if c.maxClients == 0 {
		return fmt.Errorf("max-clients must be at least 1")
	}
	return nil
}

func main() {
	cfg := parseFlags()
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if level, err := logrus.ParseLevel(cfg.logLevel); err == nil {
		logrus.SetLevel(level)
	}

	props := cfg.serverProperties()
	if cfg.configPath != "" {
		loaded, err := server.LoadServerProperties(cfg.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		props = loaded
	}

	t, err := transport.NewUDPTransport(cfg.listenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind %s: %v\n", cfg.listenAddr, err)
		os.Exit(1)
	}
	defer t.Close()

	srvCfg := server.Config{
		ServerProperties: props,
		Major:            uint16(cfg.major),
		Minor:            uint16(cfg.minor),
		Build:            uint16(cfg.build),
	}
	srv := server.New(t, srvCfg, nil)

	logrus.WithFields(logrus.Fields{
		"listen":      cfg.listenAddr,
		"max_clients": srvCfg.MaxClients,
	}).Info("voicerelay listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for s := range sig {
		switch s {
		case syscall.SIGHUP:
			if cfg.configPath == "" {
				continue
			}
			reloaded, err := server.LoadServerProperties(cfg.configPath)
			if err != nil {
				logrus.WithError(err).Warn("failed to reload config")
				continue
			}
			srv.Reload(reloaded)
			logrus.Info("reloaded ServerProperties")
		default:
			logrus.WithField("peers", srv.PeerCount()).Info("shutting down")
			return
		}
	}
}
