package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ev3ctl/internal/config"
	"github.com/danmuck/ev3ctl/internal/protocol/session"
	"github.com/danmuck/ev3ctl/internal/transport"
)

type globalOptions struct {
	configPath     string
	transport      string
	host           string
	sync           string
	serialPort     string
	metricsAddr    string
	connectTimeout time.Duration
}

// resolveConfig loads the config file, if any, and applies the flags the
// user set on top of it.
func resolveConfig(opts globalOptions, changed func(name string) bool) (config.File, error) {
	cfg := config.Default()
	if path := strings.TrimSpace(opts.configPath); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.File{}, err
		}
		cfg = loaded
	}

	if changed("transport") {
		kind, err := transport.ParseKind(opts.transport)
		if err != nil {
			return config.File{}, err
		}
		cfg.Transport = kind
	}
	if changed("host") {
		cfg.Host = strings.TrimSpace(opts.host)
	}
	if changed("sync") {
		p, err := session.ParseSyncPolicy(opts.sync)
		if err != nil {
			return config.File{}, err
		}
		cfg.Session.Policy = p
	}
	if changed("serial-port") {
		cfg.Radio.SerialPort = strings.TrimSpace(opts.serialPort)
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = strings.TrimSpace(opts.metricsAddr)
	}

	if cfg.Transport == transport.KindRadio && cfg.Host == "" && cfg.Radio.SerialPort == "" {
		return config.File{}, fmt.Errorf("bluetooth needs --host or --serial-port")
	}
	return cfg, nil
}
