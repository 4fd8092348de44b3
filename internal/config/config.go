// Package config loads ev3ctl settings from toml or yaml files.
//
// Every key is optional. Keys present in the file override Default().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/danmuck/ev3ctl/internal/protocol/session"
	"github.com/danmuck/ev3ctl/internal/transport"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrInvalidValue      = errors.New("config: invalid value")
)

// File is a resolved configuration.
type File struct {
	Transport   transport.Kind
	Host        string
	MetricsAddr string
	Session     session.Config
	Radio       transport.RadioParams
	Network     transport.NetworkParams
	USB         transport.USBParams
}

func Default() File {
	return File{
		Transport: transport.KindUSB,
		Session:   session.DefaultConfig(),
		Radio:     transport.DefaultRadioParams(),
		Network:   transport.DefaultNetworkParams(),
		USB:       transport.DefaultUSBParams(),
	}
}

func (f File) SessionConfig() session.Config {
	return f.Session
}

func (f File) TransportParams() transport.Params {
	return transport.Params{
		Kind:    f.Transport,
		Host:    f.Host,
		Radio:   f.Radio,
		Network: f.Network,
		USB:     f.USB,
	}
}

type fileConfig struct {
	Transport        string `toml:"transport" yaml:"transport"`
	Host             string `toml:"host" yaml:"host"`
	Sync             string `toml:"sync" yaml:"sync"`
	MetricsAddr      string `toml:"metrics_addr" yaml:"metrics_addr"`
	InitialCounter   int    `toml:"initial_counter" yaml:"initial_counter"`
	ReceiveBuffer    int    `toml:"receive_buffer" yaml:"receive_buffer"`
	ShortReadRetries int    `toml:"short_read_retries" yaml:"short_read_retries"`
	ShortReadDelay   string `toml:"short_read_delay" yaml:"short_read_delay"`
	RadioSettle      string `toml:"radio_settle" yaml:"radio_settle"`

	Bluetooth struct {
		Channel    int    `toml:"channel" yaml:"channel"`
		SerialPort string `toml:"serial_port" yaml:"serial_port"`
		BaudRate   int    `toml:"baud_rate" yaml:"baud_rate"`
	} `toml:"bluetooth" yaml:"bluetooth"`

	Wifi struct {
		DiscoveryAddr    string `toml:"discovery_addr" yaml:"discovery_addr"`
		ConnectTimeout   string `toml:"connect_timeout" yaml:"connect_timeout"`
		HandshakeTimeout string `toml:"handshake_timeout" yaml:"handshake_timeout"`
	} `toml:"wifi" yaml:"wifi"`

	USB struct {
		VendorID  int `toml:"vendor_id" yaml:"vendor_id"`
		ProductID int `toml:"product_id" yaml:"product_id"`
	} `toml:"usb" yaml:"usb"`
}

// definedFunc reports whether a (possibly nested) key was present in the file.
type definedFunc func(key ...string) bool

// Load reads path, choosing the decoder by extension (.toml, .yaml, .yml).
func Load(path string) (File, error) {
	var (
		raw     fileConfig
		defined definedFunc
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return File{}, fmt.Errorf("load config (%s): %w", path, err)
		}
		defined = meta.IsDefined
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("load config (%s): %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return File{}, fmt.Errorf("parse config (%s): %w", path, err)
		}
		var tree map[interface{}]interface{}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return File{}, fmt.Errorf("parse config (%s): %w", path, err)
		}
		defined = yamlDefined(tree)
	default:
		return File{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}

	cfg, err := apply(Default(), raw, defined)
	if err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func apply(cfg File, raw fileConfig, defined definedFunc) (File, error) {
	if defined("transport") {
		kind, err := transport.ParseKind(raw.Transport)
		if err != nil {
			return File{}, err
		}
		cfg.Transport = kind
	}
	if defined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if defined("sync") {
		p, err := session.ParseSyncPolicy(raw.Sync)
		if err != nil {
			return File{}, err
		}
		cfg.Session.Policy = p
	}
	if defined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if defined("initial_counter") {
		if raw.InitialCounter < 0 || raw.InitialCounter > 0xFFFF {
			return File{}, fmt.Errorf("%w: initial_counter %d", ErrInvalidValue, raw.InitialCounter)
		}
		cfg.Session.InitialCounter = uint16(raw.InitialCounter)
	}
	if defined("receive_buffer") {
		if raw.ReceiveBuffer <= 0 {
			return File{}, fmt.Errorf("%w: receive_buffer %d", ErrInvalidValue, raw.ReceiveBuffer)
		}
		cfg.Session.ReceiveBuffer = raw.ReceiveBuffer
	}
	if defined("short_read_retries") {
		if raw.ShortReadRetries < 0 {
			return File{}, fmt.Errorf("%w: short_read_retries %d", ErrInvalidValue, raw.ShortReadRetries)
		}
		cfg.Session.ShortReadRetries = raw.ShortReadRetries
	}
	if defined("short_read_delay") {
		d, err := parseDuration("short_read_delay", raw.ShortReadDelay)
		if err != nil {
			return File{}, err
		}
		cfg.Session.ShortReadBackoff.InitialDelay = d
		cfg.Session.ShortReadBackoff.MaxDelay = d
	}
	if defined("radio_settle") {
		d, err := parseDuration("radio_settle", raw.RadioSettle)
		if err != nil {
			return File{}, err
		}
		cfg.Session.RadioSettle = d
	}

	if defined("bluetooth", "channel") {
		if raw.Bluetooth.Channel < 1 || raw.Bluetooth.Channel > 30 {
			return File{}, fmt.Errorf("%w: bluetooth.channel %d", ErrInvalidValue, raw.Bluetooth.Channel)
		}
		cfg.Radio.Channel = uint8(raw.Bluetooth.Channel)
	}
	if defined("bluetooth", "serial_port") {
		cfg.Radio.SerialPort = strings.TrimSpace(raw.Bluetooth.SerialPort)
	}
	if defined("bluetooth", "baud_rate") {
		cfg.Radio.BaudRate = raw.Bluetooth.BaudRate
	}

	if defined("wifi", "discovery_addr") {
		cfg.Network.DiscoveryAddr = strings.TrimSpace(raw.Wifi.DiscoveryAddr)
	}
	if defined("wifi", "connect_timeout") {
		d, err := parseDuration("wifi.connect_timeout", raw.Wifi.ConnectTimeout)
		if err != nil {
			return File{}, err
		}
		cfg.Network.ConnectTimeout = d
	}
	if defined("wifi", "handshake_timeout") {
		d, err := parseDuration("wifi.handshake_timeout", raw.Wifi.HandshakeTimeout)
		if err != nil {
			return File{}, err
		}
		cfg.Network.HandshakeTimeout = d
	}

	if defined("usb", "vendor_id") {
		id, err := parseID("usb.vendor_id", raw.USB.VendorID)
		if err != nil {
			return File{}, err
		}
		cfg.USB.VendorID = id
	}
	if defined("usb", "product_id") {
		id, err := parseID("usb.product_id", raw.USB.ProductID)
		if err != nil {
			return File{}, err
		}
		cfg.USB.ProductID = id
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s %v", ErrInvalidValue, key, d)
	}
	return d, nil
}

func parseID(key string, v int) (uint16, error) {
	if v <= 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%w: %s %d", ErrInvalidValue, key, v)
	}
	return uint16(v), nil
}

func yamlDefined(tree map[interface{}]interface{}) definedFunc {
	return func(key ...string) bool {
		node := tree
		for i, k := range key {
			v, ok := node[k]
			if !ok {
				return false
			}
			if i == len(key)-1 {
				return true
			}
			next, ok := v.(map[interface{}]interface{})
			if !ok {
				return false
			}
			node = next
		}
		return false
	}
}
