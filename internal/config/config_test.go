package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/ev3ctl/internal/protocol/session"
	"github.com/danmuck/ev3ctl/internal/testutil/testlog"
	"github.com/danmuck/ev3ctl/internal/transport"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "ev3.toml", `
transport = "wifi"
host = "00:16:53:42:2b:99"
sync = "async"
short_read_delay = "25ms"

[wifi]
connect_timeout = "2s"

[usb]
product_id = 6
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport != transport.KindNetwork {
		t.Fatalf("unexpected transport: %q", cfg.Transport)
	}
	if cfg.Host != "00:16:53:42:2b:99" {
		t.Fatalf("unexpected host: %q", cfg.Host)
	}
	s := cfg.SessionConfig()
	if s.Policy != session.PolicyAsynchronous {
		t.Fatalf("unexpected policy: %v", s.Policy)
	}
	if s.ShortReadBackoff.InitialDelay != 25*time.Millisecond || s.ShortReadBackoff.MaxDelay != 25*time.Millisecond {
		t.Fatalf("unexpected short read delay: %+v", s.ShortReadBackoff)
	}
	if s.ShortReadRetries != 100 || s.InitialCounter != 42 {
		t.Fatalf("expected defaults kept: %+v", s)
	}

	p := cfg.TransportParams()
	if p.Kind != transport.KindNetwork || p.Host != cfg.Host {
		t.Fatalf("unexpected params: %+v", p)
	}
	if p.Network.ConnectTimeout != 2*time.Second || p.Network.HandshakeTimeout != 5*time.Second {
		t.Fatalf("unexpected network params: %+v", p.Network)
	}
	if p.USB.VendorID != transport.VendorLEGO || p.USB.ProductID != 6 {
		t.Fatalf("unexpected usb params: %+v", p.USB)
	}
}

func TestLoadYAMLNestedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "ev3.yaml", `
transport: bluetooth
initial_counter: 0
bluetooth:
  serial_port: /dev/rfcomm0
  channel: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport != transport.KindRadio {
		t.Fatalf("unexpected transport: %q", cfg.Transport)
	}
	if cfg.Radio.SerialPort != "/dev/rfcomm0" || cfg.Radio.Channel != 2 {
		t.Fatalf("unexpected radio params: %+v", cfg.Radio)
	}
	if cfg.Radio.BaudRate != 115200 {
		t.Fatalf("expected default baud, got %d", cfg.Radio.BaudRate)
	}
	if cfg.Session.InitialCounter != 0 {
		t.Fatalf("expected explicit zero counter, got %d", cfg.Session.InitialCounter)
	}
	if cfg.Session.RadioSettle != 100*time.Millisecond {
		t.Fatalf("expected default settle, got %v", cfg.Session.RadioSettle)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		body string
		want error
	}{
		{"bad transport", `transport = "serial"`, transport.ErrInvalidParams},
		{"bad policy", `sync = "sometimes"`, session.ErrInvalidPolicy},
		{"counter range", `initial_counter = 70000`, ErrInvalidValue},
		{"negative retries", `short_read_retries = -1`, ErrInvalidValue},
		{"channel range", "[bluetooth]\nchannel = 0", ErrInvalidValue},
		{"vendor range", "[usb]\nvendor_id = 0", ErrInvalidValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.toml", tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if _, err := Load(writeFile(t, "bad.toml", `radio_settle = "soon"`)); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	testlog.Start(t)
	_, err := Load(writeFile(t, "ev3.json", `{}`))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestTemplatesLoadAsDefaults(t *testing.T) {
	testlog.Start(t)
	for _, format := range []string{"toml", "yaml"} {
		path := filepath.Join(t.TempDir(), "ev3."+format)
		if err := WriteTemplate(path, format, false); err != nil {
			t.Fatalf("write %s template: %v", format, err)
		}
		if err := WriteTemplate(path, format, false); err == nil {
			t.Fatalf("expected refusal to overwrite %s", path)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load %s template: %v", format, err)
		}
		def := Default()
		if cfg.Transport != def.Transport || cfg.Session != def.Session {
			t.Fatalf("%s template drifted from defaults: %+v", format, cfg)
		}
		if cfg.Radio != def.Radio || cfg.USB.VendorID != def.USB.VendorID || cfg.USB.ProductID != def.USB.ProductID {
			t.Fatalf("%s template drifted from defaults: %+v", format, cfg)
		}
		if cfg.Network.DiscoveryAddr != def.Network.DiscoveryAddr || cfg.Network.ConnectTimeout != def.Network.ConnectTimeout {
			t.Fatalf("%s template drifted from defaults: %+v", format, cfg.Network)
		}
	}
	if _, err := Template("ini"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
