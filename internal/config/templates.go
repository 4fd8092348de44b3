package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a commented example config in format (toml or yaml).
func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "toml":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `# ev3ctl config
transport = "usb"          # usb | bluetooth | wifi
host = ""                  # brick MAC / serial number
sync = "STD"               # STD | SYNC | ASYNC
metrics_addr = ""          # e.g. "127.0.0.1:9464"

initial_counter = 42
receive_buffer = 1024
short_read_retries = 100
short_read_delay = "10ms"
radio_settle = "100ms"

[bluetooth]
channel = 1
serial_port = ""           # /dev/rfcomm0 to reuse a bound tty
baud_rate = 115200

[wifi]
discovery_addr = ":3015"
connect_timeout = "5s"
handshake_timeout = "5s"

[usb]
vendor_id = 0x0694
product_id = 0x0005
`

const yamlTemplate = `# ev3ctl config
transport: usb
host: ""
sync: STD
metrics_addr: ""

initial_counter: 42
receive_buffer: 1024
short_read_retries: 100
short_read_delay: 10ms
radio_settle: 100ms

bluetooth:
  channel: 1
  serial_port: ""
  baud_rate: 115200

wifi:
  discovery_addr: ":3015"
  connect_timeout: 5s
  handshake_timeout: 5s

usb:
  vendor_id: 0x0694
  product_id: 0x0005
`
