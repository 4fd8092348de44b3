package transport

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// RadioParams configures a bluetooth link. When SerialPort is set the link
// uses an already bound rfcomm tty (/dev/rfcomm0, /dev/tty.EV3-SerialPort)
// instead of opening its own socket.
type RadioParams struct {
	Channel    uint8
	SerialPort string
	BaudRate   int
}

func DefaultRadioParams() RadioParams {
	return RadioParams{
		Channel:  1,
		BaudRate: 115200,
	}
}

func openRadio(ctx context.Context, host string, p RadioParams) (Link, error) {
	if strings.TrimSpace(p.SerialPort) != "" {
		return openRadioSerial(p)
	}
	if strings.TrimSpace(host) == "" {
		return nil, linkErr(KindRadio, "connect", fmt.Errorf("%w: bluetooth needs host or serial port", ErrInvalidParams))
	}
	addr, err := parseBDAddr(host)
	if err != nil {
		return nil, linkErr(KindRadio, "connect", err)
	}
	if p.Channel == 0 {
		p.Channel = 1
	}
	rw, err := dialRFCOMM(ctx, addr, p.Channel)
	if err != nil {
		return nil, linkErr(KindRadio, "connect", err)
	}
	log.Info().Msgf("transport.openRadio connected host=%s channel=%d", host, p.Channel)
	return newStreamLink(KindRadio, rw), nil
}

func openRadioSerial(p RadioParams) (Link, error) {
	baud := p.BaudRate
	if baud == 0 {
		baud = DefaultRadioParams().BaudRate
	}
	port, err := serial.Open(p.SerialPort, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, linkErr(KindRadio, "connect", fmt.Errorf("open serial port %s: %w", p.SerialPort, err))
	}
	log.Info().Msgf("transport.openRadioSerial connected port=%s", p.SerialPort)
	return newStreamLink(KindRadio, port), nil
}

// parseBDAddr converts a MAC into the little-endian byte order the kernel
// expects in a bluetooth socket address.
func parseBDAddr(host string) ([6]byte, error) {
	var out [6]byte
	raw := strings.TrimSpace(host)
	if !strings.Contains(raw, ":") && len(raw) == 12 {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(raw[i : i+2])
		}
		raw = b.String()
	}
	hw, err := net.ParseMAC(raw)
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("%w: bluetooth address %q", ErrInvalidParams, host)
	}
	for i := 0; i < 6; i++ {
		out[i] = hw[5-i]
	}
	return out, nil
}
