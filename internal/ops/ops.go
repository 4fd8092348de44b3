// Package ops builds operation byte sequences for direct and system
// commands. It covers what ev3ctl uses, not the full brick instruction set.
package ops

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/danmuck/ev3ctl/internal/protocol/lc"
)

// Direct command op-codes.
const (
	opUIRead      byte = 0x81
	opUIWrite     byte = 0x82
	opSound       byte = 0x94
	opInputDevice byte = 0x99
	opOutputStop  byte = 0xA3
	opOutputSpeed byte = 0xA5
	opOutputStart byte = 0xA6

	uiReadGetLBatt     byte = 0x12
	uiWriteLED         byte = 0x1B
	soundTone          byte = 0x01
	inputDeviceReadySI byte = 0x1D
)

// System command op-codes.
const (
	SysListFiles byte = 0x99
)

// Output ports, combinable as a bit mask.
const (
	PortA byte = 0x01
	PortB byte = 0x02
	PortC byte = 0x04
	PortD byte = 0x08
)

// LED patterns.
const (
	LEDOff byte = iota
	LEDGreen
	LEDRed
	LEDOrange
	LEDGreenFlash
	LEDRedFlash
	LEDOrangeFlash
	LEDGreenPulse
	LEDRedPulse
	LEDOrangePulse
)

var ErrInvalidArgument = errors.New("ops: invalid argument")

var ledNames = map[string]byte{
	"off":          LEDOff,
	"green":        LEDGreen,
	"red":          LEDRed,
	"orange":       LEDOrange,
	"green_flash":  LEDGreenFlash,
	"red_flash":    LEDRedFlash,
	"orange_flash": LEDOrangeFlash,
	"green_pulse":  LEDGreenPulse,
	"red_pulse":    LEDRedPulse,
	"orange_pulse": LEDOrangePulse,
}

func ParseLED(name string) (byte, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	p, ok := ledNames[key]
	if !ok {
		return 0, fmt.Errorf("%w: led pattern %q", ErrInvalidArgument, name)
	}
	return p, nil
}

// ParsePorts turns "B,C" or "bc" into an output port mask.
func ParsePorts(raw string) (byte, error) {
	var mask byte
	for _, r := range strings.ToUpper(raw) {
		switch r {
		case 'A':
			mask |= PortA
		case 'B':
			mask |= PortB
		case 'C':
			mask |= PortC
		case 'D':
			mask |= PortD
		case ',', ' ':
		default:
			return 0, fmt.Errorf("%w: port %q", ErrInvalidArgument, r)
		}
	}
	if mask == 0 {
		return 0, fmt.Errorf("%w: no ports in %q", ErrInvalidArgument, raw)
	}
	return mask, nil
}

// MotorInputPort maps a single output port to the input port that reads the
// motor's tacho.
func MotorInputPort(port byte) ([]byte, error) {
	switch port {
	case PortA:
		return lc.LCX(16), nil
	case PortB:
		return lc.LCX(17), nil
	case PortC:
		return lc.LCX(18), nil
	case PortD:
		return lc.LCX(19), nil
	default:
		return nil, fmt.Errorf("%w: output port 0x%02X", ErrInvalidArgument, port)
	}
}

func LED(pattern byte) []byte {
	return join([]byte{opUIWrite, uiWriteLED}, lc.LCX(int32(pattern)))
}

// Tone plays freq Hz for d milliseconds at volume 0..100.
func Tone(volume, freq, durationMS int32) []byte {
	return join([]byte{opSound, soundTone}, lc.LCX(volume), lc.LCX(freq), lc.LCX(durationMS))
}

// BatteryPercent reads the battery level into global memory offset 0
// (1 byte).
func BatteryPercent() ([]byte, int) {
	gv, _ := lc.GVX(0)
	return join([]byte{opUIRead, uiReadGetLBatt}, gv), 1
}

// ReadSensorSI reads one SI value of the sensor on input port 0..3 as a
// float32 into global memory offset 0 (4 bytes).
func ReadSensorSI(port, mode int32) ([]byte, int, error) {
	if port < 0 || port > 3 {
		return nil, 0, fmt.Errorf("%w: input port %d", ErrInvalidArgument, port)
	}
	gv, _ := lc.GVX(0)
	return join(
		[]byte{opInputDevice, inputDeviceReadySI},
		lc.LCX(0),    // layer
		lc.LCX(port), // port number
		lc.LCX(0),    // type: keep
		lc.LCX(mode),
		lc.LCX(1), // values
		gv,
	), 4, nil
}

// ReadTacho reads the position in degrees of the motor on a single output
// port into global memory offset 0 as a float32 (4 bytes).
func ReadTacho(port byte) ([]byte, int, error) {
	in, err := MotorInputPort(port)
	if err != nil {
		return nil, 0, err
	}
	gv, _ := lc.GVX(0)
	return join(
		[]byte{opInputDevice, inputDeviceReadySI},
		lc.LCX(0),
		in,
		lc.LCX(7), // large motor
		lc.LCX(0), // degrees
		lc.LCX(1),
		gv,
	), 4, nil
}

// DecodeFloat32 reads a little-endian float32 from global memory.
func DecodeFloat32(mem []byte) (float32, error) {
	if len(mem) < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes, have %d", ErrInvalidArgument, len(mem))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(mem[:4])), nil
}

// Speed sets and starts ports at speed -100..100.
func Speed(ports byte, speed int32) []byte {
	return join(
		[]byte{opOutputSpeed}, lc.LCX(0), lc.LCX(int32(ports)), lc.LCX(speed),
		[]byte{opOutputStart}, lc.LCX(0), lc.LCX(int32(ports)),
	)
}

func Stop(ports byte, brake bool) []byte {
	var b int32
	if brake {
		b = 1
	}
	return join([]byte{opOutputStop}, lc.LCX(0), lc.LCX(int32(ports)), lc.LCX(b))
}

// ListFiles is the system command listing path, reading at most maxBytes of
// the listing in the first reply.
func ListFiles(path string, maxBytes uint16) []byte {
	buf := make([]byte, 3, 3+len(path)+1)
	buf[0] = SysListFiles
	binary.LittleEndian.PutUint16(buf[1:3], maxBytes)
	buf = append(buf, path...)
	return append(buf, 0x00)
}

// Listing is the decoded reply of ListFiles.
type Listing struct {
	Status byte
	Size   uint32
	Handle byte
	Data   string
}

// ParseListFiles decodes a system reply payload: echoed command, status,
// list size (u32), handle, listing text.
func ParseListFiles(payload []byte) (Listing, error) {
	if len(payload) < 7 || payload[0] != SysListFiles {
		return Listing{}, fmt.Errorf("%w: list files reply % X", ErrInvalidArgument, payload)
	}
	return Listing{
		Status: payload[1],
		Size:   binary.LittleEndian.Uint32(payload[2:6]),
		Handle: payload[6],
		Data:   string(payload[7:]),
	}, nil
}

func join(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
