package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind names the physical link of a connection.
type Kind string

const (
	KindRadio   Kind = "bluetooth"
	KindUSB     Kind = "usb"
	KindNetwork Kind = "wifi"
)

// ParseKind accepts the kind names plus a few common aliases.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bluetooth", "bt", "radio":
		return KindRadio, nil
	case "usb":
		return KindUSB, nil
	case "wifi", "network", "tcp":
		return KindNetwork, nil
	default:
		return "", fmt.Errorf("%w: unknown transport %q", ErrInvalidParams, raw)
	}
}

// Link is an open byte channel to one brick.
//
// Receive returns at most one frame-worth of bytes. Report oriented links may
// return a short or empty read when nothing is pending; the caller decides
// whether to retry.
type Link interface {
	Kind() Kind
	Send(p []byte) error
	Receive(max int) ([]byte, error)
	Close() error
}

// Params selects and parametrizes a link.
type Params struct {
	Kind Kind
	// Host identifies the target brick: its bluetooth MAC, which doubles as
	// the serial number reported over usb and wifi. Optional except for
	// radio sockets.
	Host    string
	Radio   RadioParams
	Network NetworkParams
	USB     USBParams
}

// DefaultParams returns params for kind with link defaults filled in.
func DefaultParams(kind Kind) Params {
	return Params{
		Kind:    kind,
		Radio:   DefaultRadioParams(),
		Network: DefaultNetworkParams(),
		USB:     DefaultUSBParams(),
	}
}

// Open establishes the link described by p.
func Open(ctx context.Context, p Params) (Link, error) {
	switch p.Kind {
	case KindRadio:
		return openRadio(ctx, p.Host, p.Radio)
	case KindNetwork:
		return openNetwork(ctx, p.Host, p.Network)
	case KindUSB:
		return openUSB(p.Host, p.USB)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidParams, p.Kind)
	}
}

// NormalizeSerial strips MAC separators and upper-cases s so that
// "00:16:53:42:2b:99" and "001653422B99" compare equal.
func NormalizeSerial(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ":", ""))
}

func deadlineOr(ctx context.Context, d time.Duration) time.Time {
	var t time.Time
	if d > 0 {
		t = time.Now().Add(d)
	}
	if dl, ok := ctx.Deadline(); ok && (t.IsZero() || dl.Before(t)) {
		t = dl
	}
	return t
}
