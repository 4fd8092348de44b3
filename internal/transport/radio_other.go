//go:build !linux

package transport

import (
	"context"
	"io"
)

// Raw rfcomm sockets are Linux only; elsewhere pair the brick and use the
// serial port the OS binds for it.
func dialRFCOMM(ctx context.Context, addr [6]byte, channel uint8) (io.ReadWriteCloser, error) {
	return nil, ErrUnsupported
}
