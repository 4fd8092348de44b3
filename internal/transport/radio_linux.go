//go:build linux

package transport

import (
	"context"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

func dialRFCOMM(ctx context.Context, addr [6]byte, channel uint8) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr, Channel: channel}); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("connect", err)
	}
	return os.NewFile(uintptr(fd), "rfcomm"), nil
}
