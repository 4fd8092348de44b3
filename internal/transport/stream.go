package transport

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/danmuck/ev3ctl/internal/protocol/frame"
)

// streamLink frames a byte stream (rfcomm, serial tty, tcp) by the length
// prefix of each reply.
type streamLink struct {
	kind Kind
	rw   io.ReadWriteCloser
	r    *bufio.Reader

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newStreamLink(kind Kind, rw io.ReadWriteCloser) *streamLink {
	return &streamLink{
		kind: kind,
		rw:   rw,
		r:    bufio.NewReader(rw),
	}
}

func (l *streamLink) Kind() Kind {
	return l.kind
}

func (l *streamLink) Send(p []byte) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	for len(p) > 0 {
		n, err := l.rw.Write(p)
		if err != nil {
			return linkErr(l.kind, "send", err)
		}
		p = p[n:]
	}
	return nil
}

func (l *streamLink) Receive(max int) ([]byte, error) {
	b, err := frame.ReadFrame(l.r)
	if err != nil {
		return nil, linkErr(l.kind, "receive", err)
	}
	if max > 0 && len(b) > max {
		return nil, linkErr(l.kind, "receive", fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(b), max))
	}
	return b, nil
}

func (l *streamLink) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = linkErr(l.kind, "close", l.rw.Close())
	})
	return l.closeErr
}
