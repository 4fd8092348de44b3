package session

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/danmuck/ev3ctl/internal/protocol/frame"
	"github.com/danmuck/ev3ctl/internal/transport"
)

// fakeLink scripts what the brick sends back. Frames queued on inbound are
// returned one per Receive; onSend may queue replies in response to writes.
type fakeLink struct {
	kind    transport.Kind
	inbound chan []byte

	mu       sync.Mutex
	sent     [][]byte
	receives int
	firstRx  time.Time
	closed   int
	onSend   func(l *fakeLink, frame []byte)
}

func newFakeLink() *fakeLink {
	return &fakeLink{kind: transport.KindUSB, inbound: make(chan []byte, 64)}
}

func (l *fakeLink) Kind() transport.Kind {
	return l.kind
}

func (l *fakeLink) Send(p []byte) error {
	l.mu.Lock()
	l.sent = append(l.sent, append([]byte(nil), p...))
	hook := l.onSend
	l.mu.Unlock()
	if hook != nil {
		hook(l, p)
	}
	return nil
}

func (l *fakeLink) Receive(max int) ([]byte, error) {
	l.mu.Lock()
	l.receives++
	if l.firstRx.IsZero() {
		l.firstRx = time.Now()
	}
	l.mu.Unlock()
	b, ok := <-l.inbound
	if !ok {
		return nil, &transport.LinkError{Kind: l.kind, Op: "receive", Err: io.EOF}
	}
	return b, nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

func (l *fakeLink) sentFrames() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.sent...)
}

func (l *fakeLink) firstReceive() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.firstRx
}

func (l *fakeLink) receiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.receives
}

func replyFrame(counter uint16, typ byte, data ...byte) []byte {
	buf := make([]byte, frame.HeaderLen+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(buf)-frame.LengthLen))
	binary.LittleEndian.PutUint16(buf[2:4], counter)
	buf[4] = typ
	copy(buf[frame.HeaderLen:], data)
	return buf
}

func sentCounter(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b[2:4])
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialCounter = 1
	cfg.ShortReadBackoff = BackoffConfig{}
	cfg.RadioSettle = 0
	return cfg
}
