package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/ev3ctl/internal/protocol/frame"
	"github.com/danmuck/ev3ctl/internal/protocol/session"
	"github.com/danmuck/ev3ctl/internal/testutil/testlog"
	"github.com/danmuck/ev3ctl/internal/transport"
)

// brickLink answers every reply-requesting command with respond's payload.
type brickLink struct {
	inbound chan []byte
	respond func(cmd []byte) (byte, []byte)

	mu   sync.Mutex
	sent [][]byte
}

func newBrickLink(respond func(cmd []byte) (byte, []byte)) *brickLink {
	return &brickLink{inbound: make(chan []byte, 16), respond: respond}
}

func (l *brickLink) Kind() transport.Kind { return transport.KindUSB }

func (l *brickLink) Send(p []byte) error {
	l.mu.Lock()
	l.sent = append(l.sent, append([]byte(nil), p...))
	l.mu.Unlock()
	h, err := frame.DecodeHeader(p)
	if err != nil {
		return err
	}
	if h.Type != frame.DirectCommandReply && h.Type != frame.SystemCommandReply {
		return nil
	}
	typ, data := l.respond(p)
	out := make([]byte, frame.HeaderLen+len(data))
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(out)-frame.LengthLen))
	binary.LittleEndian.PutUint16(out[2:4], h.Counter)
	out[4] = typ
	copy(out[frame.HeaderLen:], data)
	l.inbound <- out
	return nil
}

func (l *brickLink) Receive(max int) ([]byte, error) {
	b, ok := <-l.inbound
	if !ok {
		return nil, io.EOF
	}
	return b, nil
}

func (l *brickLink) Close() error { return nil }

func (l *brickLink) sentFrames() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.sent...)
}

func useBrick(t *testing.T, link *brickLink) {
	t.Helper()
	prev := dialEngine
	dialEngine = func(ctx context.Context, p transport.Params, cfg session.Config) (*session.Engine, error) {
		return session.New(link, cfg), nil
	}
	t.Cleanup(func() { dialEngine = prev })
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBatteryCommandUnderEachPolicy(t *testing.T) {
	testlog.Start(t)
	for _, policy := range []string{"STD", "SYNC", "ASYNC"} {
		link := newBrickLink(func([]byte) (byte, []byte) { return frame.DirectReply, []byte{85} })
		useBrick(t, link)
		out, err := runCLI(t, "battery", "--sync", policy)
		if err != nil {
			t.Fatalf("%s: battery: %v", policy, err)
		}
		if out != "85%\n" {
			t.Fatalf("%s: unexpected output %q", policy, out)
		}
	}
}

func TestLEDCommandSendsNoReplyFrame(t *testing.T) {
	testlog.Start(t)
	link := newBrickLink(func([]byte) (byte, []byte) { return frame.DirectReply, nil })
	useBrick(t, link)
	if _, err := runCLI(t, "led", "red_flash"); err != nil {
		t.Fatalf("led: %v", err)
	}
	sent := link.sentFrames()
	if len(sent) != 1 {
		t.Fatalf("expected one frame, got %d", len(sent))
	}
	want := []byte{0x08, 0x00, 0x2A, 0x00, frame.DirectCommandNoReply, 0x00, 0x00, 0x82, 0x1B, 0x05}
	if !bytes.Equal(sent[0], want) {
		t.Fatalf("led frame got=% X want=% X", sent[0], want)
	}
}

func TestLsCommandPrintsListing(t *testing.T) {
	testlog.Start(t)
	link := newBrickLink(func(cmd []byte) (byte, []byte) {
		return frame.SystemReply, append([]byte{0x99, 0x08, 0x0B, 0x00, 0x00, 0x00, 0x00}, "prjs/\nBrkProg/\n"...)
	})
	useBrick(t, link)
	out, err := runCLI(t, "ls", "/home/root/lms2012/")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if out != "prjs/\nBrkProg/\n" {
		t.Fatalf("unexpected listing %q", out)
	}
	sent := link.sentFrames()[0]
	if sent[4] != frame.SystemCommandReply || sent[5] != 0x99 {
		t.Fatalf("unexpected ls frame % X", sent)
	}
}

func TestLsCommandReportsBrickError(t *testing.T) {
	testlog.Start(t)
	link := newBrickLink(func([]byte) (byte, []byte) {
		return frame.SystemReplyError, []byte{0x99, 0x05}
	})
	useBrick(t, link)
	_, err := runCLI(t, "ls", "/nope/")
	se, ok := session.AsSystemCommandError(err)
	if !ok {
		t.Fatalf("expected SystemCommandError, got %v", err)
	}
	if se.Command != 0x99 || se.Status != 0x05 {
		t.Fatalf("unexpected error fields: %+v", se)
	}
}

func TestRejectsBadArguments(t *testing.T) {
	testlog.Start(t)
	useBrick(t, newBrickLink(func([]byte) (byte, []byte) { return frame.DirectReply, nil }))
	for _, args := range [][]string{
		{"led", "purple"},
		{"motor", "B", "150"},
		{"tone", "440"},
		{"battery", "--sync", "maybe"},
		{"tacho", "BC"},
	} {
		if _, err := runCLI(t, args...); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

func TestFollowDrivesMotorsAndStops(t *testing.T) {
	testlog.Start(t)
	readings := []float32{10, 20, 30}
	var mu sync.Mutex
	link := newBrickLink(func([]byte) (byte, []byte) {
		mu.Lock()
		defer mu.Unlock()
		v := readings[0]
		if len(readings) > 1 {
			readings = readings[1:]
		}
		mem := make([]byte, 4)
		binary.LittleEndian.PutUint32(mem, math.Float32bits(v))
		return frame.DirectReply, mem
	})
	cfg := session.DefaultConfig()
	cfg.InitialCounter = 1
	eng := session.New(link, cfg)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	fo := followOptions{sensorPort: 4, setpoint: 20, kp: 2, interval: 20 * time.Millisecond}
	if err := follow(ctx, eng, 0x06, fo); err != nil {
		t.Fatalf("follow: %v", err)
	}

	sent := link.sentFrames()
	if len(sent) < 4 {
		t.Fatalf("expected sensor reads and speed commands, got %d frames", len(sent))
	}
	// First speed command follows the first reading: 2*(20-10) = 20.
	if ops := sent[1][frame.DirectHeaderLen:]; ops[0] != 0xA5 || ops[3] != 20 {
		t.Fatalf("unexpected first speed command % X", sent[1])
	}
	last := sent[len(sent)-1][frame.DirectHeaderLen:]
	if !bytes.Equal(last, []byte{0xA3, 0x00, 0x06, 0x01}) {
		t.Fatalf("expected brake stop last, got % X", last)
	}
}

func TestClampSpeed(t *testing.T) {
	cases := map[float64]int32{-250: -100, -12.4: -12, 0: 0, 49.5: 50, 180: 100, math.NaN(): 0}
	for in, want := range cases {
		if got := clampSpeed(in); got != want {
			t.Fatalf("clampSpeed(%v) got=%d want=%d", in, got, want)
		}
	}
}
