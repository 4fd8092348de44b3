package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/ev3ctl/internal/observability"
	"github.com/danmuck/ev3ctl/internal/protocol/frame"
	"github.com/danmuck/ev3ctl/internal/transport"
)

type commandKind string

const (
	kindDirect commandKind = "direct"
	kindSystem commandKind = "system"
)

// conn is the state every clone of an engine shares.
type conn struct {
	link    transport.Link
	counter *Counter
	stash   *ReplyStash

	// readMu admits one reader to the wire at a time. It is the only lock
	// held across a transport read.
	readMu sync.Mutex

	mu   sync.Mutex
	refs int
}

func (c *conn) release() error {
	c.mu.Lock()
	c.refs--
	last := c.refs == 0
	c.mu.Unlock()
	if !last || c.link == nil {
		return nil
	}
	return c.link.Close()
}

// Engine sends direct and system commands to one brick and correlates the
// replies by message counter.
type Engine struct {
	conn   *conn
	cfg    Config
	policy atomic.Int32

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// Reply is the outcome of a send or wait.
type Reply struct {
	Counter uint16
	// Type is the reply type byte; zero when the send did not wait.
	Type byte
	// Frame is the complete reply frame; nil when the send did not wait.
	Frame []byte
}

// Awaited reports whether the reply frame was received.
func (r Reply) Awaited() bool {
	return r.Frame != nil
}

// Payload is the reply section after the fixed header: global memory for
// direct replies, echoed command, status and data for system replies.
func (r Reply) Payload() []byte {
	if len(r.Frame) < frame.HeaderLen {
		return nil
	}
	return r.Frame[frame.HeaderLen:]
}

// New wraps an open link. The engine owns the link and closes it on Close.
func New(link transport.Link, cfg Config) *Engine {
	if cfg.ReceiveBuffer <= 0 {
		cfg.ReceiveBuffer = DefaultConfig().ReceiveBuffer
	}
	e := &Engine{
		conn: &conn{
			link:    link,
			counter: NewCounter(cfg.InitialCounter),
			stash:   NewReplyStash(),
			refs:    1,
		},
		cfg: cfg,
	}
	e.policy.Store(int32(cfg.Policy))
	return e
}

// Dial opens the link described by params and wraps it in an engine.
func Dial(ctx context.Context, params transport.Params, cfg Config) (*Engine, error) {
	link, err := transport.Open(ctx, params)
	if err != nil {
		observability.RecordLinkError(string(params.Kind), "connect")
		return nil, err
	}
	return New(link, cfg), nil
}

// Clone returns an engine on the same link, counter and stash with its own
// sync policy. The link is closed when the last sharer closes.
// Cloning a closed engine, or one whose link is already released, yields a
// closed engine.
func (e *Engine) Clone() *Engine {
	c := &Engine{conn: e.conn, cfg: e.cfg}
	c.policy.Store(e.policy.Load())

	e.conn.mu.Lock()
	live := !e.closed.Load() && e.conn.refs > 0
	if live {
		e.conn.refs++
	}
	e.conn.mu.Unlock()
	if !live {
		c.closed.Store(true)
		c.closeOnce.Do(func() {})
	}
	return c
}

func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = e.conn.release()
	})
	return e.closeErr
}

func (e *Engine) SyncPolicy() SyncPolicy {
	return SyncPolicy(e.policy.Load())
}

func (e *Engine) SetSyncPolicy(p SyncPolicy) {
	e.policy.Store(int32(p))
}

// Kind names the link under the engine.
func (e *Engine) Kind() transport.Kind {
	if e.conn.link == nil {
		return ""
	}
	return e.conn.link.Kind()
}

// Pending lists replies read for counters that have not been waited on yet.
func (e *Engine) Pending() []PendingReply {
	return e.conn.stash.List()
}

// SendDirect sends ops as a direct command reserving localMem and globalMem
// bytes. Depending on the sync policy it returns as soon as the frame is
// written (Reply.Awaited is false) or once the matching reply arrived.
func (e *Engine) SendDirect(ctx context.Context, ops []byte, localMem, globalMem int) (Reply, error) {
	if err := e.ready(ctx); err != nil {
		return Reply{}, err
	}
	if err := frame.ValidateDirect(localMem, globalMem, ops); err != nil {
		return Reply{}, err
	}
	policy := e.SyncPolicy()
	cmdType := frame.DirectCommandNoReply
	if globalMem > 0 || policy == PolicySynchronous {
		cmdType = frame.DirectCommandReply
	}

	counter := e.conn.counter.Next()
	buf, err := frame.BuildDirect(counter, cmdType, localMem, globalMem, ops)
	if err != nil {
		return Reply{}, err
	}
	if err := e.send(ctx, kindDirect, counter, buf); err != nil {
		return Reply{}, err
	}
	if (cmdType == frame.DirectCommandNoReply && policy != PolicySynchronous) || policy == PolicyAsynchronous {
		return Reply{Counter: counter}, nil
	}
	return e.WaitDirect(ctx, counter)
}

// SendSystem sends cmd as a system command. Without wantReply, or under the
// asynchronous policy, it returns once the frame is written.
func (e *Engine) SendSystem(ctx context.Context, cmd []byte, wantReply bool) (Reply, error) {
	if err := e.ready(ctx); err != nil {
		return Reply{}, err
	}
	if err := frame.ValidateSystem(cmd); err != nil {
		return Reply{}, err
	}
	cmdType := frame.SystemCommandNoReply
	if wantReply {
		cmdType = frame.SystemCommandReply
	}

	counter := e.conn.counter.Next()
	buf, err := frame.BuildSystem(counter, cmdType, cmd)
	if err != nil {
		return Reply{}, err
	}
	if err := e.send(ctx, kindSystem, counter, buf); err != nil {
		return Reply{}, err
	}
	if !wantReply || e.SyncPolicy() == PolicyAsynchronous {
		return Reply{Counter: counter}, nil
	}
	return e.WaitSystem(ctx, counter)
}

func (e *Engine) ready(ctx context.Context) error {
	if e.closed.Load() || e.conn.link == nil {
		return ErrNotConnected
	}
	return ctx.Err()
}

func (e *Engine) send(ctx context.Context, kind commandKind, counter uint16, buf []byte) (err error) {
	link := e.conn.link
	_, span := observability.StartCommandSpan(ctx, "ev3."+string(kind)+".send", string(link.Kind()), counter)
	defer func() { observability.EndSpan(span, err) }()

	wantReply := buf[4] == frame.DirectCommandReply || buf[4] == frame.SystemCommandReply
	if ev := log.Debug(); ev.Enabled() {
		ev.Msgf("session.Engine.send link=%s kind=%s counter=%d frame=0x%s", link.Kind(), kind, counter, formatFrame(buf, kind == kindDirect))
	}
	if err := link.Send(buf); err != nil {
		observability.RecordLinkError(string(link.Kind()), "send")
		return fmt.Errorf("send %s command counter=%d: %w", kind, counter, err)
	}
	observability.RecordCommand(string(link.Kind()), string(kind), wantReply)
	return nil
}
