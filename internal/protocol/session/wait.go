package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/ev3ctl/internal/observability"
	"github.com/danmuck/ev3ctl/internal/protocol/frame"
	"github.com/danmuck/ev3ctl/internal/transport"
)

// WaitDirect blocks until the reply to the direct command with counter
// arrives, either from the stash or the wire. A reply with an error status
// is returned as *DirectCommandError.
//
// ctx is checked between reads; a read already in progress is not
// interrupted.
func (e *Engine) WaitDirect(ctx context.Context, counter uint16) (Reply, error) {
	return e.wait(ctx, kindDirect, counter)
}

// WaitSystem is WaitDirect for system commands; failures are returned as
// *SystemCommandError.
func (e *Engine) WaitSystem(ctx context.Context, counter uint16) (Reply, error) {
	return e.wait(ctx, kindSystem, counter)
}

func (e *Engine) wait(ctx context.Context, kind commandKind, counter uint16) (reply Reply, err error) {
	if err := e.ready(ctx); err != nil {
		return Reply{}, err
	}
	link := string(e.conn.link.Kind())
	ctx, span := observability.StartCommandSpan(ctx, "ev3."+string(kind)+".wait", link, counter)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	raw, err := e.awaitFrame(ctx, counter)
	if err != nil {
		return Reply{}, err
	}
	reply, err = classify(kind, counter, raw)
	observability.RecordReply(link, string(kind), err == nil, time.Since(start))
	return reply, err
}

// awaitFrame returns the raw frame for counter. Frames for other counters
// read along the way go to the stash.
func (e *Engine) awaitFrame(ctx context.Context, counter uint16) ([]byte, error) {
	c := e.conn
	if raw, ok := c.stash.Take(counter); ok {
		return raw, nil
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()
	// The previous reader may have stashed our reply while we queued.
	if raw, ok := c.stash.Take(counter); ok {
		return raw, nil
	}

	kind := c.link.Kind()
	if kind == transport.KindRadio && e.cfg.RadioSettle > 0 {
		if err := sleepCtx(ctx, e.cfg.RadioSettle); err != nil {
			return nil, err
		}
	}

	shortReads := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := c.link.Receive(e.cfg.ReceiveBuffer)
		if err != nil {
			observability.RecordLinkError(string(kind), "receive")
			return nil, fmt.Errorf("wait counter=%d: %w", counter, err)
		}
		h, raw, err := frame.ParseReply(b)
		if err != nil {
			shortReads++
			observability.RecordShortRead(string(kind))
			if shortReads > e.cfg.ShortReadRetries {
				return nil, fmt.Errorf("%w: counter=%d reads=%d last=%v", ErrRetriesExhausted, counter, shortReads, err)
			}
			if err := sleepCtx(ctx, e.cfg.ShortReadBackoff.Delay(shortReads, nil)); err != nil {
				return nil, err
			}
			continue
		}
		if ev := log.Debug(); ev.Enabled() {
			ev.Msgf("session.Engine.awaitFrame link=%s want=%d got=%d frame=0x%s", kind, counter, h.Counter, formatFrame(raw, false))
		}
		if h.Counter == counter {
			return raw, nil
		}
		if err := c.stash.Put(h.Counter, raw); err != nil {
			log.Error().Msgf("session.Engine.awaitFrame stash failed link=%s err=%v", kind, err)
			return nil, err
		}
		observability.RecordStashed(string(kind))
	}
}

func classify(kind commandKind, counter uint16, raw []byte) (Reply, error) {
	h, err := frame.DecodeHeader(raw)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{Counter: counter, Type: h.Type, Frame: raw}
	switch kind {
	case kindDirect:
		if h.Type != frame.DirectReply {
			return reply, &DirectCommandError{Counter: counter, Status: h.Type, Frame: raw}
		}
	case kindSystem:
		if h.Type != frame.SystemReply {
			se := &SystemCommandError{Counter: counter, Status: h.Type, Frame: raw}
			if len(raw) > frame.HeaderLen {
				se.Command = raw[frame.HeaderLen]
			}
			if len(raw) > frame.HeaderLen+1 {
				se.Status = raw[frame.HeaderLen+1]
			}
			return reply, se
		}
	}
	return reply, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// formatFrame renders b as |length|counter|type|mem|payload| hex groups.
// The memory group is only split out for direct commands.
func formatFrame(b []byte, direct bool) string {
	cuts := []int{0, 2, 4, 5}
	if direct {
		cuts = append(cuts, 7)
	}
	var sb strings.Builder
	sb.WriteByte('|')
	for i, start := range cuts {
		if start >= len(b) {
			break
		}
		end := len(b)
		if i+1 < len(cuts) && cuts[i+1] < end {
			end = cuts[i+1]
		}
		for j := start; j < end; j++ {
			if j > start {
				sb.WriteByte(':')
			}
			fmt.Fprintf(&sb, "%02X", b[j])
		}
		sb.WriteByte('|')
	}
	return sb.String()
}
