package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DiscoveryPort = 3015
	AcceptToken   = "Accept:EV340"

	announcementBuf = 256

	// maxAckLen bounds the unlock acknowledgement, normally
	// "Accept:EV340\r\n\r\n".
	maxAckLen     = 64
	ackTerminator = "\r\n\r\n"
)

// NetworkParams configures the wifi discovery and unlock handshake.
type NetworkParams struct {
	// DiscoveryAddr is the local udp address the brick broadcasts to.
	DiscoveryAddr string
	// DiscoveryConn replaces the listener on DiscoveryAddr when set. It is
	// closed once discovery finishes.
	DiscoveryConn    net.PacketConn
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
}

func DefaultNetworkParams() NetworkParams {
	return NetworkParams{
		DiscoveryAddr:    fmt.Sprintf(":%d", DiscoveryPort),
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
	}
}

// Announcement is the parsed discovery broadcast of a brick.
type Announcement struct {
	Serial   string
	Port     int
	Name     string
	Protocol string
}

var announcementPattern = regexp.MustCompile(
	`Serial-Number: (\w*)\s*\n` +
		`\s*Port: (\d+)\s*\n` +
		`\s*Name: (\w+)\s*\n` +
		`\s*Protocol: (\w+)`)

// ParseAnnouncement extracts serial, port, name and protocol from a discovery
// datagram.
func ParseAnnouncement(text string) (Announcement, error) {
	m := announcementPattern.FindStringSubmatch(text)
	if m == nil {
		return Announcement{}, fmt.Errorf("%w: %q", ErrInvalidAnnouncement, text)
	}
	port, err := strconv.Atoi(m[2])
	if err != nil || port <= 0 || port > 65535 {
		return Announcement{}, fmt.Errorf("%w: port %q", ErrInvalidAnnouncement, m[2])
	}
	return Announcement{
		Serial:   m[1],
		Port:     port,
		Name:     m[3],
		Protocol: m[4],
	}, nil
}

// UnlockMessage is the request that makes the brick accept the tcp session.
func (a Announcement) UnlockMessage() string {
	return "GET /target?sn=" + a.Serial + "VMTP1.0\nProtocol: " + a.Protocol
}

func openNetwork(ctx context.Context, host string, p NetworkParams) (Link, error) {
	ann, addr, err := discover(ctx, host, p)
	if err != nil {
		return nil, linkErr(KindNetwork, "connect", err)
	}

	dialer := net.Dialer{Timeout: p.ConnectTimeout}
	target := net.JoinHostPort(addr.IP.String(), strconv.Itoa(ann.Port))
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, linkErr(KindNetwork, "connect", err)
	}
	if err := unlock(ctx, conn, ann, p.HandshakeTimeout); err != nil {
		conn.Close()
		return nil, linkErr(KindNetwork, "handshake", err)
	}
	log.Info().Msgf("transport.openNetwork connected name=%s serial=%s addr=%s", ann.Name, ann.Serial, target)
	return newStreamLink(KindNetwork, conn), nil
}

// discover waits for one announcement, checks it against host and answers on
// the same socket so the brick starts listening for tcp.
func discover(ctx context.Context, host string, p NetworkParams) (Announcement, *net.UDPAddr, error) {
	pc := p.DiscoveryConn
	if pc == nil {
		var lcfg net.ListenConfig
		var err error
		pc, err = lcfg.ListenPacket(ctx, "udp4", p.DiscoveryAddr)
		if err != nil {
			return Announcement{}, nil, err
		}
	}
	defer pc.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = pc.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, announcementBuf)
	n, from, err := pc.ReadFrom(buf)
	if err != nil {
		if ctx.Err() != nil {
			return Announcement{}, nil, ctx.Err()
		}
		return Announcement{}, nil, err
	}
	ann, err := ParseAnnouncement(string(buf[:n]))
	if err != nil {
		return Announcement{}, nil, err
	}
	log.Debug().Msgf("transport.discover announcement serial=%s port=%d name=%s protocol=%s from=%s",
		ann.Serial, ann.Port, ann.Name, ann.Protocol, from)

	if host != "" && NormalizeSerial(ann.Serial) != NormalizeSerial(host) {
		return Announcement{}, nil, fmt.Errorf("%w: found=%s want=%s", ErrConnectionMismatch, ann.Serial, host)
	}

	udp, ok := from.(*net.UDPAddr)
	if !ok {
		return Announcement{}, nil, fmt.Errorf("%w: unexpected peer address %T", ErrInvalidAnnouncement, from)
	}
	reply := &net.UDPAddr{IP: udp.IP, Port: ann.Port}
	if _, err := pc.WriteTo([]byte(" "), reply); err != nil {
		return Announcement{}, nil, err
	}
	return ann, udp, nil
}

func unlock(ctx context.Context, conn net.Conn, ann Announcement, timeout time.Duration) error {
	if dl := deadlineOr(ctx, timeout); !dl.IsZero() {
		_ = conn.SetDeadline(dl)
		defer conn.SetDeadline(time.Time{})
	}
	if _, err := io.WriteString(conn, ann.UnlockMessage()); err != nil {
		return err
	}
	ack, err := readAck(conn)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(ack, AcceptToken) {
		return fmt.Errorf("%w: reply %q from %s", ErrHandshakeRejected, ack, ann.Name)
	}
	return nil
}

// readAck reads the acknowledgement up to and including its blank line. It
// reads byte by byte so nothing of the first reply frame is consumed.
func readAck(r io.Reader) (string, error) {
	buf := make([]byte, 0, maxAckLen)
	var b [1]byte
	for len(buf) < maxAckLen {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return string(buf), err
		}
		buf = append(buf, b[0])
		if strings.HasSuffix(string(buf), ackTerminator) {
			return string(buf), nil
		}
	}
	return string(buf), fmt.Errorf("%w: unterminated reply %q", ErrHandshakeRejected, buf)
}
