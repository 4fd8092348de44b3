// Package frame lays out and parses brick command and reply frames.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command type bytes.
const (
	DirectCommandReply   byte = 0x00
	DirectCommandNoReply byte = 0x80
	SystemCommandReply   byte = 0x01
	SystemCommandNoReply byte = 0x81
)

// Reply type bytes.
const (
	DirectReply      byte = 0x02
	DirectReplyError byte = 0x04
	SystemReply      byte = 0x03
	SystemReplyError byte = 0x05
)

const (
	// LengthLen is the size of the little-endian length prefix.
	LengthLen = 2
	// HeaderLen covers length, counter and type.
	HeaderLen = 5
	// DirectHeaderLen adds the memory header of direct commands.
	DirectHeaderLen = HeaderLen + 2
	// SystemReplyHeaderLen adds the echoed system command and its status.
	SystemReplyHeaderLen = HeaderLen + 2

	MaxLocalMem  = 63
	MaxGlobalMem = 1023

	maxBody = 0xFFFF
)

var (
	ErrShortHeader       = errors.New("frame: short fixed header")
	ErrShortFrame        = errors.New("frame: frame shorter than declared length")
	ErrPayloadTooLarge   = errors.New("frame: payload too large")
	ErrMemoryOutOfRange  = errors.New("frame: memory size out of range")
	ErrInvalidDirectType = errors.New("frame: invalid direct command type")
	ErrInvalidSystemType = errors.New("frame: invalid system command type")
)

// Header is the fixed part shared by every command and reply.
type Header struct {
	Length  uint16
	Counter uint16
	Type    byte
}

// Size is the number of bytes the frame occupies on the wire.
func (h Header) Size() int {
	return int(h.Length) + LengthLen
}

// MemHeader packs local and global memory sizes into the direct command
// header field: local*1024 + global.
func MemHeader(localMem, globalMem int) (uint16, error) {
	if localMem < 0 || localMem > MaxLocalMem {
		return 0, fmt.Errorf("%w: local=%d", ErrMemoryOutOfRange, localMem)
	}
	if globalMem < 0 || globalMem > MaxGlobalMem {
		return 0, fmt.Errorf("%w: global=%d", ErrMemoryOutOfRange, globalMem)
	}
	return uint16(localMem*1024 + globalMem), nil
}

// ValidateDirect reports whether a direct command with these memory sizes
// and ops can be framed.
func ValidateDirect(localMem, globalMem int, ops []byte) error {
	if _, err := MemHeader(localMem, globalMem); err != nil {
		return err
	}
	if body := len(ops) + DirectHeaderLen - LengthLen; body > maxBody {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(ops))
	}
	return nil
}

// ValidateSystem reports whether cmd can be framed as a system command.
func ValidateSystem(cmd []byte) error {
	if body := len(cmd) + HeaderLen - LengthLen; body > maxBody {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(cmd))
	}
	return nil
}

// BuildDirect assembles a direct command frame around ops.
func BuildDirect(counter uint16, cmdType byte, localMem, globalMem int, ops []byte) ([]byte, error) {
	if cmdType != DirectCommandReply && cmdType != DirectCommandNoReply {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidDirectType, cmdType)
	}
	if err := ValidateDirect(localMem, globalMem, ops); err != nil {
		return nil, err
	}
	mem, _ := MemHeader(localMem, globalMem)
	body := len(ops) + DirectHeaderLen - LengthLen
	buf := make([]byte, DirectHeaderLen+len(ops))
	EncodeHeader(buf, Header{Length: uint16(body), Counter: counter, Type: cmdType})
	binary.LittleEndian.PutUint16(buf[5:7], mem)
	copy(buf[DirectHeaderLen:], ops)
	return buf, nil
}

// BuildSystem assembles a system command frame around cmd.
func BuildSystem(counter uint16, cmdType byte, cmd []byte) ([]byte, error) {
	if cmdType != SystemCommandReply && cmdType != SystemCommandNoReply {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidSystemType, cmdType)
	}
	if err := ValidateSystem(cmd); err != nil {
		return nil, err
	}
	body := len(cmd) + HeaderLen - LengthLen
	buf := make([]byte, HeaderLen+len(cmd))
	EncodeHeader(buf, Header{Length: uint16(body), Counter: counter, Type: cmdType})
	copy(buf[HeaderLen:], cmd)
	return buf, nil
}

// EncodeHeader writes h into the first HeaderLen bytes of buf.
func EncodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Length)
	binary.LittleEndian.PutUint16(buf[2:4], h.Counter)
	buf[4] = h.Type
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		Length:  binary.LittleEndian.Uint16(b[0:2]),
		Counter: binary.LittleEndian.Uint16(b[2:4]),
		Type:    b[4],
	}, nil
}

// ParseReply decodes the header of b and trims b to the declared frame size.
// Trailing bytes (report padding) are dropped.
func ParseReply(b []byte) (Header, []byte, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	if int(h.Length) < HeaderLen-LengthLen || h.Size() > len(b) {
		return Header{}, nil, fmt.Errorf("%w: declared=%d have=%d", ErrShortFrame, h.Size(), len(b))
	}
	return h, b[:h.Size()], nil
}

// ReadFrame reads exactly one length-prefixed frame from a byte stream.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [LengthLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(prefix[:]))
	buf := make([]byte, LengthLen+n)
	copy(buf, prefix[:])
	if n > 0 {
		if _, err := io.ReadFull(r, buf[LengthLen:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return buf, nil
}
