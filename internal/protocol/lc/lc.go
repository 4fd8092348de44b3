// Package lc encodes and decodes the brick's compact operand literals.
//
// Ownership boundary:
// - local constants (LC0/LC1/LC2/LC4) and string constants (LCS)
// - local variable references (LV0/LV1/LV2/LV4)
// - global variable references (GV0/GV1/GV2/GV4)
package lc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	tagLC1 byte = 0x81
	tagLC2 byte = 0x82
	tagLC4 byte = 0x83
	tagLCS byte = 0x84

	prefixLV0 byte = 0x40
	prefixGV0 byte = 0x60
	tagLV     byte = 0xC0
	tagGV     byte = 0xE0

	shortMask byte = 0x3F
	longMask  byte = 0x80
	varMask   byte = 0x40
	refMask   byte = 0x1F
)

var (
	ErrNegativeIndex   = errors.New("lc: negative variable index")
	ErrIndexOutOfRange = errors.New("lc: variable index out of range")
	ErrShortLiteral    = errors.New("lc: short literal")
	ErrNotConstant     = errors.New("lc: literal is not a constant")
	ErrNotLocalVar     = errors.New("lc: literal is not a local variable")
	ErrNotGlobalVar    = errors.New("lc: literal is not a global variable")
	ErrUnterminated    = errors.New("lc: unterminated string constant")
)

// LCX encodes value with the narrowest constant width that holds it.
func LCX(value int32) []byte {
	switch {
	case value >= -32 && value < 0:
		return []byte{shortMask & byte(value+64)}
	case value >= 0 && value < 32:
		return []byte{byte(value)}
	case value >= -127 && value <= 127:
		return []byte{tagLC1, byte(int8(value))}
	case value >= -32767 && value <= 32767:
		buf := []byte{tagLC2, 0, 0}
		binary.LittleEndian.PutUint16(buf[1:], uint16(int16(value)))
		return buf
	default:
		buf := []byte{tagLC4, 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(buf[1:], uint32(value))
		return buf
	}
}

// LCS encodes a null-terminated string constant. s must not contain NUL.
func LCS(s string) []byte {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, tagLCS)
	buf = append(buf, s...)
	return append(buf, 0x00)
}

// LVX encodes a reference to local memory at byte offset index.
func LVX(index int) ([]byte, error) {
	return encodeRef(index, prefixLV0, tagLV)
}

// GVX encodes a reference to global memory at byte offset index.
func GVX(index int) ([]byte, error) {
	return encodeRef(index, prefixGV0, tagGV)
}

func encodeRef(index int, shortPrefix, longTag byte) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeIndex, index)
	}
	if uint64(index) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	switch {
	case index < 32:
		return []byte{shortPrefix | byte(index)}, nil
	case index < 256:
		return []byte{longTag | 0x01, byte(index)}, nil
	case index < 65536:
		buf := []byte{longTag | 0x02, 0, 0}
		binary.LittleEndian.PutUint16(buf[1:], uint16(index))
		return buf, nil
	default:
		buf := []byte{longTag | 0x03, 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(buf[1:], uint32(index))
		return buf, nil
	}
}

// DecodeLC decodes one constant literal and reports how many bytes it used.
func DecodeLC(b []byte) (int32, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrShortLiteral
	}
	head := b[0]
	if head&longMask == 0 {
		if head&varMask != 0 {
			return 0, 0, ErrNotConstant
		}
		if head&0x20 != 0 {
			return int32(head&shortMask) - 64, 1, nil
		}
		return int32(head), 1, nil
	}
	switch head {
	case tagLC1:
		if len(b) < 2 {
			return 0, 0, ErrShortLiteral
		}
		return int32(int8(b[1])), 2, nil
	case tagLC2:
		if len(b) < 3 {
			return 0, 0, ErrShortLiteral
		}
		return int32(int16(binary.LittleEndian.Uint16(b[1:3]))), 3, nil
	case tagLC4:
		if len(b) < 5 {
			return 0, 0, ErrShortLiteral
		}
		return int32(binary.LittleEndian.Uint32(b[1:5])), 5, nil
	default:
		return 0, 0, ErrNotConstant
	}
}

// DecodeLCS decodes a string constant and reports how many bytes it used.
func DecodeLCS(b []byte) (string, int, error) {
	if len(b) == 0 {
		return "", 0, ErrShortLiteral
	}
	if b[0] != tagLCS {
		return "", 0, ErrNotConstant
	}
	for i := 1; i < len(b); i++ {
		if b[i] == 0x00 {
			return string(b[1:i]), i + 1, nil
		}
	}
	return "", 0, ErrUnterminated
}

func DecodeLV(b []byte) (uint32, int, error) {
	return decodeRef(b, prefixLV0, tagLV, ErrNotLocalVar)
}

func DecodeGV(b []byte) (uint32, int, error) {
	return decodeRef(b, prefixGV0, tagGV, ErrNotGlobalVar)
}

func decodeRef(b []byte, shortPrefix, longTag byte, wrongKind error) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrShortLiteral
	}
	head := b[0]
	if head&longMask == 0 {
		if head&^refMask != shortPrefix {
			return 0, 0, wrongKind
		}
		return uint32(head & refMask), 1, nil
	}
	if head&0xE0 != longTag {
		return 0, 0, wrongKind
	}
	switch head & 0x03 {
	case 0x01:
		if len(b) < 2 {
			return 0, 0, ErrShortLiteral
		}
		return uint32(b[1]), 2, nil
	case 0x02:
		if len(b) < 3 {
			return 0, 0, ErrShortLiteral
		}
		return uint32(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case 0x03:
		if len(b) < 5 {
			return 0, 0, ErrShortLiteral
		}
		return binary.LittleEndian.Uint32(b[1:5]), 5, nil
	default:
		return 0, 0, wrongKind
	}
}
