package helpers

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// HexToBytes decodes a hex string into bytes. Whitespace (spaces, tabs,
// newlines) anywhere in the string is ignored, so "02 FD 80 01" and
// "02fd8001" decode identically.
func HexToBytes(hex string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, hex)

	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex string length must be even: %q", hex)
	}

	out := make([]byte, len(clean)/2)
	for i := 0; i < len(clean); i += 2 {
		b, err := strconv.ParseUint(clean[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q: %w", clean[i:i+2], err)
		}
		out[i/2] = byte(b)
	}
	return out, nil
}

// BytesToHex renders bytes as lowercase space-separated hex pairs, e.g. "02 fd 80 01".
func BytesToHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}

// HexToAddress parses a 1-4 character hex string into a big-endian 16-bit
// logical address, e.g. "0E80" -> []byte{0x0E, 0x80}.
func HexToAddress(hex string) ([]byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(hex), 16, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", hex, err)
	}
	return []byte{byte(v >> 8), byte(v)}, nil
}

// Uint32ToBytes renders a 32-bit value as 4 big-endian bytes.
func Uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// BytesToUint32 interprets exactly 4 bytes as a big-endian 32-bit value.
func BytesToUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("expected 4 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// FindBytes returns the index of the first occurrence of target within data,
// or -1 if target is empty or not found.
func FindBytes(data, target []byte) int {
	if len(target) == 0 || len(data) < len(target) {
		return -1
	}
	for i := 0; i+len(target) <= len(data); i++ {
		if string(data[i:i+len(target)]) == string(target) {
			return i
		}
	}
	return -1
}

// FindAllBytes returns the starting index of every non-overlapping-free
// occurrence of target within data, scanning one byte at a time (so
// overlapping matches are all reported).
func FindAllBytes(data, target []byte) []int {
	if len(target) == 0 || len(data) < len(target) {
		return nil
	}
	var out []int
	for i := 0; i+len(target) <= len(data); i++ {
		if string(data[i:i+len(target)]) == string(target) {
			out = append(out, i)
		}
	}
	return out
}

// EndsWith reports whether data ends with suffix.
func EndsWith(data, suffix []byte) bool {
	if len(data) < len(suffix) {
		return false
	}
	return string(data[len(data)-len(suffix):]) == string(suffix)
}

// BytesToASCIIEscaped renders bytes as ASCII text, escaping any non-printable
// byte (outside the printable range 0x20-0x7E) as \xHH.
func BytesToASCIIEscaped(b []byte) string {
	var sb strings.Builder
	for _, v := range b {
		if v >= 0x20 && v <= 0x7E {
			sb.WriteByte(v)
		} else {
			fmt.Fprintf(&sb, "\\x%02X", v)
		}
	}
	return sb.String()
}
