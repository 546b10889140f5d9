// Package doip implements the DoIP (ISO 13400) wire framing this client
// tunnels UDS requests over: the fixed diagnostic-message header, logical
// address encoding, and the routing-activation handshake that must succeed
// before any UDS traffic may be sent.
package doip

import (
	"fmt"

	"github.com/tormodh/doipuds/internal/helpers"
)

// DiagnosticMessageHeader is the fixed 4-byte DoIP header for payload type
// 0x8001 (diagnostic message): protocol version 0x02, inverse 0xFD.
var DiagnosticMessageHeader = []byte{0x02, 0xFD, 0x80, 0x01}

// HeaderSize is the length of the fixed DoIP generic header prefix
// (protocol version + inverse + payload type), before the length field.
const HeaderSize = 4

// routingActivationRequest is the literal 19-byte routing activation request,
// payload type 0x0005, source address 0x0E80, activation type 0, 4 reserved
// zero bytes, OEM-specific FF FF FF FF.
var routingActivationRequest = []byte{
	0x02, 0xFD, 0x00, 0x05, 0x00, 0x00, 0x00, 0x0B,
	0x0E, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF,
}

// routingActivationResponseHeader is the fixed 8-byte prefix of a positive
// routing-activation response: payload type 0x0006, length 0x00000009.
var routingActivationResponseHeader = []byte{0x02, 0xFD, 0x00, 0x06, 0x00, 0x00, 0x00, 0x09}

// routingActivationGrantSuffix is the positive routing-activation response
// code (0x10 = "routing successfully activated") followed by 4 reserved
// zero bytes.
var routingActivationGrantSuffix = []byte{0x10, 0x00, 0x00, 0x00, 0x00}

// Addresses holds the big-endian 16-bit logical addresses used as
// source/target in every DoIP payload.
type Addresses struct {
	ServerAddress []byte // 2 bytes, big-endian
	ClientAddress []byte // 2 bytes, big-endian
}

// ParseAddresses parses the hex-string server/client addresses (e.g.
// "1FFF", "0E80") into an Addresses pair.
func ParseAddresses(serverHex, clientHex string) (Addresses, error) {
	server, err := helpers.HexToAddress(serverHex)
	if err != nil {
		return Addresses{}, fmt.Errorf("server address: %w", err)
	}
	client, err := helpers.HexToAddress(clientHex)
	if err != nil {
		return Addresses{}, fmt.Errorf("client address: %w", err)
	}
	return Addresses{ServerAddress: server, ClientAddress: client}, nil
}

// clientToServer concatenates client||server, the source/target order used
// in every outbound diagnostic-message payload.
func (a Addresses) clientToServer() []byte {
	out := make([]byte, 0, 4)
	out = append(out, a.ClientAddress...)
	out = append(out, a.ServerAddress...)
	return out
}

// serverToClient concatenates server||client, the order an ECU uses when it
// addresses a response back to us (and the order DoIP ack-frame suffixes use).
func (a Addresses) serverToClient() []byte {
	out := make([]byte, 0, 4)
	out = append(out, a.ServerAddress...)
	out = append(out, a.ClientAddress...)
	return out
}

// BuildFrame produces a complete diagnostic-message DoIP frame:
// header || be32(len(payload)+4) || clientAddr || serverAddr || payload.
func BuildFrame(addrs Addresses, payload []byte) []byte {
	frame := make([]byte, 0, HeaderSize+4+4+len(payload))
	frame = append(frame, DiagnosticMessageHeader...)
	frame = append(frame, helpers.Uint32ToBytes(uint32(len(payload)+4))...)
	frame = append(frame, addrs.clientToServer()...)
	frame = append(frame, payload...)
	return frame
}

// AckSuffix is the trailing 5-byte pattern `server || client || 00` that
// marks a pure DoIP acknowledgement frame. This is a heuristic (it matches
// on trailing bytes rather than parsing the DoIP payload type) carried over
// from the source implementation.
func (a Addresses) AckSuffix() []byte {
	return append(a.serverToClient(), 0x00)
}

// RoutingActivationRequest returns the literal 19-byte routing activation
// request frame.
func RoutingActivationRequest() []byte {
	out := make([]byte, len(routingActivationRequest))
	copy(out, routingActivationRequest)
	return out
}

// IsRoutingActivationGrant reports whether response is a positive routing
// activation grant for the given addresses: it must start with the fixed
// 8-byte response header, followed by client||server, followed by the grant
// code and 4 reserved zero bytes.
func IsRoutingActivationGrant(addrs Addresses, response []byte) bool {
	expected := make([]byte, 0, len(routingActivationResponseHeader)+4+len(routingActivationGrantSuffix))
	expected = append(expected, routingActivationResponseHeader...)
	expected = append(expected, addrs.clientToServer()...)
	expected = append(expected, routingActivationGrantSuffix...)

	if len(response) < len(expected) {
		return false
	}
	return string(response[:len(expected)]) == string(expected)
}
