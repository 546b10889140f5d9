// Package uds implements the UDS (ISO 14229) request/response state
// machine tunneled over DoIP: framing each service request, reassembling
// the ECU's response stream in the presence of pending/busy indicators and
// continuation frames, and running the seed/key security-access
// sub-protocol.
package uds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tormodh/doipuds/internal/doip"
	"github.com/tormodh/doipuds/internal/helpers"
	"github.com/tormodh/doipuds/internal/security"
	"github.com/tormodh/doipuds/internal/transport"
)

// Transport is the subset of transport.Client an Engine needs. Defined here
// so the engine can be driven by a scripted fake in tests without importing
// net.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Receive() ([]byte, error)
	ReceiveExact(n int) ([]byte, error)
	Disconnect() error
	IsConnected() bool
	SetTimeout(timeout time.Duration)
}

// Response is the result of a UDS service call that returns data (the
// services that only return success/failure use a plain bool).
type Response struct {
	Success bool
	Data    []byte
}

// Engine owns one Transport and the security-access seed for one ECU
// session. It exclusively drives the socket; no other component may call
// Transport directly while an Engine is alive for it.
type Engine struct {
	transport Transport
	addrs     doip.Addresses
	seed      []byte
	logger    *slog.Logger
}

// NewEngine constructs an Engine over an already-configured Transport. The
// Transport must not yet be connected; call Connect to dial and activate
// routing.
func NewEngine(transport Transport, addrs doip.Addresses, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{transport: transport, addrs: addrs, logger: logger}
}

// Connect dials the transport and performs routing activation. On any
// failure the seed buffer is cleared and the transport is left disconnected.
func (e *Engine) Connect(ctx context.Context) error {
	if err := e.transport.Connect(ctx); err != nil {
		e.seed = nil
		return newErr("Connect", KindConnectionFailed, err)
	}
	if err := e.RoutingActivate(ctx); err != nil {
		_ = e.transport.Disconnect()
		e.seed = nil
		return err
	}
	return nil
}

// Disconnect tears down the transport and clears all session state,
// including the security seed, regardless of current state. Idempotent.
func (e *Engine) Disconnect() error {
	e.seed = nil
	return e.transport.Disconnect()
}

// RoutingActivate runs the DoIP routing-activation handshake. Must succeed
// before any UDS service call.
func (e *Engine) RoutingActivate(ctx context.Context) error {
	if err := e.transport.Send(doip.RoutingActivationRequest()); err != nil {
		return newErr("RoutingActivate", KindSendFailed, err)
	}

	response, err := e.receiveFor(ctx, 0x00)
	if err != nil {
		return err
	}

	if !doip.IsRoutingActivationGrant(e.addrs, response) {
		e.logger.Error("routing activation denied")
		return newErr("RoutingActivate", KindRoutingActivationDenied, nil)
	}
	e.logger.Info("routing activation granted")
	return nil
}

// sendFrame builds a diagnostic-message DoIP frame from payload and sends it.
func (e *Engine) sendFrame(op string, payload []byte) error {
	frame := doip.BuildFrame(e.addrs, payload)
	if err := e.transport.Send(frame); err != nil {
		return newErr(op, KindSendFailed, err)
	}
	return nil
}

// receiveFor reassembles the logical response for the request whose SID is
// sid, consuming pending (0x78) and busy (0x21) negative responses and pure
// DoIP acknowledgement frames, and resolving concatenated continuation
// frames to the suffix starting at the last DoIP header. ctx lets a caller
// impose a wall-clock bound across the whole reassembly; there is no default
// aggregate deadline beyond the per-read timeout Transport itself enforces.
func (e *Engine) receiveFor(ctx context.Context, sid byte) ([]byte, error) {
	pending := []byte{0x7F, sid, 0x78}
	busy := []byte{0x7F, sid, 0x21}
	ackSuffix := e.addrs.AckSuffix()

	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return nil, newErr("receiveFor", KindTimeout, err)
			}
		}

		chunk, err := e.transport.Receive()
		if err != nil {
			return nil, mapReceiveErr("receiveFor", err)
		}

		if offsets := helpers.FindAllBytes(chunk, doip.DiagnosticMessageHeader); len(offsets) >= 2 {
			last := offsets[len(offsets)-1]
			return chunk[last:], nil
		}

		if helpers.FindBytes(chunk, pending) >= 0 {
			continue
		}
		if helpers.FindBytes(chunk, busy) >= 0 {
			continue
		}
		if helpers.EndsWith(chunk, ackSuffix) {
			continue
		}
		if len(chunk) > 0 {
			return chunk, nil
		}
	}
}

// mapReceiveErr classifies a transport.Receive/ReceiveExact error into the
// distinct Kind it actually represents, rather than collapsing every cause
// into one: a read-deadline timeout and a genuine peer close are different,
// differently recoverable failures (a timeout leaves the connection usable;
// a close does not).
func mapReceiveErr(op string, err error) *Error {
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return newErr(op, KindTimeout, err)
	case errors.Is(err, transport.ErrNotConnected):
		return newErr(op, KindNotConnected, err)
	case errors.Is(err, transport.ErrConnectionClosed):
		return newErr(op, KindConnectionClosedByPeer, err)
	default:
		return newErr(op, KindReceiveFailed, err)
	}
}

// positive reports whether response contains the positive-response marker
// byte anywhere (the scan is intentionally forgiving about offset, to
// accommodate vendor framing quirks, per this service set's framing rules).
func positive(response []byte, marker byte) bool {
	return helpers.FindBytes(response, []byte{marker}) >= 0
}

// DiagnosticSessionControl implements SID 0x10. If session > 0x03, the
// request is fire-and-forget: the engine returns success without awaiting a
// response.
func (e *Engine) DiagnosticSessionControl(ctx context.Context, session byte) (bool, error) {
	const sid = 0x10
	if err := e.sendFrame("DiagnosticSessionControl", []byte{sid, session}); err != nil {
		return false, err
	}
	if session > 0x03 {
		return true, nil
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0x50) {
		return false, newErr("DiagnosticSessionControl", KindRequestDenied, nil)
	}
	return true, nil
}

// ECUReset implements SID 0x11.
func (e *Engine) ECUReset(ctx context.Context, resetType byte) (bool, error) {
	const sid = 0x11
	if err := e.sendFrame("ECUReset", []byte{sid, resetType}); err != nil {
		return false, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0x51) {
		return false, newErr("ECUReset", KindRequestDenied, nil)
	}
	return true, nil
}

// ClearDTC implements SID 0x14, clearing all diagnostic trouble codes
// (group mask FF FF FF).
func (e *Engine) ClearDTC(ctx context.Context) (bool, error) {
	const sid = 0x14
	if err := e.sendFrame("ClearDTC", []byte{sid, 0xFF, 0xFF, 0xFF}); err != nil {
		return false, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0x54) {
		return false, newErr("ClearDTC", KindRequestDenied, nil)
	}
	return true, nil
}

// ReadDTCInformation implements SID 0x19 with the fixed status mask 0xAF.
func (e *Engine) ReadDTCInformation(ctx context.Context, sub byte) (Response, error) {
	const sid = 0x19
	if err := e.sendFrame("ReadDTCInformation", []byte{sid, sub, 0xAF}); err != nil {
		return Response{}, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return Response{}, err
	}
	if !positive(response, 0x59) {
		return Response{}, newErr("ReadDTCInformation", KindRequestDenied, nil)
	}
	return Response{Success: true, Data: response}, nil
}

// ReadDataByIdentifier implements SID 0x22. On success it logs the ASCII
// interpretation (non-printables escaped) of the bytes following the
// `62 did_hi did_lo` marker, matching the original tooling's diagnostic log.
func (e *Engine) ReadDataByIdentifier(ctx context.Context, did uint16) (Response, error) {
	const sid = 0x22
	didBytes := []byte{byte(did >> 8), byte(did)}
	if err := e.sendFrame("ReadDataByIdentifier", append([]byte{sid}, didBytes...)); err != nil {
		return Response{}, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return Response{}, err
	}
	if !positive(response, 0x62) {
		return Response{}, newErr("ReadDataByIdentifier", KindRequestDenied,
			fmt.Errorf("DID 0x%04X", did))
	}

	marker := append([]byte{0x62}, didBytes...)
	if idx := helpers.FindBytes(response, marker); idx >= 0 {
		ascii := helpers.BytesToASCIIEscaped(response[idx+len(marker):])
		e.logger.Info("read data identifier", "did", fmt.Sprintf("0x%04X", did), "ascii", ascii)
	}
	return Response{Success: true, Data: response}, nil
}

// SecurityAccessGetSeed implements the odd-level half of SID 0x27: request a
// seed and store the last 4 bytes of the response as the pending seed.
func (e *Engine) SecurityAccessGetSeed(ctx context.Context, level uint8) (bool, error) {
	const sid = 0x27
	if err := e.sendFrame("SecurityAccessGetSeed", []byte{sid, level}); err != nil {
		return false, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0x67) {
		return false, newErr("SecurityAccessGetSeed", KindSecurityAccessDenied, nil)
	}
	if len(response) >= 4 {
		e.seed = append([]byte(nil), response[len(response)-4:]...)
	}
	return true, nil
}

// SecurityAccessCompareKey implements the even-level half of SID 0x27: maps
// level to its security.Level algorithm variant, computes the token from the
// stored seed and the caller's constant, and submits it.
func (e *Engine) SecurityAccessCompareKey(ctx context.Context, level uint8, constant uint32) (bool, error) {
	const sid = 0x27
	if len(e.seed) == 0 {
		return false, newErr("SecurityAccessCompareKey", KindNoSeedAvailable, nil)
	}

	seedValue, err := helpers.BytesToUint32(e.seed)
	if err != nil {
		return false, newErr("SecurityAccessCompareKey", KindInvalidParameter, err)
	}

	token, err := security.Compute(security.Level(level), seedValue, constant)
	if err != nil {
		return false, newErr("SecurityAccessCompareKey", KindUnsupportedLevel, err)
	}

	payload := append([]byte{sid, level}, helpers.Uint32ToBytes(token)...)
	if err := e.sendFrame("SecurityAccessCompareKey", payload); err != nil {
		return false, err
	}

	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0x67) {
		return false, newErr("SecurityAccessCompareKey", KindSecurityAccessDenied, nil)
	}
	return true, nil
}

// CommunicationControl implements SID 0x28. If commType > 0x80, the request
// is fire-and-forget.
func (e *Engine) CommunicationControl(ctx context.Context, commType byte) (bool, error) {
	const sid = 0x28
	if err := e.sendFrame("CommunicationControl", []byte{sid, commType, 0x03}); err != nil {
		return false, err
	}
	if commType > 0x80 {
		return true, nil
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0x68) {
		return false, newErr("CommunicationControl", KindRequestDenied, nil)
	}
	return true, nil
}

// WriteDataByIdentifier implements SID 0x2E with an arbitrary-length data
// payload; the DoIP length field is adjusted automatically by BuildFrame.
func (e *Engine) WriteDataByIdentifier(ctx context.Context, did uint16, data []byte) (Response, error) {
	const sid = 0x2E
	payload := make([]byte, 0, 3+len(data))
	payload = append(payload, sid, byte(did>>8), byte(did))
	payload = append(payload, data...)
	if err := e.sendFrame("WriteDataByIdentifier", payload); err != nil {
		return Response{}, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return Response{}, err
	}
	if !positive(response, 0x6E) {
		return Response{}, newErr("WriteDataByIdentifier", KindRequestDenied,
			fmt.Errorf("DID 0x%04X", did))
	}
	return Response{Success: true, Data: response}, nil
}

// TesterPresent implements SID 0x3E. If suppress is true (sub-function
// 0x80), the request is fire-and-forget.
func (e *Engine) TesterPresent(ctx context.Context, suppress bool) (bool, error) {
	const sid = 0x3E
	sub := byte(0x00)
	if suppress {
		sub = 0x80
	}
	if err := e.sendFrame("TesterPresent", []byte{sid, sub}); err != nil {
		return false, err
	}
	if suppress {
		return true, nil
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0x7E) {
		return false, newErr("TesterPresent", KindRequestDenied, nil)
	}
	return true, nil
}

// ControlDTCSetting implements SID 0x85.
func (e *Engine) ControlDTCSetting(ctx context.Context, dtcType byte) (bool, error) {
	const sid = 0x85
	if err := e.sendFrame("ControlDTCSetting", []byte{sid, dtcType}); err != nil {
		return false, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return false, err
	}
	if !positive(response, 0xC5) {
		return false, newErr("ControlDTCSetting", KindRequestDenied, nil)
	}
	return true, nil
}

// RoutineControl implements SID 0x31 (start/stop/requestResults a routine),
// following the same arbitrary-length-payload shape as
// WriteDataByIdentifier.
func (e *Engine) RoutineControl(ctx context.Context, sub byte, routineID uint16, optionRecord []byte) (Response, error) {
	const sid = 0x31
	payload := make([]byte, 0, 4+len(optionRecord))
	payload = append(payload, sid, sub, byte(routineID>>8), byte(routineID))
	payload = append(payload, optionRecord...)
	if err := e.sendFrame("RoutineControl", payload); err != nil {
		return Response{}, err
	}
	response, err := e.receiveFor(ctx, sid)
	if err != nil {
		return Response{}, err
	}
	if !positive(response, 0x71) {
		return Response{}, newErr("RoutineControl", KindRequestDenied,
			fmt.Errorf("routine 0x%04X", routineID))
	}
	return Response{Success: true, Data: response}, nil
}
