package uds

import "fmt"

// Kind classifies a uds.Error so callers can branch with errors.Is/As
// without parsing message text, per the error-kind taxonomy this client
// surfaces to its façade.
type Kind string

const (
	KindConnectionFailed       Kind = "connection_failed"
	KindTimeout                Kind = "timeout"
	KindNotConnected           Kind = "not_connected"
	KindSendFailed             Kind = "send_failed"
	KindReceiveFailed          Kind = "receive_failed"
	KindConnectionClosedByPeer Kind = "connection_closed_by_peer"

	KindRequestDenied           Kind = "request_denied"
	KindInvalidResponse         Kind = "invalid_response"
	KindRoutingActivationDenied Kind = "routing_activation_denied"

	KindSecurityAccessDenied Kind = "security_access_denied"
	KindNoSeedAvailable      Kind = "no_seed_available"

	KindInvalidParameter   Kind = "invalid_parameter"
	KindUnsupportedLevel   Kind = "unsupported_level"
	KindServiceNotSupported Kind = "service_not_supported"
)

// Error is the uniform error type the Engine and the session façade's
// command dispatch return (the transport, security and config packages
// return their own errors, which the Engine wraps as Err). Op names the operation that failed (e.g. "ReadDataByIdentifier"),
// Kind classifies the failure, and Err carries the underlying cause (may be
// nil for pure protocol-level denials).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("uds: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("uds: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target has the same Kind, letting callers write
// errors.Is(err, &uds.Error{Kind: uds.KindTimeout}) without matching Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
