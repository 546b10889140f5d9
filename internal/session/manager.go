// Package session implements the Manager façade: the single entry point a
// caller (REST handler, CLI command) uses to drive one ECU session. It owns
// exactly one uds.Engine, decodes the hex-string operands callers send, and
// serializes every command behind one mutex held for its whole duration.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tormodh/doipuds/internal/doip"
	"github.com/tormodh/doipuds/internal/helpers"
	"github.com/tormodh/doipuds/internal/logging"
	"github.com/tormodh/doipuds/internal/transport"
	"github.com/tormodh/doipuds/internal/uds"
)

// ConnectionConfig is the set of arguments a successful connect_ecu call is
// remembered by, returned verbatim from Config().
type ConnectionConfig struct {
	IPAddress        string `json:"ip_address"`
	Port             int    `json:"port"`
	ServerAddressHex string `json:"server_addr_hex"`
	ClientAddressHex string `json:"client_addr_hex"`
	TimeoutMs        int    `json:"timeout_ms"`
}

// Envelope is the uniform result shape every façade operation returns.
type Envelope struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	Data      *string `json:"data,omitempty"`
	Timestamp string  `json:"timestamp"`
	SessionID string  `json:"session_id,omitempty"`
}

func envelope(sessionID uuid.UUID, success bool, message string, data []byte) Envelope {
	e := Envelope{
		Success:   success,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if sessionID != uuid.Nil {
		e.SessionID = sessionID.String()
	}
	if data != nil {
		hex := helpers.BytesToHex(data)
		e.Data = &hex
	}
	return e
}

// Manager is safe for concurrent use: every public method takes mu for its
// entire duration, so pending/busy/continuation handling inside one command
// can never interleave with another.
type Manager struct {
	mu sync.Mutex

	// baseLogger never carries a session_id attr; logger is baseLogger
	// scoped to the active session (or baseLogger itself, before the first
	// connect), and is what every log line in this package actually uses.
	baseLogger        *slog.Logger
	logger            *slog.Logger
	securityConstants map[uint8]uint32

	engine    *uds.Engine
	connected bool
	cfg       ConnectionConfig
	hasCfg    bool
	sessionID uuid.UUID
}

// New creates a Manager with the given default per-level security
// constants (see config.SecurityConfig). The map is copied.
func New(securityConstants map[uint8]uint32, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	constants := make(map[uint8]uint32, len(securityConstants))
	for k, v := range securityConstants {
		constants[k] = v
	}
	return &Manager{baseLogger: logger, logger: logger, securityConstants: constants}
}

// SetSecurityConstant overrides the per-level seed/key constant used by
// subsequent SecurityAccess key submissions, without requiring a restart.
func (m *Manager) SetSecurityConstant(level uint8, constant uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.securityConstants[level] = constant
}

// Connect implements connect_ecu: dials the transport, performs routing
// activation, and on success mints a new session ID and remembers cfg for
// Config().
func (m *Manager) Connect(ctx context.Context, cfg ConnectionConfig) Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine != nil {
		_ = m.engine.Disconnect()
		m.engine = nil
		m.connected = false
	}

	addrs, err := doip.ParseAddresses(cfg.ServerAddressHex, cfg.ClientAddressHex)
	if err != nil {
		return envelope(uuid.Nil, false, fmt.Sprintf("invalid address: %v", err), nil)
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if cfg.TimeoutMs <= 0 {
		timeout = transport.DefaultTimeout
	}

	candidateID := uuid.New()
	scopedLogger := logging.WithCorrelationID(m.baseLogger, "session_id", candidateID.String())

	client := transport.New(transport.Config{Host: cfg.IPAddress, Port: cfg.Port, Timeout: timeout}, scopedLogger)
	engine := uds.NewEngine(client, addrs, scopedLogger)

	if err := engine.Connect(ctx); err != nil {
		scopedLogger.Error("connect failed", "error", err)
		return envelope(uuid.Nil, false, fmt.Sprintf("connect failed: %v", err), nil)
	}

	m.engine = engine
	m.connected = true
	m.cfg = cfg
	m.hasCfg = true
	m.sessionID = candidateID
	m.logger = scopedLogger

	m.logger.Info("connected to ECU", "ip", cfg.IPAddress, "port", cfg.Port)
	return envelope(m.sessionID, true,
		fmt.Sprintf("connected to ECU %s:%d and completed routing activation", cfg.IPAddress, cfg.Port), nil)
}

// Disconnect implements disconnect_ecu. Idempotent: calling it when no
// session is active still succeeds.
func (m *Manager) Disconnect() Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID := m.sessionID
	if m.engine != nil {
		if err := m.engine.Disconnect(); err != nil {
			m.logger.Error("disconnect error", "error", err)
		}
	}
	m.engine = nil
	m.connected = false
	m.logger = m.baseLogger

	return envelope(sessionID, true, "disconnected from ECU", nil)
}

// Status implements get_connection_status.
func (m *Manager) Status() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && m.engine != nil
}

// Config implements get_connection_config: returns the arguments of the
// last successful Connect, or ok=false if none has succeeded yet.
func (m *Manager) Config() (ConnectionConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.hasCfg
}

// parseServiceID parses a "0xNN" or bare "NN" hex string as a UDS SID byte.
func parseServiceID(serviceIDHex string) (byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(serviceIDHex), "0x")
	v, err := strconv.ParseUint(trimmed, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid service id %q: %w", serviceIDHex, err)
	}
	return byte(v), nil
}

// at returns data[i] or def if data is too short.
func at(data []byte, i int, def byte) byte {
	if i < len(data) {
		return data[i]
	}
	return def
}

// SendCommand implements send_uds_command: parses service_id_hex and
// operand_hex, and dispatches to the matching UdsEngine method. operand_hex
// carries the full logical UDS payload (service byte included, mirroring
// the operand convention of the source tooling) so that, e.g., the
// DiagnosticSessionControl session value is operand[1], ReadDataByIdentifier's
// DID is operand[1:3], and so on.
func (m *Manager) SendCommand(ctx context.Context, serviceIDHex, operandHex string) Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected || m.engine == nil {
		return envelope(m.sessionID, false, "not connected to ECU", nil)
	}

	service, err := parseServiceID(serviceIDHex)
	if err != nil {
		return envelope(m.sessionID, false, err.Error(), nil)
	}

	operand, err := helpers.HexToBytes(operandHex)
	if err != nil {
		return envelope(m.sessionID, false, fmt.Sprintf("invalid operand: %v", err), nil)
	}

	success, message, data, err := m.dispatch(ctx, service, operand)
	if err != nil {
		m.handleServiceError(err)
		return envelope(m.sessionID, false, fmt.Sprintf("%s failed: %v", message, err), nil)
	}
	if success {
		message += " succeeded"
	}
	return envelope(m.sessionID, success, message, data)
}

// handleServiceError drops the session on any transport-layer error, per
// the propagation policy that only transport failures reset Serving back to
// Disconnected and discard the security seed; pure protocol denials
// (RequestDenied, SecurityAccessDenied, ...) leave the session intact.
func (m *Manager) handleServiceError(err error) {
	var udsErr *uds.Error
	if e, ok := err.(*uds.Error); ok {
		udsErr = e
	}
	if udsErr == nil {
		return
	}
	switch udsErr.Kind {
	case uds.KindConnectionFailed, uds.KindTimeout, uds.KindNotConnected,
		uds.KindSendFailed, uds.KindReceiveFailed, uds.KindConnectionClosedByPeer:
		m.logger.Warn("transport error, dropping session", "kind", udsErr.Kind)
		if m.engine != nil {
			_ = m.engine.Disconnect()
		}
		m.engine = nil
		m.connected = false
		m.logger = m.baseLogger
	}
}

// dispatch routes one decoded command to the matching UdsEngine method,
// returning (success, a human-readable operation label, response data if
// any, error).
func (m *Manager) dispatch(ctx context.Context, service byte, data []byte) (bool, string, []byte, error) {
	switch service {
	case 0x10:
		session := at(data, 1, 0x01)
		ok, err := m.engine.DiagnosticSessionControl(ctx, session)
		return ok, "diagnostic session control", nil, err

	case 0x11:
		resetType := at(data, 1, 0x01)
		ok, err := m.engine.ECUReset(ctx, resetType)
		return ok, "ECU reset", nil, err

	case 0x14:
		ok, err := m.engine.ClearDTC(ctx)
		return ok, "clear DTC", nil, err

	case 0x19:
		sub := at(data, 1, 0x02)
		resp, err := m.engine.ReadDTCInformation(ctx, sub)
		return resp.Success, "read DTC information", resp.Data, err

	case 0x22:
		if len(data) < 3 {
			return false, "read data by identifier", nil, fmt.Errorf("missing DID parameter")
		}
		did := uint16(data[1])<<8 | uint16(data[2])
		resp, err := m.engine.ReadDataByIdentifier(ctx, did)
		return resp.Success, fmt.Sprintf("read DID 0x%04X", did), resp.Data, err

	case 0x27:
		if len(data) < 2 {
			return false, "security access", nil, fmt.Errorf("missing level parameter")
		}
		level := data[1]
		if level%2 == 1 {
			ok, err := m.engine.SecurityAccessGetSeed(ctx, level)
			return ok, "security access get seed", nil, err
		}
		constant := m.securityConstants[level]
		ok, err := m.engine.SecurityAccessCompareKey(ctx, level, constant)
		return ok, "security access compare key", nil, err

	case 0x28:
		commType := at(data, 1, 0x00)
		ok, err := m.engine.CommunicationControl(ctx, commType)
		return ok, "communication control", nil, err

	case 0x2E:
		if len(data) < 3 {
			return false, "write data by identifier", nil, fmt.Errorf("missing DID parameter")
		}
		did := uint16(data[1])<<8 | uint16(data[2])
		resp, err := m.engine.WriteDataByIdentifier(ctx, did, data[3:])
		return resp.Success, fmt.Sprintf("write DID 0x%04X", did), resp.Data, err

	case 0x31:
		if len(data) < 4 {
			return false, "routine control", nil, fmt.Errorf("missing routine parameters")
		}
		routineID := uint16(data[2])<<8 | uint16(data[3])
		resp, err := m.engine.RoutineControl(ctx, data[1], routineID, data[4:])
		return resp.Success, fmt.Sprintf("routine control 0x%04X", routineID), resp.Data, err

	case 0x3E:
		suppress := len(data) > 1 && data[1] == 0x80
		ok, err := m.engine.TesterPresent(ctx, suppress)
		return ok, "tester present", nil, err

	case 0x85:
		dtcType := at(data, 1, 0x02)
		ok, err := m.engine.ControlDTCSetting(ctx, dtcType)
		return ok, "control DTC setting", nil, err

	default:
		return false, "unsupported service", nil, &uds.Error{
			Op: "SendCommand", Kind: uds.KindServiceNotSupported,
			Err: fmt.Errorf("service 0x%02X", service),
		}
	}
}
