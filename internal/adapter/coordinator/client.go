package coordinator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/hookbridge/hookbridge/internal/domain"
	"github.com/hookbridge/hookbridge/internal/port"
)

// Client implements port.ChangeDeliverer against the build coordinator's
// change-submission endpoint: newline-delimited JSON-RPC 2.0 over TCP. Each
// batch gets its own connection and authenticated session; nothing is shared
// across batches.
type Client struct {
	addr     string
	username string
	password string
	timeout  time.Duration
}

// NewClient creates a delivery client for the coordinator at addr
// (host:port). The credentials are the fixed change-submission identity the
// coordinator recognizes, not a per-user login. timeout bounds the dial and
// every call round trip.
func NewClient(addr, username, password string, timeout time.Duration) *Client {
	return &Client{addr: addr, username: username, password: password, timeout: timeout}
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type authParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Deliver opens one session and submits the batch strictly in order: record
// i+1 is not written until record i's acknowledgment arrives. The connection
// is closed on every exit path. Call with a non-empty batch.
func (c *Client) Deliver(ctx context.Context, records []domain.ChangeRecord) error {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", port.ErrConnectFailed, c.addr, err)
	}
	defer conn.Close()

	sess := &session{conn: conn, reader: bufio.NewReader(conn), timeout: c.timeout}

	resp, err := sess.call("auth", authParams{Username: c.username, Password: c.password})
	if err != nil {
		return transportError(err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: %s", port.ErrAuthRejected, resp.Error.Message)
	}

	for _, record := range records {
		resp, err := sess.call("addChange", record)
		if err != nil {
			return transportError(err)
		}
		if resp.Error != nil {
			return &port.RemoteRejectionError{Revision: record.Revision, Detail: resp.Error.Message}
		}
		slog.Info("change accepted by coordinator",
			"revision", record.ShortRevision(),
			"branch", record.Branch,
		)
	}
	return nil
}

// session is one connection's call state. IDs increase per call so a
// mismatched acknowledgment is detectable.
type session struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	nextID  int
}

// call sends one request and blocks until its response line arrives.
func (s *session) call(method string, params any) (*JSONRPCResponse, error) {
	s.nextID++
	req := JSONRPCRequest{JSONRPC: "2.0", ID: s.nextID, Method: method, Params: params}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}
	payload = append(payload, '\n')

	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return nil, err
	}
	if _, err := s.conn.Write(payload); err != nil {
		return nil, err
	}

	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	var resp JSONRPCResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %d does not match request id %d", resp.ID, req.ID)
	}
	return &resp, nil
}

// transportError classifies an I/O failure on an established session.
func transportError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %v", port.ErrDeliveryTimeout, err)
	}
	return fmt.Errorf("%w: %v", port.ErrConnectionLost, err)
}
