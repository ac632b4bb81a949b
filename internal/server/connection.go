package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/obaber/internal/codec"
	"github.com/KilimcininKorOglu/obaber/internal/ldap"
	"github.com/KilimcininKorOglu/obaber/internal/logging"
	"github.com/KilimcininKorOglu/obaber/internal/metrics"
)

// Connection errors
var (
	// ErrConnectionClosed is returned when the connection is closed
	ErrConnectionClosed = errors.New("server: connection closed")
	// ErrUnexpectedMessage is returned when a decoded object is not an LDAP message
	ErrUnexpectedMessage = errors.New("server: unexpected decoded object")
)

// DefaultReadBufferSize is the read chunk size when none is configured.
const DefaultReadBufferSize = 4096

// Connection represents an individual client connection to the LDAP server.
// It feeds whatever the network returns into the server's codec, dispatches
// each completed message, and writes the responses back.
type Connection struct {
	conn    net.Conn
	server  *Server
	codec   *codec.Codec
	handler *Handler
	logger  logging.Logger
	metrics *metrics.Metrics

	// requestID identifies the connection in logs and names its codec stream
	requestID string
	startTime time.Time

	readTimeout  time.Duration
	writeTimeout time.Duration
	bufferSize   int

	mu            sync.Mutex
	bindDN        string
	authenticated bool
	closed        bool

	writeMu sync.Mutex
}

// NewConnection creates a new Connection for the given network connection.
// A nil server gives a connection that serves the default handler with
// default codec limits and no timeouts.
func NewConnection(conn net.Conn, server *Server) *Connection {
	requestID := logging.GenerateRequestID()

	c := &Connection{
		conn:       conn,
		server:     server,
		requestID:  requestID,
		startTime:  time.Now(),
		bufferSize: DefaultReadBufferSize,
	}

	if server != nil {
		server.init()
		c.codec = server.codec
		c.handler = server.Handler
		c.logger = server.Logger.WithRequestID(requestID)
		c.metrics = server.Metrics
		c.readTimeout = server.Config.Server.ReadTimeout
		c.writeTimeout = server.Config.Server.WriteTimeout
		if n := server.Config.Server.ReadBufferSize; n > 0 {
			c.bufferSize = n
		}
	} else {
		c.codec = newCodec(codec.DefaultOptions(), true, nil)
		c.handler = NewHandler()
		c.logger = logging.NewNop()
	}

	return c
}

// Handle is the main message loop for the connection. It blocks until the
// client unbinds, the connection fails, or a malformed message arrives.
func (c *Connection) Handle() {
	c.logger.Info("connection established",
		"client", c.RemoteAddr().String())

	defer func() {
		if err := c.codec.Close(c.requestID); err != nil && !errors.Is(err, codec.ErrUnknownStream) {
			c.logger.Debug("stream ended inside a message", "error", err.Error())
		}
		c.logger.Info("connection closed",
			"client", c.RemoteAddr().String(),
			"duration_ms", time.Since(c.startTime).Milliseconds())
		c.Close()
	}()

	buf := make([]byte, c.bufferSize)
	for {
		if c.isClosed() {
			return
		}

		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.metrics.AddBytesRead(n)
			if !c.feed(buf[:n]) {
				return
			}
		}

		if err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), c.isClosed():
			case errors.As(err, &netErr) && netErr.Timeout():
				c.logger.Debug("idle timeout", "client", c.RemoteAddr().String())
			default:
				c.logger.Warn("network error",
					"error", err.Error(),
					"client", c.RemoteAddr().String())
			}
			return
		}
	}
}

// feed decodes one chunk and processes the messages it completed. It
// reports whether the connection should keep reading.
func (c *Connection) feed(chunk []byte) bool {
	objs, decodeErr := c.codec.Decode(c.requestID, chunk)

	for _, obj := range objs {
		msg, ok := obj.(*ldap.LDAPMessage)
		if !ok {
			c.logger.Error("unexpected decoded object", "error", ErrUnexpectedMessage.Error())
			return false
		}
		if !c.process(msg) {
			return false
		}
	}

	if decodeErr != nil {
		c.metrics.RecordDecodeError(decodeErr)
		c.logger.Warn("protocol error",
			"error", decodeErr.Error(),
			"client", c.RemoteAddr().String())
		c.disconnect(ldap.ResultProtocolError, "malformed LDAP message")
		return false
	}
	return true
}

// process handles one message and reports whether the connection stays open.
func (c *Connection) process(msg *ldap.LDAPMessage) bool {
	c.metrics.RecordPDU(msg.OperationType().String())

	switch req := msg.Op.(type) {
	case *ldap.UnbindRequest:
		c.logger.Debug("unbind request received",
			"message_id", msg.MessageID)
		return false
	case *ldap.AbandonRequest:
		// requests complete synchronously, so nothing is ever outstanding
		c.logger.Debug("abandon request",
			"message_id", msg.MessageID,
			"abandon_id", req.MessageID)
		return true
	}

	response, ok := c.dispatchMessage(msg)
	if !ok {
		c.logger.Warn("protocol error",
			"error", "operation has no response",
			"operation", msg.OperationType().String(),
			"message_id", msg.MessageID)
		c.disconnect(ldap.ResultProtocolError, "unexpected "+msg.OperationType().String())
		return false
	}

	if err := c.WriteMessage(response); err != nil {
		c.logger.Warn("write error",
			"error", err.Error(),
			"client", c.RemoteAddr().String())
		return false
	}
	return true
}

// dispatchMessage returns the response to msg. It reports false when the
// operation is not a request the server can answer.
func (c *Connection) dispatchMessage(msg *ldap.LDAPMessage) (*ldap.LDAPMessage, bool) {
	var op ldap.Operation

	switch req := msg.Op.(type) {
	case *ldap.BindRequest:
		op = c.handleBind(msg.MessageID, req)
	case *ldap.DelRequest:
		op = c.handleDelete(msg.MessageID, req)
	case *ldap.ExtendedRequest:
		op = c.handleExtended(msg.MessageID, req)
	default:
		respType, ok := msg.OperationType().ResponseType()
		if !ok {
			return nil, false
		}
		c.logger.Debug("unsupported operation",
			"operation", msg.OperationType().String(),
			"message_id", msg.MessageID)
		op = ldap.NewResponse(respType, ldap.NewErrorResult(ldap.ResultProtocolError, "unsupported operation"))
	}

	return &ldap.LDAPMessage{MessageID: msg.MessageID, Op: op}, true
}

func (c *Connection) handleBind(messageID int, req *ldap.BindRequest) ldap.Operation {
	start := time.Now()

	c.logger.Debug("bind request",
		"dn", req.Name,
		"version", req.Version,
		"auth_method", req.AuthMethod.String(),
		"message_id", messageID)

	// a bind request resets the connection to anonymous before it is processed
	c.setBind("", false)

	result := c.handler.HandleBind(c, req)

	if result.ResultCode == ldap.ResultSuccess {
		c.setBind(req.Name, !req.IsAnonymous())
		c.logger.Info("bind successful",
			"dn", req.Name,
			"duration_ms", time.Since(start).Milliseconds())
	} else {
		c.logger.Warn("bind failed",
			"dn", req.Name,
			"result_code", result.ResultCode.String(),
			"error", result.DiagnosticMessage,
			"duration_ms", time.Since(start).Milliseconds())
	}

	return &ldap.BindResponse{LDAPResult: result.LDAPResult()}
}

func (c *Connection) handleDelete(messageID int, req *ldap.DelRequest) ldap.Operation {
	c.logger.Debug("delete request",
		"dn", req.DN,
		"message_id", messageID)

	result := c.handler.HandleDelete(c, req)
	if result.ResultCode != ldap.ResultSuccess {
		c.logger.Info("delete refused",
			"dn", req.DN,
			"result_code", result.ResultCode.String())
	}

	return &ldap.DelResponse{LDAPResult: result.LDAPResult()}
}

func (c *Connection) handleExtended(messageID int, req *ldap.ExtendedRequest) ldap.Operation {
	c.logger.Debug("extended request",
		"oid", req.Name,
		"message_id", messageID)

	resp := c.handler.HandleExtended(c, req)
	if resp.ResultCode != ldap.ResultSuccess {
		c.logger.Warn("extended operation failed",
			"oid", req.Name,
			"result_code", resp.ResultCode.String(),
			"error", resp.DiagnosticMessage)
	}
	return resp
}

// disconnect sends a Notice of Disconnection; the caller closes afterwards.
func (c *Connection) disconnect(code ldap.ResultCode, message string) {
	if err := c.WriteMessage(ldap.NewNoticeOfDisconnection(code, message)); err != nil {
		c.logger.Debug("notice of disconnection not sent", "error", err.Error())
	}
}

// WriteMessage writes an LDAP message to the connection.
func (c *Connection) WriteMessage(msg *ldap.LDAPMessage) error {
	if c.isClosed() {
		return ErrConnectionClosed
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	n, err := c.conn.Write(data)
	c.metrics.AddBytesWritten(n)
	return err
}

// Close closes the connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	return c.conn.Close()
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) setBind(dn string, authenticated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindDN = dn
	c.authenticated = authenticated
}

// BindDN returns the currently bound DN.
func (c *Connection) BindDN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindDN
}

// IsAuthenticated returns whether the connection is authenticated.
func (c *Connection) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local address of the connection.
func (c *Connection) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Logger returns the logger for this connection.
func (c *Connection) Logger() logging.Logger {
	return c.logger
}

// RequestID returns the unique request ID for this connection.
func (c *Connection) RequestID() string {
	return c.requestID
}
