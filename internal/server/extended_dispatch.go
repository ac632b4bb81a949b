package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/KilimcininKorOglu/obaber/internal/ldap"
)

// Extended operation errors
var (
	// ErrUnknownOID is returned when no handler is registered for the requested OID.
	ErrUnknownOID = errors.New("server: unknown extended operation OID")
	// ErrNilHandler is returned when attempting to register a nil handler.
	ErrNilHandler = errors.New("server: cannot register nil handler")
	// ErrEmptyOID is returned when attempting to register a handler with an empty OID.
	ErrEmptyOID = errors.New("server: cannot register handler with empty OID")
)

// ExtendedHandler answers one extended operation.
type ExtendedHandler interface {
	OID() string
	Handle(conn *Connection, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error)
}

// ExtendedHandlerFunc adapts a function to a handler registered with RegisterFunc.
type ExtendedHandlerFunc func(conn *Connection, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error)

// ExtendedDispatcher manages extended operation handlers and routes
// requests to the appropriate handler based on OID.
type ExtendedDispatcher struct {
	handlers map[string]ExtendedHandler
	mu       sync.RWMutex
}

// NewExtendedDispatcher creates a new ExtendedDispatcher.
func NewExtendedDispatcher() *ExtendedDispatcher {
	return &ExtendedDispatcher{
		handlers: make(map[string]ExtendedHandler),
	}
}

// Register registers an extended operation handler under its OID,
// replacing any handler already registered for it.
func (d *ExtendedDispatcher) Register(handler ExtendedHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	oid := handler.OID()
	if oid == "" {
		return ErrEmptyOID
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[oid] = handler
	return nil
}

// RegisterFunc registers a function as the handler for oid.
func (d *ExtendedDispatcher) RegisterFunc(oid string, handler ExtendedHandlerFunc) error {
	if handler == nil {
		return ErrNilHandler
	}
	return d.Register(&funcHandler{oid: oid, handler: handler})
}

// Unregister removes the handler for the specified OID.
// Returns true if a handler was removed.
func (d *ExtendedDispatcher) Unregister(oid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[oid]; exists {
		delete(d.handlers, oid)
		return true
	}
	return false
}

// Handle dispatches an extended request to the appropriate handler.
// For an unknown OID it returns a protocolError response together with
// ErrUnknownOID.
func (d *ExtendedDispatcher) Handle(conn *Connection, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	d.mu.RLock()
	handler, exists := d.handlers[req.Name]
	d.mu.RUnlock()

	if !exists {
		return &ldap.ExtendedResponse{
			LDAPResult: ldap.NewErrorResult(ldap.ResultProtocolError, "unsupported extended operation: "+req.Name),
		}, ErrUnknownOID
	}

	return handler.Handle(conn, req)
}

// HasHandler returns true if a handler is registered for the specified OID.
func (d *ExtendedDispatcher) HasHandler(oid string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.handlers[oid]
	return exists
}

// SupportedOIDs returns a sorted list of all registered OIDs.
func (d *ExtendedDispatcher) SupportedOIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	oids := make([]string, 0, len(d.handlers))
	for oid := range d.handlers {
		oids = append(oids, oid)
	}
	sort.Strings(oids)
	return oids
}

type funcHandler struct {
	oid     string
	handler ExtendedHandlerFunc
}

func (h *funcHandler) OID() string { return h.oid }

func (h *funcHandler) Handle(conn *Connection, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	return h.handler(conn, req)
}
