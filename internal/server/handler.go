package server

import (
	"errors"

	"github.com/KilimcininKorOglu/obaber/internal/ldap"
)

// OperationResult represents the result of an LDAP operation.
type OperationResult struct {
	// ResultCode is the LDAP result code
	ResultCode ldap.ResultCode
	// MatchedDN is the matched DN (for certain error conditions)
	MatchedDN string
	// DiagnosticMessage is an optional diagnostic message
	DiagnosticMessage string
}

// LDAPResult converts r into the wire result.
func (r *OperationResult) LDAPResult() ldap.LDAPResult {
	return ldap.NewErrorResultWithDN(r.ResultCode, r.MatchedDN, r.DiagnosticMessage)
}

// BindHandler handles bind requests.
type BindHandler func(conn *Connection, req *ldap.BindRequest) *OperationResult

// DeleteHandler handles delete requests.
type DeleteHandler func(conn *Connection, req *ldap.DelRequest) *OperationResult

// Handler manages operation handlers for the LDAP server.
type Handler struct {
	bindHandler   BindHandler
	deleteHandler DeleteHandler
	extended      *ExtendedDispatcher
}

// NewHandler creates a Handler that accepts anonymous binds, refuses
// deletes, and answers the Who Am I extended operation.
func NewHandler() *Handler {
	h := &Handler{
		bindHandler:   CreateBindHandler(NewBindHandler(nil)),
		deleteHandler: defaultDeleteHandler,
		extended:      NewExtendedDispatcher(),
	}
	_ = h.extended.Register(NewWhoAmIHandler())
	return h
}

// SetBindHandler sets the bind handler.
func (h *Handler) SetBindHandler(handler BindHandler) {
	h.bindHandler = handler
}

// SetDeleteHandler sets the delete handler.
func (h *Handler) SetDeleteHandler(handler DeleteHandler) {
	h.deleteHandler = handler
}

// Extended returns the dispatcher for extended operations.
func (h *Handler) Extended() *ExtendedDispatcher {
	return h.extended
}

// HandleBind handles a bind request.
func (h *Handler) HandleBind(conn *Connection, req *ldap.BindRequest) *OperationResult {
	if h.bindHandler == nil {
		return &OperationResult{
			ResultCode:        ldap.ResultUnwillingToPerform,
			DiagnosticMessage: "bind handler not configured",
		}
	}
	return h.bindHandler(conn, req)
}

// HandleDelete handles a delete request.
func (h *Handler) HandleDelete(conn *Connection, req *ldap.DelRequest) *OperationResult {
	if h.deleteHandler == nil {
		return &OperationResult{
			ResultCode:        ldap.ResultUnwillingToPerform,
			DiagnosticMessage: "delete handler not configured",
		}
	}
	return h.deleteHandler(conn, req)
}

// HandleExtended routes req by OID. An unknown OID is answered with
// protocolError; a failing handler with operationsError.
func (h *Handler) HandleExtended(conn *Connection, req *ldap.ExtendedRequest) *ldap.ExtendedResponse {
	if h.extended == nil {
		return &ldap.ExtendedResponse{
			LDAPResult: ldap.NewErrorResult(ldap.ResultProtocolError, "unsupported extended operation: "+req.Name),
		}
	}

	resp, err := h.extended.Handle(conn, req)
	switch {
	case errors.Is(err, ErrUnknownOID):
		return resp
	case err != nil:
		return &ldap.ExtendedResponse{
			LDAPResult: ldap.NewErrorResult(ldap.ResultOperationsError, err.Error()),
		}
	case resp == nil:
		return &ldap.ExtendedResponse{LDAPResult: ldap.NewSuccessResult()}
	default:
		return resp
	}
}

// defaultDeleteHandler refuses every delete; the front end serves no
// writable directory.
func defaultDeleteHandler(_ *Connection, req *ldap.DelRequest) *OperationResult {
	if err := req.Validate(); err != nil {
		return &OperationResult{
			ResultCode:        ldap.ResultUnwillingToPerform,
			DiagnosticMessage: err.Error(),
		}
	}
	return &OperationResult{
		ResultCode:        ldap.ResultUnwillingToPerform,
		DiagnosticMessage: "delete operation is not supported",
	}
}
