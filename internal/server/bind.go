package server

import (
	"strings"

	"github.com/KilimcininKorOglu/obaber/internal/ldap"
)

// LDAPVersion3 is the required LDAP protocol version.
const LDAPVersion3 = 3

// BindConfig holds configuration for the bind handler.
type BindConfig struct {
	// AllowAnonymous controls whether anonymous binds are allowed.
	AllowAnonymous bool
	// RootDN is the administrator DN (optional).
	RootDN string
	// RootPassword is the administrator password, cleartext or {SCHEME}hash.
	RootPassword string
}

// NewBindConfig creates a new BindConfig with default settings.
func NewBindConfig() *BindConfig {
	return &BindConfig{
		AllowAnonymous: true,
	}
}

// BindHandlerImpl implements the bind operation handler. The only
// identity it authenticates is the configured root DN.
type BindHandlerImpl struct {
	config *BindConfig
}

// NewBindHandler creates a new bind handler with the given configuration.
func NewBindHandler(config *BindConfig) *BindHandlerImpl {
	if config == nil {
		config = NewBindConfig()
	}
	return &BindHandlerImpl{
		config: config,
	}
}

// Handle processes a bind request and returns the result.
func (h *BindHandlerImpl) Handle(_ *Connection, req *ldap.BindRequest) *OperationResult {
	if req.Version != LDAPVersion3 {
		return &OperationResult{
			ResultCode:        ldap.ResultProtocolError,
			DiagnosticMessage: "only LDAP version 3 is supported",
		}
	}

	if req.AuthMethod == ldap.AuthMethodSASL {
		return &OperationResult{
			ResultCode:        ldap.ResultAuthMethodNotSupported,
			DiagnosticMessage: "SASL authentication is not supported",
		}
	}

	if req.IsAnonymous() {
		if !h.config.AllowAnonymous {
			return &OperationResult{
				ResultCode:        ldap.ResultInappropriateAuthentication,
				DiagnosticMessage: "anonymous bind is not allowed",
			}
		}
		return &OperationResult{ResultCode: ldap.ResultSuccess}
	}

	// RFC 4513 section 5.1.2: a name with an empty password is an
	// unauthenticated bind
	if len(req.SimplePassword) == 0 {
		return &OperationResult{
			ResultCode:        ldap.ResultUnwillingToPerform,
			DiagnosticMessage: "unauthenticated bind is not allowed",
		}
	}

	if h.config.RootDN == "" || normalizeDN(h.config.RootDN) != normalizeDN(req.Name) {
		return invalidCredentials()
	}
	if h.config.RootPassword == "" || VerifyPassword(string(req.SimplePassword), h.config.RootPassword) != nil {
		return invalidCredentials()
	}

	return &OperationResult{ResultCode: ldap.ResultSuccess}
}

// invalidCredentials does not reveal whether the DN exists.
func invalidCredentials() *OperationResult {
	return &OperationResult{
		ResultCode:        ldap.ResultInvalidCredentials,
		DiagnosticMessage: "invalid credentials",
	}
}

// normalizeDN normalizes a DN for comparison: lower case, no whitespace
// around RDNs.
func normalizeDN(dn string) string {
	parts := strings.Split(strings.ToLower(dn), ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}

// CreateBindHandler creates a BindHandler function from a BindHandlerImpl.
func CreateBindHandler(impl *BindHandlerImpl) BindHandler {
	return func(conn *Connection, req *ldap.BindRequest) *OperationResult {
		return impl.Handle(conn, req)
	}
}
