package server

import (
	"github.com/KilimcininKorOglu/obaber/internal/ldap"
)

// WhoAmIHandler implements the Who Am I extended operation (RFC 4532).
// The response value is empty for anonymous connections and "dn:" followed
// by the bind DN otherwise. The response carries no responseName.
type WhoAmIHandler struct{}

// NewWhoAmIHandler creates a new WhoAmIHandler.
func NewWhoAmIHandler() *WhoAmIHandler {
	return &WhoAmIHandler{}
}

// OID returns ldap.WhoAmIOID.
func (h *WhoAmIHandler) OID() string {
	return ldap.WhoAmIOID
}

// Handle returns the authorization identity of conn.
func (h *WhoAmIHandler) Handle(conn *Connection, _ *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	authzID := ""
	if dn := conn.BindDN(); dn != "" {
		authzID = "dn:" + dn
	}

	return &ldap.ExtendedResponse{
		LDAPResult: ldap.NewSuccessResult(),
		Value:      []byte(authzID),
	}, nil
}
