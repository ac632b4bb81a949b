package ldap

import (
	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// Well-known extended operation OIDs.
const (
	// WhoAmIOID identifies the "Who am I?" operation (RFC 4532).
	WhoAmIOID = "1.3.6.1.4.1.4203.1.11.3"
	// NoticeOfDisconnectionOID identifies the unsolicited notification
	// sent before the server closes a connection (RFC 4511 Section 4.4.1).
	NoticeOfDisconnectionOID = "1.3.6.1.4.1.1466.20036"
)

// Context-specific tags of the extended operation fields
const (
	ContextTagRequestName   = 0
	ContextTagRequestValue  = 1
	ContextTagResponseName  = 10
	ContextTagResponseValue = 11
)

// ExtendedRequest represents an LDAP Extended Request.
// Per RFC 4511 Section 4.12:
// ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
//
//	requestName      [0] LDAPOID,
//	requestValue     [1] OCTET STRING OPTIONAL
//
// }
type ExtendedRequest struct {
	// Name is the object identifier of the extended operation
	Name string
	// Value is the optional request value
	Value []byte
}

// OperationType returns ApplicationExtendedRequest.
func (r *ExtendedRequest) OperationType() OperationType { return ApplicationExtendedRequest }

func (r *ExtendedRequest) encode(e *ber.Encoder) error {
	pos := e.BeginApplication(ApplicationExtendedRequest)
	e.WriteTaggedValue(ContextTagRequestName, []byte(r.Name))
	if r.Value != nil {
		e.WriteTaggedValue(ContextTagRequestValue, r.Value)
	}
	return e.End(pos)
}

// ExtendedResponse represents an LDAP Extended Response.
// Per RFC 4511 Section 4.12:
// ExtendedResponse ::= [APPLICATION 24] SEQUENCE {
//
//	COMPONENTS OF LDAPResult,
//	responseName     [10] LDAPOID OPTIONAL,
//	responseValue    [11] OCTET STRING OPTIONAL
//
// }
type ExtendedResponse struct {
	LDAPResult
	// Name is the optional response OID
	Name string
	// Value is the optional response value
	Value []byte
}

// OperationType returns ApplicationExtendedResponse.
func (r *ExtendedResponse) OperationType() OperationType { return ApplicationExtendedResponse }

func (r *ExtendedResponse) encode(e *ber.Encoder) error {
	pos := e.BeginApplication(ApplicationExtendedResponse)
	if err := r.encodeComponents(e); err != nil {
		return err
	}
	if r.Name != "" {
		e.WriteTaggedValue(ContextTagResponseName, []byte(r.Name))
	}
	if r.Value != nil {
		e.WriteTaggedValue(ContextTagResponseValue, r.Value)
	}
	return e.End(pos)
}

// NewNoticeOfDisconnection returns the unsolicited notification a server
// sends with message ID 0 before terminating a connection.
func NewNoticeOfDisconnection(code ResultCode, message string) *LDAPMessage {
	return &LDAPMessage{
		MessageID: 0,
		Op: &ExtendedResponse{
			LDAPResult: NewErrorResult(code, message),
			Name:       NoticeOfDisconnectionOID,
		},
	}
}
