package ldap

import (
	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// Context-specific tags for response fields
const (
	// ContextTagReferral is the tag for referral URIs in LDAPResult [3]
	ContextTagReferral = 3
	// ContextTagServerSASLCreds is the tag for server SASL credentials in BindResponse [7]
	ContextTagServerSASLCreds = 7
)

// LDAPResult represents the common result structure used in most LDAP responses.
// Per RFC 4511 Section 4.1.9:
// LDAPResult ::= SEQUENCE {
//
//	resultCode         ENUMERATED { ... },
//	matchedDN          LDAPDN,
//	diagnosticMessage  LDAPString,
//	referral           [3] Referral OPTIONAL
//
// }
type LDAPResult struct {
	// ResultCode indicates the outcome of the operation
	ResultCode ResultCode
	// MatchedDN contains the DN of the last entry matched during processing
	MatchedDN string
	// DiagnosticMessage contains additional diagnostic information
	DiagnosticMessage string
	// Referral contains URIs to other servers (optional)
	Referral []string
}

// result gives the decoding rules access to the LDAPResult embedded in a response.
func (r *LDAPResult) result() *LDAPResult { return r }

// encodeComponents writes the LDAPResult fields into the open response.
func (r *LDAPResult) encodeComponents(e *ber.Encoder) error {
	e.WriteEnumerated(int64(r.ResultCode))
	e.WriteString(r.MatchedDN)
	e.WriteString(r.DiagnosticMessage)

	if len(r.Referral) > 0 {
		pos := e.BeginContext(ContextTagReferral)
		for _, uri := range r.Referral {
			e.WriteString(uri)
		}
		return e.End(pos)
	}
	return nil
}

// BindResponse represents an LDAP Bind response.
// Per RFC 4511 Section 4.2.2:
// BindResponse ::= [APPLICATION 1] SEQUENCE {
//
//	COMPONENTS OF LDAPResult,
//	serverSaslCreds    [7] OCTET STRING OPTIONAL
//
// }
type BindResponse struct {
	// LDAPResult contains the common result fields
	LDAPResult
	// ServerSASLCreds contains server SASL credentials (optional)
	ServerSASLCreds []byte
}

// OperationType returns ApplicationBindResponse.
func (r *BindResponse) OperationType() OperationType { return ApplicationBindResponse }

func (r *BindResponse) encode(e *ber.Encoder) error {
	pos := e.BeginApplication(ApplicationBindResponse)
	if err := r.encodeComponents(e); err != nil {
		return err
	}
	if r.ServerSASLCreds != nil {
		e.WriteTaggedValue(ContextTagServerSASLCreds, r.ServerSASLCreds)
	}
	return e.End(pos)
}

// DelResponse represents the response to a delete operation.
// Per RFC 4511 Section 4.8:
// DelResponse ::= [APPLICATION 11] LDAPResult
type DelResponse struct {
	LDAPResult
}

// OperationType returns ApplicationDelResponse.
func (r *DelResponse) OperationType() OperationType { return ApplicationDelResponse }

func (r *DelResponse) encode(e *ber.Encoder) error {
	pos := e.BeginApplication(ApplicationDelResponse)
	if err := r.encodeComponents(e); err != nil {
		return err
	}
	return e.End(pos)
}

// ResultResponse is a response consisting only of an LDAPResult under the
// given APPLICATION tag, such as ModifyResponse or SearchResultDone.
type ResultResponse struct {
	Tag OperationType
	LDAPResult
}

// OperationType returns the response tag.
func (r *ResultResponse) OperationType() OperationType { return r.Tag }

func (r *ResultResponse) encode(e *ber.Encoder) error {
	pos := e.BeginApplication(uint32(r.Tag))
	if err := r.encodeComponents(e); err != nil {
		return err
	}
	return e.End(pos)
}

// NewSuccessResult creates a new LDAPResult with success status.
func NewSuccessResult() LDAPResult {
	return LDAPResult{ResultCode: ResultSuccess}
}

// NewErrorResult creates a new LDAPResult with the specified error.
func NewErrorResult(code ResultCode, message string) LDAPResult {
	return LDAPResult{
		ResultCode:        code,
		DiagnosticMessage: message,
	}
}

// NewErrorResultWithDN creates a new LDAPResult with error and matched DN.
func NewErrorResultWithDN(code ResultCode, matchedDN, message string) LDAPResult {
	return LDAPResult{
		ResultCode:        code,
		MatchedDN:         matchedDN,
		DiagnosticMessage: message,
	}
}

// NewResponse returns the response operation of type tag carrying result.
// Bind, delete, and extended responses get their dedicated types.
func NewResponse(tag OperationType, result LDAPResult) Operation {
	switch tag {
	case ApplicationBindResponse:
		return &BindResponse{LDAPResult: result}
	case ApplicationDelResponse:
		return &DelResponse{LDAPResult: result}
	case ApplicationExtendedResponse:
		return &ExtendedResponse{LDAPResult: result}
	default:
		return &ResultResponse{Tag: tag, LDAPResult: result}
	}
}
