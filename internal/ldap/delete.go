package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// DelRequest represents an LDAP Delete Request
// DelRequest ::= [APPLICATION 10] LDAPDN
// Note: DelRequest is a primitive type (just an LDAPDN), not a SEQUENCE
type DelRequest struct {
	// DN is the distinguished name of the entry to delete
	DN string
}

// ErrEmptyDeleteDN is returned when the DN to delete is empty
var ErrEmptyDeleteDN = errors.New("ldap: delete DN cannot be empty")

// OperationType returns ApplicationDelRequest.
func (r *DelRequest) OperationType() OperationType { return ApplicationDelRequest }

func (r *DelRequest) encode(e *ber.Encoder) error {
	e.WritePrimitive(ber.ApplicationTag(ApplicationDelRequest, false), []byte(r.DN))
	return nil
}

// Validate validates the DelRequest.
func (r *DelRequest) Validate() error {
	if r.DN == "" {
		return ErrEmptyDeleteDN
	}
	return nil
}

// UnbindRequest represents an LDAP Unbind Request
// UnbindRequest ::= [APPLICATION 2] NULL
type UnbindRequest struct{}

// OperationType returns ApplicationUnbindRequest.
func (r *UnbindRequest) OperationType() OperationType { return ApplicationUnbindRequest }

func (r *UnbindRequest) encode(e *ber.Encoder) error {
	e.WritePrimitive(ber.ApplicationTag(ApplicationUnbindRequest, false), nil)
	return nil
}

// AbandonRequest represents an LDAP Abandon Request
// AbandonRequest ::= [APPLICATION 16] MessageID
// Note: AbandonRequest is a primitive INTEGER (MessageID)
type AbandonRequest struct {
	// MessageID is the ID of the message to abandon
	MessageID int
}

// OperationType returns ApplicationAbandonRequest.
func (r *AbandonRequest) OperationType() OperationType { return ApplicationAbandonRequest }

func (r *AbandonRequest) encode(e *ber.Encoder) error {
	e.WritePrimitive(ber.ApplicationTag(ApplicationAbandonRequest, false), ber.EncodeInteger(int64(r.MessageID)))
	return nil
}
