package ldap

import (
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// LDAP protocol operation tags (APPLICATION class)
// Per RFC 4511 Section 4.2
const (
	ApplicationBindRequest           = 0  // [APPLICATION 0]
	ApplicationBindResponse          = 1  // [APPLICATION 1]
	ApplicationUnbindRequest         = 2  // [APPLICATION 2]
	ApplicationSearchRequest         = 3  // [APPLICATION 3]
	ApplicationSearchResultEntry     = 4  // [APPLICATION 4]
	ApplicationSearchResultDone      = 5  // [APPLICATION 5]
	ApplicationModifyRequest         = 6  // [APPLICATION 6]
	ApplicationModifyResponse        = 7  // [APPLICATION 7]
	ApplicationAddRequest            = 8  // [APPLICATION 8]
	ApplicationAddResponse           = 9  // [APPLICATION 9]
	ApplicationDelRequest            = 10 // [APPLICATION 10]
	ApplicationDelResponse           = 11 // [APPLICATION 11]
	ApplicationModifyDNRequest       = 12 // [APPLICATION 12]
	ApplicationModifyDNResponse      = 13 // [APPLICATION 13]
	ApplicationCompareRequest        = 14 // [APPLICATION 14]
	ApplicationCompareResponse       = 15 // [APPLICATION 15]
	ApplicationAbandonRequest        = 16 // [APPLICATION 16]
	ApplicationSearchResultReference = 19 // [APPLICATION 19]
	ApplicationExtendedRequest       = 23 // [APPLICATION 23]
	ApplicationExtendedResponse      = 24 // [APPLICATION 24]
	ApplicationIntermediateResponse  = 25 // [APPLICATION 25]
)

// OperationType represents the type of LDAP operation
type OperationType int

var operationNames = map[OperationType]string{
	ApplicationBindRequest:           "BindRequest",
	ApplicationBindResponse:          "BindResponse",
	ApplicationUnbindRequest:         "UnbindRequest",
	ApplicationSearchRequest:         "SearchRequest",
	ApplicationSearchResultEntry:     "SearchResultEntry",
	ApplicationSearchResultDone:      "SearchResultDone",
	ApplicationModifyRequest:         "ModifyRequest",
	ApplicationModifyResponse:        "ModifyResponse",
	ApplicationAddRequest:            "AddRequest",
	ApplicationAddResponse:           "AddResponse",
	ApplicationDelRequest:            "DelRequest",
	ApplicationDelResponse:           "DelResponse",
	ApplicationModifyDNRequest:       "ModifyDNRequest",
	ApplicationModifyDNResponse:      "ModifyDNResponse",
	ApplicationCompareRequest:        "CompareRequest",
	ApplicationCompareResponse:       "CompareResponse",
	ApplicationAbandonRequest:        "AbandonRequest",
	ApplicationSearchResultReference: "SearchResultReference",
	ApplicationExtendedRequest:       "ExtendedRequest",
	ApplicationExtendedResponse:      "ExtendedResponse",
	ApplicationIntermediateResponse:  "IntermediateResponse",
}

// String returns the string representation of the operation type
func (o OperationType) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(o))
}

// responseTypes maps request operations to the response carrying their result.
var responseTypes = map[OperationType]OperationType{
	ApplicationBindRequest:     ApplicationBindResponse,
	ApplicationSearchRequest:   ApplicationSearchResultDone,
	ApplicationModifyRequest:   ApplicationModifyResponse,
	ApplicationAddRequest:      ApplicationAddResponse,
	ApplicationDelRequest:      ApplicationDelResponse,
	ApplicationModifyDNRequest: ApplicationModifyDNResponse,
	ApplicationCompareRequest:  ApplicationCompareResponse,
	ApplicationExtendedRequest: ApplicationExtendedResponse,
}

// ResponseType returns the operation that answers o. Requests without a
// response (unbind, abandon) and responses report false.
func (o OperationType) ResponseType() (OperationType, bool) {
	r, ok := responseTypes[o]
	return r, ok
}

// Context-specific tags for Controls
const (
	ContextTagControls = 0 // [0] Controls OPTIONAL
)

// MaxMessageID is the maximum valid message ID per RFC 4511
// MessageID ::= INTEGER (0 .. maxInt)
// maxInt INTEGER ::= 2147483647 -- (2^^31 - 1)
const MaxMessageID = 2147483647

// MinMessageID is the minimum valid message ID
const MinMessageID = 0

// Operation is the protocolOp of an LDAPMessage.
type Operation interface {
	// OperationType returns the APPLICATION tag number of the operation.
	OperationType() OperationType
	// encode appends the operation TLV to e.
	encode(e *ber.Encoder) error
}

// Control represents an LDAP control as defined in RFC 4511 Section 4.1.11
// Control ::= SEQUENCE {
//
//	controlType             LDAPOID,
//	criticality             BOOLEAN DEFAULT FALSE,
//	controlValue            OCTET STRING OPTIONAL
//
// }
type Control struct {
	// OID is the control type OID
	OID string
	// Criticality indicates whether the control is critical
	Criticality bool
	// Value is the optional control value
	Value []byte
}

// RawOperation is a protocol operation this package has no model for. The
// value of a primitive operation is kept; the children of a constructed
// operation are skipped.
type RawOperation struct {
	// Tag is the APPLICATION tag number identifying the operation type
	Tag int
	// Constructed reports the form of the operation TLV
	Constructed bool
	// Data is the value of a primitive operation
	Data []byte
}

// OperationType returns the operation's APPLICATION tag number.
func (r *RawOperation) OperationType() OperationType { return OperationType(r.Tag) }

func (r *RawOperation) encode(e *ber.Encoder) error {
	if !r.Constructed {
		e.WritePrimitive(ber.ApplicationTag(uint32(r.Tag), false), r.Data)
		return nil
	}
	return e.End(e.BeginApplication(uint32(r.Tag)))
}

// LDAPMessage represents an LDAP protocol message envelope.
// Per RFC 4511 Section 4.1.1:
// LDAPMessage ::= SEQUENCE {
//
//	messageID       MessageID,
//	protocolOp      CHOICE { ... },
//	controls        [0] Controls OPTIONAL
//
// }
type LDAPMessage struct {
	// MessageID uniquely identifies the message within a connection
	MessageID int
	// Op is the protocol operation
	Op Operation
	// Controls contains optional message controls
	Controls []Control
}

// OperationType returns the type of operation in this message
func (m *LDAPMessage) OperationType() OperationType {
	if m.Op == nil {
		return -1
	}
	return m.Op.OperationType()
}

// Errors for LDAP message decoding and encoding
var (
	// ErrInvalidMessageID is returned when the message ID is out of valid range
	ErrInvalidMessageID = errors.New("ldap: message ID out of valid range (0 to 2147483647)")

	// ErrMissingOperation is returned when the protocol operation is missing
	ErrMissingOperation = errors.New("ldap: missing protocol operation")

	// ErrUnexpectedElement is returned when an envelope or operation field
	// appears out of order or more than once
	ErrUnexpectedElement = errors.New("ldap: unexpected element")

	// ErrEmptyMessage is returned when trying to parse empty data
	ErrEmptyMessage = errors.New("ldap: empty message data")

	// ErrIncompleteMessage is returned by ParseLDAPMessage when the data
	// does not hold a valid envelope
	ErrIncompleteMessage = errors.New("ldap: incomplete message")
)
