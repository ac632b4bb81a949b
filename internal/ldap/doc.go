// Package ldap implements the LDAP v3 message envelope and a subset of
// protocol operations as specified in RFC 4511, decoded by digester rules
// and encoded through the two-pass BER encoder.
//
// # Message Structure
//
// All LDAP messages follow the LDAPMessage envelope structure:
//
//	LDAPMessage ::= SEQUENCE {
//	    messageID       MessageID,
//	    protocolOp      CHOICE { ... },
//	    controls        [0] Controls OPTIONAL
//	}
//
// NewRegistry returns the rules that build an *LDAPMessage from the TLV
// events of one envelope. A digester over that registry delivers each
// message as its outer SEQUENCE closes, however the bytes were chunked:
//
//	d := digester.New(ldap.NewRegistry(), digester.Options{
//	    OnComplete: func(obj any) {
//	        msg := obj.(*ldap.LDAPMessage)
//	        switch op := msg.Op.(type) {
//	        case *ldap.BindRequest:
//	            // handle bind request
//	        case *ldap.RawOperation:
//	            // operation without a model in this package
//	        }
//	    },
//	})
//
// ParseLDAPMessage decodes a single complete envelope.
//
// # Supported Operations
//
//   - Bind (APPLICATION 0, 1): Authentication
//   - Unbind (APPLICATION 2): Connection termination
//   - Delete (APPLICATION 10, 11): Entry removal
//   - Abandon (APPLICATION 16): Operation cancellation
//   - Extended (APPLICATION 23, 24): Extended operations
//
// Every other APPLICATION tag decodes to a RawOperation.
//
// # References
//
//   - RFC 4511: LDAP Protocol
//   - RFC 4513: LDAP Authentication Methods
//   - RFC 4532: LDAP "Who am I?" Operation
package ldap
