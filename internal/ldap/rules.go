package ldap

import (
	"github.com/KilimcininKorOglu/obaber/internal/ber"
	"github.com/KilimcininKorOglu/obaber/internal/digester"
)

// Every message is built on the digester stacks: the *LDAPMessage sits at
// the bottom of the object stack, the operation being decoded above it,
// and the integer stack counts the fields already seen in the innermost
// open SEQUENCE.

var (
	messagePattern   = digester.P(ber.SequenceTag)
	messageIDPattern = messagePattern.Append(ber.IntegerTag)
	controlsPattern  = messagePattern.Append(ber.ContextTag(ContextTagControls, true))
)

func opPattern(tag OperationType, constructed bool) digester.Pattern {
	return messagePattern.Append(ber.ApplicationTag(uint32(tag), constructed))
}

// resultTypes are the responses whose contents are a bare LDAPResult.
var resultTypes = []OperationType{
	ApplicationSearchResultDone,
	ApplicationModifyResponse,
	ApplicationAddResponse,
	ApplicationModifyDNResponse,
	ApplicationCompareResponse,
}

// NewRegistry returns a frozen registry holding the rules for every
// operation this package models. Any other low-numbered APPLICATION tag
// decodes to a RawOperation.
func NewRegistry() *digester.Registry {
	reg := digester.NewRegistry()

	reg.MustAdd(messagePattern, digester.Funcs{OnTag: beginMessage, OnFinish: finishMessage})
	reg.MustAdd(messageIDPattern, digester.PrimitiveRule(decodeMessageID))
	addControlRules(reg)

	modelled := map[ber.TagID]bool{}
	add := func(p digester.Pattern, rules ...digester.Rule) {
		modelled[p[len(p)-1]] = true
		reg.MustAdd(p, rules...)
	}

	// BindRequest
	bind := opPattern(ApplicationBindRequest, true)
	add(bind, operationRule(func() *BindRequest { return &BindRequest{} }, checkBindRequest))
	reg.MustAdd(bind.Append(ber.IntegerTag), fieldRule(func(r *BindRequest, n int, v []byte) error {
		if n != 0 {
			return ErrUnexpectedElement
		}
		version, err := ber.ParseInteger(v)
		if err != nil {
			return err
		}
		if version < 1 || version > 127 {
			return ErrInvalidBindVersion
		}
		r.Version = int(version)
		return nil
	}))
	reg.MustAdd(bind.Append(ber.OctetStringTag), fieldRule(func(r *BindRequest, n int, v []byte) error {
		if n != 1 {
			return ErrUnexpectedElement
		}
		r.Name = string(v)
		return nil
	}))
	reg.MustAdd(bind.Append(ber.ContextTag(AuthSimple, false)), fieldRule(func(r *BindRequest, n int, v []byte) error {
		if n != 2 {
			return ErrUnexpectedElement
		}
		r.AuthMethod = AuthMethodSimple
		r.SimplePassword = octets(v)
		return nil
	}))
	sasl := bind.Append(ber.ContextTag(AuthSASL, true))
	reg.MustAdd(sasl, digester.Funcs{OnTag: beginSASL, OnFinish: endNested})
	reg.MustAdd(sasl.Append(ber.OctetStringTag), fieldRule(func(c *SASLCredentials, n int, v []byte) error {
		switch n {
		case 0:
			c.Mechanism = string(v)
		case 1:
			c.Credentials = octets(v)
		default:
			return ErrInvalidSASLCredentials
		}
		return nil
	}))

	// BindResponse
	bindResp := opPattern(ApplicationBindResponse, true)
	add(bindResp, operationRule(func() *BindResponse { return &BindResponse{} }, nil))
	addResultRules(reg, bindResp)
	reg.MustAdd(bindResp.Append(ber.ContextTag(ContextTagServerSASLCreds, false)), fieldRule(func(r *BindResponse, n int, v []byte) error {
		if n < 3 {
			return ErrUnexpectedElement
		}
		r.ServerSASLCreds = octets(v)
		return nil
	}))

	// UnbindRequest, DelRequest, AbandonRequest
	add(opPattern(ApplicationUnbindRequest, false), primitiveOperation(func(v []byte) (Operation, error) {
		return &UnbindRequest{}, nil
	}))
	add(opPattern(ApplicationDelRequest, false), primitiveOperation(func(v []byte) (Operation, error) {
		return &DelRequest{DN: string(v)}, nil
	}))
	add(opPattern(ApplicationAbandonRequest, false), primitiveOperation(func(v []byte) (Operation, error) {
		id, err := ber.ParseInteger(v)
		if err != nil {
			return nil, err
		}
		if id < MinMessageID || id > MaxMessageID {
			return nil, ErrInvalidMessageID
		}
		return &AbandonRequest{MessageID: int(id)}, nil
	}))

	// DelResponse and the other LDAPResult responses
	delResp := opPattern(ApplicationDelResponse, true)
	add(delResp, operationRule(func() *DelResponse { return &DelResponse{} }, nil))
	addResultRules(reg, delResp)
	for _, tag := range resultTypes {
		p := opPattern(tag, true)
		add(p, operationRule(func() *ResultResponse { return &ResultResponse{Tag: tag} }, nil))
		addResultRules(reg, p)
	}

	// ExtendedRequest
	ext := opPattern(ApplicationExtendedRequest, true)
	add(ext, operationRule(func() *ExtendedRequest { return &ExtendedRequest{} }, checkExtendedRequest))
	reg.MustAdd(ext.Append(ber.ContextTag(ContextTagRequestName, false)), fieldRule(func(r *ExtendedRequest, n int, v []byte) error {
		if n != 0 {
			return ErrUnexpectedElement
		}
		r.Name = string(v)
		return nil
	}))
	reg.MustAdd(ext.Append(ber.ContextTag(ContextTagRequestValue, false)), fieldRule(func(r *ExtendedRequest, n int, v []byte) error {
		if n != 1 {
			return ErrUnexpectedElement
		}
		r.Value = octets(v)
		return nil
	}))

	// ExtendedResponse
	extResp := opPattern(ApplicationExtendedResponse, true)
	add(extResp, operationRule(func() *ExtendedResponse { return &ExtendedResponse{} }, nil))
	addResultRules(reg, extResp)
	reg.MustAdd(extResp.Append(ber.ContextTag(ContextTagResponseName, false)), fieldRule(func(r *ExtendedResponse, n int, v []byte) error {
		if n < 3 {
			return ErrUnexpectedElement
		}
		r.Name = string(v)
		return nil
	}))
	reg.MustAdd(extResp.Append(ber.ContextTag(ContextTagResponseValue, false)), fieldRule(func(r *ExtendedResponse, n int, v []byte) error {
		if n < 3 {
			return ErrUnexpectedElement
		}
		r.Value = octets(v)
		return nil
	}))

	for n := uint32(0); n <= ber.MaxLowTagNumber; n++ {
		for _, constructed := range []bool{false, true} {
			p := opPattern(OperationType(n), constructed)
			if modelled[p[len(p)-1]] {
				continue
			}
			reg.MustAdd(p, rawOperation(int(n), constructed))
		}
	}

	reg.Freeze()
	return reg
}

// octets returns v, or an empty non-nil slice for a zero-length value so
// that present but empty optional fields survive re-encoding.
func octets(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

func message(d *digester.Digester) (*LDAPMessage, error) {
	return digester.PeekAs[*LDAPMessage](d, d.Count()-1)
}

func beginMessage(d *digester.Digester, _ ber.Tag) error {
	d.Push(&LDAPMessage{MessageID: -1})
	return nil
}

// finishMessage leaves the message on the stack for delivery.
func finishMessage(d *digester.Digester) error {
	msg, err := message(d)
	if err != nil {
		return err
	}
	if msg.MessageID < 0 {
		return ErrInvalidMessageID
	}
	if msg.Op == nil {
		return ErrMissingOperation
	}
	return nil
}

func decodeMessageID(d *digester.Digester, v []byte) error {
	msg, err := message(d)
	if err != nil {
		return err
	}
	if msg.MessageID >= 0 || msg.Op != nil {
		return ErrUnexpectedElement
	}
	id, err := ber.ParseInteger(v)
	if err != nil {
		return err
	}
	if id < MinMessageID || id > MaxMessageID {
		return ErrInvalidMessageID
	}
	msg.MessageID = int(id)
	return nil
}

// setOperation attaches op to the message if the envelope expects it next.
func setOperation(d *digester.Digester, op Operation) error {
	msg, err := message(d)
	if err != nil {
		return err
	}
	if msg.MessageID < 0 || msg.Op != nil {
		return ErrUnexpectedElement
	}
	msg.Op = op
	return nil
}

// nextField returns the index of the field being decoded in the innermost
// open SEQUENCE and advances the counter.
func nextField(d *digester.Digester) (int, error) {
	n, err := d.PopInt()
	if err != nil {
		return 0, err
	}
	d.PushInt(n + 1)
	return n, nil
}

// endNested drops the object and field counter of a closed SEQUENCE.
func endNested(d *digester.Digester) error {
	if _, err := d.PopInt(); err != nil {
		return err
	}
	_, err := d.Pop()
	return err
}

// operationRule decodes a constructed operation. The operation object is
// on top of the stack while its children are decoded; check validates it
// once complete.
func operationRule[T Operation](newOp func() T, check func(T) error) digester.Rule {
	return digester.Funcs{
		OnTag: func(d *digester.Digester, _ ber.Tag) error {
			op := newOp()
			if err := setOperation(d, op); err != nil {
				return err
			}
			d.Push(op)
			d.PushInt(0)
			return nil
		},
		OnFinish: func(d *digester.Digester) error {
			if _, err := d.PopInt(); err != nil {
				return err
			}
			op, err := digester.PopAs[T](d)
			if err != nil {
				return err
			}
			if check != nil {
				return check(op)
			}
			return nil
		},
	}
}

// primitiveOperation decodes an operation carried by a primitive TLV.
func primitiveOperation(decode func(v []byte) (Operation, error)) digester.Rule {
	return digester.PrimitiveRule(func(d *digester.Digester, v []byte) error {
		op, err := decode(v)
		if err != nil {
			return err
		}
		return setOperation(d, op)
	})
}

func rawOperation(tag int, constructed bool) digester.Rule {
	if constructed {
		return digester.Funcs{OnTag: func(d *digester.Digester, _ ber.Tag) error {
			return setOperation(d, &RawOperation{Tag: tag, Constructed: true})
		}}
	}
	return primitiveOperation(func(v []byte) (Operation, error) {
		return &RawOperation{Tag: tag, Data: v}, nil
	})
}

// fieldRule decodes a primitive field of the object on top of the stack,
// passing the field's position in the enclosing SEQUENCE.
func fieldRule[T any](set func(obj T, n int, v []byte) error) digester.Rule {
	return digester.PrimitiveRule(func(d *digester.Digester, v []byte) error {
		obj, err := digester.PeekAs[T](d, 0)
		if err != nil {
			return err
		}
		n, err := nextField(d)
		if err != nil {
			return err
		}
		return set(obj, n, v)
	})
}

func beginSASL(d *digester.Digester, _ ber.Tag) error {
	req, err := digester.PeekAs[*BindRequest](d, 0)
	if err != nil {
		return err
	}
	n, err := nextField(d)
	if err != nil {
		return err
	}
	if n != 2 {
		return ErrUnexpectedElement
	}
	creds := &SASLCredentials{}
	req.AuthMethod = AuthMethodSASL
	req.SASLCredentials = creds
	d.Push(creds)
	d.PushInt(0)
	return nil
}

func checkBindRequest(r *BindRequest) error {
	if r.Version == 0 {
		return ErrInvalidBindVersion
	}
	if r.AuthMethod == AuthMethodSimple && r.SimplePassword == nil {
		return ErrUnknownAuthMethod
	}
	if r.AuthMethod == AuthMethodSASL && r.SASLCredentials.Mechanism == "" {
		return ErrInvalidSASLCredentials
	}
	return nil
}

func checkExtendedRequest(r *ExtendedRequest) error {
	if r.Name == "" {
		return ErrUnexpectedElement
	}
	return nil
}

type resultHolder interface {
	result() *LDAPResult
}

// addResultRules registers the LDAPResult components under the response at p.
func addResultRules(reg *digester.Registry, p digester.Pattern) {
	reg.MustAdd(p.Append(ber.EnumeratedTag), fieldRule(func(r resultHolder, n int, v []byte) error {
		if n != 0 {
			return ErrUnexpectedElement
		}
		code, err := ber.ParseInteger(v)
		if err != nil {
			return err
		}
		r.result().ResultCode = ResultCode(code)
		return nil
	}))
	reg.MustAdd(p.Append(ber.OctetStringTag), fieldRule(func(r resultHolder, n int, v []byte) error {
		switch n {
		case 1:
			r.result().MatchedDN = string(v)
		case 2:
			r.result().DiagnosticMessage = string(v)
		default:
			return ErrUnexpectedElement
		}
		return nil
	}))

	referral := p.Append(ber.ContextTag(ContextTagReferral, true))
	reg.MustAdd(referral, digester.Funcs{OnTag: func(d *digester.Digester, _ ber.Tag) error {
		r, err := digester.PeekAs[resultHolder](d, 0)
		if err != nil {
			return err
		}
		n, err := nextField(d)
		if err != nil {
			return err
		}
		if n != 3 {
			return ErrUnexpectedElement
		}
		r.result().Referral = []string{}
		return nil
	}})
	reg.MustAdd(referral.Append(ber.OctetStringTag), digester.PrimitiveRule(func(d *digester.Digester, v []byte) error {
		r, err := digester.PeekAs[resultHolder](d, 0)
		if err != nil {
			return err
		}
		res := r.result()
		res.Referral = append(res.Referral, string(v))
		return nil
	}))
}

// addControlRules registers the Controls field. Controls are accepted both
// directly under [0], as RFC 4511 specifies, and wrapped in one more
// SEQUENCE as some clients send them.
func addControlRules(reg *digester.Registry) {
	reg.MustAdd(controlsPattern, digester.Funcs{OnTag: func(d *digester.Digester, _ ber.Tag) error {
		msg, err := message(d)
		if err != nil {
			return err
		}
		if msg.Op == nil || msg.Controls != nil {
			return ErrUnexpectedElement
		}
		msg.Controls = []Control{}
		return nil
	}})

	ctrl := controlsPattern.Append(ber.SequenceTag)
	for _, p := range []digester.Pattern{ctrl, ctrl.Append(ber.SequenceTag)} {
		reg.MustAdd(p, digester.Funcs{OnTag: beginControl, OnFinish: finishControl})
		reg.MustAdd(p.Append(ber.OctetStringTag), fieldRule(func(c *Control, n int, v []byte) error {
			if n == 0 {
				c.OID = string(v)
				return nil
			}
			c.Value = octets(v)
			return nil
		}))
		reg.MustAdd(p.Append(ber.BooleanTag), digester.PrimitiveRule(func(d *digester.Digester, v []byte) error {
			c, err := digester.PeekAs[*Control](d, 0)
			if err != nil {
				return err
			}
			c.Criticality, err = ber.ParseBoolean(v)
			return err
		}))
	}
}

func beginControl(d *digester.Digester, _ ber.Tag) error {
	d.Push(&Control{})
	d.PushInt(0)
	return nil
}

// finishControl appends the control to the message. A control without a
// type is the SEQUENCE OF wrapper and is dropped.
func finishControl(d *digester.Digester) error {
	if _, err := d.PopInt(); err != nil {
		return err
	}
	c, err := digester.PopAs[*Control](d)
	if err != nil {
		return err
	}
	if c.OID == "" {
		return nil
	}
	msg, err := message(d)
	if err != nil {
		return err
	}
	msg.Controls = append(msg.Controls, *c)
	return nil
}
