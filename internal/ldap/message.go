package ldap

import (
	"io"
	"sync"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
	"github.com/KilimcininKorOglu/obaber/internal/digester"
)

// parseRegistry is shared by every ParseLDAPMessage call.
var parseRegistry = sync.OnceValue(NewRegistry)

// ParseLDAPMessage decodes one complete BER-encoded LDAP message envelope.
// Trailing data after the first message is decoded but discarded.
func ParseLDAPMessage(data []byte) (*LDAPMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	var msg *LDAPMessage
	d := digester.New(parseRegistry(), digester.Options{
		Decoder:            ber.DefaultDecoderOptions(),
		AbortOnRuleFailure: true,
		OnComplete: func(obj any) {
			if msg == nil {
				msg, _ = obj.(*LDAPMessage)
			}
		},
	})
	if err := d.Feed(data); err != nil {
		return nil, err
	}
	if err := d.Close(); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrIncompleteMessage
	}
	return msg, nil
}

// Encode encodes the LDAPMessage to BER format.
func (m *LDAPMessage) Encode() ([]byte, error) {
	enc := ber.NewEncoder()
	if err := m.encode(enc); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

// WriteTo encodes the message into w.
func (m *LDAPMessage) WriteTo(w io.Writer) (int64, error) {
	enc := ber.NewEncoder()
	if err := m.encode(enc); err != nil {
		return 0, err
	}
	return enc.WriteTo(w)
}

func (m *LDAPMessage) encode(enc *ber.Encoder) error {
	if m.MessageID < MinMessageID || m.MessageID > MaxMessageID {
		return ErrInvalidMessageID
	}
	if m.Op == nil {
		return ErrMissingOperation
	}

	seq := enc.BeginSequence()
	enc.WriteInteger(int64(m.MessageID))
	if err := m.Op.encode(enc); err != nil {
		return err
	}

	if len(m.Controls) > 0 {
		ctx := enc.BeginContext(ContextTagControls)
		for _, ctrl := range m.Controls {
			if err := encodeControl(enc, ctrl); err != nil {
				return err
			}
		}
		if err := enc.End(ctx); err != nil {
			return err
		}
	}

	return enc.End(seq)
}

// encodeControl encodes a single Control.
func encodeControl(enc *ber.Encoder, ctrl Control) error {
	seq := enc.BeginSequence()
	enc.WriteString(ctrl.OID)

	// criticality is omitted when false since it's the default
	if ctrl.Criticality {
		enc.WriteBoolean(true)
	}
	if ctrl.Value != nil {
		enc.WriteOctetString(ctrl.Value)
	}
	return enc.End(seq)
}
