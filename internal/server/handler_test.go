package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obaber/internal/ldap"
)

func TestHandlerDefaults(t *testing.T) {
	h := NewHandler()
	conn := NewConnection(newMockConn(nil), nil)

	bind := h.HandleBind(conn, &ldap.BindRequest{Version: 3, AuthMethod: ldap.AuthMethodSimple})
	assert.Equal(t, ldap.ResultSuccess, bind.ResultCode)

	del := h.HandleDelete(conn, &ldap.DelRequest{DN: "cn=x,dc=example,dc=com"})
	assert.Equal(t, ldap.ResultUnwillingToPerform, del.ResultCode)
	assert.Equal(t, "delete operation is not supported", del.DiagnosticMessage)

	empty := h.HandleDelete(conn, &ldap.DelRequest{})
	assert.Equal(t, ldap.ResultUnwillingToPerform, empty.ResultCode)
	assert.Equal(t, ldap.ErrEmptyDeleteDN.Error(), empty.DiagnosticMessage)

	assert.Equal(t, []string{ldap.WhoAmIOID}, h.Extended().SupportedOIDs())
}

func TestHandlerCustomHandlers(t *testing.T) {
	h := NewHandler()
	h.SetDeleteHandler(func(_ *Connection, req *ldap.DelRequest) *OperationResult {
		return &OperationResult{ResultCode: ldap.ResultNoSuchObject, MatchedDN: "dc=example,dc=com"}
	})
	h.SetBindHandler(func(_ *Connection, _ *ldap.BindRequest) *OperationResult {
		return &OperationResult{ResultCode: ldap.ResultBusy}
	})

	del := h.HandleDelete(nil, &ldap.DelRequest{DN: "cn=x,dc=example,dc=com"})
	assert.Equal(t, ldap.ResultNoSuchObject, del.ResultCode)
	assert.Equal(t, "dc=example,dc=com", del.LDAPResult().MatchedDN)

	assert.Equal(t, ldap.ResultBusy, h.HandleBind(nil, &ldap.BindRequest{}).ResultCode)

	h.SetBindHandler(nil)
	h.SetDeleteHandler(nil)
	assert.Equal(t, ldap.ResultUnwillingToPerform, h.HandleBind(nil, &ldap.BindRequest{}).ResultCode)
	assert.Equal(t, ldap.ResultUnwillingToPerform, h.HandleDelete(nil, &ldap.DelRequest{DN: "x"}).ResultCode)
}

func TestHandlerExtended(t *testing.T) {
	const echoOID = "1.3.6.1.4.1.99999.1"
	const failOID = "1.3.6.1.4.1.99999.2"
	const emptyOID = "1.3.6.1.4.1.99999.3"

	h := NewHandler()
	require.NoError(t, h.Extended().RegisterFunc(echoOID, func(_ *Connection, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
		return &ldap.ExtendedResponse{LDAPResult: ldap.NewSuccessResult(), Value: req.Value}, nil
	}))
	require.NoError(t, h.Extended().RegisterFunc(failOID, func(*Connection, *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
		return nil, errors.New("backend offline")
	}))
	require.NoError(t, h.Extended().RegisterFunc(emptyOID, func(*Connection, *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
		return nil, nil
	}))

	tests := []struct {
		name    string
		oid     string
		want    ldap.ResultCode
		message string
	}{
		{"registered", echoOID, ldap.ResultSuccess, ""},
		{"handler error", failOID, ldap.ResultOperationsError, "backend offline"},
		{"nil response", emptyOID, ldap.ResultSuccess, ""},
		{"unknown", "1.2.3", ldap.ResultProtocolError, "unsupported extended operation: 1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.HandleExtended(nil, &ldap.ExtendedRequest{Name: tt.oid, Value: []byte("v")})
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.ResultCode)
			assert.Equal(t, tt.message, resp.DiagnosticMessage)
		})
	}
}

func TestExtendedDispatcher(t *testing.T) {
	d := NewExtendedDispatcher()

	assert.ErrorIs(t, d.Register(nil), ErrNilHandler)
	assert.ErrorIs(t, d.RegisterFunc("1.2.3", nil), ErrNilHandler)
	assert.ErrorIs(t, d.RegisterFunc("", func(*Connection, *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
		return nil, nil
	}), ErrEmptyOID)

	require.NoError(t, d.Register(NewWhoAmIHandler()))
	require.NoError(t, d.RegisterFunc("1.2.3", func(*Connection, *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
		return nil, nil
	}))

	assert.True(t, d.HasHandler(ldap.WhoAmIOID))
	assert.Equal(t, []string{"1.2.3", ldap.WhoAmIOID}, d.SupportedOIDs())

	assert.True(t, d.Unregister("1.2.3"))
	assert.False(t, d.Unregister("1.2.3"))
	assert.False(t, d.HasHandler("1.2.3"))

	resp, err := d.Handle(nil, &ldap.ExtendedRequest{Name: "1.2.3"})
	assert.ErrorIs(t, err, ErrUnknownOID)
	require.NotNil(t, resp)
	assert.Equal(t, ldap.ResultProtocolError, resp.ResultCode)
}

func TestWhoAmIHandler(t *testing.T) {
	h := NewWhoAmIHandler()
	assert.Equal(t, ldap.WhoAmIOID, h.OID())

	conn := NewConnection(newMockConn(nil), nil)

	resp, err := h.Handle(conn, &ldap.ExtendedRequest{Name: ldap.WhoAmIOID})
	require.NoError(t, err)
	assert.Equal(t, ldap.ResultSuccess, resp.ResultCode)
	assert.Empty(t, resp.Value)
	assert.Empty(t, resp.Name)

	conn.setBind("cn=admin,dc=example,dc=com", true)
	resp, err = h.Handle(conn, &ldap.ExtendedRequest{Name: ldap.WhoAmIOID})
	require.NoError(t, err)
	assert.Equal(t, "dn:cn=admin,dc=example,dc=com", string(resp.Value))
}
