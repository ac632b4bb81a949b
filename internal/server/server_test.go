package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obaber/internal/codec"
	"github.com/KilimcininKorOglu/obaber/internal/config"
	"github.com/KilimcininKorOglu/obaber/internal/ldap"
	"github.com/KilimcininKorOglu/obaber/internal/logging"
	"github.com/KilimcininKorOglu/obaber/internal/metrics"
)

type testClient struct {
	t     *testing.T
	conn  net.Conn
	codec *codec.Codec
	queue []*ldap.LDAPMessage
}

func dial(t *testing.T, addr net.Addr) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, codec: codec.New(ldap.NewRegistry(), codec.DefaultOptions())}
}

func (c *testClient) send(msg *ldap.LDAPMessage) {
	c.t.Helper()
	_, err := msg.WriteTo(c.conn)
	require.NoError(c.t, err)
}

// receive reads until one complete message is available.
func (c *testClient) receive() *ldap.LDAPMessage {
	c.t.Helper()
	buf := make([]byte, 512)
	for len(c.queue) == 0 {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		n, err := c.conn.Read(buf)
		if n > 0 {
			objs, decErr := c.codec.Decode("client", buf[:n])
			require.NoError(c.t, decErr)
			for _, obj := range objs {
				c.queue = append(c.queue, obj.(*ldap.LDAPMessage))
			}
		}
		if len(c.queue) == 0 {
			require.NoError(c.t, err)
		}
	}
	msg := c.queue[0]
	c.queue = c.queue[1:]
	return msg
}

// expectEOF asserts that the server closed the connection.
func (c *testClient) expectEOF() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := c.conn.Read(make([]byte, 16))
	assert.True(c.t, errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || isReset(err), "unexpected read error %v", err)
}

func isReset(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && !opErr.Timeout()
}

func startServer(t *testing.T, srv *Server) (context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, ln)
	}()

	require.Eventually(t, srv.IsRunning, 5*time.Second, 5*time.Millisecond)
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
		}
	})
	return cancel, errCh
}

func TestServerServe(t *testing.T) {
	srv := testServer(t)
	startServer(t, srv)

	client := dial(t, srv.Addr())
	client.send(bindRequest(1, "cn=admin,dc=example,dc=com", "secret"))
	resp := client.receive()
	assert.Equal(t, 1, resp.MessageID)
	assert.Equal(t, ldap.ResultSuccess, resultOf(t, resp).ResultCode)

	client.send(whoAmIRequest(2))
	resp = client.receive()
	assert.Equal(t, "dn:cn=admin,dc=example,dc=com", string(resp.Op.(*ldap.ExtendedResponse).Value))

	assert.Equal(t, 1, srv.ActiveConnections())

	client.send(&ldap.LDAPMessage{MessageID: 3, Op: &ldap.UnbindRequest{}})
	client.expectEOF()
	require.Eventually(t, func() bool { return srv.ActiveConnections() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestServerShutdownNotifiesClients(t *testing.T) {
	srv := testServer(t)
	_, errCh := startServer(t, srv)

	client := dial(t, srv.Addr())
	client.send(bindRequest(1, "", ""))
	client.receive()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	assertNotice(t, client.receive(), ldap.ResultUnavailable)
	client.expectEOF()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	assert.False(t, srv.IsRunning())
	assert.ErrorIs(t, srv.Shutdown(ctx), ErrServerNotRunning)
}

func TestServerConnectionLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxConnections = 1
	reg := prometheus.NewRegistry()
	srv := NewServer(cfg, nil, metrics.New(reg))
	startServer(t, srv)

	first := dial(t, srv.Addr())
	first.send(bindRequest(1, "", ""))
	first.receive()
	require.Eventually(t, func() bool { return srv.ActiveConnections() == 1 }, 5*time.Second, 5*time.Millisecond)

	second := dial(t, srv.Addr())
	assertNotice(t, second.receive(), ldap.ResultBusy)
	second.expectEOF()

	assert.Equal(t, float64(1), testutil.ToFloat64(srv.Metrics.ConnectionsRejected))

	first.send(bindRequest(2, "", ""))
	assert.Equal(t, 2, first.receive().MessageID)
}

func TestServerConnectionLimitBurst(t *testing.T) {
	const limit, extra = 2, 3

	cfg := config.DefaultConfig()
	cfg.Server.MaxConnections = limit
	reg := prometheus.NewRegistry()
	srv := NewServer(cfg, nil, metrics.New(reg))
	startServer(t, srv)

	conns := make(chan net.Conn, limit+extra)
	errs := make(chan error, limit+extra)
	for range limit + extra {
		go func() {
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			conns <- conn
		}()
	}

	busy := 0
	for range limit + extra {
		select {
		case err := <-errs:
			t.Fatalf("dial: %v", err)
		case conn := <-conns:
			t.Cleanup(func() { conn.Close() })
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
			buf := make([]byte, 512)
			n, _ := conn.Read(buf)
			if n == 0 {
				continue
			}
			objs, err := codec.New(ldap.NewRegistry(), codec.DefaultOptions()).Decode("client", buf[:n])
			require.NoError(t, err)
			require.Len(t, objs, 1)
			assertNotice(t, objs[0].(*ldap.LDAPMessage), ldap.ResultBusy)
			busy++
		case <-time.After(5 * time.Second):
			t.Fatal("dial timed out")
		}
	}

	assert.Equal(t, extra, busy)
	assert.Equal(t, limit, srv.ActiveConnections())
	assert.Equal(t, float64(extra), testutil.ToFloat64(srv.Metrics.ConnectionsRejected))
}

func TestServerContextCancel(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	cancel, errCh := startServer(t, srv)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.False(t, srv.IsRunning())
}

func TestServerAlreadyRunning(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	startServer(t, srv)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(context.Background(), ln), ErrServerRunning)
}

func TestServerShutdownNotRunning(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	assert.ErrorIs(t, srv.Shutdown(context.Background()), ErrServerNotRunning)
	assert.Nil(t, srv.Addr())
}

func TestServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := NewServer(nil, nil, metrics.New(reg))
	startServer(t, srv)

	client := dial(t, srv.Addr())
	client.send(bindRequest(1, "", ""))
	client.receive()
	client.send(&ldap.LDAPMessage{MessageID: 2, Op: &ldap.DelRequest{DN: "cn=x"}})
	client.receive()

	m := srv.Metrics
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PDUsDecoded.WithLabelValues("BindRequest")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PDUsDecoded.WithLabelValues("DelRequest")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveConnections))
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.BytesWritten) > 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Greater(t, testutil.ToFloat64(m.BytesRead), float64(0))

	_, err := client.conn.Write([]byte{0x30, 0xFF})
	require.NoError(t, err)
	assertNotice(t, client.receive(), ldap.ResultProtocolError)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.DecodeErrors.WithLabelValues("malformed_length")) == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.ActiveConnections) == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestServerSetLogLevel(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	srv.init()
	assert.NotPanics(t, func() { srv.SetLogLevel(0) })
}

func TestServerWarnsWhenNotStrict(t *testing.T) {
	tests := []struct {
		strict bool
		warned bool
	}{
		{strict: true, warned: false},
		{strict: false, warned: true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		cfg := config.DefaultConfig()
		cfg.Codec.Strict = tt.strict
		srv := NewServer(cfg, logging.NewWithWriter(&buf, logging.LevelInfo, logging.FormatJSON), nil)

		NewConnection(newMockConn(nil), srv)
		assert.Equal(t, tt.warned, bytes.Contains(buf.Bytes(), []byte("strict mode is off")), "strict=%v", tt.strict)
	}
}
