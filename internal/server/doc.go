// Package server provides the LDAP front end: a TCP listener that decodes
// each connection incrementally and answers a small set of operations.
//
// # Overview
//
// The server package implements the network layer. It handles:
//
//   - connection management with a connection limit and timeouts
//   - incremental decoding of whatever each Read returns
//   - request dispatching to operation handlers
//   - response encoding and transmission
//
// # Connection Handling
//
// A Server shares one codec among its connections. Each connection is a
// separate codec stream named by the connection's request ID, so a message
// split across many TCP segments is decoded as the segments arrive and
// several messages in one segment are all dispatched:
//
//	srv := server.NewServer(cfg, logger, m)
//	go srv.ListenAndServe(ctx)
//	...
//	srv.Shutdown(shutdownCtx)
//
// A malformed message ends the connection with a Notice of Disconnection
// (an ExtendedResponse with messageID 0 and protocolError). Shutdown sends
// the same notice with unavailable to every open connection.
//
// # Operations
//
//   - Bind: simple authentication against the configured root DN;
//     anonymous binds succeed; SASL is refused
//   - Unbind: closes the connection
//   - Abandon: no response
//   - Delete: unwillingToPerform
//   - Extended: routed by OID through an ExtendedDispatcher; Who Am I
//     (RFC 4532) is registered by default
//   - any other request is answered with protocolError in its response type
//
// Handlers can be replaced:
//
//	handler := server.NewHandler()
//	handler.SetDeleteHandler(func(conn *server.Connection, req *ldap.DelRequest) *server.OperationResult {
//	    return &server.OperationResult{ResultCode: ldap.ResultInsufficientAccessRights}
//	})
//	handler.Extended().RegisterFunc(oid, myExtendedOperation)
package server
