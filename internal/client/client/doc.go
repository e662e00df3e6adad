// Package client talks to the gophauth gRPC endpoint.
//
// GRPCClient manages the connection, attaches credentials to outgoing calls
// through an interceptor, and maps gRPC status codes to sentinel errors
// (ErrUnavailable, ErrUnauthorized) that callers match with errors.Is.
package client
