// Package connection is the HTTP client kvmesh-cli uses to reach a server.
//
// Responses arrive in the server's JSON envelope; the client unwraps the
// data field into the caller's value and turns error envelopes into
// *APIError.
package connection
