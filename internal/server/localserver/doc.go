// Package localserver serves the HTTP API on a Unix domain socket for
// local administration.
//
// The socket is created with mode 0600, so file system permissions decide
// who may connect. Requests on the socket skip the per-client rate limit.
// kvmesh-cli reaches it with --server unix:///path/to/kvmesh.sock.
package localserver
