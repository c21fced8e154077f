// Package domain defines the kvmesh domain types shared by the service
// layer and the transports:
//
//   - Entry: a key with its value
//   - Limits: client-facing key and value size limits
//   - Errors: coded domain errors mapped to HTTP and RESP replies
//
// The package has no IO dependencies.
package domain
