// Package command defines the kvmesh-cli commands on urfave/cli/v2.
//
//   - get, set, list: key-value access over the HTTP API
//   - stats: store and arena statistics
//   - system: server status, health, readiness and snapshots
//   - config: the local preferences file
//
// Every command honours the global --output flag.
package command
