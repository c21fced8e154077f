// Package buildinfo provides build-time version information.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/kvmesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are not set, the commit falls back to the VCS stamp recorded by
// the Go toolchain.
package buildinfo
