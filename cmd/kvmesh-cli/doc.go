// Package main provides the entry point for kvmesh-cli.
//
// Usage:
//
//	kvmesh-cli [global flags] <command> [args]
//	kvmesh-cli set greeting hello
//	kvmesh-cli -o json get greeting
//	kvmesh-cli -s 10.0.0.5:8000 system status
package main
