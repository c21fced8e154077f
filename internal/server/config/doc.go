// Package config defines the kvmesh-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets before the config is logged
//
// Values are loaded through internal/infra/confloader from a YAML file and
// KVMESH_ environment variables on top of Default().
package config
