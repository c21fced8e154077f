// Package config holds the kvmesh-cli preferences file, ~/.kvmesh/cli.yaml.
package config
