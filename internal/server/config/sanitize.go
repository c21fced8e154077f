package config

import "github.com/yndnr/kvmesh-go/internal/telemetry/logger"

// Sanitize returns a copy of cfg with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	if out.Security.EncryptionKey != "" {
		out.Security.EncryptionKey = logger.Mask(out.Security.EncryptionKey)
	}
	return &out
}
