// Package logger configures structured logging for kvmesh.
//
// It builds log/slog loggers with:
//
//   - JSON (default) or text output
//   - a process-wide level that can change at runtime (SetLevel)
//   - redaction of attributes whose key names a secret
//   - request ID propagation from context.Context
//
// Components receive a *slog.Logger; the server installs the configured
// logger as slog's default at startup.
package logger
