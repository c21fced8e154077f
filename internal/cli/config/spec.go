package config

// CLIConfig is the content of the preferences file.
type CLIConfig struct {
	// Server is used when --server and KVMESH_SERVER are absent.
	Server string `yaml:"server" json:"server"`
	// Output is the default output format.
	Output string `yaml:"output" json:"output"`
	// Timeout is a request timeout such as "30s".
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Default server and output format.
const (
	DefaultServer = "127.0.0.1:8000"
	DefaultOutput = "table"
)

// Default returns the default configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: DefaultServer,
		Output: DefaultOutput,
	}
}
