package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/config"
	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

const metaConfig = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "kvmesh-cli",
		Usage:   "command-line client for kvmesh-server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			ListCommand(),
			StatsCommand(),
			SystemCommand(),
			ConfigCommand(),
		},
		Metadata: map[string]any{},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			c.App.Metadata[metaConfig] = cfg
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address: host:port, URL or unix:///path/to.sock",
			EnvVars: []string{"KVMESH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "omit table headers",
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "preferences file",
			EnvVars: []string{"KVMESH_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// GlobalFlags are the resolved global options. Flags and environment win
// over the preferences file.
type GlobalFlags struct {
	Server    string
	Output    output.Format
	Timeout   time.Duration
	NoHeaders bool
}

// ParseGlobalFlags resolves the global options for c.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg, _ := c.App.Metadata[metaConfig].(*config.CLIConfig)
	if cfg == nil {
		cfg = config.Default()
	}

	g := &GlobalFlags{
		Server:    cfg.Server,
		NoHeaders: c.Bool("no-headers"),
	}
	if c.IsSet("server") {
		g.Server = c.String("server")
	}

	format := cfg.Output
	if c.IsSet("output") {
		format = c.String("output")
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	g.Output = f

	if g.Timeout, err = cfg.RequestTimeout(); err != nil {
		return nil, err
	}
	if c.IsSet("timeout") {
		g.Timeout = c.Duration("timeout")
	}
	return g, nil
}

// session bundles what a command needs to call the server and print.
type session struct {
	*GlobalFlags
	c      *cli.Context
	client *connection.HTTPClient
}

func newSession(c *cli.Context) (*session, error) {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	return &session{
		GlobalFlags: g,
		c:           c,
		client:      connection.NewHTTPClient(g.Server, g.Timeout),
	}, nil
}

func (s *session) requestContext() (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = connection.DefaultTimeout
	}
	return context.WithTimeout(s.c.Context, timeout)
}

// print writes data in the selected format; table output uses tbl.
func (s *session) print(data any, tbl *output.Table) error {
	if s.Output == output.FormatTable && tbl != nil {
		return (&output.TableFormatter{NoHeaders: s.NoHeaders}).Format(s.c.App.Writer, tbl)
	}
	return output.NewFormatter(s.Output).Format(s.c.App.Writer, data)
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.c.App.Writer, format, args...)
}
