package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/config"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the preferences file",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the preferences",
				Action: configShow,
			},
			{
				Name:      "set",
				Usage:     "Change one preference: server, output or timeout",
				ArgsUsage: "<name> <value>",
				Action:    configSet,
			},
		},
	}
}

func loadedConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

func configShow(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg := loadedConfig(c)

	tbl := output.NewTable("NAME", "VALUE")
	tbl.AddRow("file", c.String("config"))
	tbl.AddRow("server", cfg.Server)
	tbl.AddRow("output", cfg.Output)
	tbl.AddRow("timeout", cfg.Timeout)
	if g.Output == output.FormatTable {
		return (&output.TableFormatter{NoHeaders: g.NoHeaders}).Format(c.App.Writer, tbl)
	}
	return output.NewFormatter(g.Output).Format(c.App.Writer, cfg)
}

func configSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: config set <name> <value>")
	}
	name, value := c.Args().Get(0), c.Args().Get(1)

	cfg := *loadedConfig(c)
	switch name {
	case "server":
		cfg.Server = value
	case "output":
		f, err := output.ParseFormat(value)
		if err != nil {
			return err
		}
		cfg.Output = string(f)
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = value
	default:
		return fmt.Errorf("unknown preference %q", name)
	}

	if err := config.Save(&cfg, c.String("config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s set to %s\n", name, value)
	return nil
}
