package command

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/kvmesh-go/internal/storage/record"
)

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value of a key",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "write the value bytes unchanged",
			},
		},
		Action: getKey,
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a value under a key",
		ArgsUsage: "<key> [value]",
		Description: "The value is taken from the second argument, from --file, " +
			"or from standard input when --file is \"-\".",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "read the value from a file, - for stdin",
			},
		},
		Action: setKey,
	}
}

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List key-value pairs in unspecified order",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "maximum number of pairs",
				Value:   100,
			},
		},
		Action: listKeys,
	}
}

func getKey(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: get <key>")
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	key := c.Args().First()
	if c.Bool("raw") {
		value, err := s.client.GetRaw(ctx, connection.KeyPath(key)+"?raw=1")
		if err != nil {
			return err
		}
		_, err = c.App.Writer.Write(value)
		return err
	}

	var rec record.Record
	if err := s.client.Get(ctx, connection.KeyPath(key), &rec); err != nil {
		return err
	}
	_, value, err := rec.Decode()
	if err != nil {
		return err
	}

	tbl := output.NewTable("KEY", "VALUE", "SIZE")
	tbl.AddRow(key, displayValue(rec, value), output.Bytes(uint64(len(value))))
	return s.print(rec, tbl)
}

func setKey(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return errors.New("usage: set <key> [value]")
	}

	var value []byte
	switch file := c.String("file"); {
	case file != "" && c.NArg() > 1:
		return errors.New("set: give the value either as argument or with --file")
	case file == "-":
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		value = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		value = b
	case c.NArg() == 2:
		value = []byte(c.Args().Get(1))
	default:
		return errors.New("usage: set <key> [value]")
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	var res handler.SetResponse
	if err := s.client.Put(ctx, connection.KeyPath(key), value, &res); err != nil {
		return err
	}

	tbl := output.NewTable("KEY", "SIZE")
	tbl.AddRow(res.Key, output.Bytes(uint64(res.Size)))
	return s.print(res, tbl)
}

func listKeys(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.Int("limit")))

	var res handler.ListResponse
	if err := s.client.Get(ctx, "/kv?"+q.Encode(), &res); err != nil {
		return err
	}

	tbl := output.NewTable("KEY", "VALUE")
	for _, rec := range res.Items {
		key, value, err := rec.Decode()
		if err != nil {
			return err
		}
		tbl.AddRow(displayKey(key), displayValue(rec, value))
	}
	if err := s.print(res, tbl); err != nil {
		return err
	}
	if s.Output == output.FormatTable && res.Truncated {
		s.printf("(%s of %s keys shown)\n", output.Count(int64(res.Count)), output.Count(int64(res.Total)))
	}
	return nil
}

const maxDisplay = 64

// displayValue shortens a value for table output. Binary values are
// quoted.
func displayValue(rec record.Record, value []byte) string {
	if len(value) > maxDisplay {
		value = value[:maxDisplay]
		if rec.Encoding == record.EncodingBase64 {
			return strconv.Quote(string(value)) + "..."
		}
		return string(value) + "..."
	}
	if rec.Encoding == record.EncodingBase64 {
		return strconv.Quote(string(value))
	}
	return string(value)
}

func displayKey(key string) string {
	if strconv.CanBackquote(key) {
		return key
	}
	return strconv.Quote(key)
}
