package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server administration",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show build, uptime and memory of the server",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check that the server answers",
				Action: systemCheck("/health"),
			},
			{
				Name:   "ready",
				Usage:  "Check that the dataset is loaded",
				Action: systemCheck("/ready"),
			},
			{
				Name:   "snapshot",
				Usage:  "Persist the store now",
				Action: systemSnapshot,
			},
		},
	}
}

func systemStatus(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	var st handler.StatusResponse
	if err := s.client.Get(ctx, "/admin/v1/status", &st); err != nil {
		return err
	}

	tbl := output.NewTable("FIELD", "VALUE")
	tbl.AddRow("status", st.Status)
	tbl.AddRow("version", st.Build.Version)
	tbl.AddRow("commit", st.Build.Commit)
	tbl.AddRow("go", st.Build.GoVersion)
	tbl.AddRow("platform", st.Build.Platform)
	tbl.AddRow("started", output.Ago(st.StartedAt))
	tbl.AddRow("uptime", st.Uptime)
	tbl.AddRow("goroutines", st.Goroutines)
	tbl.AddRow("heap_alloc", output.Bytes(st.Memory.HeapAlloc))
	tbl.AddRow("sys", output.Bytes(st.Memory.Sys))
	tbl.AddRow("gc_cycles", st.Memory.NumGC)
	tbl.AddRow("keys", output.Count(int64(st.Store.Keys)))
	tbl.AddRow("buckets", output.Count(int64(st.Store.Buckets)))
	tbl.AddRow("lock_free", st.Store.LockFree)
	return s.print(st, tbl)
}

// systemCheck checks a health endpoint. A failing check prints the reason
// and returns an error so the exit status reflects it.
func systemCheck(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		ctx, cancel := s.requestContext()
		defer cancel()

		var res struct {
			Status string `json:"status"`
			Time   string `json:"time"`
		}
		err = s.client.Get(ctx, path, &res)

		var apiErr *connection.APIError
		if err != nil && !errors.As(err, &apiErr) {
			return err
		}
		if apiErr != nil {
			res.Status = "unavailable"
		}

		tbl := output.NewTable("SERVER", "STATUS")
		tbl.AddRow(s.client.BaseURL(), res.Status)
		if perr := s.print(res, tbl); perr != nil {
			return perr
		}
		return err
	}
}

func systemSnapshot(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	var res handler.SnapshotResponse
	if err := s.client.Post(ctx, "/admin/v1/snapshot", nil, &res); err != nil {
		return err
	}

	tbl := output.NewTable("RECORDS", "DURATION_MS")
	tbl.AddRow(output.Count(int64(res.Records)), res.DurationMS)
	return s.print(res, tbl)
}
