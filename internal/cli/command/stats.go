package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/output"
	"github.com/yndnr/kvmesh-go/internal/core/service"
)

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show store and arena statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "chains",
				Usage: "walk every bucket to report chain lengths",
				Value: true,
			},
		},
		Action: showStats,
	}
}

func showStats(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	path := "/stats?chains=0"
	if c.Bool("chains") {
		path = "/stats?chains=1"
	}
	var st service.Stats
	if err := s.client.Get(ctx, path, &st); err != nil {
		return err
	}
	return s.print(st, statsTable(st))
}

func statsTable(st service.Stats) *output.Table {
	tbl := output.NewTable("FIELD", "VALUE")
	tbl.AddRow("keys", output.Count(int64(st.Keys)))
	tbl.AddRow("buckets", output.Count(int64(st.Buckets)))
	tbl.AddRow("lock_free", st.LockFree)

	reads := st.Reads.Total()
	tbl.AddRow("reads", output.Count(int64(reads)))
	tbl.AddRow("hits", output.Count(int64(st.Reads.Success)))
	tbl.AddRow("misses", output.Count(int64(st.Reads.Failure)))
	if reads > 0 {
		tbl.AddRow("hit_ratio", output.Percent(float64(st.Reads.Success)/float64(reads)))
	}

	if ch := st.Chains; ch != nil {
		tbl.AddRow("used_buckets", output.Count(int64(ch.UsedBuckets)))
		tbl.AddRow("max_chain", ch.MaxChain)
		tbl.AddRow("mean_chain", fmt.Sprintf("%.2f", ch.MeanChain))
		tbl.AddRow("load_factor", fmt.Sprintf("%.3f", ch.LoadFactor))
	}

	tbl.AddRow("arena_reserved", output.Bytes(st.Arena.BytesReserved))
	tbl.AddRow("arena_used", output.Bytes(st.Arena.BytesUsed))
	tbl.AddRow("arena_live_allocs", output.Count(int64(st.Arena.LiveAllocs)))
	if st.ArenaHeaps > 0 {
		tbl.AddRow("arena_heaps", st.ArenaHeaps)
	}
	return tbl
}
