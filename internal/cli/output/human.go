package output

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Bytes renders a size in IEC units, e.g. "1.5 MiB".
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}

// Count renders an integer with thousands separators.
func Count(n int64) string {
	return humanize.Comma(n)
}

// Ago renders t relative to now, e.g. "3 minutes ago".
func Ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// Percent renders a ratio in [0, 1] as a percentage.
func Percent(r float64) string {
	return humanize.FormatFloat("#,###.#", r*100) + "%"
}
