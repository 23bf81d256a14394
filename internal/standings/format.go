// v1
// internal/standings/format.go
package standings

import "fmt"

// FormatGap renders an adjacent gap in centiseconds as the wire string:
// "0.0" for the leader, otherwise "+<seconds>" with one decimal.
func FormatGap(gapCs int64, leader bool) string {
	if leader {
		return "0.0"
	}
	return fmt.Sprintf("+%.1f", float64(gapCs)/100)
}

// FormatTotal renders a cumulative total in centiseconds as
// minutes:seconds with one decimal, seconds zero-padded to width four
// (e.g. 65.3s -> "1:05.3").
func FormatTotal(cs int64) string {
	minutes := cs / 6000
	seconds := float64(cs%6000) / 100
	return fmt.Sprintf("%d:%04.1f", minutes, seconds)
}

// FormatRetired renders the total column for a retired competitor:
// stages completed over stages required so far.
func FormatRetired(completed, required int) string {
	return fmt.Sprintf("RIT (%d/%d)", completed, required)
}
