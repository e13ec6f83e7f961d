// Package retention decides which dated log files have aged out of the
// local disk window.
package retention

import (
	"time"

	"github.com/emailops/pmta-archiver/internal/logfile"
)

// Cutoff returns the boundary date, retentionDays calendar days before now,
// as a canonical YYYY-MM-DD string. AddDate carries month and year
// boundaries, so subtracting 7 days from March 3 lands on February 25.
func Cutoff(now time.Time, retentionDays int) string {
	return now.AddDate(0, 0, -retentionDays).Format(logfile.DateLayout)
}

// Eligible reports whether a file dated fileDate has aged past the cutoff.
// Both arguments are canonical YYYY-MM-DD strings, compared lexicographically.
// A file dated exactly on the cutoff is kept for one more day.
func Eligible(fileDate, cutoff string) bool {
	return fileDate < cutoff
}
