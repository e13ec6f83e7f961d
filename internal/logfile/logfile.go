// Package logfile understands the on-disk layout of PMTA accounting logs:
// flat files whose names embed the ISO date of the traffic they cover, e.g.
// oempro-2024-01-15-0002.csv.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// DateLayout is the canonical form of the date embedded in log filenames.
// The fixed-width layout makes lexicographic comparison between two such
// dates equivalent to calendar comparison.
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// LogFile is a snapshot of one local log file taken at scan time.
type LogFile struct {
	Path string // absolute or scan-relative path on local disk
	Name string // base filename
	Size int64  // size in bytes at scan time
	Date string // embedded YYYY-MM-DD date, empty when none was found
}

// ExtractDate returns the first substring of name that is a real calendar
// date in DateLayout form. Digit runs that merely look like dates, such as
// 2024-13-45, are passed over. The second return is false when the name
// carries no usable date; such files are reported and left alone, never
// treated as errors.
func ExtractDate(name string) (string, bool) {
	for _, m := range datePattern.FindAllString(name, -1) {
		if _, err := time.Parse(DateLayout, m); err == nil {
			return m, true
		}
	}
	return "", false
}

// RemoteKey maps the file to its object key: {prefix}/{YYYY-MM}/{filename}.
// The month partition comes from the embedded date, never from upload time,
// so re-uploading the same file always targets the same key. The file must
// carry an embedded date.
func (f LogFile) RemoteKey(prefix string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, f.Date[:7], f.Name)
}

// Scan enumerates the regular files directly inside dir whose names match
// the glob pattern, sorted by filename. Subdirectories are not descended
// into. An unreadable directory is an error; the caller has nothing safe to
// do without a complete listing.
func Scan(dir, pattern string) ([]LogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read log directory %s: %w", dir, err)
	}

	files := make([]LogFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("filename pattern %q is not a valid glob: %w", pattern, err)
		}
		if !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("cannot stat %s: %w", entry.Name(), err)
		}
		date, _ := ExtractDate(entry.Name())
		files = append(files, LogFile{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
			Size: info.Size(),
			Date: date,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
