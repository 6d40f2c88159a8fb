package sync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Progress is one per-file status line from rsync -P.
type Progress struct {
	Bytes   int64  // bytes of the current file sent so far
	Percent int    // of the current file
	Rate    string // as rsync prints it, e.g. "1.23MB/s"
	ETA     string // h:mm:ss for the current file

	// Set once rsync finishes a file: xfr# and the to-chk (or ir-chk)
	// remaining/total pair.
	Transfers int
	Remaining int
	Total     int
}

// Summary renders p for a one-line status display.
func (p Progress) Summary() string {
	s := fmt.Sprintf("%3d%% %s %s", p.Percent, FormatBytes(p.Bytes), p.Rate)
	if p.Total > 0 {
		s += fmt.Sprintf(" (%d/%d files)", p.Total-p.Remaining, p.Total)
	}
	return s
}

//	"         32,768 100%    1.23MB/s    0:00:01 (xfr#1, to-chk=99/100)"
//	"      1,234,567  42%  500.00kB/s    0:01:23"
var progressLine = regexp.MustCompile(
	`^([\d,]+)\s+(\d{1,3})%\s+(\S+/s)\s+(\d+:\d{2}:\d{2})(?:\s+\(xfr#(\d+),\s*(?:ir|to)-chk=(\d+)/(\d+)\))?`,
)

// ParseProgress parses one rsync progress line. Anything else, including
// file names and the final stats block, gives nil.
func ParseProgress(line string) *Progress {
	m := progressLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil
	}

	bytes, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return nil
	}
	p := &Progress{Bytes: bytes, Rate: m[3], ETA: m[4]}
	p.Percent, _ = strconv.Atoi(m[2])
	if m[5] != "" {
		p.Transfers, _ = strconv.Atoi(m[5])
		p.Remaining, _ = strconv.Atoi(m[6])
		p.Total, _ = strconv.Atoi(m[7])
	}
	return p
}

// FormatBytes renders n in binary units with two decimals.
func FormatBytes(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}
	v := float64(n)
	unit := "B"
	for _, u := range []string{"KB", "MB", "GB", "TB"} {
		if v < 1024 {
			break
		}
		v /= 1024
		unit = u
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}
