package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

var progressKey = regexp.MustCompile(`^[a-z_0-9]+=\S*$`)

// ParseProgressLine extracts the output position in microseconds from a line of
// "-progress" output. Legacy stats lines containing "time=" are understood as well.
func ParseProgressLine(line string) (int64, bool) {
	line = strings.TrimSpace(line)

	if v, ok := strings.CutPrefix(line, "out_time_us="); ok {
		us, err := strconv.ParseInt(v, 10, 64)
		return us, err == nil && us >= 0
	}

	if v, ok := strings.CutPrefix(line, "out_time="); ok {
		return seconds(v)
	}

	if _, v, ok := strings.Cut(line, " time="); ok {
		v, _, _ = strings.Cut(v, " ")
		return seconds(v)
	}

	return 0, false
}

func seconds(v string) (int64, bool) {
	s, ok := ParseDuration(v)
	if !ok {
		return 0, false
	}
	return int64(s * 1e6), true
}

// ParseDuration parses "HH:MM:SS.ms", "MM:SS.ms" or "SS.ms" into seconds.
func ParseDuration(s string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, false
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}

func isProgressKey(line string) bool {
	return progressKey.MatchString(strings.TrimSpace(line))
}
