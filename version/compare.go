// Package version checks for newer releases of the application.
package version

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// parse reads "v1.2.3" or "1.2.3-rc1" into its numeric components. Build and pre-release suffixes are ignored.
func parse(s string) ([3]int, error) {
	var parts [3]int

	core, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(s), "v"), "-")
	fields := strings.Split(core, ".")
	if len(fields) != len(parts) {
		return parts, fmt.Errorf("invalid version %q", s)
	}
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return parts, fmt.Errorf("invalid version %q: %w", s, err)
		}
		parts[i] = n
	}
	return parts, nil
}

// Compare returns 1 if a is newer than b, -1 if it is older and 0 if both are the same release.
func Compare(a, b string) (int, error) {
	av, err := parse(a)
	if err != nil {
		return 0, err
	}
	bv, err := parse(b)
	if err != nil {
		return 0, err
	}

	for i := range av {
		if c := cmp.Compare(av[i], bv[i]); c != 0 {
			return c, nil
		}
	}
	return 0, nil
}
