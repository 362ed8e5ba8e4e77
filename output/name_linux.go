package output

import "golang.org/x/sys/unix"

// MaxNameLength is the longest file name in bytes the working directory's filesystem accepts.
func MaxNameLength() int {
	var stat unix.Statfs_t
	if err := unix.Statfs(".", &stat); err != nil || stat.Namelen <= 0 {
		return defaultNameMax
	}
	return int(stat.Namelen)
}
