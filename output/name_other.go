//go:build !linux

package output

// MaxNameLength is the longest file name in bytes, assuming common filesystem limits.
func MaxNameLength() int {
	return defaultNameMax
}
