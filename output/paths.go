package output

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
)

// FilePaths names the download destination of every file.
// A single file is stored as "<location>.<ext>"; multiple files become
// "<location>/Part NN.<ext>" numbered from zero and padded to the width of the file count.
func FilePaths(location string, files []audiobook.File) []string {
	if len(files) == 1 {
		return []string{location + "." + files[0].Extension()}
	}

	width := len(strconv.Itoa(len(files)))
	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = filepath.Join(location, PartName(i, width)+"."+file.Extension())
	}
	return paths
}

// PartName is the base name of the i-th part.
func PartName(i, width int) string {
	return fmt.Sprintf("Part %0*d", width, i)
}

// CombinedPath is where all files of a book end up when combined.
func CombinedPath(location string, files []audiobook.File) string {
	ext := "mp3"
	if len(files) > 0 {
		ext = files[0].Extension()
	}
	return location + "." + ext
}
