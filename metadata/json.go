package metadata

import (
	"encoding/json"
	"path/filepath"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
)

// Sidecar is the JSON document stored next to a downloaded book.
type Sidecar struct {
	Metadata audiobook.Metadata  `json:"metadata"`
	Chapters []audiobook.Chapter `json:"chapters,omitempty"`
	// Cover is the file name of the cover stored next to the sidecar, if any.
	Cover string `json:"cover,omitempty"`
}

// SidecarPath is "<artifact>.json" for a single file and "<dir>/metadata.json" for a directory of parts.
func SidecarPath(artifact string, directory bool) string {
	if directory {
		return filepath.Join(artifact, "metadata.json")
	}
	return artifact + ".json"
}

// CoverPath is where a directory of parts keeps its cover image.
func CoverPath(dir string, cover audiobook.Cover) string {
	return filepath.Join(dir, "cover."+cover.Ext)
}

// WriteCover stores cover art as a file in dir and returns its path.
func WriteCover(dir string, cover audiobook.Cover) (string, error) {
	path := CoverPath(dir, cover)
	if err := filesystem.API().MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return path, filesystem.API().WriteFile(path, cover.Image, 0o644)
}

// WriteJSON writes the sidecar of book for artifact.
func WriteJSON(artifact string, directory bool, book *audiobook.Audiobook) (string, error) {
	sidecar := Sidecar{
		Metadata: book.Metadata,
		Chapters: book.Chapters,
	}
	if cover, ok := book.Cover.Get(); ok && directory {
		sidecar.Cover = filepath.Base(CoverPath(artifact, cover))
	}

	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return "", err
	}

	path := SidecarPath(artifact, directory)
	if err := filesystem.API().MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, filesystem.API().WriteFile(path, data, 0o644)
}
