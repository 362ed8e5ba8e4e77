package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/spf13/afero"
)

const (
	chaptersFile  = "chapters.tmp.txt"
	chaptersMedia = "audiobook.tmp.mp4"
)

// FFMetadata renders chapters in ffmpeg's metadata file format with millisecond timestamps.
func FFMetadata(chapters []audiobook.Chapter, endMillis int64) string {
	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")

	for i, chapter := range chapters {
		end := endMillis
		if i+1 < len(chapters) {
			end = chapters[i+1].Start
		}

		fmt.Fprintf(&b, "[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n\n",
			chapter.Start, end, escapeFFMetadata(chapter.Title))
	}
	return b.String()
}

// escapeFFMetadata escapes the characters with a meaning in metadata files.
func escapeFFMetadata(s string) string {
	return strings.NewReplacer(`\`, `\\`, "=", `\=`, ";", `\;`, "#", `\#`, "\n", `\`+"\n").Replace(s)
}

// addFFmpegChapters remuxes path with a chapter list. Failures are reported and leave path untouched.
func (w *Writer) addFFmpegChapters(ctx context.Context, path string, chapters []audiobook.Chapter) error {
	if w.Runner == nil || !w.Runner.Available() {
		log.Warn("ffmpeg is not installed, chapters are not embedded")
		return nil
	}

	fs := filesystem.API()
	dir := filepath.Dir(path)
	list := filepath.Join(dir, chaptersFile)
	media := filepath.Join(dir, chaptersMedia)

	defer func() {
		_ = fs.Remove(list)
		_ = fs.Remove(media)
	}()

	end := w.lengthMillis(ctx, path, chapters)
	if err := fs.WriteFile(list, []byte(FFMetadata(chapters, end)), 0o644); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", path,
		"-i", list,
		"-map_chapters", "1",
		"-c", "copy",
		"-map", "0",
		"-metadata:s:a:0", "title=",
		media,
	}
	if err := w.Runner.Run(ctx, args, nil); err != nil {
		log.Warnf("adding chapters to %s failed: %s", path, err)
		return nil
	}

	if exists, _ := afero.Exists(fs, media); !exists {
		log.Warnf("adding chapters to %s produced no output", path)
		return nil
	}

	if err := fs.Remove(path); err != nil {
		return err
	}
	return fs.Rename(media, path)
}
