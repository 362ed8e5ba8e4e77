// Package metadata embeds tags, cover art and chapters into finished audiobooks.
//
// The tagging strategy is chosen from the file signature, not its extension:
// MPEG audio gets ID3v2.4 frames, MP4 containers get iTunes atoms.
package metadata

import (
	"bytes"
	"context"
	"io"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/util"
)

// Container is the tagging family of an audio file.
type Container int

const (
	Unknown Container = iota
	ID3
	MP4
)

func (c Container) String() string {
	switch c {
	case ID3:
		return "id3"
	case MP4:
		return "mp4"
	default:
		return "unknown"
	}
}

// Detect inspects the first bytes of path.
func Detect(path string) (Container, error) {
	f, err := filesystem.API().Open(path)
	if err != nil {
		return Unknown, err
	}
	defer util.Ignore(f.Close)

	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Unknown, err
	}
	return DetectBytes(head[:n]), nil
}

// DetectBytes classifies a file header.
func DetectBytes(head []byte) Container {
	switch {
	case bytes.HasPrefix(head, []byte("ID3")):
		return ID3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 && head[1]&0x06 != 0:
		return ID3
	case len(head) >= 8 && string(head[4:8]) == "ftyp":
		return MP4
	default:
		return Unknown
	}
}

// Writer applies metadata to finished files.
// Tags, cover and chapters are independent; one can succeed while another is skipped.
type Writer struct {
	Runner ffmpeg.Runner
}

// NewWriter creates a writer that uses runner for chapter embedding and durations.
func NewWriter(runner ffmpeg.Runner) *Writer {
	return &Writer{Runner: runner}
}

func (w *Writer) detect(path, step string) Container {
	container, err := Detect(path)
	if err != nil {
		log.Warnf("%s: cannot read %s: %s", step, path, err)
		return Unknown
	}
	if container == Unknown {
		log.Infof("%s: %s is not a supported container, skipping", step, path)
	}
	return container
}

// AddMetadata writes book tags to path.
func (w *Writer) AddMetadata(_ context.Context, path string, meta audiobook.Metadata) error {
	switch w.detect(path, "metadata") {
	case ID3:
		return writeID3(path, func(tag id3Tag) { applyID3Metadata(tag, meta) })
	case MP4:
		return writeMP4(path, mp4Tags(meta, nil))
	default:
		return nil
	}
}

// EmbedCover stores cover art in path.
func (w *Writer) EmbedCover(_ context.Context, path string, cover audiobook.Cover) error {
	if len(cover.Image) == 0 {
		return nil
	}

	switch w.detect(path, "cover") {
	case ID3:
		return writeID3(path, func(tag id3Tag) { applyID3Cover(tag, cover) })
	case MP4:
		if cover.Ext != "jpg" && cover.Ext != "jpeg" && cover.Ext != "png" {
			log.Infof("cover: %s images cannot be stored in mp4, skipping", cover.Ext)
			return nil
		}
		return writeMP4(path, mp4Tags(audiobook.Metadata{}, &cover))
	default:
		return nil
	}
}

// AddChapters embeds chapter marks into path.
func (w *Writer) AddChapters(ctx context.Context, path string, chapters []audiobook.Chapter) error {
	if len(chapters) == 0 {
		return nil
	}

	switch w.detect(path, "chapters") {
	case ID3:
		end := w.lengthMillis(ctx, path, chapters)
		return writeID3(path, func(tag id3Tag) { applyID3Chapters(tag, chapters, end) })
	case MP4:
		return w.addFFmpegChapters(ctx, path, chapters)
	default:
		return nil
	}
}

// lengthMillis is the end of the last chapter: the file duration, or the last start when unknown.
func (w *Writer) lengthMillis(ctx context.Context, path string, chapters []audiobook.Chapter) int64 {
	last := chapters[len(chapters)-1].Start
	if w.Runner == nil {
		return last
	}

	probe, err := w.Runner.Probe(ctx, path)
	if err != nil || probe.Duration <= 0 {
		log.Debugf("unknown duration of %s, last chapter ends at its start", path)
		return last
	}
	return util.Max(int64(probe.Duration*1000), last)
}
