package metadata

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/util"
	"github.com/bogem/id3v2/v2"
)

type id3Tag = *id3v2.Tag

// writeID3 rewrites the ID3v2 tag of path in front of the untouched audio data.
// The audio is streamed into a temporary file next to path, which then replaces it.
func writeID3(path string, apply func(id3Tag)) (err error) {
	fs := filesystem.API()

	in, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer util.Ignore(in.Close)

	stat, err := in.Stat()
	if err != nil {
		return err
	}

	header := make([]byte, 10)
	n, err := io.ReadFull(in, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	size := tagSize(header[:n], stat.Size())

	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return err
	}
	tag, err := id3v2.ParseReader(io.LimitReader(in, size), id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("parse id3 tag of %s: %w", path, err)
	}
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	apply(tag)

	tmp := path + ".tag.tmp"
	out, err := fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = fs.Remove(tmp)
		}
	}()

	if _, err = tag.WriteTo(out); err != nil {
		return fmt.Errorf("encode id3 tag of %s: %w", path, err)
	}
	if _, err = in.Seek(size, io.SeekStart); err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy audio of %s: %w", path, err)
	}
	if err = out.Close(); err != nil {
		return err
	}
	_ = in.Close()
	return fs.Rename(tmp, path)
}

// tagSize is the length of the ID3v2 tag described by header, footer included, capped at fileSize.
func tagSize(header []byte, fileSize int64) int64 {
	if len(header) < 10 || !bytes.HasPrefix(header, []byte("ID3")) {
		return 0
	}

	size := int64(header[6]&0x7f)<<21 | int64(header[7]&0x7f)<<14 | int64(header[8]&0x7f)<<7 | int64(header[9]&0x7f)
	total := 10 + size
	if header[5]&0x10 != 0 {
		total += 10
	}
	return min(total, fileSize)
}

func applyID3Metadata(tag id3Tag, meta audiobook.Metadata) {
	text := func(id, value string) {
		if value == "" {
			return
		}
		tag.DeleteFrames(id)
		tag.AddTextFrame(id, id3v2.EncodingUTF8, value)
	}
	user := func(description, value string) {
		if value == "" {
			return
		}
		deleteUserFrame(tag, description)
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: description,
			Value:       value,
		})
	}

	text("TIT2", meta.Title)

	text("TPE1", meta.Author())
	text("TPE2", meta.Author())

	text("TCOM", meta.Narrator())
	text("TPE3", meta.Narrator())

	text("TCON", meta.Genre())
	text("TPUB", meta.Publisher)
	text("TLAN", meta.Language)

	if meta.Series != "" {
		text("TALB", meta.Series)
		user("SERIES", meta.Series)
	}
	if order, ok := meta.Order(); ok {
		text("TRCK", order)
		user("SERIES-PART", order)
		if meta.Series != "" {
			text("TIT1", fmt.Sprintf("%s, Book %s", meta.Series, order))
		}
	}

	if date, ok := meta.ReleaseDate.Get(); ok {
		text("TDOR", date.Format(time.DateOnly))
		text("TDRC", strconv.Itoa(date.Year()))
	}

	user("ISBN", meta.ISBN)

	if meta.Description != "" {
		tag.DeleteFrames("COMM")
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     meta.Description,
		})
	}

	if meta.ScrapeURL != "" {
		tag.DeleteFrames("WCOM")
		tag.AddFrame("WCOM", id3v2.UnknownFrame{Body: []byte(requote(meta.ScrapeURL))})
	}
}

// deleteUserFrame removes the TXXX frames with description and keeps the others.
func deleteUserFrame(tag id3Tag, description string) {
	frames := tag.GetFrames("TXXX")
	if len(frames) == 0 {
		return
	}

	tag.DeleteFrames("TXXX")
	for _, f := range frames {
		switch frame := f.(type) {
		case id3v2.UserDefinedTextFrame:
			if frame.Description != description {
				tag.AddUserDefinedTextFrame(frame)
			}
		default:
			tag.AddFrame("TXXX", f)
		}
	}
}

// requote percent-encodes characters URL frames cannot hold.
func requote(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.String()
}

func applyID3Cover(tag id3Tag, cover audiobook.Cover) {
	tag.DeleteFrames("APIC")
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    cover.MimeType(),
		PictureType: id3v2.PTFrontCover,
		Description: "Front cover",
		Picture:     cover.Image,
	})
}

func applyID3Chapters(tag id3Tag, chapters []audiobook.Chapter, endMillis int64) {
	tag.DeleteFrames("CHAP")

	for i, chapter := range chapters {
		end := endMillis
		if i+1 < len(chapters) {
			end = chapters[i+1].Start
		}

		tag.AddChapterFrame(id3v2.ChapterFrame{
			ElementID:   "chp" + strconv.Itoa(i+1),
			StartTime:   time.Duration(chapter.Start) * time.Millisecond,
			EndTime:     time.Duration(end) * time.Millisecond,
			StartOffset: id3v2.IgnoredOffset,
			EndOffset:   id3v2.IgnoredOffset,
			Title: &id3v2.TextFrame{
				Encoding: id3v2.EncodingUTF8,
				Text:     chapter.Title,
			},
		})
	}
}
