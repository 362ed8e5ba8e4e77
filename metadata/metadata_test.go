package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg/ffmpegtest"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/bogem/id3v2/v2"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
)

func init() {
	filesystem.SetMemMapFs()
}

var (
	mpegAudio = append([]byte{0xFF, 0xFB, 0x90, 0x00}, bytes.Repeat([]byte{0x55}, 4096)...)
	mp4Audio  = append([]byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '}, bytes.Repeat([]byte{0x01}, 512)...)
)

func sampleMetadata() audiobook.Metadata {
	meta := audiobook.Metadata{
		Title:       "The Book",
		Series:      "Saga",
		SeriesOrder: mo.Some(2.0),
		Publisher:   "House",
		ISBN:        "9780000000001",
		Language:    "en",
		Description: "A story.",
		ScrapeURL:   "https://example.com/books/ö",
		ReleaseDate: mo.Some(time.Date(2020, 5, 17, 0, 0, 0, 0, time.UTC)),
	}
	meta.AddAuthor("Ann")
	meta.AddAuthor("Bob")
	meta.AddNarrator("Reader")
	meta.AddGenre("Fantasy")
	meta.AddGenre("Adventure")
	return meta
}

func readTag(path string) *id3v2.Tag {
	data, _ := filesystem.API().ReadFile(path)
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	So(err, ShouldBeNil)
	return tag
}

func TestDetect(t *testing.T) {
	Convey("Containers are recognised by signature", t, func() {
		So(DetectBytes([]byte("ID3\x04\x00\x00\x00\x00\x00\x00")), ShouldEqual, ID3)
		So(DetectBytes(mpegAudio[:12]), ShouldEqual, ID3)
		So(DetectBytes(mp4Audio[:12]), ShouldEqual, MP4)
		So(DetectBytes([]byte("OggS\x00\x02")), ShouldEqual, Unknown)
		So(DetectBytes(nil), ShouldEqual, Unknown)
	})

	Convey("ADTS AAC frames are not MPEG audio", t, func() {
		So(DetectBytes([]byte{0xFF, 0xF1, 0x50, 0x80}), ShouldEqual, Unknown)
		So(DetectBytes([]byte{0xFF, 0xF9, 0x50, 0x80}), ShouldEqual, Unknown)
		So(DetectBytes([]byte{0xFF, 0xF3, 0x90, 0x00}), ShouldEqual, ID3)
	})

	Convey("Detection ignores the extension", t, func() {
		So(filesystem.API().WriteFile("/detect/book.m4b", mpegAudio, 0o644), ShouldBeNil)
		container, err := Detect("/detect/book.m4b")
		So(err, ShouldBeNil)
		So(container, ShouldEqual, ID3)
		So(container.String(), ShouldEqual, "id3")
	})
}

func TestID3(t *testing.T) {
	fs := filesystem.API()

	Convey("Given an untagged mp3", t, func() {
		So(fs.WriteFile("/id3/book.mp3", mpegAudio, 0o644), ShouldBeNil)
		runner := ffmpegtest.New()
		runner.Probed = ffmpeg.Probe{Duration: 100}
		writer := NewWriter(runner)

		Convey("Metadata is written as ID3v2.4 frames", func() {
			So(writer.AddMetadata(context.Background(), "/id3/book.mp3", sampleMetadata()), ShouldBeNil)

			tag := readTag("/id3/book.mp3")
			So(int(tag.Version()), ShouldEqual, 4)
			So(tag.Title(), ShouldEqual, "The Book")
			So(tag.Artist(), ShouldEqual, "Ann, Bob")
			So(tag.Album(), ShouldEqual, "Saga")
			So(tag.Genre(), ShouldEqual, "Fantasy / Adventure")
			So(tag.GetTextFrame("TPE2").Text, ShouldEqual, "Ann, Bob")
			So(tag.GetTextFrame("TCOM").Text, ShouldEqual, "Reader")
			So(tag.GetTextFrame("TIT1").Text, ShouldEqual, "Saga, Book 2")
			So(tag.GetTextFrame("TRCK").Text, ShouldEqual, "2")
			So(tag.GetTextFrame("TPUB").Text, ShouldEqual, "House")
			So(tag.GetTextFrame("TDOR").Text, ShouldEqual, "2020-05-17")
			So(len(tag.GetFrames("TXXX")), ShouldEqual, 3)
			So(len(tag.GetFrames("COMM")), ShouldEqual, 1)
			So(len(tag.GetFrames("WCOM")), ShouldEqual, 1)

			Convey("The audio data is preserved behind the tag", func() {
				data, _ := fs.ReadFile("/id3/book.mp3")
				So(bytes.HasSuffix(data, mpegAudio), ShouldBeTrue)

				exists, _ := afero.Exists(fs, "/id3/book.mp3.tag.tmp")
				So(exists, ShouldBeFalse)
			})

			Convey("Tagging again replaces frames instead of stacking tags", func() {
				before, _ := fs.ReadFile("/id3/book.mp3")
				So(writer.AddMetadata(context.Background(), "/id3/book.mp3", sampleMetadata()), ShouldBeNil)
				after, _ := fs.ReadFile("/id3/book.mp3")
				So(len(after), ShouldEqual, len(before))
				So(bytes.HasSuffix(after, mpegAudio), ShouldBeTrue)
			})
		})

		Convey("The cover is a front cover picture", func() {
			cover := audiobook.Cover{Image: []byte{0xFF, 0xD8, 0xFF, 0xE0}, Ext: "jpg"}
			So(writer.EmbedCover(context.Background(), "/id3/book.mp3", cover), ShouldBeNil)
			So(len(readTag("/id3/book.mp3").GetFrames("APIC")), ShouldEqual, 1)
		})

		Convey("Chapters become CHAP frames", func() {
			chapters := []audiobook.Chapter{{Start: 0, Title: "One"}, {Start: 30_000, Title: "Two"}}
			So(writer.AddChapters(context.Background(), "/id3/book.mp3", chapters), ShouldBeNil)
			So(len(readTag("/id3/book.mp3").GetFrames("CHAP")), ShouldEqual, 2)
		})
	})

	Convey("Unknown containers are skipped without error", t, func() {
		So(fs.WriteFile("/id3/book.ogg", []byte("OggS-data"), 0o644), ShouldBeNil)
		writer := NewWriter(ffmpegtest.New())
		So(writer.AddMetadata(context.Background(), "/id3/book.ogg", sampleMetadata()), ShouldBeNil)
		data, _ := fs.ReadFile("/id3/book.ogg")
		So(string(data), ShouldEqual, "OggS-data")
	})
}

func TestMP4(t *testing.T) {
	fs := filesystem.API()

	Convey("Book metadata maps onto iTunes atoms", t, func() {
		tags := mp4Tags(sampleMetadata(), nil)
		So(tags.Album, ShouldEqual, "The Book")
		So(tags.Artist, ShouldEqual, "Ann, Bob")
		So(tags.AlbumArtist, ShouldEqual, "Ann, Bob")
		So(tags.Composer, ShouldEqual, "Reader")
		So(tags.CustomGenre, ShouldEqual, "Fantasy / Adventure")
		So(tags.TrackNumber, ShouldEqual, int16(2))
		So(tags.Date, ShouldEqual, "2020-05-17")
		So(tags.Custom["series"], ShouldEqual, "Saga")
		So(tags.Custom["mvin"], ShouldEqual, "2")
		So(tags.Custom["isbn"], ShouldEqual, "9780000000001")
	})

	Convey("Given an m4b file", t, func() {
		So(fs.WriteFile("/mp4/book.m4b", mp4Audio, 0o644), ShouldBeNil)
		runner := ffmpegtest.New()
		runner.Probed = ffmpeg.Probe{Duration: 60}
		writer := NewWriter(runner)
		chapters := []audiobook.Chapter{{Start: 0, Title: "One"}, {Start: 1500, Title: "Two"}}

		Convey("Chapters are remuxed with ffmpeg and temp files removed", func() {
			So(writer.AddChapters(context.Background(), "/mp4/book.m4b", chapters), ShouldBeNil)
			So(len(runner.Calls()), ShouldEqual, 1)
			So(runner.Calls()[0], ShouldContain, "-map_chapters")

			data, _ := fs.ReadFile("/mp4/book.m4b")
			So(string(data), ShouldContainSubstring, ";FFMETADATA1")

			for _, p := range []string{"/mp4/" + chaptersFile, "/mp4/" + chaptersMedia} {
				exists, _ := afero.Exists(fs, p)
				So(exists, ShouldBeFalse)
			}
		})

		Convey("Without ffmpeg chapters are skipped", func() {
			runner.Missing = true
			So(writer.AddChapters(context.Background(), "/mp4/book.m4b", chapters), ShouldBeNil)
			So(len(runner.Calls()), ShouldEqual, 0)
			data, _ := fs.ReadFile("/mp4/book.m4b")
			So(bytes.Equal(data, mp4Audio), ShouldBeTrue)
		})

		Convey("A failing remux keeps the original", func() {
			runner.RunFunc = func([]string) error { return context.Canceled }
			So(writer.AddChapters(context.Background(), "/mp4/book.m4b", chapters), ShouldBeNil)
			data, _ := fs.ReadFile("/mp4/book.m4b")
			So(bytes.Equal(data, mp4Audio), ShouldBeTrue)
		})
	})

	Convey("Chapter metadata uses millisecond timestamps", t, func() {
		text := FFMetadata([]audiobook.Chapter{{Start: 0, Title: "A=B"}, {Start: 1000, Title: "C"}}, 5000)
		So(text, ShouldStartWith, ";FFMETADATA1\n")
		So(text, ShouldContainSubstring, "START=0\nEND=1000\ntitle=A\\=B")
		So(text, ShouldContainSubstring, "START=1000\nEND=5000\ntitle=C")
		So(strings.Count(text, "[CHAPTER]"), ShouldEqual, 2)
	})
}

func encodePNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.NRGBA{R: 200, A: 128})
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestCover(t *testing.T) {
	Convey("Formats are detected from magic bytes", t, func() {
		So(DetectImageFormat([]byte{0xFF, 0xD8, 0xFF, 0xDB}), ShouldEqual, "jpeg")
		So(DetectImageFormat(encodePNG(2, 2)), ShouldEqual, "png")
		So(DetectImageFormat([]byte("GIF89a")), ShouldEqual, "gif")
		So(DetectImageFormat([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")), ShouldEqual, "webp")
		So(DetectImageFormat([]byte("nope")), ShouldEqual, "")
	})

	Convey("Large transparent images become bounded JPEGs", t, func() {
		data, ext := NormalizeCover(encodePNG(2000, 1000), "png")
		So(ext, ShouldEqual, "jpg")

		config, format, err := image.DecodeConfig(bytes.NewReader(data))
		So(err, ShouldBeNil)
		So(format, ShouldEqual, "jpeg")
		So(config.Width, ShouldEqual, MaxCoverSize)
		So(config.Height, ShouldEqual, 700)
	})

	Convey("Small JPEGs pass unchanged", t, func() {
		var buf bytes.Buffer
		So(jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10)), nil), ShouldBeNil)

		data, ext := NormalizeCover(buf.Bytes(), "jpeg")
		So(ext, ShouldEqual, "jpg")
		So(bytes.Equal(data, buf.Bytes()), ShouldBeTrue)
	})

	Convey("Undecodable data is returned as declared", t, func() {
		data, ext := NormalizeCover([]byte("not an image"), "webp")
		So(string(data), ShouldEqual, "not an image")
		So(ext, ShouldEqual, "webp")
	})
}

func TestSidecar(t *testing.T) {
	Convey("Given a book with chapters and a cover", t, func() {
		book := &audiobook.Audiobook{
			Metadata: sampleMetadata(),
			Chapters: []audiobook.Chapter{{Start: 0, Title: "One"}},
			Cover:    mo.Some(audiobook.Cover{Image: []byte("img"), Ext: "png"}),
		}

		Convey("A single artifact gets a neighbouring json file", func() {
			path, err := WriteJSON("/side/Book.mp3", false, book)
			So(err, ShouldBeNil)
			So(path, ShouldEqual, "/side/Book.mp3.json")

			data, _ := filesystem.API().ReadFile(path)
			var sidecar Sidecar
			So(json.Unmarshal(data, &sidecar), ShouldBeNil)
			So(sidecar.Metadata.Title, ShouldEqual, "The Book")
			So(sidecar.Cover, ShouldBeEmpty)
			So(len(sidecar.Chapters), ShouldEqual, 1)
		})

		Convey("A directory gets metadata.json and a cover file", func() {
			cover, err := WriteCover("/side/Book", book.Cover.MustGet())
			So(err, ShouldBeNil)
			So(cover, ShouldEqual, "/side/Book/cover.png")

			path, err := WriteJSON("/side/Book", true, book)
			So(err, ShouldBeNil)
			So(path, ShouldEqual, "/side/Book/metadata.json")

			data, _ := filesystem.API().ReadFile(path)
			So(string(data), ShouldContainSubstring, `"cover": "cover.png"`)
		})
	})
}
