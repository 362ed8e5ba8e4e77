package history

import (
	"testing"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestHistory(t *testing.T) {
	Convey("Given a finished download", t, func() {
		So(Clear(), ShouldBeNil)
		record := &Record{
			Title:  "The Book",
			Source: "Storytel",
			URL:    "https://www.storytel.com/se/books/the-book-123",
			Path:   "/books/The Book.mp3",
		}

		Convey("When saving it", func() {
			So(Save(record), ShouldBeNil)

			Convey("Then it is remembered by source and url", func() {
				So(Has("Storytel", record.URL), ShouldBeTrue)
				So(Has("Nextory", record.URL), ShouldBeFalse)

				records, err := Get()
				So(err, ShouldBeNil)
				saved := records[Key("Storytel", record.URL)]
				So(saved.Path, ShouldEqual, record.Path)
				So(saved.DownloadedAt.IsZero(), ShouldBeFalse)
				So(saved.String(), ShouldEqual, "The Book (Storytel)")
			})

			Convey("And removing it forgets it", func() {
				So(Remove("Storytel", record.URL), ShouldBeNil)
				So(Has("Storytel", record.URL), ShouldBeFalse)
			})
		})
	})
}
