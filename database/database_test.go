package database

import (
	"testing"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestDB(t *testing.T) {
	Convey("Given an empty database", t, func() {
		db := Open("/db")

		Convey("Nothing exists", func() {
			So(db.Exists("books", "1"), ShouldBeFalse)
			var v map[string]any
			So(db.Get("books", "1", &v), ShouldBeFalse)
		})

		Convey("Put documents can be read back", func() {
			So(db.Put("books", "42", map[string]any{"title": "Book"}), ShouldBeNil)
			So(db.Exists("books", "42"), ShouldBeTrue)
			So(db.Path("books", "42"), ShouldEqual, "/db/books/42.json")

			var v map[string]any
			So(db.Get("books", "42", &v), ShouldBeTrue)
			So(v["title"], ShouldEqual, "Book")

			Convey("without temporary files left behind", func() {
				exists, _ := afero.Exists(filesystem.API(), "/db/books/42.json.tmp")
				So(exists, ShouldBeFalse)
			})
		})

		Convey("Ids cannot leave their kind", func() {
			So(db.Path("lists", "../../etc"), ShouldEqual, "/db/lists/____etc.json")
		})
	})
}
