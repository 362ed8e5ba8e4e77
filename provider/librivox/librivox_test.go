package librivox

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/source"
	. "github.com/smartystreets/goconvey/convey"
)

const page = `<html><body>
<div class="book-page-book-cover"><img src="/covers/moby.jpg"></div>
<h1>Moby Dick</h1>
<p class="book-page-author"><a href="/author/1">Herman Melville</a></p>
<div class="description"><p>Call me Ishmael.</p></div>
<table>
	<tr><td><a class="chapter-name" href="%[1]s/files/moby_01.mp3">Loomings</a></td></tr>
	<tr><td><a class="chapter-name" href="/files/moby_02.MP3">The Carpet-Bag</a></td></tr>
</table>
</body></html>`

func newServer() *httptest.Server {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("GET /moby-dick-by-herman-melville/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, page, server.URL)
	})
	mux.HandleFunc("GET /empty/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><h1>Nothing</h1></html>`)
	})
	mux.HandleFunc("GET /covers/moby.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("\x89PNG\r\n"))
	})

	server = httptest.NewServer(mux)
	BaseURL = server.URL
	return server
}

func TestDownload(t *testing.T) {
	Convey("Given a LibriVox book page", t, func() {
		server := newServer()
		defer server.Close()
		src := New(source.Options{})

		Convey("Chapters become files in page order", func() {
			book, err := src.DownloadByID(context.Background(), "moby-dick-by-herman-melville")
			So(err, ShouldBeNil)

			So(book.Metadata.Title, ShouldEqual, "Moby Dick")
			So(book.Metadata.Author(), ShouldEqual, "Herman Melville")
			So(book.Metadata.Description, ShouldEqual, "Call me Ishmael.")

			So(len(book.Files), ShouldEqual, 2)
			So(book.Files[0].URL, ShouldEqual, server.URL+"/files/moby_01.mp3")
			So(book.Files[1].URL, ShouldEqual, server.URL+"/files/moby_02.MP3")
			So(book.Files[1].Ext, ShouldEqual, "mp3")
			So(book.Files[1].Title.OrEmpty(), ShouldEqual, "The Carpet-Bag")

			So(book.Cover.MustGet().Ext, ShouldEqual, "png")
		})

		Convey("Pages without chapters have no files", func() {
			result, err := src.Download(context.Background(), server.URL+"/empty/")
			So(result, ShouldBeNil)
			So(errs.Is(err, errs.KindNoFilesFound), ShouldBeTrue)
		})

		Convey("No authentication is needed", func() {
			So(src.Session().RequiresAuthentication(), ShouldBeFalse)
			err := src.Login(context.Background(), "", source.Credentials{Username: "a", Password: "b"})
			So(errs.Is(err, errs.KindUnsupportedAuth), ShouldBeTrue)
		})
	})
}
