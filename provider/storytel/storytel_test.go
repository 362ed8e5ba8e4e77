package storytel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/source"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

const details = `{
	"consumableId": "123",
	"title": "The Book",
	"shareUrl": "https://www.storytel.com/se/books/the-book-123?utm=share",
	"authors": [{"name": "Ann"}],
	"narrators": [{"name": "Reader"}],
	"description": "A story.",
	"language": "sv",
	"category": {"name": "Fantasy"},
	"seriesInfo": {"name": "Saga", "orderInSeries": 2},
	"formats": [
		{"type": "ebook", "isReleased": true},
		{"type": "abook", "isReleased": true, "publisher": {"name": "House"}, "releaseDate": "2020-05-17T00:00:00Z"}
	],
	"cover": {"url": "%s/cover.jpg"}
}`

const playback = `{"formats": [{"type": "abook", "chapters": [
	{"title": "The Book - Prologue", "number": 1, "durationInMilliseconds": 60000},
	{"title": null, "number": 2, "durationInMilliseconds": 1000},
	{"title": "Ending", "number": 3, "durationInMilliseconds": 5000}
]}]}`

func newServer() *httptest.Server {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("POST /api/login.action", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		want, _ := EncryptPassword("secret")
		switch {
		case r.Form.Get("uid") == "blocked":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "<html>"+cloudflareTitle+"</html>")
		case r.Form.Get("uid") == "ann" && r.Form.Get("pwd") == want && r.URL.Query().Get("deviceId") != "":
			fmt.Fprint(w, `{"accountInfo": {"jwt": "token", "lang": "sv"}}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("GET /book-details/consumables/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, details, server.URL)
	})
	mux.HandleFunc("GET /assets/v2/consumables/123/abook", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, server.URL+"/audio.mp3?isbn=9780000000001", http.StatusFound)
	})
	mux.HandleFunc("GET /playback-metadata/consumable/123", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, playback)
	})
	mux.HandleFunc("GET /cover.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00})
	})
	mux.HandleFunc("GET /explore/lists/series/{id}", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.PathValue("id") == "66" && q.Get("includeLanguages") != "en" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.PathValue("id") == "77" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		released := func(id string, ok bool) map[string]any {
			return map[string]any{"id": id, "formats": []any{map[string]any{"type": "abook", "isReleased": ok}}}
		}
		page := map[string]any{"id": r.PathValue("id"), "title": "Saga"}
		if q.Get("nextPageToken") == "" {
			page["items"] = []any{released("1", true), released("2", false), map[string]any{"id": "x"}}
			page["nextPageToken"] = "p2"
		} else {
			page["items"] = []any{released("3", true)}
			page["nextPageToken"] = nil
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("GET /se/publishers/house-9", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><h1>Menu</h1><h1>House</h1>
			<a href="/se/books/audio-11"><svg><path d=%q></path></svg></a>
			<a href="/se/books/ebook-12"><svg><path d="M0 0"></path></svg></a></html>`, headphonePath)
	})

	server = httptest.NewServer(mux)
	WebURL, APIURL = server.URL, server.URL
	return server
}

func loggedIn(server *httptest.Server) *Source {
	src := New(source.Options{DatabaseDirectory: "/db"}).(*Source)
	So(src.Login(context.Background(), server.URL, source.Credentials{Username: "ann", Password: "secret"}), ShouldBeNil)
	return src
}

func TestLogin(t *testing.T) {
	Convey("Given the Storytel API", t, func() {
		server := newServer()
		defer server.Close()

		Convey("Valid credentials set the bearer token", func() {
			src := loggedIn(server)
			So(src.Session().Authenticated(), ShouldBeTrue)
			So(src.Session().Headers()["Authorization"], ShouldEqual, "Bearer token")
			So(src.Session().Headers()["User-Agent"], ShouldEqual, userAgent)
		})

		Convey("Wrong credentials are not authorized", func() {
			src := New(source.Options{}).(*Source)
			err := src.Login(context.Background(), "", source.Credentials{Username: "ann", Password: "wrong"})
			So(errs.Is(err, errs.KindUserNotAuthorized), ShouldBeTrue)
			So(src.Session().Authenticated(), ShouldBeFalse)
		})

		Convey("A Cloudflare challenge is recognised", func() {
			src := New(source.Options{}).(*Source)
			err := src.Login(context.Background(), "", source.Credentials{Username: "blocked", Password: "x"})
			So(errs.Is(err, errs.KindCloudflareBlocked), ShouldBeTrue)
		})
	})

	Convey("Login errors name the status", t, func() {
		So(loginError(http.StatusTooManyRequests, "").Error(), ShouldContainSubstring, "429")
		So(loginError(http.StatusBadGateway, "").Error(), ShouldContainSubstring, "502")
		So(errs.Is(loginError(http.StatusForbidden, "denied"), errs.KindUserNotAuthorized), ShouldBeTrue)
	})
}

func TestBook(t *testing.T) {
	Convey("Given a logged in source", t, func() {
		server := newServer()
		defer server.Close()
		src := loggedIn(server)

		Convey("A book URL resolves to a complete audiobook", func() {
			result, err := src.Download(context.Background(), "https://www.storytel.com/se/sv/books/the-book-123")
			So(err, ShouldBeNil)

			book, ok := result.(*audiobook.Audiobook)
			So(ok, ShouldBeTrue)
			So(book.Validate(), ShouldBeNil)

			meta := book.Metadata
			So(meta.Title, ShouldEqual, "The Book")
			So(meta.Authors, ShouldResemble, []string{"Ann"})
			So(meta.Genres, ShouldResemble, []string{"Audiobook", "Fantasy"})
			So(meta.Series, ShouldEqual, "Saga")
			So(meta.SeriesOrder.OrEmpty(), ShouldEqual, 2.0)
			So(meta.Publisher, ShouldEqual, "House")
			So(meta.ISBN, ShouldEqual, "9780000000001")
			So(meta.ScrapeURL, ShouldEqual, "https://www.storytel.com/se/books/the-book-123")
			So(meta.ReleaseDate.MustGet().Year(), ShouldEqual, 2020)

			So(len(book.Files), ShouldEqual, 1)
			So(book.Files[0].URL, ShouldEqual, server.URL+"/audio.mp3?isbn=9780000000001")
			So(book.Files[0].ExpectedContentType.OrEmpty(), ShouldEqual, "audio/mpeg")

			So(book.Chapters, ShouldResemble, []audiobook.Chapter{
				{Start: 0, Title: "Prologue"},
				{Start: 60000, Title: "Chapter 2"},
				{Start: 61000, Title: "Ending"},
			})
			So(book.Cover.MustGet().Ext, ShouldEqual, "jpg")

			Convey("Completing it records the book", func() {
				So(src.OnDownloadComplete(book), ShouldBeNil)
				So(src.db.Exists(kindBooks, "123"), ShouldBeTrue)
				So(src.db.Exists(kindPlayback, "123"), ShouldBeTrue)
			})
		})

		Convey("Unknown books are reported", func() {
			_, err := src.DownloadByID(context.Background(), "999")
			So(errs.Is(err, errs.KindBookNotFound), ShouldBeTrue)
		})
	})

	Convey("Metadata rejects books without a released audiobook", t, func() {
		released := false
		_, err := bookMetadata("1", &bookDetails{Formats: []bookFormat{{Type: "ebook"}}})
		So(errs.Is(err, errs.KindBookHasNoAudiobook), ShouldBeTrue)

		_, err = bookMetadata("1", &bookDetails{Formats: []bookFormat{{Type: "abook", IsReleased: &released}}})
		So(errs.Is(err, errs.KindBookNotReleased), ShouldBeTrue)

		_, err = bookMetadata("1", &bookDetails{})
		So(errs.Is(err, errs.KindDataNotPresent), ShouldBeTrue)
	})
}

func TestLists(t *testing.T) {
	Convey("Given a logged in source", t, func() {
		server := newServer()
		defer server.Close()
		src := loggedIn(server)

		Convey("Series pages are followed and unreleased books dropped", func() {
			result, err := src.Download(context.Background(), "https://www.storytel.com/se/sv/series/saga-55")
			So(err, ShouldBeNil)

			series := result.(*audiobook.Series)
			So(series.Title, ShouldEqual, "Saga")
			So(series.Books, ShouldResemble, []audiobook.BookID{{ID: "1"}, {ID: "3"}})
			So(src.db.Exists(kindLists, "55_se_abook"), ShouldBeTrue)
		})

		Convey("Downloaded books are skipped when requested", func() {
			src.skipDownloaded = true
			So(src.db.Put(kindBooks, "1", map[string]any{}), ShouldBeNil)

			result, err := src.Download(context.Background(), "https://www.storytel.com/se/sv/series/saga-55")
			So(err, ShouldBeNil)
			So(result.(*audiobook.Series).Books, ShouldResemble, []audiobook.BookID{{ID: "3"}})
		})

		Convey("Missing lists fall back to other languages", func() {
			result, err := src.Download(context.Background(), "https://www.storytel.com/se/sv/series/other-66")
			So(err, ShouldBeNil)
			So(len(result.(*audiobook.Series).Books), ShouldEqual, 2)

			_, err = src.Download(context.Background(), "https://www.storytel.com/se/sv/series/gone-77")
			So(errs.Is(err, errs.KindBookNotFound), ShouldBeTrue)
		})

		Convey("Publisher pages are scraped for audiobooks", func() {
			series, err := src.listFromWebsite(context.Background(), server.URL+"/se/publishers/house-9")
			So(err, ShouldBeNil)
			So(series.Title, ShouldEqual, "House")
			So(series.Books, ShouldResemble, []audiobook.BookID{{ID: "11"}})
		})
	})

	Convey("Ids are taken from the end of the path", t, func() {
		id, err := IDFromURL("https://www.storytel.com/no/nn/books/somethingsomething-9999999")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, "9999999")

		id, _ = IDFromURL("/se/books/12345/")
		So(id, ShouldEqual, "12345")

		_, err = IDFromURL("https://www.storytel.com")
		So(errs.Is(err, errs.KindDataNotPresent), ShouldBeTrue)
	})
}
