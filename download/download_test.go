package download

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/crypt"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
)

func init() {
	filesystem.SetMemMapFs()
}

var (
	payload = bytes.Repeat([]byte("audiobook"), 30_000)
	aesKey  = []byte("0123456789abcdef")
	aesIV   = []byte("abcdef9876543210")
)

func newServer(flaky *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	encrypted, _ := crypt.EncryptCBC(payload[:16*1000], aesKey, aesIV, false)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/book.mp3":
			w.Header().Set("Content-Type", "audio/mpeg; charset=binary")
			_, _ = w.Write(payload)
		case "/header":
			_, _ = w.Write([]byte(r.Header.Get("X-Token")))
		case "/encrypted":
			_, _ = w.Write(encrypted)
		case "/flaky":
			if flaky.Add(-1) >= 0 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
}

func book(files ...audiobook.File) *audiobook.Audiobook {
	return &audiobook.Audiobook{
		Session:  session.New(),
		Metadata: audiobook.Metadata{Title: "Book"},
		Files:    files,
	}
}

func TestDownload(t *testing.T) {
	Convey("Given a file server", t, func() {
		var flaky, hits atomic.Int32
		server := newServer(&flaky, &hits)
		defer server.Close()

		fs := filesystem.API()
		orchestrator := New(2, 1)
		orchestrator.Backoff = time.Millisecond

		Convey("Downloads are byte exact and report progress chunk by chunk", func() {
			var total int64
			calls := 0
			b := book(audiobook.File{
				URL:                 server.URL + "/book.mp3",
				ExpectedStatusCode:  mo.Some(200),
				ExpectedContentType: mo.Some("audio/mpeg"),
			})

			err := orchestrator.Download(context.Background(), b, []string{"/out/a/book.mp3"}, func(n int64) {
				calls++
				total += n
			})
			So(err, ShouldBeNil)

			got, _ := fs.ReadFile("/out/a/book.mp3")
			So(bytes.Equal(got, payload), ShouldBeTrue)
			So(calls, ShouldBeGreaterThan, 1)
			So(total, ShouldEqual, len(payload))

			exists, _ := afero.Exists(fs, "/out/a/book.mp3"+TempSuffix)
			So(exists, ShouldBeFalse)
		})

		Convey("Output order follows file order", func() {
			b := book(
				audiobook.File{URL: server.URL + "/header", Headers: map[string]string{"X-Token": "first"}},
				audiobook.File{URL: server.URL + "/header", Headers: map[string]string{"X-Token": "second"}},
				audiobook.File{URL: server.URL + "/header", Headers: map[string]string{"X-Token": "third"}},
			)
			paths := []string{"/out/order/0", "/out/order/1", "/out/order/2"}

			So(orchestrator.Download(context.Background(), b, paths, nil), ShouldBeNil)
			for i, want := range []string{"first", "second", "third"} {
				got, _ := fs.ReadFile(paths[i])
				So(string(got), ShouldEqual, want)
			}
		})

		Convey("An unexpected status code fails without retry and leaves nothing behind", func() {
			b := book(audiobook.File{URL: server.URL + "/missing", ExpectedStatusCode: mo.Some(200)})

			err := orchestrator.Download(context.Background(), b, []string{"/out/missing.mp3"}, nil)
			So(errs.Is(err, errs.KindDownloadError), ShouldBeTrue)
			So(hits.Load(), ShouldEqual, 1)

			for _, p := range []string{"/out/missing.mp3", "/out/missing.mp3" + TempSuffix} {
				exists, _ := afero.Exists(fs, p)
				So(exists, ShouldBeFalse)
			}
		})

		Convey("An unexpected content type is a download error", func() {
			b := book(audiobook.File{URL: server.URL + "/book.mp3", ExpectedContentType: mo.Some("audio/aac")})

			err := orchestrator.Download(context.Background(), b, []string{"/out/type.mp3"}, nil)
			So(errs.Is(err, errs.KindDownloadError), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "audio/aac")
		})

		Convey("Without expectations a non-2xx status still fails", func() {
			b := book(audiobook.File{URL: server.URL + "/missing"})

			err := orchestrator.Download(context.Background(), b, []string{"/out/plain.mp3"}, nil)
			So(errs.Is(err, errs.KindDownloadError), ShouldBeTrue)
		})

		Convey("Server errors are retried", func() {
			flaky.Store(1)
			var total int64
			b := book(audiobook.File{URL: server.URL + "/flaky"})

			err := orchestrator.Download(context.Background(), b, []string{"/out/flaky.mp3"}, func(n int64) { total += n })
			So(err, ShouldBeNil)
			So(hits.Load(), ShouldEqual, 2)
			So(total, ShouldEqual, len(payload))
		})

		Convey("Server errors beyond the retry budget fail", func() {
			flaky.Store(5)
			b := book(audiobook.File{URL: server.URL + "/flaky"})

			err := orchestrator.Download(context.Background(), b, []string{"/out/flaky2.mp3"}, nil)
			So(errs.Is(err, errs.KindDownloadError), ShouldBeTrue)
			So(hits.Load(), ShouldEqual, 2)
		})

		Convey("Encrypted files are decrypted before they are moved into place", func() {
			b := book(audiobook.File{
				URL:        server.URL + "/encrypted",
				Encryption: &audiobook.AESEncryption{Key: aesKey, IV: aesIV},
			})

			So(orchestrator.Download(context.Background(), b, []string{"/out/enc.mp3"}, nil), ShouldBeNil)
			got, _ := fs.ReadFile("/out/enc.mp3")
			So(bytes.Equal(got, payload[:16*1000]), ShouldBeTrue)
		})

		Convey("A mismatched destination count is rejected", func() {
			b := book(audiobook.File{URL: server.URL + "/book.mp3"})
			So(orchestrator.Download(context.Background(), b, nil, nil), ShouldNotBeNil)
		})

		Convey("States end in a terminal state", func() {
			var last State
			orchestrator.OnState = func(_ int, s State) { last = s }
			b := book(audiobook.File{URL: server.URL + "/book.mp3"})

			So(orchestrator.Download(context.Background(), b, []string{"/out/state.mp3"}, nil), ShouldBeNil)
			So(last, ShouldEqual, Complete)
			So(last.Terminal(), ShouldBeTrue)
			So(last.String(), ShouldEqual, "complete")
		})
	})
}

// newPoolServer serves /part/{i} after delay(i), tracking how many requests are in flight.
// Parts listed in gone answer 404.
func newPoolServer(delay func(i int) time.Duration, gone ...int) (*httptest.Server, *poolStats) {
	stats := &poolStats{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /part/{i}", func(w http.ResponseWriter, r *http.Request) {
		i, _ := strconv.Atoi(r.PathValue("i"))
		stats.enter()
		defer stats.leave()

		if slices.Contains(gone, i) {
			http.NotFound(w, r)
			return
		}
		select {
		case <-time.After(delay(i)):
		case <-r.Context().Done():
			return
		}
		stats.finish(i)
		fmt.Fprintf(w, "part %d", i)
	})
	return httptest.NewServer(mux), stats
}

type poolStats struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	hits     int
	finished []int
}

func (s *poolStats) enter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	s.inFlight++
	s.peak = max(s.peak, s.inFlight)
}

func (s *poolStats) leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
}

// snapshot returns the peak, the hit count and the finish order.
func (s *poolStats) snapshot() (int, int, []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak, s.hits, slices.Clone(s.finished)
}

func (s *poolStats) finish(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, i)
}

func parts(server string, n int) (*audiobook.Audiobook, []string) {
	b := book()
	paths := make([]string, n)
	for i := range n {
		b.Files = append(b.Files, audiobook.File{URL: fmt.Sprintf("%s/part/%d", server, i), ExpectedStatusCode: mo.Some(200)})
		paths[i] = fmt.Sprintf("/pool/%d/part%02d.mp3", n, i)
	}
	return b, paths
}

func TestPool(t *testing.T) {
	fs := filesystem.API()

	Convey("No more transfers run at once than there are workers", t, func() {
		server, stats := newPoolServer(func(int) time.Duration { return 20 * time.Millisecond })
		defer server.Close()

		b, paths := parts(server.URL, 10)
		So(New(3, 0).Download(context.Background(), b, paths, nil), ShouldBeNil)
		peak, hits, _ := stats.snapshot()
		So(peak, ShouldBeLessThanOrEqualTo, 3)
		So(peak, ShouldBeGreaterThan, 1)
		So(hits, ShouldEqual, 10)
	})

	Convey("Files finishing out of order still land at their own index", t, func() {
		server, stats := newPoolServer(func(i int) time.Duration { return time.Duration(3-i) * 30 * time.Millisecond })
		defer server.Close()

		b, paths := parts(server.URL, 4)
		So(New(4, 0).Download(context.Background(), b, paths, nil), ShouldBeNil)
		_, _, finished := stats.snapshot()
		So(finished, ShouldHaveLength, 4)
		So(finished[0], ShouldEqual, 3)

		for i, p := range paths {
			got, _ := fs.ReadFile(p)
			So(string(got), ShouldEqual, fmt.Sprintf("part %d", i))
		}
	})

	Convey("The first failure cancels the remaining transfers", t, func() {
		server, stats := newPoolServer(func(int) time.Duration { return 50 * time.Millisecond }, 3)
		defer server.Close()

		b, paths := parts(server.URL, 12)
		err := New(3, 0).Download(context.Background(), b, paths, nil)
		So(errs.Is(err, errs.KindDownloadError), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "404")
		_, hits, _ := stats.snapshot()
		So(hits, ShouldBeLessThan, 12)

		for _, p := range paths {
			exists, _ := afero.Exists(fs, p+TempSuffix)
			So(exists, ShouldBeFalse)
		}
	})
}

func TestCleanup(t *testing.T) {
	Convey("Cleanup removes finished and partial files", t, func() {
		fs := filesystem.API()
		So(fs.WriteFile("/clean/a.mp3", []byte("a"), 0o644), ShouldBeNil)
		So(fs.WriteFile("/clean/b.mp3"+TempSuffix, []byte("b"), 0o644), ShouldBeNil)

		Cleanup([]string{"/clean/a.mp3", "/clean/b.mp3"})

		for _, p := range []string{"/clean/a.mp3", "/clean/b.mp3" + TempSuffix} {
			exists, _ := afero.Exists(fs, p)
			So(exists, ShouldBeFalse)
		}
	})
}
