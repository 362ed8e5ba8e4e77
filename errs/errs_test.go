package errs

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	Convey("Given a download status error", t, func() {
		err := DownloadStatus("https://example.com/a.mp3", 200, 403)

		Convey("It renders its context into the message", func() {
			So(err.Error(), ShouldEqual, "download of https://example.com/a.mp3 failed: expected status code 200, got 403")
		})

		Convey("It exposes the context data", func() {
			So(err.Data["expected"], ShouldEqual, 200)
			So(err.Data["actual"], ShouldEqual, 403)
			So(err.Keys(), ShouldResemble, []string{"actual", "expected", "field", "url"})
		})

		Convey("It is found through wrapping", func() {
			wrapped := fmt.Errorf("book: %w", err)
			So(Is(wrapped, KindDownloadError), ShouldBeTrue)
			So(KindOf(wrapped), ShouldEqual, KindDownloadError)
			So(Is(wrapped, KindFailedCombining), ShouldBeFalse)
		})
	})

	Convey("Given a foreign error", t, func() {
		cause := errors.New("boom")
		e := As(cause)

		Convey("It is converted to the generic kind", func() {
			So(e.Kind, ShouldEqual, KindGeneric)
			So(e.Error(), ShouldEqual, "boom")
			So(errors.Is(e, cause), ShouldBeTrue)
		})
	})

	Convey("Unsupported data types are rejected", t, func() {
		So(func() { New(KindGeneric).With("x", 1.5) }, ShouldPanic)
	})

	Convey("Process failures keep the stderr tail", t, func() {
		err := ProcessFailed("ffmpeg", 1, "a\nb\nc\nd\ne\nf\ng")
		So(err.Data["stderr"], ShouldEqual, "c | d | e | f | g")
		So(err.Data["code"], ShouldEqual, 1)
	})

	Convey("Nested kinds are matched through causes", t, func() {
		inner := NoSourceFound("x")
		outer := New(KindGeneric).With("cause", "outer").Wrap(inner)
		So(Is(outer, KindNoSourceFound), ShouldBeTrue)
	})

	Convey("Every joined error is searched", t, func() {
		joined := errors.Join(fmt.Errorf("a: %w", BookNotFound("a")), fmt.Errorf("b: %w", DownloadStatus("u", 200, 404)))
		So(Is(joined, KindBookNotFound), ShouldBeTrue)
		So(Is(joined, KindDownloadError), ShouldBeTrue)
		So(Is(joined, KindMissingEncoder), ShouldBeFalse)
	})
}
