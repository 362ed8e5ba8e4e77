package progress

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBar(t *testing.T) {
	Convey("Given an enabled bar", t, func() {
		var out bytes.Buffer
		bar := New(&out, true)
		bar.Interval = 0
		bar.Start("The Book", 3)

		Convey("Downloaded bytes are summed and rolled back", func() {
			bar.Add(1500)
			bar.Add(500)
			bar.Add(-1000)
			So(bar.Bytes(), ShouldEqual, int64(1000))
			So(bar.Line(), ShouldContainSubstring, "1.0 kB")
			So(bar.Line(), ShouldContainSubstring, "3 parts")

			bar.Add(-5000)
			So(bar.Bytes(), ShouldEqual, int64(0))
		})

		Convey("Stages show their completed fraction", func() {
			report := bar.Stage("Combining")
			report(0.5)
			So(bar.Line(), ShouldContainSubstring, "Combining")
			So(bar.Line(), ShouldContainSubstring, "50%")

			report(7)
			So(bar.Line(), ShouldContainSubstring, "100%")
		})

		Convey("Done erases the line", func() {
			bar.Done()
			So(strings.HasSuffix(out.String(), "\r"), ShouldBeTrue)
		})
	})

	Convey("A disabled bar writes nothing", t, func() {
		var out bytes.Buffer
		bar := New(&out, false)
		bar.Start("Quiet", 1)
		bar.Add(10)
		bar.Stage("Converting")(1)
		bar.Done()
		So(out.Len(), ShouldEqual, 0)
		So(bar.Bytes(), ShouldEqual, int64(10))
	})
}
