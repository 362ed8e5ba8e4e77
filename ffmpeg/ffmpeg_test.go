package ffmpeg

import (
	"context"
	"testing"

	"github.com/audiobook-dl/audiobook-dl/errs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseDuration(t *testing.T) {
	Convey("Durations in every ffmpeg notation are parsed", t, func() {
		for input, want := range map[string]float64{
			"01:02:03.5": 3723.5,
			"02:03.25":   123.25,
			"42.5":       42.5,
			"0":          0,
		} {
			got, ok := ParseDuration(input)
			So(ok, ShouldBeTrue)
			So(got, ShouldAlmostEqual, want, 0.0001)
		}
	})

	Convey("Garbage is rejected", t, func() {
		for _, input := range []string{"", "N/A", "1:2:3:4", "-1"} {
			_, ok := ParseDuration(input)
			So(ok, ShouldBeFalse)
		}
	})
}

func TestParseProgressLine(t *testing.T) {
	Convey("Progress keys are recognised", t, func() {
		us, ok := ParseProgressLine("out_time_us=1500000")
		So(ok, ShouldBeTrue)
		So(us, ShouldEqual, 1500000)

		us, ok = ParseProgressLine("out_time=00:00:02.000000")
		So(ok, ShouldBeTrue)
		So(us, ShouldEqual, 2000000)

		us, ok = ParseProgressLine("size=  1024kB time=00:01:00.00 bitrate= 139.8kbits/s")
		So(ok, ShouldBeTrue)
		So(us, ShouldEqual, 60000000)
	})

	Convey("Other lines are not progress", t, func() {
		_, ok := ParseProgressLine("out_time_us=N/A")
		So(ok, ShouldBeFalse)
		_, ok = ParseProgressLine("Input #0, mp3, from 'a.mp3':")
		So(ok, ShouldBeFalse)
		So(isProgressKey("speed=1.2x"), ShouldBeTrue)
		So(isProgressKey("Input #0, mp3"), ShouldBeFalse)
	})
}

func TestParseProbe(t *testing.T) {
	Convey("Bitrate and duration are read from ffprobe JSON", t, func() {
		probe := ParseProbe([]byte(`{"streams":[{"codec_name":"mp3","bit_rate":"128000"}],"format":{"duration":"3600.5"}}`))
		So(probe.BitRateKbps, ShouldEqual, 128)
		So(probe.Duration, ShouldAlmostEqual, 3600.5, 0.001)
	})

	Convey("The container bitrate is a fallback", t, func() {
		probe := ParseProbe([]byte(`{"streams":[{}],"format":{"bit_rate":"64000"}}`))
		So(probe.BitRateKbps, ShouldEqual, 64)
		So(probe.Duration, ShouldEqual, 0)
	})
}

func TestMissingBinary(t *testing.T) {
	Convey("A missing ffmpeg is a missing dependency", t, func() {
		runner := &Exec{FFmpeg: "audiobook-dl-no-such-ffmpeg", FFprobe: "audiobook-dl-no-such-ffprobe"}
		So(runner.Available(), ShouldBeFalse)

		err := runner.Run(context.Background(), []string{"-version"}, nil)
		So(errs.Is(err, errs.KindMissingDependency), ShouldBeTrue)

		_, err = runner.Probe(context.Background(), "a.mp3")
		So(errs.Is(err, errs.KindMissingDependency), ShouldBeTrue)
	})
}
