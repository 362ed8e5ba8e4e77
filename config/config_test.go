package config

import (
	"path/filepath"
	"testing"

	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/key"
	"github.com/audiobook-dl/audiobook-dl/where"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		Convey("Should initialize without error when no file exists", func() {
			So(Setup(), ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			_ = Setup()
			for name := range Default {
				So(viper.IsSet(name), ShouldBeTrue)
			}
			So(viper.GetString(key.OutputTemplate), ShouldEqual, "{author}/{title}")
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			So(EnvKeyReplacer.Replace("download.workers"), ShouldEqual, "download_workers")
		})

		Convey("Field env names carry the application prefix", func() {
			f := Default[key.DownloadWorkers]
			So(f.Env(), ShouldEqual, "AUDIOBOOK_DL_DOWNLOAD_WORKERS")
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given an explicit config path", t, func() {
		_ = Setup()

		Convey("A missing file is reported as config not found", func() {
			err := Load("/nowhere/audiobook-dl.toml")
			So(errs.Is(err, errs.KindConfigNotFound), ShouldBeTrue)
		})

		Convey("An existing file provides source tables", func() {
			path := filepath.Join(where.Config(), "custom.toml")
			content := `
combine = true
output_template = "{series}/{title}"

[sources.storytel]
username = "reader@example.com"
password = "hunter2"

[sources.nextory]
cookie_file = "cookies.txt"
`
			So(filesystem.API().WriteFile(path, []byte(content), 0o644), ShouldBeNil)
			So(Load(path), ShouldBeNil)

			So(viper.GetBool(key.Combine), ShouldBeTrue)

			sc, err := Source("Storytel")
			So(err, ShouldBeNil)
			So(sc.Username, ShouldEqual, "reader@example.com")
			So(sc.Password, ShouldEqual, "hunter2")

			nc, err := Source("nextory")
			So(err, ShouldBeNil)
			So(nc.CookieFile, ShouldEqual, filepath.Join(where.Config(), "cookies.txt"))

			opts := Snapshot()
			So(opts.Combine, ShouldBeTrue)
			So(opts.OutputTemplate, ShouldEqual, "{series}/{title}")
			So(opts.Mp4AudioEncoder, ShouldEqual, "aac")
			So(opts.DatabaseDirectory, ShouldNotBeEmpty)

			viper.Set(key.Combine, false)
			viper.Set(key.OutputTemplate, Default[key.OutputTemplate].Value)
		})
	})
}
