package where

import (
	"path/filepath"
	"testing"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestPaths(t *testing.T) {
	Convey("Path functions", t, func() {
		for name, fn := range map[string]func() string{
			"Config":   Config,
			"Cache":    Cache,
			"Logs":     Logs,
			"Database": Database,
			"Temp":     Temp,
		} {
			Convey(name+"() creates its directory", func() {
				path := fn()
				So(path, ShouldNotBeEmpty)
				So(lo.Must(filesystem.API().IsDir(path)), ShouldBeTrue)
			})
		}

		Convey("History() lives in the config directory", func() {
			So(filepath.Dir(History()), ShouldEqual, Config())
		})

		Convey("The config directory can be overridden", func() {
			t.Setenv(EnvConfigPath, "/custom/place")
			So(Config(), ShouldEqual, "/custom/place")
		})
	})
}
