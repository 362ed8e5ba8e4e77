package auth

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/zalando/go-keyring"
)

func init() {
	keyring.MockInit()
}

func TestKeyring(t *testing.T) {
	Convey("Given a mocked keyring", t, func() {
		Convey("Missing passwords are absent without error", func() {
			password, err := Password("Storytel", "nobody")
			So(err, ShouldBeNil)
			So(password.IsPresent(), ShouldBeFalse)
		})

		Convey("Stored passwords are scoped by source", func() {
			So(SetPassword("Storytel", "ann", "secret"), ShouldBeNil)

			password, err := Password("storytel", "ann")
			So(err, ShouldBeNil)
			So(password.MustGet(), ShouldEqual, "secret")

			other, _ := Password("Nextory", "ann")
			So(other.IsPresent(), ShouldBeFalse)

			So(DeletePassword("Storytel", "ann"), ShouldBeNil)
			So(DeletePassword("Storytel", "ann"), ShouldBeNil)
			password, _ = Password("Storytel", "ann")
			So(password.IsPresent(), ShouldBeFalse)
		})
	})
}
