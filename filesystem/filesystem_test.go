package filesystem

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestApi(t *testing.T) {
	Convey("Filesystem API", t, func() {
		Convey("Should default to OsFs", func() {
			SetOsFs()
			fs := API()
			So(fs, ShouldNotBeNil)
			So(fs.Name(), ShouldEqual, "OsFs")
		})

		Convey("Should switch to MemMapFs", func() {
			SetMemMapFs()
			fs := API()
			So(fs, ShouldNotBeNil)
			So(fs.Name(), ShouldEqual, "MemMapFS")
		})
	})
}

func TestIsReadableFile(t *testing.T) {
	Convey("Given an in-memory filesystem", t, func() {
		SetMemMapFs()
		So(API().MkdirAll("/media/clips", 0o755), ShouldBeNil)
		So(API().WriteFile("/media/clips/intro.mkv", []byte("data"), 0o644), ShouldBeNil)

		Convey("An existing file is readable", func() {
			So(IsReadableFile("/media/clips/intro.mkv"), ShouldBeTrue)
		})

		Convey("A directory is not", func() {
			So(IsReadableFile("/media/clips"), ShouldBeFalse)
		})

		Convey("A missing file or an empty path is not", func() {
			So(IsReadableFile("/media/clips/missing.mkv"), ShouldBeFalse)
			So(IsReadableFile(""), ShouldBeFalse)
		})
	})
}
