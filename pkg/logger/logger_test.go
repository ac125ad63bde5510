package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the default settings", t, func() {
		So(Init(), ShouldBeNil)
		So(Get(), ShouldNotBeNil)
		So(Named("test"), ShouldNotBeNil)
		So(Sync(), ShouldBeNil)
	})

	Convey("Given an unknown format", t, func() {
		err := Init(WithFormat("xml"))
		So(errors.Is(err, ErrUnknownFormat), ShouldBeTrue)
	})
}

func TestLoggerOutput(t *testing.T) {
	ctx := context.Background()

	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("JSON"), WithWriter(&buf)), ShouldBeNil)

		Convey("When logging with fields", func() {
			Get().With(String("component", "solver")).Info(ctx, "solved",
				Int("iterations", 19),
				Float64("delta", 0.5),
				Bool("converged", true),
				Duration("took", time.Millisecond),
				Error(errors.New("boom")),
			)

			Convey("Then every field is encoded", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "solved")
				So(rec["component"], ShouldEqual, "solver")
				So(rec["iterations"], ShouldEqual, 19)
				So(rec["converged"], ShouldEqual, true)
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When a named logger is used", func() {
			Named("api").Warn(ctx, "slow", String("route", "/solve"))

			Convey("Then fields are grouped under the name", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				group, ok := rec["api"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(group["route"], ShouldEqual, "/solve")
			})
		})
	})

	Convey("Given a text logger at warn level", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		So(SetLevelString("warning"), ShouldBeNil)

		Get().Info(ctx, "hidden")
		Get().Debug(ctx, "hidden")
		Get().Error(ctx, "shown")

		Convey("Then only enabled levels are written", func() {
			out := buf.String()
			So(out, ShouldNotContainSubstring, "hidden")
			So(out, ShouldContainSubstring, "msg=shown")
			So(strings.Count(out, "\n"), ShouldEqual, 1)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		for _, l := range []string{"debug", "INFO", "", " warn ", "error"} {
			So(SetLevelString(l), ShouldBeNil)
		}
		So(errors.Is(SetLevelString("loud"), ErrUnknownLevel), ShouldBeTrue)
	})
}
