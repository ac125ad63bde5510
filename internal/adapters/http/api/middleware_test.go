package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/okian/scoutspr/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type recordedLine struct {
	level  string
	msg    string
	fields map[string]any
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []recordedLine
}

func (l *recordingLogger) record(level, msg string, fields []logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.lines = append(l.lines, recordedLine{level: level, msg: msg, fields: m})
}

func (l *recordingLogger) Info(_ context.Context, msg string, f ...logger.Field) {
	l.record("info", msg, f)
}

func (l *recordingLogger) Error(_ context.Context, msg string, f ...logger.Field) {
	l.record("error", msg, f)
}

func (l *recordingLogger) Debug(_ context.Context, msg string, f ...logger.Field) {
	l.record("debug", msg, f)
}

func (l *recordingLogger) Warn(_ context.Context, msg string, f ...logger.Field) {
	l.record("warn", msg, f)
}

func (l *recordingLogger) Fatal(_ context.Context, msg string, f ...logger.Field) {
	l.record("fatal", msg, f)
}

func (l *recordingLogger) Named(string) logger.Logger         { return l }
func (l *recordingLogger) With(...logger.Field) logger.Logger { return l }

func TestClassify(t *testing.T) {
	Convey("classify labels failing statuses", t, func() {
		cases := []struct {
			status   int
			kind     string
			severity string
			failed   bool
		}{
			{http.StatusOK, "", "", false},
			{http.StatusAccepted, "", "", false},
			{http.StatusBadRequest, "client_error", "medium", true},
			{http.StatusNotFound, "not_found", "low", true},
			{http.StatusTooManyRequests, "backpressure", "medium", true},
			{http.StatusServiceUnavailable, "server_error", "high", true},
		}
		for _, c := range cases {
			kind, severity, failed := classify(c.status)
			So(kind, ShouldEqual, c.kind)
			So(severity, ShouldEqual, c.severity)
			So(failed, ShouldEqual, c.failed)
		}
	})
}

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented handler", t, func() {
		rec := &recordingLogger{}
		s := &Server{}
		WithLogger(rec)(s)

		status := http.StatusOK
		h := s.instrument("ping", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("hello"))
		})

		Convey("When the client sends no request id", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

			Convey("Then one is generated and logged at debug", func() {
				id := w.Header().Get(RequestIDHeader)
				So(id, ShouldNotBeEmpty)
				So(rec.lines, ShouldHaveLength, 1)
				So(rec.lines[0].level, ShouldEqual, "debug")
				So(rec.lines[0].fields["request_id"], ShouldEqual, id)
				So(rec.lines[0].fields["bytes"], ShouldEqual, 5)
				So(rec.lines[0].fields["endpoint"], ShouldEqual, "ping")
			})
		})

		Convey("When the client supplies a request id", func() {
			r := httptest.NewRequest(http.MethodGet, "/ping", nil)
			r.Header.Set(RequestIDHeader, "sim-42")
			w := httptest.NewRecorder()
			h(w, r)

			Convey("Then it is echoed back", func() {
				So(w.Header().Get(RequestIDHeader), ShouldEqual, "sim-42")
			})
		})

		Convey("When the handler fails with a server error", func() {
			status = http.StatusInternalServerError
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodPost, "/ping", nil))

			Convey("Then the request is logged at warn with its status", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(rec.lines, ShouldHaveLength, 1)
				So(rec.lines[0].level, ShouldEqual, "warn")
				So(rec.lines[0].fields["status"], ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When no logger is configured", func() {
			quiet := (&Server{}).instrument("ping", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			w := httptest.NewRecorder()

			Convey("Then the request still gets an id", func() {
				So(func() { quiet(w, httptest.NewRequest(http.MethodGet, "/ping", nil)) }, ShouldNotPanic)
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Header().Get(RequestIDHeader), ShouldNotBeEmpty)
			})
		})
	})
}
