package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(WithRegistry(reg), WithNamespace("test"), WithSubsystem("unit"))

		Convey("When frames are recorded", func() {
			m.RecordFrame(2 * time.Millisecond)
			m.RecordFrame(3 * time.Millisecond)
			m.RecordDropped()

			Convey("Then the counters reflect them", func() {
				So(testutil.ToFloat64(m.framesProcessed), ShouldEqual, 2)
				So(testutil.ToFloat64(m.framesDropped), ShouldEqual, 1)
			})
		})

		Convey("When labelled counters are incremented", func() {
			m.RecordEvent("attack")
			m.RecordEvent("attack")
			m.RecordEvent("release")
			m.RecordClassificationFailure("malformed_landmarks")

			Convey("Then each label is tracked separately", func() {
				So(testutil.ToFloat64(m.eventsEmitted.WithLabelValues("attack")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.eventsEmitted.WithLabelValues("release")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.classifyFailures.WithLabelValues("malformed_landmarks")), ShouldEqual, 1)
			})
		})

		Convey("When the session gauge is toggled", func() {
			m.SetSessionActive(true)
			So(testutil.ToFloat64(m.sessionActive), ShouldEqual, 1)
			m.SetSessionActive(false)
			So(testutil.ToFloat64(m.sessionActive), ShouldEqual, 0)
		})

		Convey("When the handler is scraped", func() {
			m.RecordSinkError()
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the exposition contains namespaced metrics", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(rec.Body.String(), "test_unit_sink_errors_total 1"), ShouldBeTrue)
			})
		})
	})
}
