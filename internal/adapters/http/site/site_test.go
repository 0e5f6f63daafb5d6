package site

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/sequence"
	"github.com/okian/healthreview/internal/domain/types"
	"github.com/okian/healthreview/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func strPtr(s string) *string { return &s }

type fakeSource struct {
	err   error
	weeks []model.Week
}

func (f *fakeSource) Sequence(_ context.Context, week model.Week) (types.SequenceView, error) {
	f.weeks = append(f.weeks, week)
	if f.err != nil {
		return types.SequenceView{}, f.err
	}
	users := model.NewUsersMap([]model.User{{ID: "u1", Name: "Alice"}})
	seq := sequence.Build([]model.Client{
		{ID: "c1", Name: "Acme <Ltd>", ManagerID: strPtr("u1")},
		{ID: "c2", Name: "Beta", ManagerID: strPtr("u1")},
	}, users, nil)
	return types.SequenceView{Week: week, Entries: seq, Groups: sequence.Groups(seq)}, nil
}

func (f *fakeSource) Reports(_ context.Context, week model.Week) ([]model.WeeklyReport, error) {
	r := model.WeeklyReport{ClientID: "c1", Week: week}
	r.SetScore("m1", model.Red)
	return []model.WeeklyReport{r}, nil
}

func serve(src Source, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h := NewRootHandler(src)
	h.now = func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }
	mux.HandleFunc("/", h.HandleRoot)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestOverview(t *testing.T) {
	Convey("Given an overview over one manager", t, func() {
		src := &fakeSource{}

		Convey("When requesting the root", func() {
			w := serve(src, "/")
			body := w.Body.String()

			Convey("Then the current week is rendered as HTML", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(src.weeks, ShouldResemble, []model.Week{"2024-01-08"})
				So(body, ShouldContainSubstring, "Alice")
				So(body, ShouldContainSubstring, `class="red"`)
				So(body, ShouldContainSubstring, "/?week=2024-01-15")
			})

			Convey("Then client names are escaped", func() {
				So(body, ShouldContainSubstring, "Acme &lt;Ltd&gt;")
			})
		})

		Convey("When requesting a specific week", func() {
			serve(src, "/?week=2024-02-01")

			Convey("Then it is normalised to its Monday", func() {
				So(src.weeks, ShouldResemble, []model.Week{"2024-01-29"})
			})
		})

		Convey("When the week is invalid", func() {
			w := serve(src, "/?week=nope")

			Convey("Then it answers 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When requesting any other path", func() {
			w := serve(src, "/favicon.ico")

			Convey("Then it answers 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the source fails", func() {
			src.err = errors.New("boom")
			w := serve(src, "/")

			Convey("Then it answers 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestRegister(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		Convey("Then Register panics", func() {
			So(func() { Register(context.Background(), nil, &fakeSource{}) }, ShouldPanic)
		})
	})
}
