package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/healthreview/internal/adapters/http/api"
	"github.com/okian/healthreview/internal/adapters/http/client"
	"github.com/okian/healthreview/internal/adapters/repository"
	service "github.com/okian/healthreview/internal/app"
	"github.com/okian/healthreview/internal/domain/model"
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

func TestClientAgainstServer(t *testing.T) {
	Convey("Given a client talking to a live API server", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		So(store.Import(ctx, repository.Dataset{
			Users:   []model.User{{ID: "u1", Name: "Alice"}},
			Clients: []model.Client{{ID: "c1", Name: "Acme", ManagerID: strPtr("u1"), ClientType: "cro"}},
			Metrics: []model.Metric{
				{ID: "conv", Name: "Conversion", Applicability: model.CROOnly},
				{ID: "rank", Name: "Rankings", Applicability: model.NonCROOnly},
			},
		}), ShouldBeNil)
		svc := service.New(service.WithStore(store), service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		Reset(func() {
			srv.Close()
			svc.Stop(ctx)
			_ = store.Close()
		})

		c := client.New(srv.URL+"/", client.WithTimeout(2*time.Second))

		Convey("When reading the directory", func() {
			clients, err1 := c.Clients(ctx)
			metrics, err2 := c.Metrics(ctx)
			users, err3 := c.Users(ctx)
			schedule, err4 := c.Schedule(ctx)

			Convey("Then it decodes every collection", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(err4, ShouldBeNil)
				So(clients[0].Name, ShouldEqual, "Acme")
				So(*clients[0].ManagerID, ShouldEqual, "u1")
				So(metrics[0].Applicability, ShouldEqual, model.CROOnly)
				So(users[0].Name, ShouldEqual, "Alice")
				So(schedule, ShouldBeEmpty)
			})
		})

		Convey("When setting a score twice through the same change", func() {
			change := types.ScoreChange{ClientID: "c1", MetricID: "conv", Week: "2024-01-08", Score: model.Amber, RequestID: "fixed"}
			first, err := c.SetScore(ctx, change)
			So(err, ShouldBeNil)
			second, err := c.SetScore(ctx, change)
			So(err, ShouldBeNil)
			reports, err := c.Reports(ctx, "2024-01-08")
			So(err, ShouldBeNil)

			Convey("Then the server applies it once", func() {
				So(first.Status, ShouldEqual, types.StatusApplied)
				So(second.Duplicate, ShouldBeTrue)
				So(reports[0].StatusSummary.Amber, ShouldEqual, 1)
			})
		})

		Convey("When setting scores without a request id", func() {
			change := types.ScoreChange{ClientID: "c1", MetricID: "conv", Week: "2024-01-08", Score: model.Green}
			a, err1 := c.SetScore(ctx, change)
			b, err2 := c.SetScore(ctx, change)

			Convey("Then each call gets its own id and is applied", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(a.Duplicate, ShouldBeFalse)
				So(b.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the server rejects a change", func() {
			_, notApplicable := c.SetScore(ctx, types.ScoreChange{ClientID: "c1", MetricID: "rank", Week: "2024-01-08", Score: model.Green})
			_, notFound := c.SetScore(ctx, types.ScoreChange{ClientID: "zz", MetricID: "conv", Week: "2024-01-08", Score: model.Green})
			_, invalid := c.SetScore(ctx, types.ScoreChange{ClientID: "c1", MetricID: "conv", Week: "2024-01-08", Score: "pink"})

			Convey("Then errors map back to service kinds", func() {
				So(errors.Is(notApplicable, service.ErrNotApplicable), ShouldBeTrue)
				So(errors.Is(notFound, service.ErrNotFound), ShouldBeTrue)
				So(errors.Is(invalid, service.ErrInvalidRequest), ShouldBeTrue)
			})
		})

		Convey("When reading the sequence and its summary", func() {
			view, err := c.Sequence(ctx, "2024-01-08")
			So(err, ShouldBeNil)
			slide, err := c.Summary(ctx, "2024-01-08", 0)
			So(err, ShouldBeNil)
			_, missing := c.Summary(ctx, "2024-01-08", 5)

			Convey("Then both decode", func() {
				So(len(view.Entries), ShouldEqual, 1)
				So(view.Entries[0].ManagerName, ShouldEqual, "Alice")
				So(slide.ManagerName, ShouldEqual, "Alice")
				So(errors.Is(missing, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When replacing the schedule", func() {
			err := c.ReplaceSchedule(ctx, []model.ScheduleEntry{{ManagerID: "u1", PresentationOrder: 1}})
			schedule, _ := c.Schedule(ctx)

			Convey("Then it round-trips", func() {
				So(err, ShouldBeNil)
				So(schedule, ShouldResemble, []model.ScheduleEntry{{ManagerID: "u1", PresentationOrder: 1}})
			})
		})
	})
}

func TestClientUnexpectedReplies(t *testing.T) {
	Convey("Given a server that answers with a bare 502", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		Reset(srv.Close)
		c := client.New(srv.URL)

		_, err := c.Clients(context.Background())

		Convey("Then the error is ErrUnexpectedStatus", func() {
			So(errors.Is(err, client.ErrUnexpectedStatus), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "502")
		})
	})

	Convey("Given a server that returns a malformed body", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"not": "a list"})
		}))
		Reset(srv.Close)
		c := client.New(srv.URL)

		_, err := c.Users(context.Background())

		Convey("Then decoding fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
