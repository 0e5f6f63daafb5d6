package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/healthreview/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func strPtr(s string) *string { return &s }

func fixture() Dataset {
	return Dataset{
		Users: []model.User{
			{ID: "u1", Name: "Alice"},
			{ID: "u2", Name: "Bob"},
		},
		Clients: []model.Client{
			{ID: "c2", Name: "beta", ManagerID: strPtr("u1"), ClientType: "seo"},
			{ID: "c1", Name: "Acme", ManagerID: strPtr("u2"), ClientType: "cro"},
			{ID: "c3", Name: "Zed"},
		},
		Metrics: []model.Metric{
			{ID: "m2", Name: "Velocity", SortOrder: 2},
			{ID: "m1", Name: "Conversion", Applicability: model.CROOnly, SortOrder: 1},
		},
		Schedule: []model.ScheduleEntry{
			{ManagerID: "u2", PresentationOrder: 2},
			{ManagerID: "u1", PresentationOrder: 1},
		},
		Reports: []model.WeeklyReport{
			{ClientID: "c1", Week: "2024-01-08", Scores: []model.ScoreEntry{
				{MetricID: "m2", Score: model.Green},
				{MetricID: "m1", Score: model.Red},
			}},
			{ClientID: "c2", Week: "2024-01-08", Scores: []model.ScoreEntry{
				{MetricID: "m2", Score: model.Amber},
			}},
			{ClientID: "c3", Week: "2024-01-08"},
		},
	}
}

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func factories() []storeFactory {
	return []storeFactory{
		{"memory", func(_ *testing.T) Store {
			return NewMemoryStore(context.Background())
		}},
		{"sqlite", func(t *testing.T) Store {
			dsn := filepath.Join(t.TempDir(), "review.db")
			s, err := NewSQLStore(context.Background(), DriverSQLite, dsn)
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		}},
	}
}

func TestStoreContract(t *testing.T) {
	for _, f := range factories() {
		Convey("Given a seeded "+f.name+" store", t, func() {
			ctx := context.Background()
			store := f.open(t)
			Reset(func() { _ = store.Close() })
			So(store.Import(ctx, fixture()), ShouldBeNil)

			Convey("When listing the directory", func() {
				clients, err := store.Clients(ctx)
				So(err, ShouldBeNil)
				metrics, err := store.Metrics(ctx)
				So(err, ShouldBeNil)
				users, err := store.Users(ctx)
				So(err, ShouldBeNil)
				schedule, err := store.Schedule(ctx)
				So(err, ShouldBeNil)

				Convey("Then everything comes back in a stable order", func() {
					So(len(clients), ShouldEqual, 3)
					So(clients[0].ID, ShouldEqual, "c1")
					So(*clients[0].ManagerID, ShouldEqual, "u2")
					So(clients[2].ManagerID, ShouldBeNil)
					So(metrics[0].ID, ShouldEqual, "m1")
					So(metrics[0].Applicability, ShouldEqual, model.CROOnly)
					So(metrics[1].Applicability, ShouldEqual, model.Unrestricted)
					So(len(users), ShouldEqual, 2)
					So(schedule, ShouldResemble, []model.ScheduleEntry{
						{ManagerID: "u1", PresentationOrder: 1},
						{ManagerID: "u2", PresentationOrder: 2},
					})
				})
			})

			Convey("When looking up single records", func() {
				c, err := store.Client(ctx, "c2")
				So(err, ShouldBeNil)
				m, err := store.Metric(ctx, "m2")
				So(err, ShouldBeNil)
				_, missingClient := store.Client(ctx, "nope")
				_, missingMetric := store.Metric(ctx, "nope")

				Convey("Then known ids resolve and unknown ids are ErrNotFound", func() {
					So(c.Name, ShouldEqual, "beta")
					So(m.Name, ShouldEqual, "Velocity")
					So(errors.Is(missingClient, ErrNotFound), ShouldBeTrue)
					So(errors.Is(missingMetric, ErrNotFound), ShouldBeTrue)
				})
			})

			Convey("When reading a week of reports", func() {
				reports, err := store.Reports(ctx, "2024-01-08")
				So(err, ShouldBeNil)

				Convey("Then empty reports are omitted and scores are sorted by metric", func() {
					So(len(reports), ShouldEqual, 2)
					So(reports[0].ClientID, ShouldEqual, "c1")
					So(reports[0].Scores, ShouldResemble, []model.ScoreEntry{
						{MetricID: "m1", Score: model.Red},
						{MetricID: "m2", Score: model.Green},
					})
					So(reports[0].StatusSummary, ShouldResemble, model.StatusSummary{Green: 1, Red: 1})
				})
			})

			Convey("When reading a week with no scores", func() {
				reports, err := store.Reports(ctx, "2024-01-15")

				Convey("Then it returns an empty list", func() {
					So(err, ShouldBeNil)
					So(reports, ShouldBeEmpty)
				})
			})

			Convey("When upserting a score", func() {
				r, err := store.UpsertScore(ctx, "c2", "2024-01-08", "m2", model.Red)
				So(err, ShouldBeNil)
				created, err := store.UpsertScore(ctx, "c3", "2024-01-15", "m2", model.Green)
				So(err, ShouldBeNil)
				reread, err := store.Report(ctx, "c2", "2024-01-08")
				So(err, ShouldBeNil)

				Convey("Then the report is replaced in place and recounted", func() {
					So(r.Scores, ShouldResemble, []model.ScoreEntry{{MetricID: "m2", Score: model.Red}})
					So(r.StatusSummary, ShouldResemble, model.StatusSummary{Red: 1})
					So(reread, ShouldResemble, r)
				})

				Convey("Then a missing report is created", func() {
					So(created.ClientID, ShouldEqual, "c3")
					So(created.Week, ShouldEqual, model.Week("2024-01-15"))
					So(created.StatusSummary.Green, ShouldEqual, 1)
				})
			})

			Convey("When upserting an invalid score", func() {
				_, err := store.UpsertScore(ctx, "c1", "2024-01-08", "m2", "blue")

				Convey("Then it is rejected", func() {
					So(errors.Is(err, model.ErrInvalidScore), ShouldBeTrue)
				})
			})

			Convey("When reading an unknown report", func() {
				_, err := store.Report(ctx, "c3", "2024-01-08")

				Convey("Then it is ErrNotFound", func() {
					So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				})
			})

			Convey("When replacing the schedule", func() {
				err := store.ReplaceSchedule(ctx, []model.ScheduleEntry{
					{ManagerID: "u2", PresentationOrder: 5},
					{ManagerID: "u2", PresentationOrder: 1},
				})
				So(err, ShouldBeNil)
				schedule, err := store.Schedule(ctx)
				So(err, ShouldBeNil)

				Convey("Then old entries are gone and the last duplicate wins", func() {
					So(schedule, ShouldResemble, []model.ScheduleEntry{{ManagerID: "u2", PresentationOrder: 1}})
				})
			})

			Convey("When importing an invalid dataset", func() {
				err := store.Import(ctx, Dataset{Metrics: []model.Metric{{ID: "m9", Applicability: "sometimes"}}})
				_, lookup := store.Metric(ctx, "m9")

				Convey("Then nothing is written", func() {
					So(errors.Is(err, ErrInvalidRecord), ShouldBeTrue)
					So(errors.Is(lookup, ErrNotFound), ShouldBeTrue)
				})
			})
		})
	}
}

func TestNew(t *testing.T) {
	Convey("Given the store factory", t, func() {
		ctx := context.Background()

		Convey("When asking for the memory driver", func() {
			s, err := New(ctx, DriverMemory, "")
			So(err, ShouldBeNil)
			Reset(func() { _ = s.Close() })

			Convey("Then a MemoryStore is returned", func() {
				_, ok := s.(*MemoryStore)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When asking for an unknown driver", func() {
			_, err := New(ctx, "mongo", "")

			Convey("Then it fails with ErrUnknownDriver", func() {
				So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
			})
		})
	})
}

func TestRebind(t *testing.T) {
	Convey("Given placeholder rebinding", t, func() {
		pg := &SQLStore{driver: DriverPostgres}
		lite := &SQLStore{driver: DriverSQLite}
		q := "SELECT a FROM t WHERE b = ? AND c = ?"

		So(pg.rebind(q), ShouldEqual, "SELECT a FROM t WHERE b = $1 AND c = $2")
		So(lite.rebind(q), ShouldEqual, q)
	})
}
