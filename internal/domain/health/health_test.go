package health_test

import (
	"testing"

	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/sequence"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(s string) *string { return &s }

func TestOverall(t *testing.T) {
	Convey("Given status summaries", t, func() {
		So(health.Overall(model.StatusSummary{}), ShouldEqual, health.Unknown)
		So(health.Overall(model.StatusSummary{Green: 3}), ShouldEqual, health.Green)
		So(health.Overall(model.StatusSummary{Green: 3, Amber: 1}), ShouldEqual, health.Amber)
		So(health.Overall(model.StatusSummary{Green: 3, Amber: 1, Red: 1}), ShouldEqual, health.Red)
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given mixed scores", t, func() {
		s := health.Summarize([]model.ScoreEntry{{Score: model.Green}, {Score: model.Red}, {Score: model.Green}})
		So(s, ShouldResemble, model.StatusSummary{Green: 2, Red: 1})
	})
}

func TestManagerSummary(t *testing.T) {
	Convey("Given a group of two clients with reports", t, func() {
		seq := sequence.Build([]model.Client{
			{ID: "1", Name: "Acme", ManagerID: ptr("m1"), ClientType: "cro"},
			{ID: "2", Name: "Zed", ManagerID: ptr("m1")},
			{ID: "3", Name: "Beta"},
		}, model.UsersMap{"m1": {Name: "Maya"}}, []model.ScheduleEntry{{ManagerID: "m1", PresentationOrder: 1}})
		metrics := []model.Metric{
			{ID: "conv", Name: "Conversion", Applicability: model.CROOnly, SortOrder: 2},
			{ID: "comm", Name: "Communication", SortOrder: 1},
		}
		acme := model.WeeklyReport{ClientID: "1", Scores: []model.ScoreEntry{{MetricID: "comm", Score: model.Green}, {MetricID: "conv", Score: model.Red}}}
		acme.Recount()
		zed := model.WeeklyReport{ClientID: "2", Scores: []model.ScoreEntry{{MetricID: "comm", Score: model.Amber}}}
		zed.Recount()
		reports := map[string]model.WeeklyReport{"1": acme, "2": zed}

		slide, ok := health.ManagerSummary(seq, 1, reports, metrics)

		Convey("Then it covers the whole group with metric cells in sort order", func() {
			So(ok, ShouldBeTrue)
			So(slide.ManagerName, ShouldEqual, "Maya")
			So(slide.Rows, ShouldHaveLength, 2)
			So(slide.Rows[0].Cells[0].MetricID, ShouldEqual, "comm")
			So(slide.Rows[1].Cells[1].Applicable, ShouldBeFalse)
			So(slide.Rows[1].Cells[1].Score, ShouldEqual, model.Score(""))
		})

		Convey("And the totals aggregate the rows", func() {
			So(slide.Totals, ShouldResemble, model.StatusSummary{Green: 1, Amber: 1, Red: 1})
			So(slide.Overall, ShouldEqual, health.Red)
			So(slide.Rows[1].Overall, ShouldEqual, health.Amber)
		})

		Convey("And a client without a report is unknown", func() {
			s, ok := health.ManagerSummary(seq, 2, reports, metrics)
			So(ok, ShouldBeTrue)
			So(s.Rows[0].Overall, ShouldEqual, health.Unknown)
		})

		Convey("And an out-of-range position yields nothing", func() {
			_, ok := health.ManagerSummary(seq, 3, reports, metrics)
			So(ok, ShouldBeFalse)
		})
	})
}
