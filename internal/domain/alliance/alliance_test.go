package alliance_test

import (
	"errors"
	"testing"

	"github.com/okian/scoutspr/internal/domain/alliance"
	"github.com/okian/scoutspr/internal/domain/epa"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// points schema: one teleop point per "pts", fouls cost one point each.
func calculator() *epa.Calculator {
	s, err := scoring.New("flat", 0, map[model.Phase]scoring.PhaseRules{
		model.PhaseTeleop: {"pts": scoring.Linear(1)},
		model.PhaseFouls:  {"foul": scoring.Linear(-1)},
	})
	if err != nil {
		panic(err)
	}
	return epa.NewCalculator(s)
}

func robot(match int, a model.Alliance, team int, scout string, pts, fouls float64) model.Observation {
	return model.Observation{
		ID:          scout + "-" + string(a),
		MatchNumber: match,
		Alliance:    a,
		TeamNumber:  team,
		ScouterID:   scout,
		GameData: model.GameData{
			Teleop: model.PhaseData{"pts": pts},
			Fouls:  model.PhaseData{"foul": fouls},
		},
	}
}

func TestBuildEquations(t *testing.T) {
	Convey("Given a fully scouted match with fouls on red", t, func() {
		calc := calculator()
		observations := []model.Observation{
			robot(1, model.Blue, 4, "dan", 60, 0),
			robot(1, model.Red, 1, "ann", 100, 3),
			robot(1, model.Red, 2, "bob", 90, 0),
			robot(1, model.Red, 3, "cat", 70, 0),
			robot(1, model.Blue, 5, "eve", 50, 0),
			robot(1, model.Blue, 6, "fay", 40, 0),
		}
		results := model.OfficialResults{
			1: {
				Red:  model.AllianceScore{OfficialScore: 258, FoulPoints: 5},
				Blue: model.AllianceScore{OfficialScore: 160, FoulPoints: 0},
			},
		}

		eqs, err := alliance.BuildEquations(observations, results, calc, alliance.DefaultOptions())
		So(err, ShouldBeNil)
		So(len(eqs), ShouldEqual, 2)

		Convey("Then red comes before blue", func() {
			So(eqs[0].Alliance, ShouldEqual, model.Red)
			So(eqs[1].Alliance, ShouldEqual, model.Blue)
		})

		Convey("Then the adjusted official removes only the opponent's fouls", func() {
			So(eqs[0].AdjustedOfficial, ShouldEqual, 258)
			So(eqs[1].AdjustedOfficial, ShouldEqual, 155)
		})

		Convey("Then the scouted total excludes penalty points", func() {
			So(eqs[0].ScoutedTotal, ShouldEqual, 260)
			So(eqs[0].Error, ShouldEqual, 2)
			So(eqs[1].ScoutedTotal, ShouldEqual, 150)
			So(eqs[1].Error, ShouldEqual, -5)
		})

		Convey("Then the participating scouts are recorded", func() {
			So(eqs[0].ScoutIDs, ShouldResemble, []string{"ann", "bob", "cat"})
			So(eqs[0].RobotCount, ShouldEqual, 3)
			So(eqs[0].ExpectedRobots, ShouldEqual, 3)
			So(eqs[0].Usable(), ShouldBeTrue)
			So(len(alliance.Usable(eqs)), ShouldEqual, 2)
		})
	})

	Convey("Given an alliance with only two robots scouted", t, func() {
		calc := calculator()
		observations := []model.Observation{
			robot(2, model.Red, 1, "ann", 10, 0),
			robot(2, model.Red, 2, "bob", 10, 0),
		}
		results := model.OfficialResults{2: {Red: model.AllianceScore{OfficialScore: 30}}}

		Convey("When incomplete alliances are skipped", func() {
			eqs, err := alliance.BuildEquations(observations, results, calc, alliance.DefaultOptions())
			So(err, ShouldBeNil)

			Convey("Then the equation is kept for diagnostics but marked skipped", func() {
				So(len(eqs), ShouldEqual, 1)
				So(eqs[0].Skipped, ShouldBeTrue)
				So(eqs[0].SkipReason, ShouldEqual, alliance.SkipIncompleteAlliance)
				So(eqs[0].RobotCount, ShouldEqual, 2)
				So(eqs[0].ScoutIDs, ShouldResemble, []string{"ann", "bob"})
				So(len(alliance.Usable(eqs)), ShouldEqual, 0)
			})
		})

		Convey("When incomplete alliances are allowed", func() {
			eqs, err := alliance.BuildEquations(observations, results, calc, alliance.Options{ExpectedAllianceSize: 3})
			So(err, ShouldBeNil)
			So(eqs[0].Usable(), ShouldBeTrue)
			So(eqs[0].Error, ShouldEqual, -10)
		})
	})

	Convey("Given an alliance whose robots are each finite but sum past the float range", t, func() {
		calc := calculator()
		observations := []model.Observation{
			robot(4, model.Red, 1, "ann", 1e308, 0),
			robot(4, model.Red, 2, "bob", 1e308, 0),
			robot(4, model.Red, 3, "cat", 1e308, 0),
		}
		results := model.OfficialResults{4: {Red: model.AllianceScore{OfficialScore: 90}}}

		eqs, err := alliance.BuildEquations(observations, results, calc, alliance.DefaultOptions())
		So(err, ShouldBeNil)

		Convey("Then the equation is skipped with finite fields", func() {
			So(eqs[0].Skipped, ShouldBeTrue)
			So(eqs[0].SkipReason, ShouldEqual, alliance.SkipNonFiniteError)
			So(eqs[0].ScoutedTotal, ShouldEqual, 0)
			So(eqs[0].Error, ShouldEqual, 0)
			So(len(alliance.Usable(eqs)), ShouldEqual, 0)
		})
	})

	Convey("Given a match without an official result", t, func() {
		calc := calculator()
		observations := []model.Observation{
			robot(3, model.Red, 1, "ann", 10, 0),
			robot(3, model.Red, 2, "bob", 10, 0),
			robot(3, model.Red, 3, "cat", 10, 0),
		}

		eqs, err := alliance.BuildEquations(observations, model.OfficialResults{}, calc, alliance.DefaultOptions())
		So(err, ShouldBeNil)

		Convey("Then the equation is skipped rather than failing", func() {
			So(eqs[0].Skipped, ShouldBeTrue)
			So(eqs[0].SkipReason, ShouldEqual, alliance.SkipMissingOfficial)
			So(eqs[0].ScoutedTotal, ShouldEqual, 30)
		})
	})

	Convey("Given one scout covering two robots of an alliance", t, func() {
		calc := calculator()
		observations := []model.Observation{
			robot(4, model.Red, 1, "ann", 10, 0),
			robot(4, model.Red, 2, "ann", 10, 0),
			robot(4, model.Red, 3, "bob", 10, 0),
		}
		results := model.OfficialResults{4: {Red: model.AllianceScore{OfficialScore: 30}}}

		eqs, err := alliance.BuildEquations(observations, results, calc, alliance.DefaultOptions())
		So(err, ShouldBeNil)

		Convey("Then the scout is listed once with the robot count kept", func() {
			So(eqs[0].ScoutIDs, ShouldResemble, []string{"ann", "bob"})
			So(eqs[0].ScoutRobots["ann"], ShouldEqual, 2)
			So(eqs[0].ScoutRobots["bob"], ShouldEqual, 1)
			So(eqs[0].Usable(), ShouldBeTrue)
		})
	})

	Convey("Given a robot scouted twice in one alliance-match", t, func() {
		calc := calculator()
		observations := []model.Observation{
			robot(5, model.Red, 1, "ann", 10, 0),
			robot(5, model.Red, 1, "dan", 10, 0),
			robot(5, model.Red, 2, "bob", 10, 0),
			robot(5, model.Red, 3, "cat", 10, 0),
		}
		results := model.OfficialResults{5: {Red: model.AllianceScore{OfficialScore: 30}}}

		eqs, err := alliance.BuildEquations(observations, results, calc, alliance.DefaultOptions())
		So(err, ShouldBeNil)
		So(eqs[0].SkipReason, ShouldEqual, alliance.SkipDuplicateObservation)
	})

	Convey("Given observations without scout ids", t, func() {
		calc := calculator()
		observations := []model.Observation{
			robot(6, model.Red, 1, "", 10, 0),
			robot(6, model.Red, 2, "", 10, 0),
			robot(6, model.Red, 3, "", 10, 0),
		}
		results := model.OfficialResults{6: {Red: model.AllianceScore{OfficialScore: 30}}}

		eqs, err := alliance.BuildEquations(observations, results, calc, alliance.DefaultOptions())
		So(err, ShouldBeNil)
		So(eqs[0].SkipReason, ShouldEqual, alliance.SkipNoScouts)
	})

	Convey("Given a non-positive alliance size", t, func() {
		_, err := alliance.BuildEquations(nil, nil, calculator(), alliance.Options{ExpectedAllianceSize: 0})
		So(errors.Is(err, alliance.ErrInvalidOptions), ShouldBeTrue)
	})
}
