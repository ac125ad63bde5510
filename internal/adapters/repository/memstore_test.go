package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/scoutspr/internal/adapters/repository"
	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/ranking"
	"github.com/okian/scoutspr/internal/domain/spr"
	. "github.com/smartystreets/goconvey/convey"
)

func observation(id string, team, year int, scout string) model.Observation {
	return model.Observation{
		ID:          id,
		MatchNumber: 1,
		Alliance:    model.Red,
		TeamNumber:  team,
		ScouterID:   scout,
		Year:        year,
	}
}

func report(ids ...string) spr.Report {
	rep := spr.Report{ConvergenceAchieved: true}
	for i, id := range ids {
		rep.Scouters = append(rep.Scouters, ranking.ScoutRating{Rank: i + 1, ScoutID: id, ErrorValue: float64(i)})
	}
	return rep
}

func TestMemoryStore_Observations(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := repository.NewMemoryStore(repository.WithInitialCapacity(4))

		Convey("When observations are added", func() {
			ok, err := s.AddObservation(ctx, observation("a", 254, 2025, "ann"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			ok, err = s.AddObservation(ctx, observation("b", 254, 2024, "bob"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			ok, err = s.AddObservation(ctx, observation("c", 1678, 2025, ""))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			Convey("Then they are returned in arrival order", func() {
				obs := s.Observations(ctx)
				So(len(obs), ShouldEqual, 3)
				So(obs[0].ID, ShouldEqual, "a")
				So(obs[2].ID, ShouldEqual, "c")
			})

			Convey("Then team lookups filter by year", func() {
				So(len(s.TeamObservations(ctx, 254, 0)), ShouldEqual, 2)
				So(len(s.TeamObservations(ctx, 254, 2025)), ShouldEqual, 1)
				So(s.TeamObservations(ctx, 9999, 0), ShouldBeEmpty)
			})

			Convey("Then a repeated id is reported as a duplicate", func() {
				before := s.Version(ctx)
				ok, err := s.AddObservation(ctx, observation("a", 111, 2025, "cat"))
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(s.Version(ctx), ShouldEqual, before)
				So(len(s.Observations(ctx)), ShouldEqual, 3)
			})

			Convey("Then stored ids are known", func() {
				So(s.HasObservation(ctx, "b"), ShouldBeTrue)
				So(s.HasObservation(ctx, "zzz"), ShouldBeFalse)
			})

			Convey("Then counts reflect distinct scouts and teams", func() {
				c := s.Count(ctx)
				So(c.Observations, ShouldEqual, 3)
				So(c.Scouts, ShouldEqual, 2)
				So(c.Teams, ShouldEqual, 2)
				So(c.Version, ShouldEqual, uint64(3))
				So(c.ReportVersion, ShouldEqual, uint64(0))
			})

			Convey("Then the returned slice is a copy", func() {
				obs := s.Observations(ctx)
				obs[0].ScouterID = "mallory"
				So(s.Observations(ctx)[0].ScouterID, ShouldEqual, "ann")
			})
		})

		Convey("When an invalid observation is added", func() {
			ok, err := s.AddObservation(ctx, observation("", 254, 2025, "ann"))

			Convey("Then it is rejected", func() {
				So(ok, ShouldBeFalse)
				So(errors.Is(err, model.ErrInvalidObservation), ShouldBeTrue)
				So(s.Version(ctx), ShouldEqual, uint64(0))
			})
		})

		Convey("When many writers add concurrently", func() {
			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						_, _ = s.AddObservation(ctx, observation(fmt.Sprintf("w%d-%d", w, i), 100+w, 2025, "ann"))
					}
				}(w)
			}
			wg.Wait()

			Convey("Then every observation is stored once", func() {
				So(s.Count(ctx).Observations, ShouldEqual, 400)
				So(s.Version(ctx), ShouldEqual, uint64(400))
			})
		})
	})
}

func TestMemoryStore_Results(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := repository.NewMemoryStore()

		Convey("When a result is stored and replaced", func() {
			So(s.PutResult(ctx, 3, model.OfficialResult{Red: model.AllianceScore{OfficialScore: 100}}), ShouldBeNil)
			So(s.PutResult(ctx, 3, model.OfficialResult{Red: model.AllianceScore{OfficialScore: 120}}), ShouldBeNil)

			Convey("Then the latest value wins and each write bumps the version", func() {
				res := s.Results(ctx)
				So(len(res), ShouldEqual, 1)
				So(res[3].Red.OfficialScore, ShouldEqual, 120)
				So(s.Version(ctx), ShouldEqual, uint64(2))
			})

			Convey("Then mutating the copy does not leak into the store", func() {
				res := s.Results(ctx)
				delete(res, 3)
				So(len(s.Results(ctx)), ShouldEqual, 1)
			})
		})

		Convey("When an invalid result is stored", func() {
			So(errors.Is(s.PutResult(ctx, 0, model.OfficialResult{}), model.ErrInvalidResult), ShouldBeTrue)
			bad := model.OfficialResult{Blue: model.AllianceScore{FoulPoints: -3}}
			So(errors.Is(s.PutResult(ctx, 1, bad), model.ErrInvalidResult), ShouldBeTrue)
			So(s.Count(ctx).Results, ShouldEqual, 0)
		})
	})
}

func TestMemoryStore_Reports(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a store without a report", t, func() {
		s := repository.NewMemoryStore(repository.WithClock(func() time.Time { return fixed }))

		Convey("Then reads report the missing report", func() {
			_, err := s.Report(ctx)
			So(errors.Is(err, repository.ErrNoReport), ShouldBeTrue)
			_, err = s.Rank(ctx, "ann")
			So(errors.Is(err, repository.ErrNoReport), ShouldBeTrue)
			_, err = s.TopN(ctx, 10)
			So(errors.Is(err, repository.ErrNoReport), ShouldBeTrue)
		})

		Convey("When a report is published", func() {
			snap := s.PublishReport(ctx, report("ann", "bob", "cat"), 7)

			Convey("Then it is the current snapshot", func() {
				cur, err := s.Report(ctx)
				So(err, ShouldBeNil)
				So(cur, ShouldEqual, snap)
				So(cur.Version, ShouldEqual, uint64(7))
				So(cur.ComputedAt, ShouldEqual, fixed)
				So(s.Count(ctx).ReportVersion, ShouldEqual, uint64(7))
			})

			Convey("Then scouts can be looked up by id", func() {
				r, err := s.Rank(ctx, "bob")
				So(err, ShouldBeNil)
				So(r.Rank, ShouldEqual, 2)

				_, err = s.Rank(ctx, "zed")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then TopN is capped by the report size", func() {
				top, err := s.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].ScoutID, ShouldEqual, "ann")

				all, err := s.TopN(ctx, 50)
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 3)

				_, err = s.TopN(ctx, 0)
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("Then a newer report replaces it", func() {
				s.PublishReport(ctx, report("cat"), 9)
				_, err := s.Rank(ctx, "ann")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				cur, _ := s.Report(ctx)
				So(cur.Version, ShouldEqual, uint64(9))
			})
		})
	})
}
