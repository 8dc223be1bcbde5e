package progression_test

import (
	"testing"

	"github.com/okian/whisper/internal/domain/progression"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLevelTable(t *testing.T) {
	Convey("Given the default level table", t, func() {
		table := progression.NewLevelTable(0, 0, 0)

		Convey("When computing required experience", func() {
			Convey("Then it follows floor(1000 * level^1.8)", func() {
				So(table.RequiredXP(1), ShouldEqual, 1000)
				So(table.RequiredXP(2), ShouldEqual, 3482)
				So(table.RequiredXP(0), ShouldEqual, 0)
				So(table.MaxLevel(), ShouldEqual, 100)
			})
		})

		Convey("When deriving a level from experience", func() {
			Convey("Then anything below the first requirement is level 1", func() {
				So(table.LevelFromXP(0), ShouldEqual, 1)
				So(table.LevelFromXP(-50), ShouldEqual, 1)
				So(table.LevelFromXP(999), ShouldEqual, 1)
			})

			Convey("Then the boundary belongs to the higher level", func() {
				So(table.LevelFromXP(3481), ShouldEqual, 1)
				So(table.LevelFromXP(3482), ShouldEqual, 2)
			})

			Convey("Then the level is capped", func() {
				So(table.LevelFromXP(table.RequiredXP(100)), ShouldEqual, 100)
				So(table.LevelFromXP(table.RequiredXP(100)*10), ShouldEqual, 100)
			})

			Convey("Then more experience never lowers the level", func() {
				prev := table.LevelFromXP(0)
				for xp := 0; xp <= 5_000_000; xp += 9973 {
					level := table.LevelFromXP(xp)
					So(level, ShouldBeGreaterThanOrEqualTo, prev)
					So(table.RequiredXP(level), ShouldBeLessThanOrEqualTo, max(xp, table.RequiredXP(1)))
					prev = level
				}
			})
		})

		Convey("When asking for experience to the next level", func() {
			Convey("Then it is the remaining gap", func() {
				So(table.XPToNext(1, 572), ShouldEqual, 3482-572)
				So(table.XPToNext(1, 10_000), ShouldEqual, 0)
			})

			Convey("Then the top level has no next level", func() {
				So(table.XPToNext(100, 0), ShouldEqual, 0)
			})
		})

		Convey("When asking for level bonuses", func() {
			Convey("Then they scale with level and resistance is capped at 30", func() {
				b := table.BonusesFor(10)
				So(b.BonusCredits, ShouldEqual, 50)
				So(b.InfectionResistance, ShouldEqual, 5.0)
				So(b.WhisperBonus, ShouldEqual, 20)
				So(table.BonusesFor(100).InfectionResistance, ShouldEqual, 30.0)
			})
		})
	})

	Convey("Given a custom curve", t, func() {
		table := progression.NewLevelTable(100, 1, 10)

		Convey("Then requirements are linear and the cap is 10", func() {
			So(table.RequiredXP(5), ShouldEqual, 500)
			So(table.LevelFromXP(550), ShouldEqual, 5)
			So(table.LevelFromXP(1_000_000), ShouldEqual, 10)
		})
	})
}

func TestCaps(t *testing.T) {
	Convey("Given the default caps", t, func() {
		caps := progression.NewCaps(0)

		Convey("Then display never exceeds 100 and equals real below it", func() {
			for _, real := range []float64{0, 0.5, 42, 99.9, 100, 100.1, 150, 1e6} {
				So(caps.Display(real), ShouldBeLessThanOrEqualTo, 100)
				if real <= 100 {
					So(caps.Display(real), ShouldEqual, real)
				}
			}
		})

		Convey("Then exceeded is strictly above the cap", func() {
			So(caps.Exceeded(100), ShouldBeFalse)
			So(caps.Exceeded(100.01), ShouldBeTrue)
		})
	})
}
