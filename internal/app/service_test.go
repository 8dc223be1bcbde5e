package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/whisper/internal/adapters/repository"
	service "github.com/okian/whisper/internal/app"
	"github.com/okian/whisper/internal/config"
	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithStore(repository.NewMemoryStore()),
		service.WithCatalog(catalog.Default()),
		service.WithClock(fixedClock),
		service.WithWorkers(false),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When it has not been started", func() {
			_, err := svc.Player(ctx, 1)

			Convey("Then operations report it", func() {
				So(err, ShouldEqual, service.ErrNotStarted)
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
				report := svc.EvaluateAll(ctx, []service.EvaluationRequest{{PlayerID: 1}})
				So(report.Failed, ShouldEqual, 1)
			})
		})

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats(ctx)
				So(stats.Started, ShouldBeTrue)
				So(stats.Actions, ShouldEqual, 15)
				So(stats.Workers, ShouldEqual, 0)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
				svc.Stop()
			})
		})

		Convey("When the config is invalid", func() {
			cfg := config.New()
			cfg.Social.EffectStep = 0
			bad := newService(service.WithConfig(cfg))

			Convey("Then Start fails with a config error", func() {
				err := bad.Start(ctx)
				So(errors.Is(err, config.ErrSocialConfig), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service backed by a sqlite file", t, func() {
		cfg := config.New()
		cfg.StorePath = filepath.Join(t.TempDir(), "whisper.db")
		cfg.RecomputeSchedule = "@hourly"
		svc := service.New(service.WithConfig(cfg), service.WithClock(fixedClock))
		ctx := context.Background()

		Convey("When started with workers and a schedule", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then the pool and the next recompute are reported", func() {
				stats := svc.GetStats(ctx)
				So(stats.Workers, ShouldEqual, cfg.WorkerCount)
				So(stats.QueueCapacity, ShouldEqual, cfg.PostQueueSize)
				So(stats.NextRecompute.IsZero(), ShouldBeFalse)
			})
		})
	})
}

func TestService_Players(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newService()
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When registering players", func() {
			alice, err := svc.RegisterPlayer(ctx, model.Player{
				ID: 1, Name: " Alice ",
				Resources: model.PlayerResources{Credits: 100, WhisperReal: 40},
			})
			So(err, ShouldBeNil)
			_, err = svc.RegisterPlayer(ctx, model.Player{ID: 2, Name: "Bob"})
			So(err, ShouldBeNil)

			Convey("Then names are trimmed and registration time defaults to now", func() {
				So(alice.Name, ShouldEqual, "Alice")
				So(alice.RegisteredAt, ShouldEqual, now)
				So(alice.XP, ShouldBeGreaterThan, 0)
			})

			Convey("Then re-registering keeps resources and only renames", func() {
				p, err := svc.RegisterPlayer(ctx, model.Player{ID: 1, Name: "Alicia", Resources: model.PlayerResources{Credits: 5}})
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "Alicia")
				So(p.Resources.Credits, ShouldEqual, 100)
			})

			Convey("Then a clashing name is rejected", func() {
				_, err := svc.RegisterPlayer(ctx, model.Player{ID: 3, Name: "BOB"})
				So(errors.Is(err, repository.ErrNameTaken), ShouldBeTrue)
			})

			Convey("Then the view carries display values and rank", func() {
				v, err := svc.Player(ctx, 1)
				So(err, ShouldBeNil)
				So(v.WhisperDisplay, ShouldEqual, 40)
				So(v.ExceededWhisper, ShouldBeFalse)
				So(v.Rank, ShouldEqual, 1)

				top, err := svc.TopPlayers(ctx, 10)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].ID, ShouldEqual, 1)
				So(top[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When the player is invalid", func() {
			_, err := svc.RegisterPlayer(ctx, model.Player{ID: 0, Name: "Nobody"})
			So(errors.Is(err, service.ErrInvalidPlayer), ShouldBeTrue)
			_, err = svc.RegisterPlayer(ctx, model.Player{ID: 5, Name: "  "})
			So(errors.Is(err, service.ErrInvalidPlayer), ShouldBeTrue)
		})

		Convey("When reading an unknown player", func() {
			_, err := svc.Player(ctx, 404)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Evaluate(t *testing.T) {
	Convey("Given a registered player", t, func() {
		svc := newService()
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, err := svc.RegisterPlayer(ctx, model.Player{
			ID: 1, Name: "Negan", RegisteredAt: now.Add(-48 * time.Hour),
			Resources: model.PlayerResources{Credits: 100},
		})
		So(err, ShouldBeNil)

		Convey("When evaluating with activity and a status line", func() {
			res, err := svc.Evaluate(ctx, service.EvaluationRequest{
				PlayerID:   1,
				Activity:   model.ActivitySample{PostCount: 2, UniqueTopicCount: 1},
				StatusText: "К:+200",
			})

			Convey("Then deltas and the bonus are applied and persisted", func() {
				So(err, ShouldBeNil)
				So(res.Changes.CreditsDelta, ShouldEqual, 25)
				So(res.Changes.Bonus.Credits, ShouldEqual, 200)
				So(res.Credits, ShouldEqual, 325)
				So(res.WhisperReal, ShouldEqual, 3)

				v, err := svc.Player(ctx, 1)
				So(err, ShouldBeNil)
				So(v.Resources.Credits, ShouldEqual, 325)
				So(v.XP, ShouldEqual, res.XP)
				So(v.EvaluatedAt, ShouldEqual, now)
			})
		})

		Convey("When a batch contains an unknown player", func() {
			report := svc.EvaluateAll(ctx, []service.EvaluationRequest{{PlayerID: 1}, {PlayerID: 9}})

			Convey("Then the known player still succeeds", func() {
				So(report.Operation, ShouldEqual, "evaluate")
				So(report.Succeeded, ShouldEqual, 1)
				So(report.Failed, ShouldEqual, 1)
				So(report.Items[1].ParticipantID, ShouldEqual, 9)
				So(report.Items[1].Error, ShouldNotBeEmpty)
			})
		})

		Convey("When the daily cycle runs over posts", func() {
			posts := []model.Post{
				{PostID: "a", AuthorID: 1, TopicID: "t1", PostedAt: now.Add(-time.Hour)},
				{PostID: "b", AuthorID: 1, TopicID: "t2", PostedAt: now.Add(-2 * time.Hour)},
				{PostID: "c", AuthorID: 1, TopicID: "t2", PostedAt: now.Add(-48 * time.Hour)},
			}
			report, err := svc.EvaluateActivity(ctx, posts, now.Add(-24*time.Hour), now, nil)

			Convey("Then only posts inside the window count", func() {
				So(err, ShouldBeNil)
				So(report.Succeeded, ShouldEqual, 1)
				v, err := svc.Player(ctx, 1)
				So(err, ShouldBeNil)
				So(v.Resources.Credits, ShouldEqual, 125)
				So(v.Resources.WhisperReal, ShouldEqual, 6)
			})
		})
	})
}

func TestService_PreviewTags(t *testing.T) {
	Convey("Given a service with a catalog but not started", t, func() {
		svc := newService()

		Convey("When previewing a post", func() {
			previews, err := svc.PreviewTags("#Bob_помощь_публично #Bob_танец #Carol_нападение_случайно")

			Convey("Then valid tags are scored", func() {
				So(err, ShouldBeNil)
				So(len(previews), ShouldEqual, 2)
				So(previews[0].Effect, ShouldEqual, 20)
				So(previews[0].Category, ShouldEqual, model.CategoryAlliance)
				So(previews[0].CategoryName, ShouldEqual, "Союз")
				So(previews[1].Effect, ShouldEqual, -10)
			})
		})
	})

	Convey("Given previews racing before Start", t, func() {
		svc := newService()
		var wg sync.WaitGroup
		effects := make([]int, 8)
		for i := range effects {
			wg.Add(1)
			go func() {
				defer wg.Done()
				previews, err := svc.PreviewTags("#Bob_защита")
				if err == nil && len(previews) == 1 {
					effects[i] = previews[0].Effect
				}
			}()
		}
		wg.Wait()

		Convey("Then every preview is scored and Start still builds the full pipeline", func() {
			for _, e := range effects {
				So(e, ShouldEqual, 15)
			}
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()
			_, err := svc.RegisterPlayer(ctx, model.Player{ID: 1, Name: "Alice"})
			So(err, ShouldBeNil)
			_, err = svc.RegisterPlayer(ctx, model.Player{ID: 2, Name: "Bob"})
			So(err, ShouldBeNil)
			out, err := svc.ProcessPost(ctx, model.Post{PostID: "after-preview", AuthorID: 1, Content: "#Bob_защита"})
			So(err, ShouldBeNil)
			So(len(out.Entries), ShouldEqual, 1)
		})
	})

	Convey("Given a service without a catalog", t, func() {
		svc := service.New()

		Convey("Then previews need Start", func() {
			_, err := svc.PreviewTags("#Bob_помощь")
			So(err, ShouldEqual, service.ErrNotStarted)
		})
	})
}
