package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/whisper/internal/adapters/repository"
	"github.com/okian/whisper/internal/adapters/schedule"
	app "github.com/okian/whisper/internal/app"
	"github.com/okian/whisper/internal/config"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/progression"
	"github.com/okian/whisper/pkg/logger"
)

func run(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTagsCommand(t *testing.T) {
	convey.Convey("Given the tags command", t, func() {
		convey.Convey("When previewing a post", func() {
			out, err := run("tags", "#Bob_помощь_публично", "#Bob_танец", "#Carol_угроза")

			convey.Convey("Then the valid tags are printed with effects", func() {
				convey.So(err, convey.ShouldBeNil)
				var previews []app.TagPreview
				convey.So(json.Unmarshal([]byte(out), &previews), convey.ShouldBeNil)
				convey.So(len(previews), convey.ShouldEqual, 2)
				convey.So(previews[0].Tag.TargetName, convey.ShouldEqual, "Bob")
				convey.So(previews[0].Effect, convey.ShouldEqual, 20)
				convey.So(previews[1].Effect, convey.ShouldEqual, -10)
			})
		})

		convey.Convey("When no text is given", func() {
			_, err := run("tags")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestEvaluateCommand(t *testing.T) {
	convey.Convey("Given the evaluate command", t, func() {
		out, err := run("evaluate", "--credits", "100", "--posts", "2", "--topics", "1", "--status", "К:+200")

		convey.Convey("Then the result is printed as JSON", func() {
			convey.So(err, convey.ShouldBeNil)
			var res progression.Result
			convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
			convey.So(res.Credits, convey.ShouldEqual, 325)
			convey.So(res.WhisperReal, convey.ShouldEqual, 3)
			convey.So(res.Changes.Bonus.Credits, convey.ShouldEqual, 200)
		})
	})
}

func TestRecomputeCommand(t *testing.T) {
	convey.Convey("Given a sqlite store with two players", t, func() {
		path := filepath.Join(t.TempDir(), "whisper.db")
		ctx := context.Background()
		store, err := repository.OpenSQLite(ctx, path)
		convey.So(err, convey.ShouldBeNil)
		for i, name := range []string{"Alice", "Bob"} {
			p := model.Player{ID: int64(i + 1), Name: name, RegisteredAt: time.Now()}
			convey.So(store.UpsertPlayer(ctx, p), convey.ShouldBeNil)
		}
		convey.So(store.SaveInteraction(ctx, model.InteractionRecord{
			ID: "r1", SourceID: 1, TargetID: 2, Action: "помощь", Category: model.CategoryAlliance, Effect: 10,
		}), convey.ShouldBeNil)
		convey.So(store.Close(), convey.ShouldBeNil)
		t.Setenv("WHISPER_STORE_PATH", path)

		convey.Convey("When the recompute command runs", func() {
			out, err := run("recompute")

			convey.Convey("Then every profile is rebuilt and stored", func() {
				convey.So(err, convey.ShouldBeNil)
				var report app.BatchReport
				convey.So(json.Unmarshal([]byte(out), &report), convey.ShouldBeNil)
				convey.So(report.Succeeded, convey.ShouldEqual, 2)

				store, err := repository.OpenSQLite(ctx, path)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				p, err := store.Profile(ctx, 2)
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.TotalScore, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When the recompute schedule does not parse", func() {
			t.Setenv("WHISPER_RECOMPUTE_SCHEDULE", "every other tuesday")
			_, err := run("recompute")

			convey.Convey("Then the job is rejected before it runs", func() {
				convey.So(errors.Is(err, schedule.ErrInvalidSchedule), convey.ShouldBeTrue)

				store, err := repository.OpenSQLite(ctx, path)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				_, err = store.Profile(ctx, 2)
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})
}

func TestHistoryCommand(t *testing.T) {
	convey.Convey("Given a sqlite store with a profiled player", t, func() {
		path := filepath.Join(t.TempDir(), "whisper.db")
		ctx := context.Background()
		store, err := repository.OpenSQLite(ctx, path)
		convey.So(err, convey.ShouldBeNil)
		convey.So(store.UpsertPlayer(ctx, model.Player{ID: 1, Name: "Alice", RegisteredAt: time.Now()}), convey.ShouldBeNil)
		convey.So(store.UpsertPlayer(ctx, model.Player{ID: 2, Name: "Bob", RegisteredAt: time.Now()}), convey.ShouldBeNil)
		for i, score := range []int{10, 25} {
			snap := model.ProfileSnapshot{Score: score, DominantCategory: model.CategoryAlliance, TakenAt: time.Now().Add(time.Duration(i) * time.Minute)}
			convey.So(store.AppendProfileSnapshot(ctx, 1, snap, 20), convey.ShouldBeNil)
		}
		convey.So(store.Close(), convey.ShouldBeNil)
		t.Setenv("WHISPER_STORE_PATH", path)

		convey.Convey("When the history command runs", func() {
			out, err := run("history", "1")

			convey.Convey("Then the snapshots are printed oldest first", func() {
				convey.So(err, convey.ShouldBeNil)
				var hist []model.ProfileSnapshot
				convey.So(json.Unmarshal([]byte(out), &hist), convey.ShouldBeNil)
				convey.So(len(hist), convey.ShouldEqual, 2)
				convey.So(hist[0].Score, convey.ShouldEqual, 10)
				convey.So(hist[1].Score, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When the player was never profiled", func() {
			out, err := run("history", "2")
			convey.So(err, convey.ShouldBeNil)
			convey.So(strings.TrimSpace(out), convey.ShouldEqual, "[]")
		})

		convey.Convey("When the player is unknown or the id is malformed", func() {
			_, err := run("history", "9")
			convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			_, err = run("history", "abc")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestInvalidConfig(t *testing.T) {
	convey.Convey("Given an invalid environment override", t, func() {
		t.Setenv("WHISPER_SOCIAL__EFFECT_STEP", "0")

		convey.Convey("Then commands fail before doing any work", func() {
			_, err := run("evaluate")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		convey.So(logger.Init(logger.WithOutput(io.Discard)), convey.ShouldBeNil)
		cfg := config.New()
		svc := app.New(app.WithConfig(cfg), app.WithStore(repository.NewMemoryStore()), app.WithWorkers(false))
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("When building the HTTP server", func() {
			srv := newHTTPServer(cfg, svc, logger.Get())

			convey.Convey("Then it listens on the configured address and serves the API", func() {
				convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}
