package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/whisper/internal/adapters/repository"
	"github.com/okian/whisper/internal/domain/model"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type storeFactory struct {
	name string
	open func(t *testing.T) repository.Store
}

func factories() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(*testing.T) repository.Store { return repository.NewMemoryStore() }},
		{name: "sqlite", open: func(t *testing.T) repository.Store {
			s, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "whisper.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		}},
	}
}

func player(id int64, name string, xp int) model.Player {
	return model.Player{
		ID:           id,
		Name:         name,
		RegisteredAt: epoch,
		Resources:    model.PlayerResources{Credits: 100, InfectionReal: 12.5, WhisperReal: 40},
		XP:           xp,
		Level:        1,
	}
}

func TestStorePlayers(t *testing.T) {
	for _, f := range factories() {
		Convey("Given a "+f.name+" store", t, func() {
			ctx := context.Background()
			store := f.open(t)
			defer store.Close()

			Convey("When a player is upserted", func() {
				So(store.UpsertPlayer(ctx, player(1, "Negan", 500)), ShouldBeNil)

				Convey("Then it can be read by id and by folded name", func() {
					p, err := store.Player(ctx, 1)
					So(err, ShouldBeNil)
					So(p.Name, ShouldEqual, "Negan")
					So(p.Resources.InfectionReal, ShouldEqual, 12.5)
					So(p.RegisteredAt.Equal(epoch), ShouldBeTrue)
					So(p.EvaluatedAt.IsZero(), ShouldBeTrue)

					byName, err := store.PlayerByName(ctx, "  NEGAN ")
					So(err, ShouldBeNil)
					So(byName.ID, ShouldEqual, 1)
				})

				Convey("Then a second upsert replaces it", func() {
					updated := player(1, "Negan", 900)
					updated.EvaluatedAt = epoch.Add(time.Hour)
					So(store.UpsertPlayer(ctx, updated), ShouldBeNil)

					p, err := store.Player(ctx, 1)
					So(err, ShouldBeNil)
					So(p.XP, ShouldEqual, 900)
					So(p.EvaluatedAt.Equal(epoch.Add(time.Hour)), ShouldBeTrue)

					n, err := store.CountPlayers(ctx)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)
				})

				Convey("Then another id cannot take the same name", func() {
					err := store.UpsertPlayer(ctx, player(2, "negan", 0))
					So(err, ShouldEqual, repository.ErrNameTaken)
				})

				Convey("Then renaming frees the old name", func() {
					So(store.UpsertPlayer(ctx, player(1, "Rick", 500)), ShouldBeNil)
					_, err := store.PlayerByName(ctx, "Negan")
					So(err, ShouldEqual, repository.ErrNotFound)
					So(store.UpsertPlayer(ctx, player(2, "Negan", 0)), ShouldBeNil)
				})
			})

			Convey("When the name is blank", func() {
				So(store.UpsertPlayer(ctx, player(3, "  ", 0)), ShouldEqual, repository.ErrInvalidName)
			})

			Convey("When reading unknown players", func() {
				_, err := store.Player(ctx, 42)
				So(err, ShouldEqual, repository.ErrNotFound)
				_, err = store.PlayerByName(ctx, "ghost")
				So(err, ShouldEqual, repository.ErrNotFound)
				_, err = store.PlayerRank(ctx, 42)
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})
	}
}

func TestStoreRanking(t *testing.T) {
	for _, f := range factories() {
		Convey("Given a "+f.name+" store with ranked players", t, func() {
			ctx := context.Background()
			store := f.open(t)
			defer store.Close()

			So(store.UpsertPlayer(ctx, player(1, "Alice", 300)), ShouldBeNil)
			So(store.UpsertPlayer(ctx, player(2, "Bob", 900)), ShouldBeNil)
			So(store.UpsertPlayer(ctx, player(3, "Carol", 300)), ShouldBeNil)
			So(store.UpsertPlayer(ctx, player(4, "Dave", 50)), ShouldBeNil)

			Convey("When asking for the top three", func() {
				top, err := store.TopPlayers(ctx, 3)

				Convey("Then XP orders them and ids break ties", func() {
					So(err, ShouldBeNil)
					So(ids(top), ShouldResemble, []int64{2, 1, 3})
				})
			})

			Convey("When a player gains XP", func() {
				So(store.UpsertPlayer(ctx, player(4, "Dave", 1000)), ShouldBeNil)

				Convey("Then the ranking moves", func() {
					top, err := store.TopPlayers(ctx, 10)
					So(err, ShouldBeNil)
					So(ids(top), ShouldResemble, []int64{4, 2, 1, 3})

					rank, err := store.PlayerRank(ctx, 3)
					So(err, ShouldBeNil)
					So(rank, ShouldEqual, 4)
				})
			})

			Convey("When the limit is not positive", func() {
				_, err := store.TopPlayers(ctx, 0)
				So(err, ShouldEqual, repository.ErrInvalidLimit)
			})

			Convey("When listing all players", func() {
				all, err := store.Players(ctx)
				So(err, ShouldBeNil)
				So(ids(all), ShouldResemble, []int64{1, 2, 3, 4})
			})
		})
	}
}

func TestStoreSocialState(t *testing.T) {
	for _, f := range factories() {
		Convey("Given a "+f.name+" store", t, func() {
			ctx := context.Background()
			store := f.open(t)
			defer store.Close()

			Convey("When interaction records are saved", func() {
				recs := []model.InteractionRecord{
					{ID: "a", PostID: "p1", SourceID: 1, TargetID: 2, Action: "помощь", Category: model.CategoryAlliance,
						Modifiers: []string{"публично"}, Effect: 15, Description: "help", PostedAt: epoch, ProcessedAt: epoch},
					{ID: "b", PostID: "p2", SourceID: 3, TargetID: 1, Action: "угроза", Category: model.CategoryHostility,
						Effect: -10, PostedAt: epoch, ProcessedAt: epoch},
					{ID: "c", PostID: "p3", SourceID: 2, TargetID: 3, Action: "помощь", Category: model.CategoryAlliance,
						Effect: 10, PostedAt: epoch, ProcessedAt: epoch},
				}
				for _, r := range recs {
					So(store.SaveInteraction(ctx, r), ShouldBeNil)
				}

				Convey("Then records touching a participant come back oldest first", func() {
					got, err := store.InteractionsFor(ctx, 1)
					So(err, ShouldBeNil)
					So(len(got), ShouldEqual, 2)
					So(got[0].ID, ShouldEqual, "a")
					So(got[0].Modifiers, ShouldResemble, []string{"публично"})
					So(got[0].PostedAt.Equal(epoch), ShouldBeTrue)
					So(got[1].ID, ShouldEqual, "b")

					none, err := store.InteractionsFor(ctx, 99)
					So(err, ShouldBeNil)
					So(none, ShouldBeEmpty)
				})

				Convey("Then a returned record does not alias the stored one", func() {
					got, err := store.InteractionsFor(ctx, 1)
					So(err, ShouldBeNil)
					got[0].Modifiers[0] = "наедине"

					again, err := store.InteractionsFor(ctx, 1)
					So(err, ShouldBeNil)
					So(again[0].Modifiers, ShouldResemble, []string{"публично"})
				})

				Convey("Then the same post, source, target and action is stored once", func() {
					replay := recs[0]
					replay.ID = "a-replay"
					err := store.SaveInteraction(ctx, replay)
					So(errors.Is(err, repository.ErrDuplicateInteraction), ShouldBeTrue)

					other := recs[0]
					other.ID = "a-other"
					other.Action = "защита"
					So(store.SaveInteraction(ctx, other), ShouldBeNil)

					got, err := store.InteractionsFor(ctx, 2)
					So(err, ShouldBeNil)
					So(len(got), ShouldEqual, 3)
					So(got[2].ID, ShouldEqual, "a-other")
				})

				Convey("Then records without a post id never collide", func() {
					loose := model.InteractionRecord{ID: "l1", SourceID: 5, TargetID: 6, Action: "помощь", PostedAt: epoch, ProcessedAt: epoch}
					So(store.SaveInteraction(ctx, loose), ShouldBeNil)
					loose.ID = "l2"
					So(store.SaveInteraction(ctx, loose), ShouldBeNil)

					got, err := store.InteractionsFor(ctx, 5)
					So(err, ShouldBeNil)
					So(len(got), ShouldEqual, 2)
				})
			})

			Convey("When a relationship entry is saved", func() {
				key := model.PairKey{SourceID: 1, TargetID: 2}
				_, found, err := store.LoadRelationship(ctx, key)
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)

				entry := model.RelationshipEntry{
					Key: key, TotalScore: 100, UnclampedScore: 130, UpdatedAt: epoch,
					History: []model.InteractionRecord{{ID: "x", SourceID: 1, TargetID: 2, Effect: 30, PostedAt: epoch}},
				}
				So(store.SaveRelationship(ctx, entry), ShouldBeNil)

				Convey("Then it loads back intact", func() {
					got, found, err := store.LoadRelationship(ctx, key)
					So(err, ShouldBeNil)
					So(found, ShouldBeTrue)
					So(got.TotalScore, ShouldEqual, 100)
					So(got.UnclampedScore, ShouldEqual, 130)
					So(len(got.History), ShouldEqual, 1)
					So(got.History[0].ID, ShouldEqual, "x")

					_, found, err = store.LoadRelationship(ctx, model.PairKey{SourceID: 2, TargetID: 1})
					So(err, ShouldBeNil)
					So(found, ShouldBeFalse)
				})
			})

			Convey("When profiles and snapshots are saved", func() {
				_, err := store.Profile(ctx, 7)
				So(err, ShouldEqual, repository.ErrNotFound)

				profile := model.SocialProfile{
					ParticipantID:    7,
					TotalScore:       -25,
					CategoryScores:   map[model.Category]int{model.CategoryHostility: 25},
					DominantCategory: model.CategoryHostility,
					Trend:            model.TrendStable,
					CalculatedAt:     epoch,
				}
				So(store.SaveProfile(ctx, profile), ShouldBeNil)
				for i := range 5 {
					snap := model.ProfileSnapshot{Score: i, DominantCategory: model.CategoryContract, TakenAt: epoch.Add(time.Duration(i) * time.Minute)}
					So(store.AppendProfileSnapshot(ctx, 7, snap, 3), ShouldBeNil)
				}

				Convey("Then the profile loads and history keeps the newest entries", func() {
					got, err := store.Profile(ctx, 7)
					So(err, ShouldBeNil)
					So(got.TotalScore, ShouldEqual, -25)
					So(got.CategoryScores[model.CategoryHostility], ShouldEqual, 25)

					got.CategoryScores[model.CategoryHostility] = 999
					profile.CategoryScores[model.CategoryHostility] = 998
					reloaded, err := store.Profile(ctx, 7)
					So(err, ShouldBeNil)
					So(reloaded.CategoryScores[model.CategoryHostility], ShouldEqual, 25)

					hist, err := store.ProfileHistory(ctx, 7)
					So(err, ShouldBeNil)
					So(len(hist), ShouldEqual, 3)
					So(hist[0].Score, ShouldEqual, 2)
					So(hist[2].Score, ShouldEqual, 4)
				})
			})
		})
	}
}

func TestMemoryStoreConcurrentUpserts(t *testing.T) {
	Convey("Given concurrent writers on a memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := int64(i)
				_ = store.UpsertPlayer(ctx, player(id, "player-"+strconv.Itoa(i), i*10))
				_ = store.SaveInteraction(ctx, model.InteractionRecord{ID: "rec-" + strconv.Itoa(i), SourceID: id, TargetID: 0})
			}()
		}
		wg.Wait()

		Convey("Then every write is visible", func() {
			n, err := store.CountPlayers(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 50)

			top, err := store.TopPlayers(ctx, 1)
			So(err, ShouldBeNil)
			So(top[0].ID, ShouldEqual, 49)

			recs, err := store.InteractionsFor(ctx, 0)
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 50)
		})
	})
}

func ids(ps []model.Player) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
