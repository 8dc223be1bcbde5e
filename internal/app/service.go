// Package service wires the progression and social engines to storage,
// the post queue, the worker pool and the recompute scheduler.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/whisper/internal/adapters/mq/queue"
	"github.com/okian/whisper/internal/adapters/mq/worker"
	"github.com/okian/whisper/internal/adapters/repository"
	"github.com/okian/whisper/internal/adapters/schedule"
	"github.com/okian/whisper/internal/config"
	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/dedupe"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/progression"
	"github.com/okian/whisper/internal/domain/social"
	"github.com/okian/whisper/pkg/logger"
	"github.com/okian/whisper/pkg/metrics"
)

// RecomputeJob is the scheduler name of the profile recompute batch.
const RecomputeJob = "recompute-profiles"

const shutdownTimeout = 30 * time.Second

// Service implements the operations exposed over HTTP and the CLI.
type Service struct {
	mu      sync.Mutex
	started atomic.Bool

	cfg     *config.Config
	clock   func() time.Time
	newID   func() string
	logger  logger.Logger
	workers bool

	// Core components
	store      repository.Store
	ownStore   bool
	catalog    *catalog.Catalog
	engine     *progression.Engine
	parser     *social.TagParser
	effects    *social.EffectCalculator
	ledger     *social.Ledger
	aggregator *social.Aggregator

	// Pipeline
	deduper   dedupe.Deduper
	postQueue *queue.InMemoryQueue
	pool      *worker.Pool
	scheduler *schedule.Scheduler
	cancel    context.CancelFunc

	locks *keyedMutex
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore injects a store. The service does not close injected stores.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithCatalog injects an already loaded action catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithIDGenerator overrides the interaction record id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithWorkers controls whether Start runs the worker pool and scheduler.
// One-shot commands turn them off.
func WithWorkers(enabled bool) Option {
	return func(s *Service) {
		s.workers = enabled
	}
}

// New constructs a Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:     config.New(),
		clock:   time.Now,
		newID:   uuid.NewString,
		workers: true,
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, loads the catalog and builds every component.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting whisper service...")

	if s.catalog == nil {
		c, err := catalog.Load(s.cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		s.catalog = c
	}

	if s.store == nil {
		if err := s.openStore(ctx); err != nil {
			return err
		}
	}

	s.buildDomain()

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.postQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.PostQueueSize))

	if s.workers && s.cfg.RecomputeSchedule != "" {
		s.scheduler = schedule.New(schedule.WithLogger(s.logger.Named("scheduler")))
		err := s.scheduler.Add(RecomputeJob, s.cfg.RecomputeSchedule, func(ctx context.Context) error {
			report := s.RecomputeAllProfiles(ctx)
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d profiles failed", report.Failed, len(report.Items))
			}
			return nil
		})
		if err != nil {
			s.scheduler = nil
			s.closeOwnStore(ctx)
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.workers {
		process := worker.ProcessorFunc(func(ctx context.Context, p model.Post) error {
			_, err := s.ProcessPost(ctx, p)
			return err
		})
		s.pool = worker.NewPool(s.cfg.WorkerCount, s.postQueue, process, worker.WithPoolLogger(s.logger.Named("workers")))
		s.pool.Start(runCtx)
	}
	if s.scheduler != nil {
		s.scheduler.Start()
	}

	if n, err := s.store.CountPlayers(ctx); err == nil {
		metrics.UpdateTotalPlayers(n)
	}

	s.started.Store(true)
	s.logger.Info(ctx, "whisper service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.PostQueueSize),
		logger.Int("actions", s.catalog.Actions()),
		logger.Bool("durable", s.cfg.StorePath != ""),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.cfg.StorePath == "" {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	} else {
		store, err := repository.OpenSQLite(ctx, s.cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.cfg.StorePath))
	}
	s.ownStore = true
	return nil
}

// NewEngine builds a progression engine from the configured constants.
func NewEngine(p config.Progression) *progression.Engine {
	return progression.NewEngine(progression.WithParams(progression.Params{
		BaseXP:                 p.BaseXP,
		XPExponent:             p.XPExponent,
		MaxLevel:               p.MaxLevel,
		BaseCredits:            p.BaseCredits,
		CreditsPerPost:         p.CreditsPerPost,
		BaseInfection:          p.BaseInfection,
		InfectionReliefPerPost: p.InfectionReliefPerPost,
		MaxInfectionRelief:     p.MaxInfectionRelief,
		WhisperPerTopic:        p.WhisperPerTopic,
		DisplayCap:             p.DisplayCap,
		WhisperMin:             p.WhisperMin,
		WhisperMax:             p.WhisperMax,
	}))
}

func (s *Service) buildDomain() {
	s.engine = NewEngine(s.cfg.Progression)
	s.buildTagging()

	sc := s.cfg.Social
	s.ledger = social.NewLedger(s.store,
		social.WithLedgerLimits(social.LedgerLimits{
			ScoreMin:     sc.ScoreMin,
			ScoreMax:     sc.ScoreMax,
			HistoryLimit: sc.HistoryLimit,
		}),
		social.WithFoldObserver(func(_ model.RelationshipEntry, clamped bool) {
			metrics.RecordLedgerFold(clamped)
		}),
	)
	s.aggregator = social.NewAggregator(s.catalog, social.WithTrendThreshold(sc.TrendThreshold))
}

// buildTagging builds the store-free part of the social pipeline. Callers hold s.mu.
func (s *Service) buildTagging() {
	sc := s.cfg.Social
	s.parser = social.NewTagParser(s.catalog)
	s.effects = social.NewEffectCalculator(s.catalog,
		social.WithModifierBounds(sc.ModifierMin, sc.ModifierMax),
		social.WithEffectStep(sc.EffectStep),
	)
}

// Stop drains the queue, stops background work and closes an owned store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping whisper service...")

	if s.scheduler != nil {
		if err := s.scheduler.Stop(ctx); err != nil {
			s.logger.Warn(ctx, "scheduler stop failed", logger.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	} else {
		_ = s.postQueue.Close()
	}
	s.cancel()
	s.pool, s.scheduler = nil, nil

	s.closeOwnStore(ctx)

	s.started.Store(false)
	s.logger.Info(ctx, "whisper service stopped")
}

func (s *Service) closeOwnStore(ctx context.Context) {
	if !s.ownStore {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}
	s.store = nil
	s.ownStore = false
}

func (s *Service) ready() error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	return nil
}

// Catalog returns the loaded action catalog, or nil before Start.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Started       bool      `json:"started"`
	Workers       int       `json:"workers"`
	QueueLength   int       `json:"queueLength"`
	QueueCapacity int       `json:"queueCapacity"`
	DedupeEntries int64     `json:"dedupeEntries"`
	Players       int       `json:"players"`
	Actions       int       `json:"actions"`
	LockedIDs     int       `json:"lockedIds"`
	NextRecompute time.Time `json:"nextRecompute,omitzero"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	st := Stats{Started: s.started.Load()}
	if !st.Started {
		return st
	}

	st.QueueLength = s.postQueue.Len()
	st.QueueCapacity = s.postQueue.Capacity()
	st.DedupeEntries = s.deduper.Size()
	st.Actions = s.catalog.Actions()
	st.LockedIDs = s.locks.held()
	if s.pool != nil {
		st.Workers = s.pool.Size()
	}
	if n, err := s.store.CountPlayers(ctx); err == nil {
		st.Players = n
		metrics.UpdateTotalPlayers(n)
	}
	if s.scheduler != nil {
		if next, err := s.scheduler.Next(RecomputeJob); err == nil {
			st.NextRecompute = next
		}
	}
	metrics.UpdateQueueSize(st.QueueLength)
	return st
}
