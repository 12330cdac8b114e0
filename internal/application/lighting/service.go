// Package lighting is the application service behind the API, the worker
// and the CLI. It resolves fixture output, runs the photometry engine and
// records each run in whichever backends are configured.
package lighting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/domain/calculation"
	"github.com/turtacn/LumiGrid/internal/domain/catalog"
	"github.com/turtacn/LumiGrid/internal/domain/photometry"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/redis"
	"github.com/turtacn/LumiGrid/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LumiGrid/internal/infrastructure/storage/minio"
	"github.com/turtacn/LumiGrid/pkg/errors"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

const (
	modeSync  = "sync"
	modeAsync = "async"

	resultKeyPrefix = "grid:"
	modelKeyPrefix  = "model:"
)

// Service defines the calculation and catalog operations.
type Service interface {
	// Calculate runs a calculation synchronously. Identical requests are
	// served from the result cache when one is configured.
	Calculate(ctx context.Context, req *CalculationRequest) (*CalculationResult, error)
	// Submit validates req, stores a pending run and queues it.
	Submit(ctx context.Context, req *CalculationRequest) (*Job, error)
	// HandleJob computes a queued run. A returned error asks the caller to
	// retry; calculation failures are recorded on the run and return nil.
	HandleJob(ctx context.Context, payload *kafka.CalculationRequestedPayload) error

	GetRun(ctx context.Context, id string) (*calculation.Run, error)
	ListRuns(ctx context.Context, limit, offset int) (*RunList, error)
	SearchRuns(ctx context.Context, f calculation.Filter) (*SearchResult, error)
	ReportURL(ctx context.Context, id string) (string, error)

	ListFixtureModels(ctx context.Context, limit, offset int) (*FixtureModelList, error)
	GetFixtureModel(ctx context.Context, id string) (*catalog.FixtureModel, error)
	ImportFixtureModels(ctx context.Context, models []FixtureModelInput) (*ImportResult, error)
}

// ReportStore keeps full calculation reports.
type ReportStore interface {
	Put(ctx context.Context, runID string, report interface{}) (*minio.ReportRef, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// RunLocker hands out per-run locks.
type RunLocker interface {
	ForRun(runID string, opts ...redis.LockOption) redis.Locker
}

// Deps wires the service. Every backend is optional; operations that need
// a missing one fail with ErrCodeFeatureDisabled.
type Deps struct {
	Engine config.EngineConfig
	Cache  config.CacheConfig

	Catalog   catalog.Repository
	Runs      calculation.Repository
	Index     calculation.Index
	Reports   ReportStore
	Results   redis.Cache
	Locks     RunLocker
	Publisher kafka.Publisher

	// ReportURLExpiry <= 0 uses the store default.
	ReportURLExpiry time.Duration

	Metrics *prometheus.AppMetrics
	Logger  logging.Logger
}

type serviceImpl struct {
	engine   config.EngineConfig
	cacheCfg config.CacheConfig
	defaults photometry.Options

	catalog   catalog.Repository
	runs      calculation.Repository
	index     calculation.Index
	reports   ReportStore
	cache     redis.Cache
	locks     RunLocker
	publisher kafka.Publisher
	urlExpiry time.Duration

	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewService creates a new lighting Service.
func NewService(d Deps) Service {
	log := d.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &serviceImpl{
		engine:    d.Engine,
		cacheCfg:  d.Cache,
		defaults:  EngineOptions(d.Engine),
		catalog:   d.Catalog,
		runs:      d.Runs,
		index:     d.Index,
		reports:   d.Reports,
		cache:     d.Results,
		locks:     d.Locks,
		publisher: d.Publisher,
		urlExpiry: d.ReportURLExpiry,
		metrics:   d.Metrics,
		logger:    log.Named("lighting"),
	}
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeInvalidParameter, format, args...)
}

func disabled(what string) error {
	return errors.Newf(errors.ErrCodeFeatureDisabled, "%s is not configured", what)
}

// ─────────────────────────────────────────────────────────────────────────────
// Request preparation
// ─────────────────────────────────────────────────────────────────────────────

// prepared is a request with defaults applied and every fixture's output
// resolved.
type prepared struct {
	fixtures   []photometry.Fixture
	room       photometry.Room
	resolution int
	hours      float64
	opts       photometry.Options
	hash       string
}

type canonicalRequest struct {
	Fixtures         []photometry.Fixture `json:"fixtures"`
	Room             photometry.Room      `json:"room"`
	Resolution       int                  `json:"resolution"`
	PhotoperiodHours float64              `json:"photoperiod_hours"`
	Options          photometry.Options   `json:"options"`
}

func (s *serviceImpl) prepare(ctx context.Context, req *CalculationRequest) (*prepared, error) {
	if req == nil {
		return nil, invalid("request body is required")
	}
	if limit := s.engine.MaxFixtures; limit > 0 && len(req.Fixtures) > limit {
		return nil, invalid("at most %d fixtures are accepted, got %d", limit, len(req.Fixtures))
	}

	in := &prepared{
		room:       req.Room.toDomain(),
		resolution: req.Resolution,
		hours:      s.engine.DefaultPhotoperiodHours,
		opts:       req.Options.apply(s.defaults),
	}
	if in.resolution == 0 {
		in.resolution = s.engine.DefaultResolution
	}
	if req.PhotoperiodHours != nil {
		in.hours = *req.PhotoperiodHours
	}

	if err := in.room.Validate(); err != nil {
		return nil, err
	}
	if in.resolution <= 0 || in.resolution > in.opts.MaxResolution {
		return nil, invalid("resolution must be in [1,%d], got %d", in.opts.MaxResolution, in.resolution)
	}
	if err := photometry.ValidatePhotoperiod(in.hours); err != nil {
		return nil, err
	}
	if err := in.opts.Validate(in.room); err != nil {
		return nil, err
	}

	fixtures, err := s.resolveFixtures(ctx, req.Fixtures)
	if err != nil {
		return nil, err
	}
	in.fixtures = fixtures

	if in.hash, err = requestHash(in); err != nil {
		return nil, err
	}
	return in, nil
}

// requestHash is the sha256 of the canonical JSON of the resolved request.
// Parallelism does not change the result and is left out.
func requestHash(in *prepared) (string, error) {
	opts := in.opts
	opts.Parallelism = 0
	data, err := json.Marshal(canonicalRequest{
		Fixtures:         in.fixtures,
		Room:             in.room,
		Resolution:       in.resolution,
		PhotoperiodHours: in.hours,
		Options:          opts,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidParameter, "request is not serializable")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *serviceImpl) resolveFixtures(ctx context.Context, inputs []FixtureInput) ([]photometry.Fixture, error) {
	models := make(map[string]*catalog.FixtureModel)
	out := make([]photometry.Fixture, 0, len(inputs))
	for _, fi := range inputs {
		f := photometry.Fixture{
			ID:        fi.ID,
			X:         fi.X,
			Y:         fi.Y,
			Z:         fi.Z,
			Enabled:   fi.Enabled == nil || *fi.Enabled,
			Dimming:   100,
			BeamAngle: fi.BeamAngle,
			Profile:   fi.Profile,
		}
		if fi.Dimming != nil {
			f.Dimming = *fi.Dimming
		}

		switch {
		case fi.PPF != nil:
			f.Output = photometry.ExplicitOutput(*fi.PPF)
		case fi.Wattage > 0 && fi.Efficacy > 0:
			f.Output = photometry.DerivedOutput(fi.Wattage, fi.Efficacy)
		case fi.ModelID != "":
			m, ok := models[fi.ModelID]
			if !ok {
				var err error
				if m, err = s.fixtureModel(ctx, fi.ModelID); err != nil {
					return nil, err
				}
				models[fi.ModelID] = m
			}
			f.Output = m.OutputSource()
			if f.BeamAngle == 0 {
				f.BeamAngle = m.BeamAngle
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// fixtureModel reads a catalog entry through the cache. Unknown IDs are
// cached as negative entries.
func (s *serviceImpl) fixtureModel(ctx context.Context, id string) (*catalog.FixtureModel, error) {
	if s.catalog == nil {
		return nil, disabled("fixture catalog")
	}
	if s.cache == nil {
		return s.catalog.Get(ctx, id)
	}

	var (
		m       catalog.FixtureModel
		loaded  bool
		loadErr error
	)
	err := s.cache.GetOrLoad(ctx, modelKeyPrefix+id, &m, s.cacheCfg.ModelTTL, func(ctx context.Context) (interface{}, error) {
		loaded = true
		found, err := s.catalog.Get(ctx, id)
		if errors.IsCode(err, errors.ErrCodeFixtureModelNotFound) {
			return nil, nil
		}
		if err != nil {
			loadErr = err
			return nil, err
		}
		return found, nil
	})
	switch {
	case err == nil:
		prometheus.RecordCacheAccess(s.metrics, "models", !loaded)
		return &m, nil
	case err == redis.ErrCacheMiss:
		return nil, errors.Newf(errors.ErrCodeFixtureModelNotFound, "fixture model %s not found", id)
	case loadErr != nil:
		return nil, loadErr
	}
	s.logger.Warn("model cache unavailable", logging.String("model_id", id), logging.Err(err))
	return s.catalog.Get(ctx, id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Calculation
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Calculate(ctx context.Context, req *CalculationRequest) (*CalculationResult, error) {
	in, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.compute(ctx, in)
	}

	var (
		res     CalculationResult
		loaded  bool
		loadErr error
	)
	err = s.cache.GetOrLoad(ctx, resultKeyPrefix+in.hash, &res, s.cacheCfg.ResultTTL, func(ctx context.Context) (interface{}, error) {
		loaded = true
		r, err := s.compute(ctx, in)
		if err != nil {
			loadErr = err
			return nil, err
		}
		return r, nil
	})
	switch {
	case err == nil:
		res.Cached = !loaded
		prometheus.RecordCacheAccess(s.metrics, "results", res.Cached)
		if res.Cached {
			s.logger.Debug("calculation served from cache",
				logging.String("run_id", res.RunID),
				logging.String("request_hash", in.hash),
			)
		}
		return &res, nil
	case loadErr != nil:
		return nil, loadErr
	}
	s.logger.Warn("result cache unavailable, computing directly", logging.Err(err))
	return s.compute(ctx, in)
}

// runEngine applies the configured timeout and records engine metrics.
func (s *serviceImpl) runEngine(ctx context.Context, in *prepared, mode string) (*photometry.PhotometricGrid, time.Duration, error) {
	if s.engine.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.engine.Timeout)
		defer cancel()
	}
	start := time.Now()
	grid, err := photometry.Calculate(ctx, in.fixtures, in.room, in.resolution, in.hours, &in.opts)
	elapsed := time.Since(start)

	sample := prometheus.CalculationSample{
		Mode:     mode,
		Adaptive: in.opts.AdaptiveSubdivision,
		Elapsed:  elapsed,
		Err:      err,
	}
	if grid != nil {
		sample.Points = len(grid.Points)
		sample.Depth = grid.RefinementDepth
		sample.FlaggedCells = grid.FlaggedCells
		sample.Warnings = len(grid.Warnings)
		for _, c := range grid.Contours {
			sample.Segments += len(c.Segments)
		}
	}
	prometheus.RecordCalculation(s.metrics, sample)
	return grid, elapsed, err
}

func (s *serviceImpl) compute(ctx context.Context, in *prepared) (*CalculationResult, error) {
	grid, elapsed, err := s.runEngine(ctx, in, modeSync)
	if err != nil {
		s.logger.Warn("calculation failed",
			logging.String("request_hash", in.hash),
			logging.Duration("elapsed", elapsed),
			logging.Err(err),
		)
		return nil, err
	}

	run := calculation.NewRun(in.hash, len(in.fixtures), in.room, in.resolution, in.hours)
	_ = run.Start()
	_ = run.Complete(grid, elapsed)
	s.storeReport(ctx, run, grid)
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			s.logger.Warn("run record not saved", logging.String("run_id", run.ID), logging.Err(err))
		}
	}
	s.indexRun(ctx, run)

	s.logger.Info("calculation completed",
		logging.String("run_id", run.ID),
		logging.Int("points", len(grid.Points)),
		logging.Int("effective_resolution", grid.EffectiveResolution),
		logging.Float64("average_ppfd", grid.Statistics.Average),
		logging.Duration("elapsed", elapsed),
	)
	return &CalculationResult{
		RunID:       run.ID,
		RequestHash: in.hash,
		ReportKey:   run.ReportKey,
		DurationMS:  run.DurationMillis,
		Grid:        grid,
	}, nil
}

// storeReport uploads the full grid and sets run.ReportKey. Failures leave
// the key empty.
func (s *serviceImpl) storeReport(ctx context.Context, run *calculation.Run, grid *photometry.PhotometricGrid) {
	if s.reports == nil {
		return
	}
	ref, err := s.reports.Put(ctx, run.ID, &Report{
		Run:         run.Summarize(),
		RequestHash: run.RequestHash,
		GeneratedAt: time.Now().UTC(),
		Grid:        grid,
	})
	if err != nil {
		s.logger.Warn("report upload failed", logging.String("run_id", run.ID), logging.Err(err))
		prometheus.RecordError(s.metrics, "minio", errors.GetCode(err).String())
		return
	}
	run.ReportKey = ref.Key
	if s.metrics != nil {
		s.metrics.ReportBytes.WithLabelValues().Observe(float64(ref.Size))
	}
}

func (s *serviceImpl) indexRun(ctx context.Context, run *calculation.Run) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexSummary(ctx, run.Summarize()); err != nil {
		s.logger.Warn("run summary not indexed", logging.String("run_id", run.ID), logging.Err(err))
		prometheus.RecordError(s.metrics, "opensearch", errors.GetCode(err).String())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Jobs
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Submit(ctx context.Context, req *CalculationRequest) (*Job, error) {
	if s.runs == nil {
		return nil, disabled("run store")
	}
	if s.publisher == nil {
		return nil, disabled("job queue")
	}
	in, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode request")
	}

	run := calculation.NewRun(in.hash, len(in.fixtures), in.room, in.resolution, in.hours)
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	log := s.logger.With(logging.String("run_id", run.ID))

	env, err := kafka.NewEventEnvelope(kafka.EventCalculationRequested, kafka.CalculationRequestedPayload{RunID: run.ID, Request: raw})
	if err == nil {
		env.RequestID = logging.RequestIDFrom(ctx)
		var msg *kafka.Message
		if msg, err = env.ToMessage(kafka.TopicCalculationRequested, run.ID); err == nil {
			err = s.publisher.Publish(ctx, msg)
		}
	}
	if err != nil {
		_ = run.Fail(err, 0)
		if uerr := s.runs.Update(ctx, run); uerr != nil {
			log.Error("failed to mark unqueued run as failed", logging.Err(uerr))
		}
		return nil, err
	}

	log.Info("calculation queued", logging.String("request_hash", in.hash))
	return &Job{
		RunID:       run.ID,
		Status:      run.Status,
		RequestHash: in.hash,
		SubmittedAt: run.CreatedAt,
	}, nil
}

func (s *serviceImpl) HandleJob(ctx context.Context, payload *kafka.CalculationRequestedPayload) error {
	if s.runs == nil {
		return disabled("run store")
	}
	if payload == nil || payload.RunID == "" {
		return invalid("job payload has no run id")
	}
	ctx = logging.WithRunID(ctx, payload.RunID)
	log := s.logger.With(logging.String("run_id", payload.RunID))

	if s.locks != nil {
		var opts []redis.LockOption
		if s.cacheCfg.LockTTL > 0 {
			opts = append(opts, redis.WithLockTTL(s.cacheCfg.LockTTL))
		}
		lock := s.locks.ForRun(payload.RunID, append(opts, redis.WithWatchdog())...)
		ok, err := lock.TryLock(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return redis.ErrLockNotAcquired
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				log.Warn("run lock release failed", logging.Err(err))
			}
		}()
	}

	run, err := s.runs.Get(ctx, payload.RunID)
	if errors.IsCode(err, errors.ErrCodeRunNotFound) {
		log.Warn("job references an unknown run, dropping")
		return nil
	}
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		log.Info("run already finished, skipping", logging.String("status", string(run.Status)))
		return nil
	}
	if run.Status == calculation.StatusPending {
		_ = run.Start()
		if err := s.runs.Update(ctx, run); err != nil {
			return err
		}
	} else {
		log.Info("resuming interrupted run")
	}

	var req CalculationRequest
	if err := json.Unmarshal(payload.Request, &req); err != nil {
		return s.failJob(ctx, run, errors.Wrap(err, errors.ErrCodeInvalidParameter, "job request is malformed"), 0)
	}
	in, err := s.prepare(ctx, &req)
	if err != nil {
		if errors.IsClientError(errors.GetCode(err)) {
			return s.failJob(ctx, run, err, 0)
		}
		return err
	}

	grid, elapsed, err := s.runEngine(ctx, in, modeAsync)
	if err != nil {
		if photometry.IsCancelled(err) && ctx.Err() != nil {
			return err
		}
		return s.failJob(ctx, run, err, elapsed)
	}

	_ = run.Complete(grid, elapsed)
	s.storeReport(ctx, run, grid)
	if err := s.runs.Update(ctx, run); err != nil {
		return err
	}
	s.indexRun(ctx, run)
	prometheus.RecordJob(s.metrics, elapsed, nil)

	res := &CalculationResult{RunID: run.ID, RequestHash: in.hash, ReportKey: run.ReportKey, DurationMS: run.DurationMillis, Grid: grid}
	if s.cache != nil {
		if err := s.cache.Set(ctx, resultKeyPrefix+in.hash, res, s.cacheCfg.ResultTTL); err != nil {
			log.Warn("result cache fill failed", logging.Err(err))
		}
	}
	s.publish(ctx, kafka.TopicCalculationCompleted, kafka.EventCalculationCompleted, run.ID, kafka.CalculationCompletedPayload{
		RunID:       run.ID,
		ReportKey:   run.ReportKey,
		PointCount:  grid.Statistics.PointCount,
		AveragePPFD: grid.Statistics.Average,
		Uniformity:  grid.Statistics.Uniformity,
		DurationMS:  run.DurationMillis,
	})
	log.Info("job completed", logging.Duration("elapsed", elapsed), logging.String("report_key", run.ReportKey))
	return nil
}

// failJob records a permanent failure. Only a failed status write is
// returned, so the job is retried until the failure is stored.
func (s *serviceImpl) failJob(ctx context.Context, run *calculation.Run, cause error, elapsed time.Duration) error {
	_ = run.Fail(cause, elapsed)
	if err := s.runs.Update(ctx, run); err != nil {
		return err
	}
	prometheus.RecordJob(s.metrics, elapsed, cause)
	s.publish(ctx, kafka.TopicCalculationFailed, kafka.EventCalculationFailed, run.ID, kafka.CalculationFailedPayload{
		RunID: run.ID,
		Code:  errors.GetCode(cause).String(),
		Error: cause.Error(),
	})
	s.logger.Warn("job failed", logging.String("run_id", run.ID), logging.Err(cause))
	return nil
}

func (s *serviceImpl) publish(ctx context.Context, topic, eventType, key string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	env, err := kafka.NewEventEnvelope(eventType, payload)
	if err == nil {
		env.RequestID = logging.RequestIDFrom(ctx)
		var msg *kafka.Message
		if msg, err = env.ToMessage(topic, key); err == nil {
			err = s.publisher.Publish(ctx, msg)
		}
	}
	if err != nil {
		s.logger.Warn("event not published", logging.String("topic", topic), logging.String("key", key), logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Run history
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) GetRun(ctx context.Context, id string) (*calculation.Run, error) {
	if s.runs == nil {
		return nil, disabled("run store")
	}
	if id == "" {
		return nil, invalid("run id is required")
	}
	return s.runs.Get(ctx, id)
}

func (s *serviceImpl) ListRuns(ctx context.Context, limit, offset int) (*RunList, error) {
	if s.runs == nil {
		return nil, disabled("run store")
	}
	p := common.NewPagination(limit, offset)
	runs, total, err := s.runs.List(ctx, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return &RunList{Runs: runs, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}

func (s *serviceImpl) SearchRuns(ctx context.Context, f calculation.Filter) (*SearchResult, error) {
	if s.index == nil {
		return nil, disabled("run search")
	}
	if f.MinUniformity != nil && f.MaxUniformity != nil && *f.MinUniformity > *f.MaxUniformity {
		return nil, invalid("min_uniformity exceeds max_uniformity")
	}
	if f.MinAvgPPFD != nil && f.MaxAvgPPFD != nil && *f.MinAvgPPFD > *f.MaxAvgPPFD {
		return nil, invalid("min_avg_ppfd exceeds max_avg_ppfd")
	}
	summaries, total, err := s.index.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Summaries: summaries, Total: total}, nil
}

func (s *serviceImpl) ReportURL(ctx context.Context, id string) (string, error) {
	if s.reports == nil {
		return "", disabled("report storage")
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	if run.ReportKey == "" {
		return "", errors.Newf(errors.ErrCodeNotFound, "run %s has no stored report", id)
	}
	return s.reports.PresignedURL(ctx, run.ReportKey, s.urlExpiry)
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) ListFixtureModels(ctx context.Context, limit, offset int) (*FixtureModelList, error) {
	if s.catalog == nil {
		return nil, disabled("fixture catalog")
	}
	p := common.NewPagination(limit, offset)
	models, total, err := s.catalog.List(ctx, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return &FixtureModelList{Models: models, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}

func (s *serviceImpl) GetFixtureModel(ctx context.Context, id string) (*catalog.FixtureModel, error) {
	if id == "" {
		return nil, invalid("fixture model id is required")
	}
	return s.fixtureModel(ctx, id)
}

func (s *serviceImpl) ImportFixtureModels(ctx context.Context, inputs []FixtureModelInput) (*ImportResult, error) {
	if s.catalog == nil {
		return nil, disabled("fixture catalog")
	}
	if len(inputs) == 0 {
		return nil, invalid("no fixture models to import")
	}
	models := make([]*catalog.FixtureModel, 0, len(inputs))
	for i, in := range inputs {
		m, err := catalog.NewFixtureModel(in.Manufacturer, in.Model, in.PPF, in.Wattage, in.Efficacy, in.BeamAngle)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid fixture model").
				WithDetail(fmt.Sprintf("entry %d (%s %s)", i, in.Manufacturer, in.Model))
		}
		models = append(models, m)
	}

	n, err := s.catalog.BulkImport(ctx, models)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if _, err := s.cache.DeleteByPrefix(ctx, modelKeyPrefix); err != nil {
			s.logger.Warn("model cache not invalidated", logging.Err(err))
		}
	}
	s.logger.Info("fixture models imported", logging.Int64("rows", n))
	return &ImportResult{Imported: n}, nil
}
