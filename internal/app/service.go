// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the in-process presenter.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/okian/healthreview/internal/adapters/mq/queue"
	"github.com/okian/healthreview/internal/adapters/mq/worker"
	"github.com/okian/healthreview/internal/adapters/repository"
	"github.com/okian/healthreview/internal/domain/dedupe"
	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/sequence"
	"github.com/okian/healthreview/internal/domain/types"
	"github.com/okian/healthreview/pkg/logger"
	"github.com/okian/healthreview/pkg/metrics"
)

// Service owns the store and the score-write pipeline.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	ownsStore bool
	deduper   dedupe.Deduper
	queue     queue.Queue
	pool      *worker.Pool

	workerCount  int
	queueSize    int
	dedupeSize   int
	writeTimeout time.Duration
	storeDriver  string
	storeDSN     string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of score-write workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the score-write queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the request-id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithScoreWriteTimeout bounds a single score write, queueing included.
func WithScoreWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithStoreDriver selects the store opened by Start.
func WithStoreDriver(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
			s.storeDSN = dsn
		}
	}
}

// WithStore injects an already opened store. The caller keeps ownership.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
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

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    1_024,
		dedupeSize:   50_000,
		writeTimeout: 5 * time.Second,
		storeDriver:  repository.DriverMemory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store if none was injected and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		store, err := repository.New(ctx, s.storeDriver, s.storeDSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "health review service started",
		logger.String("store", s.storeDriver),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains pending writes and releases the store if the service opened it.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping health review service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "health review service stopped")
}

func (s *Service) running() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Clients returns every client.
func (s *Service) Clients(ctx context.Context) ([]model.Client, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.Clients(ctx)
}

// Metrics returns every metric in display order.
func (s *Service) Metrics(ctx context.Context) ([]model.Metric, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.Metrics(ctx)
}

// Users returns every user.
func (s *Service) Users(ctx context.Context) ([]model.User, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.Users(ctx)
}

// Schedule returns the presentation schedule.
func (s *Service) Schedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.Schedule(ctx)
}

// ReplaceSchedule swaps the presentation schedule.
func (s *Service) ReplaceSchedule(ctx context.Context, entries []model.ScheduleEntry) error {
	store, err := s.running()
	if err != nil {
		return err
	}
	trimmed := make([]model.ScheduleEntry, len(entries))
	for i, e := range entries {
		e.ManagerID = strings.TrimSpace(e.ManagerID)
		trimmed[i] = e
	}
	if err := store.ReplaceSchedule(ctx, trimmed); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Reports returns every report of week.
func (s *Service) Reports(ctx context.Context, week model.Week) ([]model.WeeklyReport, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	return store.Reports(ctx, week)
}

// SetScore validates a score change and applies it through the worker pool.
// A repeated request id is acknowledged as a duplicate without rewriting.
func (s *Service) SetScore(ctx context.Context, change types.ScoreChange) (types.ScoreChangeAck, error) {
	start := time.Now()
	store, err := s.running()
	if err != nil {
		return types.ScoreChangeAck{}, err
	}

	change, client, metric, err := s.validate(ctx, store, change)
	if err != nil {
		metrics.RecordScoreWrite("rejected")
		return types.ScoreChangeAck{}, err
	}
	if !metric.AppliesTo(client) {
		metrics.RecordScoreWrite("rejected")
		return types.ScoreChangeAck{}, fmt.Errorf("%w: %s is %s, client %s is %q",
			ErrNotApplicable, metric.ID, metric.Applicability, client.ID, client.ClientType)
	}

	if change.RequestID != "" && s.deduper.SeenAndRecord(ctx, change.RequestID) {
		metrics.RecordScoreWrite("duplicate")
		s.logger.Debug(ctx, "duplicate score write", logger.String("request_id", change.RequestID))
		ack := types.ScoreChangeAck{Status: types.StatusDuplicate, Duplicate: true}
		if r, err := store.Report(ctx, change.ClientID, change.Week); err == nil {
			ack.Report = &r
		}
		return ack, nil
	}

	report, err := s.write(ctx, change)
	if err != nil {
		if change.RequestID != "" {
			s.deduper.Unrecord(ctx, change.RequestID)
		}
		return types.ScoreChangeAck{}, err
	}

	metrics.RecordScoreWrite("applied")
	metrics.RecordScoreWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
	return types.ScoreChangeAck{Status: types.StatusApplied, Report: &report}, nil
}

func (s *Service) validate(ctx context.Context, store repository.Store, change types.ScoreChange) (types.ScoreChange, model.Client, model.Metric, error) {
	change.ClientID = strings.TrimSpace(change.ClientID)
	change.MetricID = strings.TrimSpace(change.MetricID)
	if change.ClientID == "" || change.MetricID == "" {
		return change, model.Client{}, model.Metric{}, fmt.Errorf("%w: client_id and metric_id are required", ErrInvalidRequest)
	}

	score, err := model.ParseScore(string(change.Score))
	if err != nil {
		return change, model.Client{}, model.Metric{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	change.Score = score

	week, err := model.ParseWeek(string(change.Week))
	if err != nil {
		return change, model.Client{}, model.Metric{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	change.Week = week

	client, err := store.Client(ctx, change.ClientID)
	if err != nil {
		return change, model.Client{}, model.Metric{}, fmt.Errorf("client %s: %w", change.ClientID, err)
	}
	metric, err := store.Metric(ctx, change.MetricID)
	if err != nil {
		return change, model.Client{}, model.Metric{}, fmt.Errorf("metric %s: %w", change.MetricID, err)
	}
	return change, client, metric, nil
}

func (s *Service) write(ctx context.Context, change types.ScoreChange) (model.WeeklyReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	job := queue.NewJob(change.ClientID, change.Week, change.MetricID, change.Score, change.RequestID)
	if !s.queue.Enqueue(ctx, job) {
		metrics.RecordScoreWrite("backpressure")
		return model.WeeklyReport{}, ErrBackpressure
	}

	select {
	case r := <-job.Reply():
		if r.Err != nil {
			metrics.RecordScoreWrite("failed")
			return model.WeeklyReport{}, fmt.Errorf("write score: %w", r.Err)
		}
		return r.Report, nil
	case <-ctx.Done():
		metrics.RecordScoreWrite("timeout")
		return model.WeeklyReport{}, fmt.Errorf("write score: %w", ctx.Err())
	}
}

// Sequence builds the flattened presenter sequence for week.
func (s *Service) Sequence(ctx context.Context, week model.Week) (types.SequenceView, error) {
	seq, err := s.sequence(ctx)
	if err != nil {
		return types.SequenceView{}, err
	}
	metrics.UpdateSequenceLength(len(seq))
	return types.SequenceView{Week: week, Entries: seq, Groups: sequence.Groups(seq)}, nil
}

func (s *Service) sequence(ctx context.Context) ([]sequence.Entry, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	clients, err := store.Clients(ctx)
	if err != nil {
		return nil, err
	}
	users, err := store.Users(ctx)
	if err != nil {
		return nil, err
	}
	schedule, err := store.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	return sequence.Build(clients, model.NewUsersMap(users), schedule), nil
}

// Summary returns the manager summary slide for the group containing position.
func (s *Service) Summary(ctx context.Context, week model.Week, position int) (health.Slide, error) {
	seq, err := s.sequence(ctx)
	if err != nil {
		return health.Slide{}, err
	}
	store, err := s.running()
	if err != nil {
		return health.Slide{}, err
	}
	reports, err := store.Reports(ctx, week)
	if err != nil {
		return health.Slide{}, err
	}
	ms, err := store.Metrics(ctx)
	if err != nil {
		return health.Slide{}, err
	}

	slide, ok := health.ManagerSummary(seq, position, model.ReportsByClient(reports), ms)
	if !ok {
		return health.Slide{}, fmt.Errorf("position %d: %w", position, ErrNotFound)
	}
	return slide, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"store":       s.storeDriver,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		if clients, err := s.store.Clients(ctx); err == nil {
			stats["totalClients"] = len(clients)
			metrics.UpdateTotalClients(len(clients))
		}
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}
