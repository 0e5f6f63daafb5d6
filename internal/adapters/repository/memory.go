package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/pkg/metrics"
)

type reportKey struct {
	clientID string
	week     model.Week
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	clients  map[string]model.Client
	users    map[string]model.User
	metrics  map[string]model.Metric
	schedule []model.ScheduleEntry
	reports  map[reportKey]model.WeeklyReport

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		clients:               make(map[string]model.Client),
		users:                 make(map[string]model.User),
		metrics:               make(map[string]model.Metric),
		reports:               make(map[reportKey]model.WeeklyReport),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	n := len(s.clients)
	s.mu.RUnlock()
	metrics.UpdateTotalClients(n)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Clients implements Store.
func (s *MemoryStore) Clients(_ context.Context) ([]model.Client, error) {
	defer observe("clients", time.Now())
	s.mu.RLock()
	out := make([]model.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Client implements Store.
func (s *MemoryStore) Client(_ context.Context, id string) (model.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return model.Client{}, ErrNotFound
	}
	return c, nil
}

// Metrics implements Store.
func (s *MemoryStore) Metrics(_ context.Context) ([]model.Metric, error) {
	defer observe("metrics", time.Now())
	s.mu.RLock()
	out := make([]model.Metric, 0, len(s.metrics))
	for _, m := range s.metrics {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sortMetrics(out)
	return out, nil
}

// Metric implements Store.
func (s *MemoryStore) Metric(_ context.Context, id string) (model.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[id]
	if !ok {
		return model.Metric{}, ErrNotFound
	}
	return m, nil
}

// Users implements Store.
func (s *MemoryStore) Users(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Schedule implements Store.
func (s *MemoryStore) Schedule(_ context.Context) ([]model.ScheduleEntry, error) {
	s.mu.RLock()
	out := append([]model.ScheduleEntry{}, s.schedule...)
	s.mu.RUnlock()
	return out, nil
}

// ReplaceSchedule implements Store.
func (s *MemoryStore) ReplaceSchedule(_ context.Context, entries []model.ScheduleEntry) error {
	defer observe("replace_schedule", time.Now())
	if err := (Dataset{Schedule: entries}).Validate(); err != nil {
		return err
	}
	next := dedupeSchedule(entries)
	sortSchedule(next)

	s.mu.Lock()
	s.schedule = next
	s.mu.Unlock()
	return nil
}

// Reports implements Store.
func (s *MemoryStore) Reports(_ context.Context, week model.Week) ([]model.WeeklyReport, error) {
	defer observe("reports", time.Now())
	s.mu.RLock()
	var out []model.WeeklyReport
	for k, r := range s.reports {
		if k.week == week {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	if out == nil {
		out = []model.WeeklyReport{}
	}
	return out, nil
}

// Report implements Store.
func (s *MemoryStore) Report(_ context.Context, clientID string, week model.Week) (model.WeeklyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportKey{clientID, week}]
	if !ok {
		return model.WeeklyReport{}, ErrNotFound
	}
	return r.Clone(), nil
}

// UpsertScore implements Store.
func (s *MemoryStore) UpsertScore(_ context.Context, clientID string, week model.Week, metricID string, score model.Score) (model.WeeklyReport, error) {
	defer observe("upsert_score", time.Now())
	if !score.Valid() {
		metrics.RecordStoreError("upsert_score")
		return model.WeeklyReport{}, model.ErrInvalidScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := reportKey{clientID, week}
	r, ok := s.reports[k]
	if !ok {
		r = model.WeeklyReport{ClientID: clientID, Week: week}
	}
	r = r.Clone()
	r.SetScore(metricID, score)
	sortScores(r.Scores)
	s.reports[k] = r
	return r.Clone(), nil
}

// Import implements Store.
func (s *MemoryStore) Import(_ context.Context, data Dataset) error {
	defer observe("import", time.Now())
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range data.Users {
		s.users[u.ID] = u
	}
	for _, c := range data.Clients {
		s.clients[c.ID] = c
	}
	for _, m := range data.Metrics {
		m.Applicability, _ = model.ParseApplicability(string(m.Applicability))
		s.metrics[m.ID] = m
	}
	if len(data.Schedule) > 0 {
		merged := append(append([]model.ScheduleEntry{}, s.schedule...), data.Schedule...)
		s.schedule = dedupeSchedule(merged)
		sortSchedule(s.schedule)
	}
	for _, in := range data.Reports {
		k := reportKey{in.ClientID, in.Week}
		r, ok := s.reports[k]
		if !ok {
			r = model.WeeklyReport{ClientID: in.ClientID, Week: in.Week}
		}
		r = r.Clone()
		for _, e := range in.Scores {
			r.SetScore(e.MetricID, e.Score)
		}
		if len(r.Scores) == 0 {
			continue
		}
		sortScores(r.Scores)
		s.reports[k] = r
	}
	return nil
}

// dedupeSchedule keeps the last entry per manager.
func dedupeSchedule(entries []model.ScheduleEntry) []model.ScheduleEntry {
	idx := make(map[string]int, len(entries))
	out := make([]model.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := idx[e.ManagerID]; ok {
			out[i] = e
			continue
		}
		idx[e.ManagerID] = len(out)
		out = append(out, e)
	}
	return out
}
