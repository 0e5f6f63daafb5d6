// Package presenter runs one presenter-mode review: it holds a snapshot of
// the week's inputs, the navigation state, in-flight score saves and the
// copied-from-last-week flag.
package presenter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/navigator"
	"github.com/okian/healthreview/internal/domain/scorecopy"
	"github.com/okian/healthreview/internal/domain/sequence"
	"github.com/okian/healthreview/internal/domain/types"
	"github.com/okian/healthreview/pkg/logger"
	"github.com/okian/healthreview/pkg/metrics"
)

const defaultCopiedFlagTTL = 2 * time.Second

// Copied flag clear reasons, used as metric labels.
const (
	clearExpired    = "expired"
	clearNavigation = "navigation"
	clearRecopy     = "recopy"
	clearReload     = "reload"
	clearClose      = "close"
)

// Session is safe for concurrent use. Transitions are serialized by mu.
type Session struct {
	source    Source
	log       logger.Logger
	copiedTTL time.Duration
	onClose   func()
	onChange  func()

	mu       sync.Mutex
	week     model.Week
	clients  []model.Client
	metrics  []model.Metric
	users    model.UsersMap
	schedule []model.ScheduleEntry
	reports  map[string]model.WeeklyReport
	previous map[string]model.WeeklyReport
	seq      []sequence.Entry
	state    navigator.State
	saving   map[string]struct{}

	copiedFor   string
	copiedTimer *time.Timer
	copiedGen   uint64

	closeOnce sync.Once
}

// Load fetches the inputs for week from source and opens a session at the
// first client.
func Load(ctx context.Context, source Source, week model.Week, opts ...Option) (*Session, error) {
	const op = "presenter.Load"
	s := &Session{
		source:    source,
		log:       logger.Named("presenter"),
		copiedTTL: defaultCopiedFlagTTL,
		week:      week,
		state:     navigator.Initial(),
		saving:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	in, err := loadInputs(ctx, source, week)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.install(in)
	metrics.AddActiveSessions(1)
	s.log.Info(ctx, "presentation opened",
		logger.String("week", week.String()),
		logger.Int("clients", len(s.seq)))
	return s, nil
}

// Reload refetches the current week and clamps the position into the new
// sequence.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	week := s.week
	s.mu.Unlock()
	return s.ChangeWeek(ctx, week)
}

// ChangeWeek switches the session to week and reloads.
func (s *Session) ChangeWeek(ctx context.Context, week model.Week) error {
	const op = "presenter.ChangeWeek"
	if s.isClosed() {
		return ErrClosed
	}
	in, err := loadInputs(ctx, s.source, week)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	before := s.currentClientLocked()
	changed := week != s.week
	s.week = week
	s.install(in)
	s.state = navigator.Clamp(s.state, s.seq)
	if changed || s.currentClientLocked() != before {
		s.clearCopiedLocked(clearReload)
	}
	s.mu.Unlock()

	s.log.Debug(ctx, "presentation reloaded", logger.String("week", week.String()))
	return nil
}

// install replaces the snapshot. Callers hold mu or own s exclusively.
func (s *Session) install(in inputs) {
	s.clients = in.clients
	s.metrics = in.metrics
	s.users = model.NewUsersMap(in.users)
	s.schedule = in.schedule
	s.reports = model.ReportsByClient(in.reports)
	s.previous = model.ReportsByClient(in.previous)
	s.seq = sequence.Build(s.clients, s.users, s.schedule)
	metrics.UpdateSequenceLength(len(s.seq))
}

// Apply feeds ev to the navigator. Every event clears the copied flag.
func (s *Session) Apply(ev navigator.Event) navigator.State {
	s.mu.Lock()
	prev := s.state
	if prev.Closed() {
		s.mu.Unlock()
		return prev
	}
	s.state = navigator.Apply(prev, ev, s.seq)
	s.clearCopiedLocked(clearNavigation)
	next := s.state
	s.mu.Unlock()

	metrics.RecordNavigation(navigator.Name(ev), next.Mode.String())
	if next.Closed() {
		s.close()
	}
	return next
}

// Advance moves forward.
func (s *Session) Advance() navigator.State { return s.Apply(navigator.Advance{}) }

// Retreat moves backward.
func (s *Session) Retreat() navigator.State { return s.Apply(navigator.Retreat{}) }

// JumpTo moves directly to index.
func (s *Session) JumpTo(index int) navigator.State { return s.Apply(navigator.JumpTo{Index: index}) }

// Exit closes the presentation and invokes the close callback.
func (s *Session) Exit() navigator.State { return s.Apply(navigator.Exit{}) }

// Close releases the session without going through the navigator. It is
// idempotent and safe to call after Exit.
func (s *Session) Close() {
	s.mu.Lock()
	s.clearCopiedLocked(clearClose)
	s.mu.Unlock()
	s.close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = navigator.State{Mode: navigator.Closed, Position: s.state.Position}
		s.clearCopiedLocked(clearClose)
		s.mu.Unlock()

		metrics.AddActiveSessions(-1)
		s.log.Info(context.Background(), "presentation closed")
		if s.onClose != nil {
			s.onClose()
		}
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Closed()
}

// SetScore saves score for metricID on the client on screen.
func (s *Session) SetScore(ctx context.Context, metricID string, score model.Score) error {
	s.mu.Lock()
	entry, err := s.viewingLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.SetScoreFor(ctx, entry.ID, metricID, score)
}

// SetScoreFor saves score for metricID on clientID, wherever the presentation
// currently is. Callers that capture the client when a key is pressed use this
// so later navigation cannot redirect the write.
func (s *Session) SetScoreFor(ctx context.Context, clientID, metricID string, score model.Score) error {
	s.mu.Lock()
	entry, err := s.entryLocked(clientID)
	if err == nil {
		err = s.applicableLocked(entry.Client, metricID)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.writeScore(ctx, entry.ID, metricID, score)
}

// writeScore marks the cell in flight, calls the source and folds the result
// into the local snapshot.
func (s *Session) writeScore(ctx context.Context, clientID, metricID string, score model.Score) error {
	const op = "presenter.SetScore"
	key := CellKey(clientID, metricID)

	s.mu.Lock()
	if _, busy := s.saving[key]; busy {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w: %s", op, ErrSaveInProgress, key)
	}
	s.saving[key] = struct{}{}
	week := s.week
	s.mu.Unlock()

	ack, err := s.source.SetScore(ctx, types.ScoreChange{
		ClientID:  clientID,
		MetricID:  metricID,
		Week:      week,
		Score:     score,
		RequestID: uuid.NewString(),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saving, key)
	if err != nil {
		s.log.Warn(ctx, "score save failed",
			logger.String("client_id", clientID),
			logger.String("metric_id", metricID),
			logger.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.week != week {
		return nil
	}
	if ack.Report != nil {
		s.reports[clientID] = ack.Report.Clone()
		return nil
	}
	rep, ok := s.reports[clientID]
	if !ok {
		rep = model.WeeklyReport{ClientID: clientID, Week: week}
	} else {
		rep = rep.Clone()
	}
	rep.SetScore(metricID, score)
	s.reports[clientID] = rep
	return nil
}

// CopyPrevious replays last week's scores onto the client on screen.
func (s *Session) CopyPrevious(ctx context.Context) (scorecopy.Result, error) {
	s.mu.Lock()
	entry, err := s.viewingLocked()
	s.mu.Unlock()
	if err != nil {
		return scorecopy.Result{}, err
	}
	return s.CopyPreviousFor(ctx, entry.ID)
}

// CopyPreviousFor replays last week's scores onto clientID. When every
// applicable copy was issued without failure the copied flag is raised for
// the TTL, provided clientID is still on screen.
func (s *Session) CopyPreviousFor(ctx context.Context, clientID string) (scorecopy.Result, error) {
	const op = "presenter.CopyPrevious"

	s.mu.Lock()
	entry, err := s.entryLocked(clientID)
	if err != nil {
		s.mu.Unlock()
		return scorecopy.Result{}, err
	}
	s.clearCopiedLocked(clearRecopy)
	var previous *model.WeeklyReport
	if rep, ok := s.previous[entry.ID]; ok {
		c := rep.Clone()
		previous = &c
	}
	metricSet := append([]model.Metric(nil), s.metrics...)
	s.mu.Unlock()

	res, err := scorecopy.Copy(ctx, entry.Client, metricSet, previous, scorecopy.SetterFunc(s.writeScore))
	if err != nil {
		metrics.RecordScoreCopy("no_previous")
		return res, fmt.Errorf("%s: %w", op, err)
	}
	for _, o := range []scorecopy.Outcome{scorecopy.Copied, scorecopy.Skipped, scorecopy.Failed, scorecopy.NotAttempted, scorecopy.UnknownMetric} {
		metrics.RecordScoreCopyItems(string(o), res.Count(o))
	}

	copied := res.Count(scorecopy.Copied)
	if !res.Complete() {
		metrics.RecordScoreCopy("partial")
	} else {
		if copied == 0 {
			metrics.RecordScoreCopy("empty")
		} else {
			metrics.RecordScoreCopy("complete")
		}
		s.mu.Lock()
		if cur, err := s.viewingLocked(); err == nil && cur.ID == entry.ID {
			s.raiseCopiedLocked(entry.ID)
		}
		s.mu.Unlock()
	}

	s.log.Info(ctx, "scores copied from previous week",
		logger.String("client_id", entry.ID),
		logger.Int("copied", copied),
		logger.Int("failed", res.Count(scorecopy.Failed)))
	if err := res.Err(); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// raiseCopiedLocked sets the flag and arms a fresh expiry timer. The
// generation guards against a timer that fired while being replaced.
func (s *Session) raiseCopiedLocked(clientID string) {
	s.stopCopiedTimerLocked()
	s.copiedGen++
	gen := s.copiedGen
	s.copiedFor = clientID
	s.copiedTimer = time.AfterFunc(s.copiedTTL, func() { s.expireCopied(gen) })
}

func (s *Session) expireCopied(gen uint64) {
	s.mu.Lock()
	if gen != s.copiedGen || s.copiedFor == "" {
		s.mu.Unlock()
		return
	}
	s.copiedFor = ""
	s.copiedTimer = nil
	s.mu.Unlock()

	metrics.RecordCopiedFlagClear(clearExpired)
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Session) clearCopiedLocked(reason string) {
	s.stopCopiedTimerLocked()
	if s.copiedFor == "" {
		return
	}
	s.copiedFor = ""
	s.copiedGen++
	metrics.RecordCopiedFlagClear(reason)
}

func (s *Session) stopCopiedTimerLocked() {
	if s.copiedTimer != nil {
		s.copiedTimer.Stop()
		s.copiedTimer = nil
	}
}

func (s *Session) viewingLocked() (sequence.Entry, error) {
	if s.state.Closed() {
		return sequence.Entry{}, ErrClosed
	}
	if len(s.seq) == 0 || s.state.ShowingSummary() {
		return sequence.Entry{}, ErrNoClient
	}
	return s.seq[s.state.Position], nil
}

// entryLocked finds clientID in the current sequence.
func (s *Session) entryLocked(clientID string) (sequence.Entry, error) {
	if s.state.Closed() {
		return sequence.Entry{}, ErrClosed
	}
	for _, e := range s.seq {
		if e.ID == clientID {
			return e, nil
		}
	}
	return sequence.Entry{}, fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
}

func (s *Session) applicableLocked(client model.Client, metricID string) error {
	for _, m := range s.metrics {
		if m.ID == metricID && !m.AppliesTo(client) {
			return fmt.Errorf("%w: %s on %s", ErrNotApplicable, metricID, client.ID)
		}
	}
	return nil
}

func (s *Session) currentClientLocked() string {
	if len(s.seq) == 0 || s.state.Position >= len(s.seq) {
		return ""
	}
	return s.seq[s.state.Position].ID
}

// CellKey identifies one score cell in the saving set.
func CellKey(clientID, metricID string) string { return clientID + ":" + metricID }

// View is an immutable snapshot for rendering.
type View struct {
	Week     model.Week
	State    navigator.State
	Groups   []sequence.Group
	Sequence []sequence.Entry

	// Entry is set when a client is on screen.
	Entry    *sequence.Entry
	Metrics  []model.Metric
	Report   *model.WeeklyReport
	Previous *model.WeeklyReport
	Overall  health.Level

	// Summary is set when a summary slide is on screen.
	Summary *health.Slide

	Saving []string
	Copied bool
}

// Empty reports whether there is nothing to present.
func (v View) Empty() bool { return len(v.Sequence) == 0 }

// Total is the number of clients in the sequence.
func (v View) Total() int { return len(v.Sequence) }

// IsSaving reports whether the cell for metricID on the current client is in flight.
func (v View) IsSaving(metricID string) bool {
	if v.Entry == nil {
		return false
	}
	key := CellKey(v.Entry.ID, metricID)
	i := sort.SearchStrings(v.Saving, key)
	return i < len(v.Saving) && v.Saving[i] == key
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Week:     s.week,
		State:    s.state,
		Groups:   sequence.Groups(s.seq),
		Sequence: append([]sequence.Entry(nil), s.seq...),
		Overall:  health.Unknown,
	}
	for k := range s.saving {
		v.Saving = append(v.Saving, k)
	}
	sort.Strings(v.Saving)

	if len(s.seq) == 0 || s.state.Closed() {
		return v
	}
	if s.state.ShowingSummary() {
		if slide, ok := health.ManagerSummary(s.seq, s.state.Position, s.reports, s.metrics); ok {
			v.Summary = &slide
		}
		return v
	}

	entry := s.seq[s.state.Position]
	v.Entry = &entry
	v.Copied = s.copiedFor == entry.ID
	for _, m := range health.SortMetrics(s.metrics) {
		if m.AppliesTo(entry.Client) {
			v.Metrics = append(v.Metrics, m)
		}
	}
	if rep, ok := s.reports[entry.ID]; ok {
		c := rep.Clone()
		v.Report = &c
		v.Overall = health.Overall(c.StatusSummary)
	}
	if rep, ok := s.previous[entry.ID]; ok {
		c := rep.Clone()
		v.Previous = &c
	}
	return v
}

// State returns the navigator state.
func (s *Session) State() navigator.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
