// Package seed turns YAML fixtures into a repository dataset.
//
// Fixtures are written for people: ids are optional and derived from names
// when missing, so seeding the same fixture twice upserts the same rows. Managers, clients and metrics may be referenced by id or by name,
// and report weeks may be relative ("current", "previous", "-2").
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/okian/healthreview/internal/adapters/repository"
	"github.com/okian/healthreview/internal/domain/model"
)

//go:embed demo.yaml
var demoFixture []byte

// Fixture is the on-disk shape.
type Fixture struct {
	Users    []model.User   `yaml:"users"`
	Clients  []Client       `yaml:"clients"`
	Metrics  []model.Metric `yaml:"metrics"`
	Schedule []Slot         `yaml:"schedule"`
	Reports  []Report       `yaml:"reports"`
}

// Client is a fixture client; Manager is a user id or name.
type Client struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	ContactName  string `yaml:"contact_name"`
	ContactEmail string `yaml:"contact_email"`
	Manager      string `yaml:"manager"`
	ClientType   string `yaml:"client_type"`
}

// Slot is a fixture schedule entry; Manager is a user id or name.
type Slot struct {
	Manager string `yaml:"manager"`
	Order   int    `yaml:"order"`
}

// Report is a fixture report. Scores maps metric id or name to a level.
type Report struct {
	Client string            `yaml:"client"`
	Week   string            `yaml:"week"`
	Scores map[string]string `yaml:"scores"`
}

// Parse decodes a fixture and resolves it against now.
func Parse(data []byte, now time.Time) (repository.Dataset, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return repository.Dataset{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	return f.Resolve(now)
}

// LoadFile reads and parses the fixture at path.
func LoadFile(path string, now time.Time) (repository.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return repository.Dataset{}, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data, now)
}

// Demo returns the built-in demonstration dataset.
func Demo(now time.Time) (repository.Dataset, error) {
	return Parse(demoFixture, now)
}

// Apply validates data and imports it into store.
func Apply(ctx context.Context, store repository.Store, data repository.Dataset) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	if err := store.Import(ctx, data); err != nil {
		return fmt.Errorf("import fixture: %w", err)
	}
	return nil
}

// Resolve assigns missing ids and resolves references.
func (f Fixture) Resolve(now time.Time) (repository.Dataset, error) {
	var out repository.Dataset

	users := newIndex()
	for _, u := range f.Users {
		if u.ID == "" {
			u.ID = deriveID("user", u.Name)
		}
		users.add(u.ID, u.Name)
		out.Users = append(out.Users, u)
	}

	clients := newIndex()
	for _, c := range f.Clients {
		mc := model.Client{
			ID:           c.ID,
			Name:         c.Name,
			ContactName:  c.ContactName,
			ContactEmail: c.ContactEmail,
			ClientType:   c.ClientType,
		}
		if mc.ID == "" {
			mc.ID = deriveID("client", mc.Name)
		}
		if c.Manager != "" {
			id, err := users.resolve("manager", c.Manager)
			if err != nil {
				return repository.Dataset{}, fmt.Errorf("client %q: %w", c.Name, err)
			}
			mc.ManagerID = &id
		}
		clients.add(mc.ID, mc.Name)
		out.Clients = append(out.Clients, mc)
	}

	metrics := newIndex()
	for _, m := range f.Metrics {
		if m.ID == "" {
			m.ID = deriveID("metric", m.Name)
		}
		metrics.add(m.ID, m.Name)
		out.Metrics = append(out.Metrics, m)
	}

	for _, s := range f.Schedule {
		id, err := users.resolve("manager", s.Manager)
		if err != nil {
			return repository.Dataset{}, fmt.Errorf("schedule: %w", err)
		}
		out.Schedule = append(out.Schedule, model.ScheduleEntry{ManagerID: id, PresentationOrder: s.Order})
	}

	for _, r := range f.Reports {
		rep, err := r.resolve(now, clients, metrics)
		if err != nil {
			return repository.Dataset{}, err
		}
		out.Reports = append(out.Reports, rep)
	}
	return out, nil
}

func (r Report) resolve(now time.Time, clients, metrics index) (model.WeeklyReport, error) {
	clientID, err := clients.resolve("client", r.Client)
	if err != nil {
		return model.WeeklyReport{}, fmt.Errorf("report: %w", err)
	}
	week, err := ResolveWeek(r.Week, now)
	if err != nil {
		return model.WeeklyReport{}, fmt.Errorf("report %q: %w", r.Client, err)
	}

	keys := make([]string, 0, len(r.Scores))
	for k := range r.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rep := model.WeeklyReport{ClientID: clientID, Week: week}
	for _, k := range keys {
		metricID, err := metrics.resolve("metric", k)
		if err != nil {
			return model.WeeklyReport{}, fmt.Errorf("report %q: %w", r.Client, err)
		}
		score, err := model.ParseScore(r.Scores[k])
		if err != nil {
			return model.WeeklyReport{}, fmt.Errorf("%w: report %q metric %q: %w", ErrInvalidFixture, r.Client, k, err)
		}
		rep.SetScore(metricID, score)
	}
	return rep, nil
}

// ResolveWeek accepts a date, "current", "previous" or a signed week offset
// from now.
func ResolveWeek(s string, now time.Time) (model.Week, error) {
	s = strings.TrimSpace(s)
	current := model.WeekOf(now)
	switch strings.ToLower(s) {
	case "", "current":
		return current, nil
	case "previous":
		return current.Previous(), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return model.WeekOf(current.Start().AddDate(0, 0, 7*n)), nil
	}
	w, err := model.ParseWeek(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	return w, nil
}

// deriveID returns a name-based UUID, or a random one for unnamed records.
func deriveID(kind, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+name)).String()
}

// index resolves a reference by id first, then by case-insensitive name.
type index struct {
	ids   map[string]struct{}
	names map[string]string
}

func newIndex() index {
	return index{ids: map[string]struct{}{}, names: map[string]string{}}
}

func (x index) add(id, name string) {
	x.ids[id] = struct{}{}
	if name != "" {
		x.names[strings.ToLower(strings.TrimSpace(name))] = id
	}
}

func (x index) resolve(kind, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if _, ok := x.ids[ref]; ok {
		return ref, nil
	}
	if id, ok := x.names[strings.ToLower(ref)]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s %q", ErrUnknownReference, kind, ref)
}
