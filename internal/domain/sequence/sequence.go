// Package sequence builds the ordered presenter sequence: clients grouped by
// manager, groups ordered by the presentation schedule, flattened with group
// boundary metadata.
package sequence

import (
	"sort"
	"strings"

	"github.com/okian/healthreview/internal/domain/model"
)

// Display names used when a group has no resolvable manager.
const (
	UnassignedName     = "Unassigned"
	DefaultManagerName = "Manager"
)

// unassignedKey never collides with a real manager id; ids are trimmed and non-empty.
const unassignedKey = ""

// Entry is a client positioned in the flattened sequence.
type Entry struct {
	model.Client
	Index             int    `json:"index"`
	ManagerName       string `json:"manager_name"`
	ManagerKey        string `json:"manager_key"`
	PresentationOrder *int   `json:"presentation_order,omitempty"`
	IsLastInGroup     bool   `json:"is_last_in_group"`
	GroupStartIndex   int    `json:"group_start_index"`
	GroupEndIndex     int    `json:"group_end_index"`
}

// Unassigned reports whether the entry belongs to the unassigned group.
func (e Entry) Unassigned() bool { return e.ManagerKey == unassignedKey }

// Group is a contiguous run of entries sharing a manager.
type Group struct {
	ManagerKey        string `json:"manager_key"`
	ManagerName       string `json:"manager_name"`
	PresentationOrder *int   `json:"presentation_order,omitempty"`
	Start             int    `json:"start"`
	End               int    `json:"end"`
}

// Len returns the number of clients in the group.
func (g Group) Len() int { return g.End - g.Start + 1 }

type group struct {
	key     string
	name    string
	order   *int
	clients []model.Client
}

// Build groups, orders and flattens clients. It never mutates its inputs and
// returns an empty non-nil slice for empty input.
func Build(clients []model.Client, users model.UsersMap, schedule []model.ScheduleEntry) []Entry {
	orders := make(map[string]int, len(schedule))
	for _, s := range schedule {
		orders[strings.TrimSpace(s.ManagerID)] = s.PresentationOrder
	}

	byKey := make(map[string]*group)
	var groups []*group
	for _, c := range clients {
		key := c.Manager()
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, name: managerName(key, users)}
			if o, scheduled := orders[key]; scheduled && key != unassignedKey {
				o := o
				g.order = &o
			}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.clients = append(g.clients, c)
	}

	for _, g := range groups {
		sort.SliceStable(g.clients, func(i, j int) bool {
			return lessClient(g.clients[i], g.clients[j])
		})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return lessGroup(groups[i], groups[j])
	})

	out := make([]Entry, 0, len(clients))
	for _, g := range groups {
		start := len(out)
		end := start + len(g.clients) - 1
		for i, c := range g.clients {
			out = append(out, Entry{
				Client:            c,
				Index:             start + i,
				ManagerName:       g.name,
				ManagerKey:        g.key,
				PresentationOrder: g.order,
				IsLastInGroup:     start+i == end,
				GroupStartIndex:   start,
				GroupEndIndex:     end,
			})
		}
	}
	return out
}

// Groups returns the group ranges of a built sequence in order.
func Groups(seq []Entry) []Group {
	var out []Group
	for i := 0; i < len(seq); i = seq[i].GroupEndIndex + 1 {
		e := seq[i]
		out = append(out, Group{
			ManagerKey:        e.ManagerKey,
			ManagerName:       e.ManagerName,
			PresentationOrder: e.PresentationOrder,
			Start:             e.GroupStartIndex,
			End:               e.GroupEndIndex,
		})
		if e.GroupEndIndex < i {
			break // malformed input; avoid looping forever
		}
	}
	return out
}

// GroupAt returns the group containing position.
func GroupAt(seq []Entry, position int) (Group, bool) {
	if position < 0 || position >= len(seq) {
		return Group{}, false
	}
	e := seq[position]
	return Group{
		ManagerKey:        e.ManagerKey,
		ManagerName:       e.ManagerName,
		PresentationOrder: e.PresentationOrder,
		Start:             e.GroupStartIndex,
		End:               e.GroupEndIndex,
	}, true
}

func managerName(key string, users model.UsersMap) string {
	if key == unassignedKey {
		return UnassignedName
	}
	if u, ok := users[key]; ok && strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return DefaultManagerName
}

func lessClient(a, b model.Client) bool {
	if c := compareFold(a.Name, b.Name); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

func lessGroup(a, b *group) bool {
	aUn, bUn := a.key == unassignedKey, b.key == unassignedKey
	if aUn != bUn {
		return bUn
	}
	switch {
	case a.order != nil && b.order != nil:
		if *a.order != *b.order {
			return *a.order < *b.order
		}
	case a.order != nil:
		return true
	case b.order != nil:
		return false
	}
	if c := compareFold(a.name, b.name); c != 0 {
		return c < 0
	}
	return a.key < b.key
}

// compareFold compares case-insensitively, falling back to the raw strings so
// that distinct names never compare equal.
func compareFold(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
