// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// ClientTypeCRO marks conversion-rate-optimisation clients. Metric applicability
// is decided against this value only.
const ClientTypeCRO = "cro"

// Client is an agency client reviewed in presenter mode.
type Client struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	ContactName  string  `json:"contact_name,omitempty" yaml:"contact_name"`
	ContactEmail string  `json:"contact_email,omitempty" yaml:"contact_email"`
	ManagerID    *string `json:"manager_id" yaml:"manager_id"`
	ClientType   string  `json:"client_type" yaml:"client_type"`
}

// IsCRO reports whether the client is a CRO client.
func (c Client) IsCRO() bool {
	return strings.EqualFold(strings.TrimSpace(c.ClientType), ClientTypeCRO)
}

// Manager returns the manager id, or "" when the client is unassigned.
func (c Client) Manager() string {
	if c.ManagerID == nil {
		return ""
	}
	return strings.TrimSpace(*c.ManagerID)
}

// User is a staff member; managers are users referenced by Client.ManagerID.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email"`
	Role  string `json:"role,omitempty" yaml:"role"`
}

// UsersMap indexes users by id.
type UsersMap map[string]User

// NewUsersMap builds a UsersMap from a slice. Later duplicates win.
func NewUsersMap(users []User) UsersMap {
	m := make(UsersMap, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return m
}

// ScheduleEntry assigns a presentation slot to a manager. Lower goes first.
type ScheduleEntry struct {
	ManagerID         string `json:"manager_id" yaml:"manager_id"`
	PresentationOrder int    `json:"presentation_order" yaml:"presentation_order"`
}

// Applicability restricts which client types a metric is scored for.
type Applicability string

// Supported applicability values.
const (
	Unrestricted Applicability = "unrestricted"
	CROOnly      Applicability = "cro_only"
	NonCROOnly   Applicability = "non_cro_only"
)

// ParseApplicability validates s. An empty string means unrestricted.
func ParseApplicability(s string) (Applicability, error) {
	switch Applicability(strings.ToLower(strings.TrimSpace(s))) {
	case "", Unrestricted:
		return Unrestricted, nil
	case CROOnly:
		return CROOnly, nil
	case NonCROOnly:
		return NonCROOnly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidApplicability, s)
}

// Metric is one row of the weekly health scorecard.
type Metric struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description,omitempty" yaml:"description"`
	Applicability Applicability `json:"service_applicability" yaml:"service_applicability"`
	SortOrder     int           `json:"sort_order" yaml:"sort_order"`
}

// AppliesTo reports whether the metric is scored for client.
func (m Metric) AppliesTo(client Client) bool {
	switch m.Applicability {
	case CROOnly:
		return client.IsCRO()
	case NonCROOnly:
		return !client.IsCRO()
	default:
		return true
	}
}

// MetricsByID indexes metrics by id.
func MetricsByID(metrics []Metric) map[string]Metric {
	out := make(map[string]Metric, len(metrics))
	for _, m := range metrics {
		out[m.ID] = m
	}
	return out
}
