// Package types contains the wire shapes shared by the HTTP API and its client.
package types

import (
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/sequence"
)

// ScoreChange is the body of PUT /scores.
type ScoreChange struct {
	ClientID  string      `json:"client_id"`
	MetricID  string      `json:"metric_id"`
	Week      model.Week  `json:"week"`
	Score     model.Score `json:"score"`
	RequestID string      `json:"request_id,omitempty"`
}

// ScoreChangeAck answers a score change.
type ScoreChangeAck struct {
	Status    string              `json:"status"`
	Duplicate bool                `json:"duplicate"`
	Report    *model.WeeklyReport `json:"report,omitempty"`
}

// Ack statuses.
const (
	StatusApplied   = "applied"
	StatusDuplicate = "duplicate"
)

// SequenceView is the body of GET /sequence.
type SequenceView struct {
	Week    model.Week       `json:"week"`
	Entries []sequence.Entry `json:"entries"`
	Groups  []sequence.Group `json:"groups"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
