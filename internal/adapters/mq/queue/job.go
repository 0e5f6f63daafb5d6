package queue

import (
	"time"

	"github.com/okian/healthreview/internal/domain/model"
)

// Job is a pending score write. Exactly one Result is delivered on its reply
// channel.
type Job struct {
	ClientID   string
	MetricID   string
	Week       model.Week
	Score      model.Score
	RequestID  string
	EnqueuedAt time.Time

	reply chan Result
}

// Result is the outcome of a Job.
type Result struct {
	Report model.WeeklyReport
	Err    error
}

// NewJob builds a job with a buffered reply channel so workers never block
// on callers that stopped waiting.
func NewJob(clientID string, week model.Week, metricID string, score model.Score, requestID string) Job {
	return Job{
		ClientID:   clientID,
		MetricID:   metricID,
		Week:       week,
		Score:      score,
		RequestID:  requestID,
		EnqueuedAt: time.Now(),
		reply:      make(chan Result, 1),
	}
}

// Reply returns the channel the Result is delivered on.
func (j Job) Reply() <-chan Result { return j.reply }

// Complete delivers r. Later calls are dropped.
func (j Job) Complete(r Result) {
	if j.reply == nil {
		return
	}
	select {
	case j.reply <- r:
	default:
	}
}

// Fail delivers err as the Result.
func (j Job) Fail(err error) { j.Complete(Result{Err: err}) }
