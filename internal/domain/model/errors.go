package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrInvalidScore         = errors.New("invalid score")
	ErrInvalidApplicability = errors.New("invalid service applicability")
	ErrInvalidWeek          = errors.New("invalid week")
)
