package domain

import (
	"errors"
	"time"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

type Stage string

const (
	StageStoreGet   Stage = "store_get"
	StageStorePut   Stage = "store_put"
	StageSinkCreate Stage = "sink_create"
	StageSinkUpdate Stage = "sink_update"
)

// Failure describes one identity that could not be reconciled.
type Failure struct {
	Identity string `json:"identity"`
	Stage    Stage  `json:"stage"`
	Stale    bool   `json:"stale,omitempty"`
	Error    string `json:"error"`
}

// RunSummary holds the outcome of a reconciliation run.
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Status        RunStatus     `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Fetched       int           `json:"fetched"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Unchanged     int           `json:"unchanged"`
	Failed        int           `json:"failed"`
	Published     int           `json:"published"`
	PublishErrors int           `json:"publish_errors"`
	Failures      []Failure     `json:"failures,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// RecordFailure adds a per-identity failure to the summary.
func (s *RunSummary) RecordFailure(identity string, stage Stage, err error) {
	var sinkErr *SinkError
	s.Failed++
	s.Failures = append(s.Failures, Failure{
		Identity: identity,
		Stage:    stage,
		Stale:    errors.As(err, &sinkErr) && sinkErr.Stale(),
		Error:    err.Error(),
	})
}

// Finish sets the final status from the collected counters.
func (s *RunSummary) Finish(started time.Time) {
	s.Duration = time.Since(started)
	switch {
	case s.Error != "":
		s.Status = RunFailed
	case s.Failed > 0:
		s.Status = RunPartial
	default:
		s.Status = RunSucceeded
	}
}

// Action is the decision taken for one announcement.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
)
