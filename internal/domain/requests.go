package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxTimeLimitSeconds caps per-request exact time limits at one day.
const MaxTimeLimitSeconds = 24 * 60 * 60

type SolveRequest struct {
	Instance         InstanceInput `json:"instance"`
	Solver           string        `json:"solver"`
	MaxIterations    int           `json:"max_iterations,omitempty"`
	Seed             *int64        `json:"seed,omitempty"`
	TimeLimitSeconds float64       `json:"time_limit_seconds,omitempty"`
}

func (r *SolveRequest) Validate() error {
	if r.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations must be >= 0 (got %d)", ErrInvalidConfig, r.MaxIterations)
	}
	if r.TimeLimitSeconds < 0 || !isFinite(r.TimeLimitSeconds) {
		return fmt.Errorf("%w: time_limit_seconds must be a finite value >= 0", ErrInvalidConfig)
	}
	if r.TimeLimitSeconds > MaxTimeLimitSeconds {
		return fmt.Errorf("%w: time_limit_seconds must be at most %d (got %g)", ErrInvalidConfig, MaxTimeLimitSeconds, r.TimeLimitSeconds)
	}
	return r.Instance.Validate()
}

// TimeLimit is zero when the request leaves the configured limit in place.
func (r *SolveRequest) TimeLimit() time.Duration {
	return time.Duration(r.TimeLimitSeconds * float64(time.Second))
}

type SolveResponse struct {
	RunID    string     `json:"run_id"`
	Status   Status     `json:"status"`
	Solution Solution   `json:"solution"`
	Payload  RunPayload `json:"payload"`
	Stored   bool       `json:"stored"`
	Warning  string     `json:"warning,omitempty"`
}

// RecordInput is one persisted run record supplied inline; Record is passed
// to the normalizer untouched.
type RecordInput struct {
	Locator string          `json:"locator"`
	Record  json.RawMessage `json:"record"`
}

type CompareRequest struct {
	ChallengerName string        `json:"challenger_name,omitempty"`
	BaselineName   string        `json:"baseline_name,omitempty"`
	Challenger     []RecordInput `json:"challenger"`
	Baseline       []RecordInput `json:"baseline"`
}
