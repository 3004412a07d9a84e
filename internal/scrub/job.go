// SPDX-License-Identifier: EPL-2.0

package scrub

import (
	"fmt"

	"github.com/google/uuid"
)

// Status tracks a job through the pipeline.
type Status string

const (
	StatusPending      Status = "pending"
	StatusCaptured     Status = "captured"
	StatusFallbackUsed Status = "fallback_used"
	StatusScrubbed     Status = "scrubbed"
	StatusFailed       Status = "failed"
)

// Job is one input file and the paths derived from it.
type Job struct {
	ID     string
	Source string
	Paths  Paths
	Status Status
}

func NewJob(source string) *Job {
	return &Job{
		ID:     uuid.NewString(),
		Source: source,
		Paths:  PathsFor(source),
		Status: StatusPending,
	}
}

// transition moves the job to status, rejecting edges the pipeline never
// takes.
func (j *Job) transition(status Status) error {
	if !isValidTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	return nil
}

func isValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusCaptured || to == StatusFallbackUsed || to == StatusFailed
	case StatusCaptured, StatusFallbackUsed:
		return to == StatusScrubbed || to == StatusFailed
	default:
		return false
	}
}
