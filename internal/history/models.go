package history

import "time"

// Job is one recorded command dispatch.
type Job struct {
	ID         int64
	RequestID  string
	Action     string
	Worker     int
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Message    string
}

// Duration returns how long the command ran.
func (j Job) Duration() time.Duration {
	if j.FinishedAt.Before(j.StartedAt) {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Stats aggregates job counts by outcome.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
	ByStatus  map[string]int
}
