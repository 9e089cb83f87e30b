package outbox

import "time"

// QueueReport is what one pass did to one queue. Entries skipped to keep
// order count toward Remaining but not Attempted.
type QueueReport struct {
	Queue     string `json:"queue"`
	Attempted int    `json:"attempted"`
	Synced    int    `json:"synced"`
	Failed    int    `json:"failed"`
	Discarded int    `json:"discarded"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Skipped    string        `json:"skipped,omitempty"`
	Queues     []QueueReport `json:"queues"`
}

func (r Report) Synced() int {
	return r.sum(func(q QueueReport) int { return q.Synced })
}

func (r Report) Failed() int {
	return r.sum(func(q QueueReport) int { return q.Failed })
}

func (r Report) Discarded() int {
	return r.sum(func(q QueueReport) int { return q.Discarded })
}

// Pending counts entries still queued when the pass ended.
func (r Report) Pending() int {
	return r.sum(func(q QueueReport) int { return q.Remaining })
}

// Queue looks up the report for one queue by name.
func (r Report) Queue(name string) (QueueReport, bool) {
	for _, q := range r.Queues {
		if q.Queue == name {
			return q, true
		}
	}
	return QueueReport{}, false
}

func (r Report) sum(field func(QueueReport) int) int {
	n := 0
	for _, q := range r.Queues {
		n += field(q)
	}
	return n
}
