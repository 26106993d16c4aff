// Package progress tracks translation jobs and owns the global translation
// gate: a single-slot, FIFO-fair lock that keeps at most one translation
// active process-wide while queued jobs stay visible with their position.
package progress

import (
	"sync"
	"time"

	"github.com/sublayer/sublayer/pkg/log"
)

// Status is the lifecycle state of a tracked job.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
)

// Job is a snapshot of one tracked translation.
type Job struct {
	Fingerprint   string    `json:"fingerprint"`
	Name          string    `json:"name"`
	TotalCues     int       `json:"totalCues"`
	CompletedCues int       `json:"completedCues"`
	StartTime     time.Time `json:"startTime"`
	Status        Status    `json:"status"`
	// QueuePosition is 1-based for pending jobs, 0 for the active one.
	QueuePosition int `json:"queuePosition"`
}

// Percent returns completion as 0..100.
func (j Job) Percent() int {
	if j.TotalCues <= 0 {
		return 0
	}
	return j.CompletedCues * 100 / j.TotalCues
}

type waiter struct {
	fingerprint string
	ready       chan struct{}
}

// Tracker is the process-wide job registry and translation gate.
type Tracker struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	queue  []*waiter
	active string
}

func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[string]*Job),
	}
}

// Begin registers the job and blocks until it holds the translation gate.
// While blocked the job is visible as PENDING with its queue position; on
// return it is ACTIVE. The caller must End with the same fingerprint.
func (t *Tracker) Begin(fingerprint, name string, totalCues int) {
	t.mu.Lock()

	job := &Job{
		Fingerprint: fingerprint,
		Name:        name,
		TotalCues:   totalCues,
		StartTime:   time.Now(),
	}
	t.jobs[fingerprint] = job

	if t.active == "" {
		t.active = fingerprint
		job.Status = StatusActive
		t.mu.Unlock()
		log.Info("Translation started: %s (%d cues)", name, totalCues)
		return
	}

	w := &waiter{fingerprint: fingerprint, ready: make(chan struct{})}
	t.queue = append(t.queue, w)
	job.Status = StatusPending
	job.QueuePosition = len(t.queue)
	t.mu.Unlock()

	log.Info("Translation queued: %s (position %d)", name, job.QueuePosition)
	<-w.ready
	log.Info("Translation started: %s (%d cues)", name, totalCues)
}

// Update advances the reported progress for a job. Unknown fingerprints are
// ignored so late callbacks from a finished job are harmless.
func (t *Tracker) Update(fingerprint string, completedCues int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[fingerprint]; ok {
		job.CompletedCues = completedCues
	}
}

// End removes the job and, when the caller held the gate, hands the gate to
// the oldest pending job. Idempotent: ending an unknown fingerprint or one
// that no longer holds the gate is a no-op, so failure paths can always
// defer it.
func (t *Tracker) End(fingerprint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.jobs, fingerprint)

	if t.active != fingerprint {
		return
	}

	t.active = ""
	if len(t.queue) == 0 {
		return
	}

	next := t.queue[0]
	t.queue = t.queue[1:]
	t.active = next.fingerprint
	if job, ok := t.jobs[next.fingerprint]; ok {
		job.Status = StatusActive
		job.QueuePosition = 0
	}
	t.renumberLocked()
	close(next.ready)
}

func (t *Tracker) renumberLocked() {
	for i, w := range t.queue {
		if job, ok := t.jobs[w.fingerprint]; ok {
			job.QueuePosition = i + 1
		}
	}
}

// Snapshot returns a copy of all jobs, active first, then pending in queue
// order.
func (t *Tracker) Snapshot() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs := make([]Job, 0, len(t.jobs))
	if job, ok := t.jobs[t.active]; ok {
		jobs = append(jobs, *job)
	}
	for _, w := range t.queue {
		if job, ok := t.jobs[w.fingerprint]; ok {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}

// Get returns the job for a fingerprint, if tracked.
func (t *Tracker) Get(fingerprint string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[fingerprint]; ok {
		return *job, true
	}
	return Job{}, false
}
