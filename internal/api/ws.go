package api

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/cyberbrief/cyberbrief/internal/util"
)

// Finished jobs are kept this long for late subscribers, then reaped.
const jobTTL = 10 * time.Minute

// progressBroker fans research stage updates out to websocket subscribers,
// keyed by job ID. Updates published before a subscriber connects are kept so
// late joiners see the full stage history. Jobs exist only between open and
// either a drained subscriber or the TTL sweep.
type progressBroker struct {
	mu   sync.Mutex
	jobs map[string]*progressJob
	now  func() time.Time
}

type progressJob struct {
	stages []string
	subs   []chan string
	done   bool
	doneAt time.Time
}

func newProgressBroker() *progressBroker {
	return &progressBroker{jobs: make(map[string]*progressJob), now: time.Now}
}

// open registers a job so subscribers can attach before the first stage lands.
func (b *progressBroker) open(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jobs[jobID] == nil {
		b.jobs[jobID] = &progressJob{}
	}
}

// publish appends a stage and notifies subscribers. "complete" and "failed"
// close the job. Finished jobs past their TTL are reaped on the way out.
func (b *progressBroker) publish(jobID, stage string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job := b.jobs[jobID]
	if job == nil {
		job = &progressJob{}
		b.jobs[jobID] = job
	}
	job.stages = append(job.stages, stage)
	for _, sub := range job.subs {
		select {
		case sub <- stage:
		default:
		}
	}
	if stage == "complete" || stage == "failed" {
		job.done = true
		job.doneAt = b.now()
		for _, sub := range job.subs {
			close(sub)
		}
		job.subs = nil
	}

	cutoff := b.now().Add(-jobTTL)
	for id, j := range b.jobs {
		if j.done && j.doneAt.Before(cutoff) {
			delete(b.jobs, id)
		}
	}
}

// subscribe returns the stages seen so far and a channel for the rest. Both
// are nil for an unknown job; the channel alone is nil when the job already
// finished.
func (b *progressBroker) subscribe(jobID string) ([]string, chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job := b.jobs[jobID]
	if job == nil {
		return nil, nil
	}
	history := make([]string, len(job.stages))
	copy(history, job.stages)

	if job.done {
		return history, nil
	}
	sub := make(chan string, 8)
	job.subs = append(job.subs, sub)
	return history, sub
}

// forget drops a finished job's buffered history.
func (b *progressBroker) forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if job := b.jobs[jobID]; job != nil && job.done {
		delete(b.jobs, jobID)
	}
}

type progressMessage struct {
	Stage string `json:"stage"`
}

// researchProgressWS streams stage updates for one research job. Once the
// terminal stage has been delivered the job's history is released.
func (s *Server) researchProgressWS(c *websocket.Conn) {
	defer c.Close()

	jobID := c.Params("id")
	history, updates := s.progress.subscribe(jobID)

	for _, stage := range history {
		if err := c.WriteJSON(progressMessage{Stage: stage}); err != nil {
			util.PrintWarningf("progress write failed for job %s: %v", jobID, err)
			return
		}
	}
	if updates == nil {
		s.progress.forget(jobID)
		return
	}
	for stage := range updates {
		if err := c.WriteJSON(progressMessage{Stage: stage}); err != nil {
			util.PrintWarningf("progress write failed for job %s: %v", jobID, err)
			return
		}
	}
	s.progress.forget(jobID)
}
