package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

// Outbox is a Mailer that records messages instead of delivering them
type Outbox struct {
	mu       sync.Mutex
	messages []services.EmailMessage
	failing  map[string]bool
}

func NewOutbox() *Outbox {
	return &Outbox{failing: make(map[string]bool)}
}

// FailFor makes sends to address fail
func (o *Outbox) FailFor(address string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failing[address] = true
}

func (o *Outbox) Send(_ context.Context, msg services.EmailMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing[msg.To] {
		return fmt.Errorf("mailbox %s unavailable", msg.To)
	}
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns the recorded messages in send order
func (o *Outbox) Messages() []services.EmailMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]services.EmailMessage(nil), o.messages...)
}

// Scheduler is a JobScheduler that keeps pending jobs in a map
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]services.NotificationJob
}

func NewScheduler() *Scheduler {
	return &Scheduler{jobs: make(map[string]services.NotificationJob)}
}

func (s *Scheduler) Schedule(_ context.Context, job services.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *Scheduler) Cancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

// Job returns a pending job by id
func (s *Scheduler) Job(id string) (services.NotificationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Pending lists pending jobs ordered by run time
func (s *Scheduler) Pending() []services.NotificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]services.NotificationJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out
}

// Archive is a DocumentArchive that keeps files in memory
type Archive struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewArchive() *Archive {
	return &Archive{files: make(map[string][]byte)}
}

func (a *Archive) Store(_ context.Context, filename string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[filename] = append([]byte(nil), data...)
	return nil
}

// File returns a stored document by name
func (a *Archive) File(name string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.files[name]
	return data, ok
}

// Names lists the stored documents in name order
func (a *Archive) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.files))
	for name := range a.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
