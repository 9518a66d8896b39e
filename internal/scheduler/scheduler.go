package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DigestWindow is the period each digest covers.
const DigestWindow = 24 * time.Hour

// LogCounter counts prediction log entries.
type LogCounter interface {
	CountPredictionLogsBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// DigestSender delivers a prediction digest.
type DigestSender interface {
	SendPredictionDigest(from, to time.Time, count int64) error
}

// Scheduler runs the periodic prediction digest on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	counter LogCounter
	sender  DigestSender
	log     *logrus.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// NewScheduler parses spec (standard five-field cron syntax or a descriptor
// such as "@daily") and registers the digest job.
func NewScheduler(spec string, counter LogCounter, sender DigestSender, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		counter: counter,
		sender:  sender,
		log:     log,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.runDigest); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start launches the cron loop in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.log.Info("Digest scheduler started")
}

// Stop halts the cron loop and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.SendDigest(ctx); err != nil {
		s.log.WithError(err).Error("Prediction digest failed")
	}
}

// SendDigest counts the predictions logged in [now-DigestWindow, now) and
// mails the summary.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	to := s.now()
	from := to.Add(-DigestWindow)

	count, err := s.counter.CountPredictionLogsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("count prediction logs: %w", err)
	}
	if err := s.sender.SendPredictionDigest(from, to, count); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"count": count, "since": from}).Info("Prediction digest sent")
	return nil
}
