package core

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const heartbeatInterval = 5 * time.Second

// HeartbeatState aggregates one worker process's counters and flushes them to Redis.
type HeartbeatState struct {
	mu      sync.Mutex
	hb      WorkerHeartbeat
	running map[string]time.Time
	log     logrus.FieldLogger
}

func NewHeartbeatState(workerID, hostname string, concurrency int, log logrus.FieldLogger) *HeartbeatState {
	now := time.Now()
	return &HeartbeatState{
		hb: WorkerHeartbeat{
			WorkerID:    workerID,
			Hostname:    hostname,
			PID:         os.Getpid(),
			Concurrency: concurrency,
			Status:      "starting",
			StartedAt:   now,
			UpdatedAt:   now,
		},
		running: make(map[string]time.Time),
		log:     log,
	}
}

// Run flushes immediately and then every heartbeatInterval until ctx is done.
func (s *HeartbeatState) Run(ctx context.Context, client RedisClientRaw) {
	s.mu.Lock()
	s.hb.Status = "idle"
	s.mu.Unlock()
	s.flush(ctx, client)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx, client)
		}
	}
}

func (s *HeartbeatState) ReportStarted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[id] = time.Now()
	s.syncRunningLocked()
}

func (s *HeartbeatState) ReportFinished(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
	if err != nil {
		s.hb.FailedTotal++
		s.hb.LastError = err.Error()
	} else {
		s.hb.RenderedTotal++
	}
	s.syncRunningLocked()
}

// Snapshot returns a copy of the current heartbeat.
func (s *HeartbeatState) Snapshot() WorkerHeartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	hb := s.hb
	hb.RunningReports = append([]string(nil), s.hb.RunningReports...)
	return hb
}

// syncRunningLocked lists at most three running reports, oldest first.
func (s *HeartbeatState) syncRunningLocked() {
	s.hb.RunningCount = len(s.running)
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.running[ids[i]].Before(s.running[ids[j]]) })
	if len(ids) > 3 {
		ids = ids[:3]
	}
	s.hb.RunningReports = ids
	if s.hb.RunningCount > 0 {
		s.hb.Status = "busy"
	} else {
		s.hb.Status = "idle"
	}
}

func (s *HeartbeatState) flush(ctx context.Context, client RedisClientRaw) {
	s.mu.Lock()
	s.hb.UptimeSeconds = int64(time.Since(s.hb.StartedAt).Seconds())
	s.hb.refreshRuntime()
	hb := s.hb
	s.mu.Unlock()
	if err := SaveHeartbeat(ctx, client, hb); err != nil && ctx.Err() == nil {
		s.log.WithError(err).Warn("heartbeat flush failed")
	}
}
