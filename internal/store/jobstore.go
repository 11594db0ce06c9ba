package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

const snapshotVersion = 1

type jobSnapshot struct {
	Version int                              `json:"version"`
	Jobs    map[string]*domain.SubmissionJob `json:"jobs"`
}

// FileJobStore persists the job map as one versioned JSON snapshot. Writes go
// to a temp file in the same directory and are renamed over the previous
// snapshot, so a crash mid-write never corrupts the store.
type FileJobStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewFileJobStore(path string, logger *slog.Logger) *FileJobStore {
	return &FileJobStore{path: path, logger: logger}
}

// Load reads the snapshot and applies the crash-recovery pass:
//   - a job found running is reinterpreted as retrying with NextAttemptAt=now,
//     unless its attempt budget is already spent, in which case it is failed;
//   - a queued/retrying job whose attempt budget is spent is forced to failed.
//
// Records failing structural validation are dropped with a log line rather
// than aborting startup. A missing file yields an empty map.
func (s *FileJobStore) Load(now time.Time) (map[string]*domain.SubmissionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*domain.SubmissionJob{}, nil
		}
		return nil, fmt.Errorf("reading job snapshot: %w", err)
	}

	var snap jobSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding job snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported job snapshot version %d", snap.Version)
	}

	jobs := make(map[string]*domain.SubmissionJob, len(snap.Jobs))
	for id, job := range snap.Jobs {
		if job == nil || job.ID == "" || job.ID != id || job.ClaimID == "" ||
			!job.State.Valid() || job.MaxAttempts < 1 || job.Attempt < 0 {
			s.logger.Warn("dropping invalid job record", "job_id", id)
			continue
		}
		s.recover(job, now)
		jobs[id] = job
	}

	return jobs, nil
}

// recover reinterprets non-terminal states left behind by an abrupt process
// death so no job stays stuck in progress or exceeds its attempt budget.
func (s *FileJobStore) recover(job *domain.SubmissionJob, now time.Time) {
	switch job.State {
	case domain.JobRunning:
		if job.Attempt >= job.MaxAttempts {
			job.State = domain.JobFailed
			msg := "attempt budget exhausted during recovery"
			job.LastError = &msg
		} else {
			job.State = domain.JobRetrying
			job.NextAttemptAt = now
		}
		job.UpdatedAt = now
		s.logger.Info("recovered interrupted job",
			"job_id", job.ID,
			"state", job.State,
			"attempt", job.Attempt,
		)
	case domain.JobQueued, domain.JobRetrying:
		if job.Attempt >= job.MaxAttempts {
			job.State = domain.JobFailed
			msg := "attempt budget exhausted during recovery"
			job.LastError = &msg
			job.UpdatedAt = now
			s.logger.Info("failing exhausted job on recovery", "job_id", job.ID)
		}
	}
}

// Save writes the full job map as a new snapshot via write-temp-then-rename.
func (s *FileJobStore) Save(jobs map[string]*domain.SubmissionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := jobSnapshot{Version: snapshotVersion, Jobs: jobs}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding job snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".jobs-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing job snapshot: %w", err)
	}
	return nil
}
