// Package progress implements the persistent progress store: per-lesson
// records plus per-user aggregate metrics, saved to local storage on every
// mutation and best-effort mirrored to a remote backend when one is
// configured.
package progress

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/example/linguaquest/internal/mirror"
	"github.com/example/linguaquest/internal/storage"
	"github.com/example/linguaquest/pkg/models"
)

const mirrorTimeout = 10 * time.Second

// FailureHook receives mirror write failures. The default hook logs them;
// tests inject their own. Failures never reach the user and are never
// retried.
type FailureHook func(userID string, err error)

// Store reads and writes the progress document. Local storage is
// authoritative; the mirror is eventually consistent. mu serializes the
// read-modify-write cycles, since the bot handles every update on its own
// goroutine.
type Store struct {
	local  storage.Store
	remote mirror.Mirror // nil when running fully offline
	onFail FailureHook

	mu sync.Mutex
	wg sync.WaitGroup
}

// New creates a progress store over the given local storage. remote may be
// nil and hook may be nil, in which case failures are only logged.
func New(local storage.Store, remote mirror.Mirror, hook FailureHook) *Store {
	if hook == nil {
		hook = func(userID string, err error) {
			log.Printf("Mirror write failed for user %s: %v", userID, err)
		}
	}
	return &Store{
		local:  local,
		remote: remote,
		onFail: hook,
	}
}

// Load deserializes the persisted snapshot. A missing or corrupt slot fails
// open: the caller always gets a usable empty snapshot, never an error.
func (s *Store) Load() *models.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() *models.ProgressSnapshot {
	raw, ok, err := s.local.Get(storage.ProgressKey)
	if err != nil || !ok {
		if err != nil {
			log.Printf("Failed to read progress slot, starting empty: %v", err)
		}
		return models.NewProgressSnapshot()
	}

	var snapshot models.ProgressSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		log.Printf("Corrupt progress data, starting empty: %v", err)
		return models.NewProgressSnapshot()
	}
	if snapshot.Records == nil {
		snapshot.Records = make(map[string]models.ProgressRecord)
	}
	if snapshot.Meta == nil {
		snapshot.Meta = make(map[string]models.UserMetrics)
	}
	return &snapshot
}

// Save serializes the snapshot and replaces the progress slot in one write.
// Write errors propagate to the caller.
func (s *Store) Save(snapshot *models.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(snapshot)
}

func (s *Store) save(snapshot *models.ProgressSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.local.Put(storage.ProgressKey, string(raw))
}

// UpsertLessonRecord merges partial into the record for lessonID, creating it
// if absent, and persists immediately. When ownerID is non-empty the snapshot
// owner marker is stamped with it.
func (s *Store) UpsertLessonRecord(lessonID string, partial models.ProgressRecord, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.load()

	record := snapshot.Records[lessonID]
	record.Merge(partial)
	snapshot.Records[lessonID] = record

	if ownerID != "" {
		snapshot.Owner = ownerID
	}

	return s.save(snapshot)
}

// AwardXP adds delta experience points to the user and counts one scoring
// event on the streak. The metrics entry is overwritten whole, persisted
// locally right away, and then mirrored in the background. The local write is
// authoritative: a mirror failure is reported to the failure hook and
// otherwise swallowed, and the local state is never rolled back.
func (s *Store) AwardXP(userID string, delta int) (models.UserMetrics, error) {
	if delta < 0 {
		delta = 0 // XP never decreases; there is no subtraction operation
	}

	s.mu.Lock()
	snapshot := s.load()
	metrics := snapshot.Meta[userID]
	metrics.XP += delta
	metrics.Streak++
	metrics.UpdatedAt = time.Now()
	snapshot.Meta[userID] = metrics
	err := s.save(snapshot)
	s.mu.Unlock()

	if err != nil {
		return metrics, err
	}

	s.mirrorMetrics(userID, metrics)
	return metrics, nil
}

// SetMetrics overwrites the user's local metrics entry. Used after a remote
// login to adopt the mirrored values.
func (s *Store) SetMetrics(userID string, metrics models.UserMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.load()
	snapshot.Meta[userID] = metrics
	return s.save(snapshot)
}

// Metrics returns the user's current metrics entry
func (s *Store) Metrics(userID string) models.UserMetrics {
	return s.Load().Meta[userID]
}

// AggregateStartupXP sums XP across all metrics entries. It is the coarse
// fallback shown at cold start before any user is identified.
func (s *Store) AggregateStartupXP() int {
	total := 0
	for _, m := range s.Load().Meta {
		total += m.XP
	}
	return total
}

// Export returns the serialized snapshot exactly as persisted
func (s *Store) Export() (string, error) {
	raw, err := json.Marshal(s.Load())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// mirrorMetrics kicks off the fire-and-forget remote write. The user id and
// metrics are captured at call time, so a logout or user switch while the
// write is in flight cannot redirect it to another user.
func (s *Store) mirrorMetrics(userID string, metrics models.UserMetrics) {
	if s.remote == nil {
		return
	}

	s.wg.Add(1)
	go func(uid string, m models.UserMetrics) {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := s.remote.SaveMetrics(ctx, uid, m); err != nil {
			s.onFail(uid, err)
		}
	}(userID, metrics)
}

// Flush waits for in-flight mirror writes. Called on shutdown and in tests.
func (s *Store) Flush() {
	s.wg.Wait()
}
