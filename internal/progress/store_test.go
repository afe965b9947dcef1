package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/linguaquest/internal/storage"
	"github.com/example/linguaquest/pkg/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestLoadMissingSlotStartsEmpty(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)
	snapshot := s.Load()
	assert.Empty(t, snapshot.Records)
	assert.Empty(t, snapshot.Meta)
	assert.Empty(t, snapshot.Owner)
}

func TestLoadCorruptSlotStartsEmpty(t *testing.T) {
	mem := storage.NewMemoryStore()
	require.NoError(t, mem.Put(storage.ProgressKey, "{not json"))

	s := New(mem, nil, nil)
	snapshot := s.Load()
	assert.Empty(t, snapshot.Records)
	assert.Empty(t, snapshot.Meta)
}

func TestUpsertLessonRecordCreatesAndMerges(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)

	require.NoError(t, s.UpsertLessonRecord("l1", models.ProgressRecord{Notes: strPtr("hola")}, ""))
	require.NoError(t, s.UpsertLessonRecord("l1", models.ProgressRecord{LastScore: intPtr(80)}, "u1"))

	snapshot := s.Load()
	record := snapshot.Records["l1"]
	require.NotNil(t, record.Notes)
	assert.Equal(t, "hola", *record.Notes)
	require.NotNil(t, record.LastScore)
	assert.Equal(t, 80, *record.LastScore)
	assert.Equal(t, "u1", snapshot.Owner)
}

func TestUpsertLessonRecordIdempotent(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)

	require.NoError(t, s.UpsertLessonRecord("l1", models.ProgressRecord{Notes: strPtr("x")}, ""))
	once := s.Load().Records["l1"]

	require.NoError(t, s.UpsertLessonRecord("l1", models.ProgressRecord{Notes: strPtr("x")}, ""))
	twice := s.Load().Records["l1"]

	assert.Equal(t, once, twice)
}

func TestAwardXPAccumulates(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)

	_, err := s.AwardXP("u1", 5)
	require.NoError(t, err)
	metrics, err := s.AwardXP("u1", 3)
	require.NoError(t, err)

	assert.Equal(t, 8, metrics.XP)
	assert.Equal(t, 2, metrics.Streak)

	// Persisted copy agrees with the returned value
	stored := s.Metrics("u1")
	assert.Equal(t, 8, stored.XP)
	assert.Equal(t, 2, stored.Streak)
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestAwardXPNegativeDeltaNeverDecreases(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)

	_, err := s.AwardXP("u1", 5)
	require.NoError(t, err)
	metrics, err := s.AwardXP("u1", -10)
	require.NoError(t, err)

	assert.Equal(t, 5, metrics.XP)
	assert.Equal(t, 2, metrics.Streak)
}

func TestAwardXPConcurrentAwardsAllLand(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.AwardXP("u1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored := s.Metrics("u1")
	assert.Equal(t, workers, stored.XP)
	assert.Equal(t, workers, stored.Streak)
}

func TestAggregateStartupXP(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)

	_, err := s.AwardXP("u1", 5)
	require.NoError(t, err)
	_, err = s.AwardXP("u2", 7)
	require.NoError(t, err)

	assert.Equal(t, 12, s.AggregateStartupXP())
}

// fakeMirror records SaveMetrics calls and can be made to fail
type fakeMirror struct {
	err    error
	userID string
	saved  models.UserMetrics
}

func (f *fakeMirror) SaveMetrics(_ context.Context, userID string, m models.UserMetrics) error {
	if f.err != nil {
		return f.err
	}
	f.userID = userID
	f.saved = m
	return nil
}

func (f *fakeMirror) LoadMetrics(context.Context, string) (models.UserMetrics, bool, error) {
	return models.UserMetrics{}, false, nil
}

func TestAwardXPMirrorsCapturedUser(t *testing.T) {
	remote := &fakeMirror{}
	s := New(storage.NewMemoryStore(), remote, nil)

	_, err := s.AwardXP("u1", 10)
	require.NoError(t, err)
	s.Flush()

	assert.Equal(t, "u1", remote.userID)
	assert.Equal(t, 10, remote.saved.XP)
	assert.Equal(t, 1, remote.saved.Streak)
}

func TestMirrorFailureReachesHookNotCaller(t *testing.T) {
	remote := &fakeMirror{err: errors.New("network down")}

	var hookUser string
	var hookErr error
	hook := func(userID string, err error) {
		hookUser = userID
		hookErr = err
	}

	s := New(storage.NewMemoryStore(), remote, hook)
	metrics, err := s.AwardXP("u1", 5)
	require.NoError(t, err, "mirror failure must not surface")
	s.Flush()

	assert.Equal(t, "u1", hookUser)
	assert.EqualError(t, hookErr, "network down")
	// Local state is authoritative and untouched by the failure
	assert.Equal(t, 5, metrics.XP)
	assert.Equal(t, 5, s.Metrics("u1").XP)
}

func TestSetMetricsOverwrites(t *testing.T) {
	s := New(storage.NewMemoryStore(), nil, nil)

	_, err := s.AwardXP("u1", 5)
	require.NoError(t, err)

	remote := models.UserMetrics{XP: 40, Streak: 9, UpdatedAt: time.Now()}
	require.NoError(t, s.SetMetrics("u1", remote))

	stored := s.Metrics("u1")
	assert.Equal(t, 40, stored.XP)
	assert.Equal(t, 9, stored.Streak)
}
