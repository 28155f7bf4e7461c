package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// fakePersister stores blobs in memory and can be told to fail writes.
type fakePersister struct {
	mu       sync.Mutex
	blob     string
	backups  []string
	failNext error
	writes   int
}

func (f *fakePersister) Load(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blob, nil
}

func (f *fakePersister) Write(ctx context.Context, blob string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.blob = blob
	f.writes++
	return nil
}

func (f *fakePersister) WriteBackup(ctx context.Context, blob, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backups = append(f.backups, blob)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError, Output: io.Discard})
}

func testZone(t *testing.T) *timeutil.Zone {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2026-08-29T15:00:00Z")
	require.NoError(t, err)
	return timeutil.NewZone("UTC", 3).WithClock(timeutil.FixedClock{T: ts})
}

func newTestStore(t *testing.T, p *fakePersister) *Store {
	t.Helper()
	s := New(p, testZone(t), testLogger())
	require.NoError(t, s.Load(context.Background(), "1.0.0"))
	return s
}

func TestStoreLoadFresh(t *testing.T) {
	p := &fakePersister{}
	s := newTestStore(t, p)

	doc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, state.CurrentVersion, doc.Version)
	assert.NotEmpty(t, p.blob, "fresh state persisted on load")
}

func TestStoreLoadExisting(t *testing.T) {
	p := &fakePersister{}
	s1 := newTestStore(t, p)

	require.NoError(t, s1.Mutate(context.Background(), func(doc *state.Document) error {
		u := doc.EnsureUser("123", "alice", "2026-08-29 00:00:00")
		u.Points = 75
		return nil
	}))

	s2 := New(p, testZone(t), testLogger())
	require.NoError(t, s2.Load(context.Background(), "1.0.1"))

	u, err := s2.User("123")
	require.NoError(t, err)
	assert.Equal(t, 75, u.Points)
}

func TestStoreLoadCorruptedStartsFresh(t *testing.T) {
	p := &fakePersister{blob: "LMS2:deadbeefdeadbeef:not-real-payload"}
	s := New(p, testZone(t), testLogger())

	require.NoError(t, s.Load(context.Background(), "1.0.0"))

	doc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, doc.Users)
	assert.Len(t, p.backups, 1, "corrupted blob backed up before reset")
}

func TestStoreMutateRollsBackOnPersistFailure(t *testing.T) {
	p := &fakePersister{}
	s := newTestStore(t, p)

	require.NoError(t, s.Mutate(context.Background(), func(doc *state.Document) error {
		doc.EnsureUser("123", "alice", "").Points = 10
		return nil
	}))

	p.failNext = errors.New("discord down")
	err := s.Mutate(context.Background(), func(doc *state.Document) error {
		doc.GetUser("123").Points = 999
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersist)

	u, err := s.User("123")
	require.NoError(t, err)
	assert.Equal(t, 10, u.Points, "failed persist leaves memory untouched")
}

func TestStoreMutateRejectsInvalidState(t *testing.T) {
	p := &fakePersister{}
	s := newTestStore(t, p)

	err := s.Mutate(context.Background(), func(doc *state.Document) error {
		u := doc.EnsureUser("123", "alice", "")
		u.Points = -5
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = s.User("123")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStoreSnapshotIsIsolated(t *testing.T) {
	p := &fakePersister{}
	s := newTestStore(t, p)

	require.NoError(t, s.Mutate(context.Background(), func(doc *state.Document) error {
		doc.EnsureUser("123", "alice", "").Points = 10
		return nil
	}))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	snap.GetUser("123").Points = 9999

	u, err := s.User("123")
	require.NoError(t, err)
	assert.Equal(t, 10, u.Points, "snapshot mutation does not leak")
}

func TestStorePrunesOldestWhenOverCeiling(t *testing.T) {
	p := &fakePersister{}
	s := newTestStore(t, p)

	err := s.Mutate(context.Background(), func(doc *state.Document) error {
		u := doc.EnsureUser("123", "alice", "")
		u.TotalLogs = 1
		// Enough incompressible flag data to overflow the blob.
		for i := 0; i < 600; i++ {
			date := fmt.Sprintf("20%02d-%02d-%02d", i%90, i%12+1, i%28+1)
			doc.SetDailyFlag(date, randomID(i), state.FlagEvaluated)
		}
		return nil
	})
	require.NoError(t, err)

	doc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Less(t, len(doc.DailyFlags), 600, "oldest flags pruned to fit")
	assert.NotNil(t, doc.GetUser("123"), "user data survives pruning")
}

func TestStoreTryMutateBusy(t *testing.T) {
	p := &fakePersister{}
	s := newTestStore(t, p)

	inMutation := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.Mutate(context.Background(), func(doc *state.Document) error {
			close(inMutation)
			<-release
			return nil
		})
	}()

	<-inMutation
	err := s.TryMutate(context.Background(), func(doc *state.Document) error { return nil })
	assert.ErrorIs(t, err, shared.ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestStoreBackup(t *testing.T) {
	p := &fakePersister{}
	s := newTestStore(t, p)

	require.NoError(t, s.Backup(context.Background(), "nightly"))
	assert.Len(t, p.backups, 1)
}

func TestStoreNotLoaded(t *testing.T) {
	s := New(&fakePersister{}, testZone(t), testLogger())

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	err = s.Mutate(context.Background(), func(doc *state.Document) error { return nil })
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}
