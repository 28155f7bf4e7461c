package store

import (
	"context"
	"errors"
	"sync"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// Persister reads and writes the encoded state blob to durable storage
// (the pinned Discord message in production, an in-memory fake in tests).
type Persister interface {
	// Load returns the current blob, or "" when no state exists yet.
	Load(ctx context.Context) (string, error)
	// Write replaces the stored blob.
	Write(ctx context.Context, blob string) error
	// WriteBackup appends a snapshot copy outside the main blob.
	WriteBackup(ctx context.Context, blob, reason string) error
}

// Store owns the in-memory state document and serializes all writes.
// Every mutation runs against a clone, is validated and persisted, and
// only then replaces the live document, so a failed persist never leaves
// half-applied state in memory.
type Store struct {
	mu        sync.Mutex
	codec     *Codec
	migrator  *Migrator
	persister Persister
	zone      *timeutil.Zone
	publisher shared.EventPublisher
	log       *logger.Logger

	doc    *state.Document
	loaded bool
}

// Option configures a Store.
type Option func(*Store)

// WithEventPublisher wires an event publisher for migration and prune
// notifications.
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// New creates a Store. Call Load before any read or mutation.
func New(persister Persister, zone *timeutil.Zone, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		codec:     NewCodec(),
		migrator:  NewMigrator(),
		persister: persister,
		zone:      zone,
		log:       log.With(logger.Component("store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads, decodes and migrates the persisted state. A missing blob
// initializes a fresh document; a corrupted blob is backed up as-is and
// replaced with a fresh document rather than crashing the bot.
func (s *Store) Load(ctx context.Context, botVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.persister.Load(ctx)
	if err != nil {
		return shared.WrapError("store", "Load", shared.ErrPersist, "failed to load state blob", err)
	}

	if blob == "" {
		s.doc = state.NewDocument(botVersion)
		s.doc.BotMetadata.StartedAt = s.zone.Now().Format(timeutil.FormatDateTime)
		s.loaded = true
		s.log.Info("initialized fresh state document")
		return s.persistLocked(ctx, s.doc)
	}

	raw, err := s.codec.Decode(blob)
	if err != nil {
		if !shared.IsCorruption(err) {
			return err
		}
		s.log.Error("state blob corrupted, starting fresh after backup", logger.Err(err))
		if berr := s.persister.WriteBackup(ctx, blob, "corruption"); berr != nil {
			s.log.Error("failed to back up corrupted blob", logger.Err(berr))
		}
		s.doc = state.NewDocument(botVersion)
		s.doc.BotMetadata.StartedAt = s.zone.Now().Format(timeutil.FormatDateTime)
		s.loaded = true
		return s.persistLocked(ctx, s.doc)
	}

	fromVersion := intField(raw, "state_version", 1)
	doc, changed, err := s.migrator.Migrate(raw)
	if err != nil {
		return err
	}
	doc.BotMetadata.Version = botVersion

	s.doc = doc
	s.loaded = true

	if changed {
		s.log.Info("state migrated",
			logger.SchemaVersion(doc.Version),
			logger.Int("from_version", fromVersion))
		s.publish(shared.NewStateMigratedEvent(fromVersion, doc.Version))
		return s.persistLocked(ctx, s.doc)
	}

	s.log.Info("state loaded",
		logger.SchemaVersion(doc.Version),
		logger.Int("users", len(doc.Users)))
	return nil
}

// Snapshot returns a deep copy of the current document for reading.
func (s *Store) Snapshot() (*state.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, shared.ErrStateNotLoaded
	}
	return s.doc.Clone(), nil
}

// User returns a deep copy of one user's record.
func (s *Store) User(userID string) (*state.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, shared.ErrStateNotLoaded
	}
	u := s.doc.GetUser(userID)
	if u == nil {
		return nil, shared.ErrUserNotFound
	}
	return u.Clone(), nil
}

// Mutate applies fn to a clone of the document, validates the result,
// persists it and swaps it in. Concurrent callers queue on the lock.
func (s *Store) Mutate(ctx context.Context, fn func(*state.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(ctx, fn)
}

// TryMutate is Mutate without queueing: it fails immediately with a busy
// error when another mutation is in flight.
func (s *Store) TryMutate(ctx context.Context, fn func(*state.Document) error) error {
	if !s.mu.TryLock() {
		return shared.ErrBusy
	}
	defer s.mu.Unlock()
	return s.mutateLocked(ctx, fn)
}

func (s *Store) mutateLocked(ctx context.Context, fn func(*state.Document) error) error {
	if !s.loaded {
		return shared.ErrStateNotLoaded
	}

	next := s.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}

	if err := next.Validate(); err != nil {
		return shared.WrapError("store", "Mutate", shared.ErrValidation, "mutation produced invalid state", err)
	}

	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}

	s.doc = next
	return nil
}

// persistLocked encodes and writes a document, pruning the oldest daily
// flags and cached evaluations when the blob exceeds the message ceiling.
func (s *Store) persistLocked(ctx context.Context, doc *state.Document) error {
	doc.LastUpdated = s.zone.Now().Format(timeutil.FormatDateTime)

	flagsDropped, cacheDropped := 0, 0
	var blob string
	for {
		var err error
		blob, err = s.codec.Encode(doc)
		if err == nil {
			break
		}
		if !errors.Is(err, shared.ErrSizeExceeded) {
			return err
		}

		// Oldest data goes first: flag dates, then cached evaluations.
		if date := doc.OldestFlagDate(); date != "" {
			delete(doc.DailyFlags, date)
			flagsDropped++
			continue
		}
		if uid, date := doc.OldestCacheEntry(); date != "" {
			delete(doc.EvaluationCache[uid], date)
			if len(doc.EvaluationCache[uid]) == 0 {
				delete(doc.EvaluationCache, uid)
			}
			cacheDropped++
			continue
		}
		return shared.ErrStateTooLarge
	}

	if flagsDropped > 0 || cacheDropped > 0 {
		s.log.Warn("pruned state to fit message ceiling",
			logger.Int("flag_dates_dropped", flagsDropped),
			logger.Int("cache_entries_dropped", cacheDropped))
		s.publish(shared.NewStatePrunedEvent(flagsDropped, cacheDropped))
	}

	if err := s.persister.Write(ctx, blob); err != nil {
		return shared.WrapError("store", "Persist", shared.ErrPersist, "failed to write state message", err)
	}
	return nil
}

// Backup writes a snapshot of the current state to the backup channel.
func (s *Store) Backup(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return shared.ErrStateNotLoaded
	}

	blob, err := s.codec.Encode(s.doc)
	if err != nil {
		return err
	}
	if err := s.persister.WriteBackup(ctx, blob, reason); err != nil {
		return shared.WrapError("store", "Backup", shared.ErrPersist, "failed to write backup", err)
	}
	s.log.Info("state backup written", logger.String("reason", reason))
	return nil
}

func (s *Store) publish(evt shared.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(evt); err != nil {
		s.log.Warn("event publish failed",
			logger.String("event_type", string(evt.EventType())),
			logger.Err(err))
	}
}
