package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidName   = errors.New("name is required")
	ErrInvalidParent = errors.New("invalid parent folder")
	ErrCycle         = errors.New("folder cannot be moved into its own subtree")
	ErrQuotaExceeded = errors.New("not enough storage space")
)

// QuotaError reports a rejected upload. It matches ErrQuotaExceeded with
// errors.Is.
type QuotaError struct {
	Required  int64
	Available int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("not enough storage space: required %d bytes, available %d", e.Required, e.Available)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Store is the storage engine: users, the folder tree, the file registry,
// the quota ledger and the blob store behind them.
//
// Every exported method runs as a single critical section, so quota updates
// and cascading deletes are never observed half-done.
type Store struct {
	mu      sync.Mutex
	ids     Allocator
	users   map[int64]User
	folders map[int64]Folder
	files   map[int64]File
	ledger  *Ledger
	blobs   BlobStore
	now     func() time.Time
	// orphans holds the unreferenced blobs seen by the previous sweep.
	orphans map[string]struct{}
	log     *slog.Logger
}

type Option func(*Store)

// WithBlobs sets the blob backend. The default is an in-memory store.
func WithBlobs(b BlobStore) Option {
	return func(s *Store) {
		if b != nil {
			s.blobs = b
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.log = logger
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		users:   make(map[int64]User),
		folders: make(map[int64]Folder),
		files:   make(map[int64]File),
		orphans: make(map[string]struct{}),
		blobs:   NewMemBlobs(),
		now:     time.Now,
		log:     slog.Default(),
	}
	s.ledger = newLedger(&s.ids)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Blobs returns the configured blob backend.
func (s *Store) Blobs() BlobStore {
	return s.blobs
}

// CreateUser registers a user with the given storage limit and an empty
// quota record.
func (s *Store) CreateUser(storageLimit int64) (User, error) {
	if storageLimit < 0 {
		return User{}, fmt.Errorf("create user: negative storage limit %d", storageLimit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	u := User{ID: s.ids.Next(KindUser), StorageLimit: storageLimit, CreatedAt: now}
	s.users[u.ID] = u
	s.ledger.SetUsed(u.ID, 0, now)
	return u, nil
}

func (s *Store) User(id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

// Quota returns the owner's ledger record.
func (s *Store) Quota(ownerID int64) (QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ledger.Get(ownerID)
	if !ok {
		return QuotaRecord{}, fmt.Errorf("quota for user %d: %w", ownerID, ErrNotFound)
	}
	return rec, nil
}

// Usage returns the storage projection for ownerID. Both the user and the
// quota record must exist.
func (s *Store) Usage(ownerID int64) (StorageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[ownerID]
	if !ok {
		return StorageResponse{}, fmt.Errorf("user %d: %w", ownerID, ErrNotFound)
	}
	rec, ok := s.ledger.Get(ownerID)
	if !ok {
		return StorageResponse{}, fmt.Errorf("quota for user %d: %w", ownerID, ErrNotFound)
	}
	return StorageResponseFor(rec, u), nil
}

// ReconcileQuota recomputes every owner's usage from the live file set and
// rewrites ledger entries that drifted. It returns the corrections made.
func (s *Store) ReconcileQuota() []QuotaCorrection {
	s.mu.Lock()
	defer s.mu.Unlock()

	actual := make(map[int64]int64)
	for _, f := range s.files {
		actual[f.OwnerID] += f.Size
	}
	owners := make(map[int64]struct{}, len(actual)+len(s.ledger.records))
	for id := range actual {
		owners[id] = struct{}{}
	}
	for id := range s.ledger.records {
		owners[id] = struct{}{}
	}

	var fixes []QuotaCorrection
	now := s.now()
	for id := range owners {
		recorded := s.ledger.Used(id)
		if _, ok := s.ledger.Get(id); ok && recorded == actual[id] {
			continue
		}
		s.ledger.SetUsed(id, actual[id], now)
		fixes = append(fixes, QuotaCorrection{OwnerID: id, Recorded: recorded, Actual: actual[id]})
	}
	sort.Slice(fixes, func(i, j int) bool { return fixes[i].OwnerID < fixes[j].OwnerID })
	return fixes
}

// SweepOrphanBlobs deletes blobs that no file references and returns how
// many were removed. A blob is only deleted once it has been unreferenced
// for two consecutive sweeps, so a blob stored ahead of its CreateFile call
// survives as long as the record follows within one sweep interval.
func (s *Store) SweepOrphanBlobs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.blobs.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}
	live := make(map[string]struct{}, len(s.files))
	for _, f := range s.files {
		live[f.ContentID] = struct{}{}
	}

	next := make(map[string]struct{})
	removed := 0
	var errs []error
	for _, k := range keys {
		if _, ok := live[k]; ok {
			continue
		}
		if _, seen := s.orphans[k]; !seen {
			next[k] = struct{}{}
			continue
		}
		if err := s.blobs.Delete(ctx, k); err != nil {
			next[k] = struct{}{}
			errs = append(errs, fmt.Errorf("delete orphan blob %q: %w", k, err))
			continue
		}
		removed++
	}
	s.orphans = next
	return removed, errors.Join(errs...)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// checkParent verifies that folderID, when set, names an existing folder
// owned by ownerID.
func (s *Store) checkParent(folderID *int64, ownerID int64) error {
	if folderID == nil {
		return nil
	}
	f, ok := s.folders[*folderID]
	if !ok {
		return fmt.Errorf("folder %d does not exist: %w", *folderID, ErrInvalidParent)
	}
	if f.OwnerID != ownerID {
		return fmt.Errorf("folder %d belongs to another user: %w", *folderID, ErrInvalidParent)
	}
	return nil
}
