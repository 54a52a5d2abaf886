// Package memory keeps the animal inventory in process memory. It honours the
// same contract as the MongoDB store and backs development runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

// Store is an in-memory animal store with push subscriptions.
type Store struct {
	mu      sync.RWMutex
	animals map[string]models.Animal

	subsMu  sync.RWMutex
	subs    map[uint64]func([]models.Animal)
	nextSub uint64

	// publishMu serialises deliveries so subscribers never see an older
	// snapshot after a newer one.
	publishMu sync.Mutex

	reports []models.DailyReport

	now    func() time.Time
	logger *zap.Logger
}

// NewStore returns an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		animals: make(map[string]models.Animal),
		subs:    make(map[uint64]func([]models.Animal)),
		now:     time.Now,
		logger:  logger,
	}
}

// Subscribe delivers the current inventory immediately and again after every
// change until the returned function is called or ctx ends.
func (s *Store) Subscribe(ctx context.Context, fn func([]models.Animal)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.StoreError{Op: "subscribe", Err: err}
	}

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	s.publishMu.Lock()
	fn(s.snapshot())
	s.publishMu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()

	return unsubscribe, nil
}

// Create stores a new animal with no shares sold and returns its id.
func (s *Store) Create(ctx context.Context, in models.AnimalInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &models.StoreError{Op: "create", Err: err}
	}

	s.mu.Lock()
	if s.numberUsedLocked(in.Type, in.AnimalNumber, "") {
		s.mu.Unlock()
		return "", &models.StoreError{Op: "create", Err: models.ErrDuplicateNumber}
	}
	animal := models.Animal{
		ID:        uuid.NewString(),
		Shares:    []models.Share{},
		CreatedAt: s.now().UTC(),
		Revision:  1,
	}
	animal.Apply(in)
	s.animals[animal.ID] = animal
	s.mu.Unlock()

	s.logger.Debug("animal created", zap.String("id", animal.ID), zap.Int("number", in.AnimalNumber))
	s.publish()
	return animal.ID, nil
}

// Update overwrites the editable fields of an animal, provided it is still at
// revision.
func (s *Store) Update(ctx context.Context, id string, revision int64, in models.AnimalInput) error {
	if err := ctx.Err(); err != nil {
		return &models.StoreError{Op: "update", ID: id, Err: err}
	}

	s.mu.Lock()
	animal, ok := s.animals[id]
	if !ok {
		s.mu.Unlock()
		return &models.StoreError{Op: "update", ID: id, Err: models.ErrNotFound}
	}
	if animal.Revision != revision {
		s.mu.Unlock()
		return &models.StoreError{Op: "update", ID: id, Err: models.ErrRevisionConflict}
	}
	if s.numberUsedLocked(in.Type, in.AnimalNumber, id) {
		s.mu.Unlock()
		return &models.StoreError{Op: "update", ID: id, Err: models.ErrDuplicateNumber}
	}
	animal.Apply(in)
	animal.Revision++
	s.animals[id] = animal
	s.mu.Unlock()

	s.publish()
	return nil
}

// UpdateShares replaces the share list and sold count together, provided the
// animal is still at revision.
func (s *Store) UpdateShares(ctx context.Context, id string, revision int64, shares []models.Share) error {
	if err := ctx.Err(); err != nil {
		return &models.StoreError{Op: "update shares", ID: id, Err: err}
	}

	s.mu.Lock()
	animal, ok := s.animals[id]
	if !ok {
		s.mu.Unlock()
		return &models.StoreError{Op: "update shares", ID: id, Err: models.ErrNotFound}
	}
	if animal.Revision != revision {
		s.mu.Unlock()
		return &models.StoreError{Op: "update shares", ID: id, Err: models.ErrRevisionConflict}
	}
	animal.Shares = append([]models.Share{}, shares...)
	animal.SoldShares = len(shares)
	animal.Revision++
	s.animals[id] = animal
	s.mu.Unlock()

	s.publish()
	return nil
}

// Delete removes an animal and its shares.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return &models.StoreError{Op: "delete", ID: id, Err: err}
	}

	s.mu.Lock()
	if _, ok := s.animals[id]; !ok {
		s.mu.Unlock()
		return &models.StoreError{Op: "delete", ID: id, Err: models.ErrNotFound}
	}
	delete(s.animals, id)
	s.mu.Unlock()

	s.publish()
	return nil
}

// Get returns one animal.
func (s *Store) Get(ctx context.Context, id string) (models.Animal, error) {
	if err := ctx.Err(); err != nil {
		return models.Animal{}, &models.StoreError{Op: "get", ID: id, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	animal, ok := s.animals[id]
	if !ok {
		return models.Animal{}, &models.StoreError{Op: "get", ID: id, Err: models.ErrNotFound}
	}
	return animal.Clone(), nil
}

// FindAll returns every animal, newest first.
func (s *Store) FindAll(ctx context.Context) ([]models.Animal, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.StoreError{Op: "find all", Err: err}
	}
	return s.snapshot(), nil
}

// SaveDailyReport keeps a daily snapshot.
func (s *Store) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.reports = append(s.reports, report)
	s.mu.Unlock()
	return nil
}

// DailyReports returns the snapshots saved so far, oldest first.
func (s *Store) DailyReports() []models.DailyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DailyReport(nil), s.reports...)
}

func (s *Store) snapshot() []models.Animal {
	s.mu.RLock()
	out := make([]models.Animal, 0, len(s.animals))
	for _, a := range s.animals {
		out = append(out, a.Clone())
	}
	s.mu.RUnlock()

	models.SortByCreatedDesc(out)
	return out
}

func (s *Store) numberUsedLocked(t models.AnimalType, number int, excludeID string) bool {
	for id, a := range s.animals {
		if id != excludeID && a.Type == t && a.AnimalNumber == number {
			return true
		}
	}
	return false
}

func (s *Store) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	snapshot := s.snapshot()

	s.subsMu.RLock()
	fns := make([]func([]models.Animal), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		// each subscriber gets its own copy
		fn(cloneAll(snapshot))
	}
}

func cloneAll(animals []models.Animal) []models.Animal {
	out := make([]models.Animal, len(animals))
	for i, a := range animals {
		out[i] = a.Clone()
	}
	return out
}
