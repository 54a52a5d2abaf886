// Package cache holds the process-local copy of the animal inventory. It keeps
// one subscription on the store, swaps in each pushed snapshot atomically and
// fans it out to scoped listeners.
package cache

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

// Source pushes full inventory snapshots.
type Source interface {
	Subscribe(ctx context.Context, fn func([]models.Animal)) (func(), error)
}

// AnimalCache is an event-driven read model of the inventory. Snapshots are
// treated as immutable: readers get the slice as pushed and must copy before
// modifying.
type AnimalCache struct {
	source Source
	logger *zap.Logger

	mu      sync.RWMutex
	animals []models.Animal
	byID    map[string]int
	index   models.NumberIndex
	ready   chan struct{}
	loaded  bool

	// notifyMu orders deliveries to listeners.
	notifyMu  sync.Mutex
	listeners map[uint64]func([]models.Animal)
	nextID    uint64

	stopMu sync.Mutex
	stop   func()
}

// New builds a cache over source. Call Start to begin receiving snapshots.
func New(source Source, logger *zap.Logger) *AnimalCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnimalCache{
		source:    source,
		logger:    logger,
		byID:      map[string]int{},
		index:     models.NumberIndex{},
		ready:     make(chan struct{}),
		listeners: map[uint64]func([]models.Animal){},
	}
}

// Start subscribes to the source. The subscription lives until Stop is
// called or ctx ends.
func (c *AnimalCache) Start(ctx context.Context) error {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()

	if c.stop != nil {
		return errors.New("cache already started")
	}

	unsubscribe, err := c.source.Subscribe(ctx, c.apply)
	if err != nil {
		return err
	}
	c.stop = unsubscribe
	c.logger.Info("animal cache subscribed")
	return nil
}

// Stop releases the store subscription.
func (c *AnimalCache) Stop() {
	c.stopMu.Lock()
	stop := c.stop
	c.stop = nil
	c.stopMu.Unlock()

	if stop != nil {
		stop()
		c.logger.Info("animal cache unsubscribed")
	}
}

// WaitReady blocks until the first snapshot arrived or ctx ends.
func (c *AnimalCache) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *AnimalCache) apply(animals []models.Animal) {
	byID := make(map[string]int, len(animals))
	for i, a := range animals {
		byID[a.ID] = i
	}
	index := models.BuildNumberIndex(animals)

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.animals = animals
	c.byID = byID
	c.index = index
	if !c.loaded {
		c.loaded = true
		close(c.ready)
	}
	c.mu.Unlock()

	c.logger.Debug("inventory snapshot applied", zap.Int("animals", len(animals)))

	for _, fn := range c.listeners {
		fn(animals)
	}
}

// Listen registers fn for every future snapshot and calls it right away with
// the current one if loaded. fn runs on the delivery path and must not block
// or call back into Listen or its cancel function. The returned cancel must
// be called once the consumer goes away.
func (c *AnimalCache) Listen(fn func([]models.Animal)) (cancel func()) {
	c.notifyMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	c.mu.RLock()
	loaded, current := c.loaded, c.animals
	c.mu.RUnlock()
	if loaded {
		fn(current)
	}
	c.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.notifyMu.Lock()
			delete(c.listeners, id)
			c.notifyMu.Unlock()
		})
	}
}

// Listeners reports how many consumers are registered.
func (c *AnimalCache) Listeners() int {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	return len(c.listeners)
}

// Snapshot returns the current inventory, newest first.
func (c *AnimalCache) Snapshot() []models.Animal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.animals
}

// Get looks an animal up by id.
func (c *AnimalCache) Get(id string) (models.Animal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return models.Animal{}, false
	}
	return c.animals[i], true
}

// NumberTaken reports whether another animal of type t already uses number.
func (c *AnimalCache) NumberTaken(number int, t models.AnimalType, excludeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Taken(number, t, excludeID)
}

// LastNumber returns the highest animal number used in category t.
func (c *AnimalCache) LastNumber(t models.AnimalType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.LastAnimalNumber(c.animals, t)
}
