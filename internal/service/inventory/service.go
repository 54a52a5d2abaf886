package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

const defaultShareAttempts = 3

// Store is the subset of the animal store the write path needs.
type Store interface {
	Create(ctx context.Context, in models.AnimalInput) (string, error)
	Update(ctx context.Context, id string, revision int64, in models.AnimalInput) error
	UpdateShares(ctx context.Context, id string, revision int64, shares []models.Share) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (models.Animal, error)
	FindAll(ctx context.Context) ([]models.Animal, error)
}

// Service validates and applies every change to animals and their shares.
type Service struct {
	store    Store
	payments models.PaymentOptions
	logger   *zap.Logger
	attempts int
}

// NewService wires the inventory service.
func NewService(store Store, payments models.PaymentOptions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		payments: payments,
		logger:   logger,
		attempts: defaultShareAttempts,
	}
}

// PaymentOptions returns the receiver and method choices accepted on shares.
func (s *Service) PaymentOptions() models.PaymentOptions {
	return s.payments
}

// Get loads one animal from the store.
func (s *Service) Get(ctx context.Context, id string) (models.Animal, error) {
	return s.store.Get(ctx, id)
}

// CreateAnimal normalizes and validates the draft, checks the number is free
// in its category and stores the animal.
func (s *Service) CreateAnimal(ctx context.Context, draft models.AnimalDraft) (string, error) {
	draft.Normalize()
	in, err := draft.Validate()
	if err != nil {
		return "", err
	}

	if err := s.checkNumber(ctx, in, ""); err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, in)
	if err != nil {
		return "", numberConflict(in, err)
	}

	s.logger.Info("animal created",
		zap.String("id", id),
		zap.String("type", string(in.Type)),
		zap.Int("number", in.AnimalNumber),
		zap.Int("total_shares", in.TotalShares))
	return id, nil
}

// UpdateAnimal applies an edited draft to an existing animal. The write is
// conditional on the revision the share floor was checked against, so a buyer
// added in between makes it check again.
func (s *Service) UpdateAnimal(ctx context.Context, id string, draft models.AnimalDraft) error {
	draft.Normalize()
	in, err := draft.Validate()
	if err != nil {
		return err
	}

	if err := s.checkNumber(ctx, in, id); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := models.CheckShareFloor(current, in); err != nil {
			return err
		}

		err = s.store.Update(ctx, id, current.Revision, in)
		if err == nil {
			s.logger.Info("animal updated", zap.String("id", id), zap.Int("number", in.AnimalNumber))
			return nil
		}
		if !errors.Is(err, models.ErrRevisionConflict) {
			return numberConflict(in, err)
		}

		lastErr = err
		s.logger.Warn("animal edit conflicted, retrying", zap.String("id", id), zap.Int("attempt", attempt))
	}
	return lastErr
}

// DeleteAnimal removes an animal together with its shares.
func (s *Service) DeleteAnimal(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("animal deleted", zap.String("id", id))
	return nil
}

// AssignShare stores the buyer in slot, replacing whoever held it before.
func (s *Service) AssignShare(ctx context.Context, id string, slot int, draft models.ShareDraft) (models.Animal, error) {
	animal, err := s.mutateShares(ctx, id, func(a models.Animal) ([]models.Share, error) {
		share, err := draft.Validate(a, slot, s.payments)
		if err != nil {
			return nil, err
		}
		return models.UpsertShare(a.Shares, share), nil
	})
	if err != nil {
		return models.Animal{}, err
	}

	s.logger.Info("share assigned",
		zap.String("animal_id", id),
		zap.Int("slot", slot),
		zap.Float64("paid", draft.PaidAmount),
		zap.Int("sold_shares", animal.SoldShares))
	return animal, nil
}

// DeleteShare frees slot.
func (s *Service) DeleteShare(ctx context.Context, id string, slot int) (models.Animal, error) {
	animal, err := s.mutateShares(ctx, id, func(a models.Animal) ([]models.Share, error) {
		shares, ok := models.RemoveShare(a.Shares, slot)
		if !ok {
			return nil, fmt.Errorf("slot %d: %w", slot, models.ErrShareNotAssigned)
		}
		return shares, nil
	})
	if err != nil {
		return models.Animal{}, err
	}

	s.logger.Info("share deleted", zap.String("animal_id", id), zap.Int("slot", slot), zap.Int("sold_shares", animal.SoldShares))
	return animal, nil
}

// mutateShares reads the animal, derives the new share list and writes it
// conditionally on the revision it read. A concurrent write makes it start
// over from a fresh read.
func (s *Service) mutateShares(ctx context.Context, id string, mutate func(models.Animal) ([]models.Share, error)) (models.Animal, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		animal, err := s.store.Get(ctx, id)
		if err != nil {
			return models.Animal{}, err
		}

		shares, err := mutate(animal)
		if err != nil {
			return models.Animal{}, err
		}

		err = s.store.UpdateShares(ctx, id, animal.Revision, shares)
		if err == nil {
			animal.Shares = shares
			animal.SoldShares = len(shares)
			animal.Revision++
			return animal, nil
		}
		if !errors.Is(err, models.ErrRevisionConflict) {
			return models.Animal{}, err
		}

		lastErr = err
		s.logger.Warn("share write conflicted, retrying", zap.String("animal_id", id), zap.Int("attempt", attempt))
	}
	return models.Animal{}, lastErr
}

func (s *Service) checkNumber(ctx context.Context, in models.AnimalInput, excludeID string) error {
	animals, err := s.store.FindAll(ctx)
	if err != nil {
		return err
	}
	if models.NumberTaken(animals, in.AnimalNumber, in.Type, excludeID) {
		return numberTakenError(in)
	}
	return nil
}

func numberConflict(in models.AnimalInput, err error) error {
	if errors.Is(err, models.ErrDuplicateNumber) {
		return numberTakenError(in)
	}
	return err
}

func numberTakenError(in models.AnimalInput) error {
	return &models.ValidationError{
		Field:   "animalNumber",
		Code:    models.CodeAnimalNumberTaken,
		Message: fmt.Sprintf("%s kategorisinde %d numaralı hayvan zaten mevcut", in.Type.Label(), in.AnimalNumber),
	}
}
