package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/storage"
)

// SubscriptionService owns the subscription lifecycle. Lookups of unknown
// IDs surface ErrSubscriptionNotFound; LastNotifiedAt belongs to the alert
// engine and is never touched by updates here.
type SubscriptionService struct {
	store storage.Storage
}

func NewSubscriptionService(store storage.Storage) *SubscriptionService {
	return &SubscriptionService{store: store}
}

// Create registers a new subscription. New subscriptions start active with a
// server-assigned ID and creation time.
func (s *SubscriptionService) Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	sub.ID = 0
	sub.Active = true
	sub.CreatedAt = time.Now().UTC()
	sub.LastNotifiedAt = nil

	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	loggerFromContext(ctx).Info("subscription created",
		zap.Int64("id", sub.ID), zap.String("userId", sub.UserID),
		zap.String("location", sub.Location.Key()))
	return sub, nil
}

// Update replaces every field of an existing subscription except ID,
// CreatedAt and LastNotifiedAt.
func (s *SubscriptionService) Update(ctx context.Context, id int64, sub *models.Subscription) (*models.Subscription, error) {
	existing, err := s.store.SubscriptionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subscription %d: %w", id, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: id %d", ErrSubscriptionNotFound, id)
	}

	sub.ID = existing.ID
	sub.CreatedAt = existing.CreatedAt
	sub.LastNotifiedAt = existing.LastNotifiedAt
	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription %d: %w", id, err)
	}
	return sub, nil
}

// Delete removes a subscription. Deleting an unknown ID is an error, not a
// no-op.
func (s *SubscriptionService) Delete(ctx context.Context, id int64) error {
	existing, err := s.store.SubscriptionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load subscription %d: %w", id, err)
	}
	if existing == nil {
		return fmt.Errorf("%w: id %d", ErrSubscriptionNotFound, id)
	}
	if err := s.store.DeleteSubscription(ctx, id); err != nil {
		return fmt.Errorf("delete subscription %d: %w", id, err)
	}
	loggerFromContext(ctx).Info("subscription deleted", zap.Int64("id", id))
	return nil
}

// GetByID fetches one subscription.
func (s *SubscriptionService) GetByID(ctx context.Context, id int64) (*models.Subscription, error) {
	sub, err := s.store.SubscriptionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subscription %d: %w", id, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: id %d", ErrSubscriptionNotFound, id)
	}
	return sub, nil
}

// ListByUser returns every subscription belonging to a user. Empty is valid.
func (s *SubscriptionService) ListByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	subs, err := s.store.SubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for %s: %w", userID, err)
	}
	return subs, nil
}
