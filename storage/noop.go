package storage

import (
	"context"
	"time"

	"contact-metrics/models"
)

// Store defines the storage interface
type Store interface {
	SaveReport(ctx context.Context, runID string, report *models.Report, storedAt time.Time) error
	GetAgentHistory(ctx context.Context, agentID string) ([]CapacityItem, error)
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveReport(_ context.Context, _ string, _ *models.Report, _ time.Time) error {
	return nil
}

func (s *NoopStore) GetAgentHistory(_ context.Context, _ string) ([]CapacityItem, error) {
	return nil, nil
}
