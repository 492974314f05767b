package storage

import (
	"context"
	"fmt"

	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/model"

	"github.com/sirupsen/logrus"
)

// NewMember describes the first membership of a bootstrapped household.
type NewMember struct {
	UserID      string
	DisplayName string
	Email       string
}

type Storage interface {
	// Households
	FirstMembership(ctx context.Context, userID string) (*model.Membership, error)
	ListMembers(ctx context.Context, householdID string) ([]model.HouseholdMember, error)
	CreateHousehold(ctx context.Context, name string, member NewMember) (*model.Membership, error)

	// Filter limits and the label dictionary
	ListFilters(ctx context.Context, householdID string) ([]model.Filter, error)
	UpsertFilter(ctx context.Context, householdID string, filter model.Filter) error
	InsertFilters(ctx context.Context, householdID string, filters []model.Filter) error
	DeleteFilters(ctx context.Context, householdID string, labelKeys []string) (int, error)
	ReplaceFilters(ctx context.Context, householdID string, filters []model.Filter) error
	EnsureLabels(ctx context.Context, labels []model.FilterDefinition) error
	UpsertLabels(ctx context.Context, labels []model.FilterDefinition) error

	// Chat log
	AddMessage(ctx context.Context, record *model.ChatRecord) error
	ListMessages(ctx context.Context, householdID string, limit int) ([]model.ChatRecord, error)

	// Watch log
	RecordWatch(ctx context.Context, record *model.WatchRecord) error

	Init() error
	Close() error
}

// New opens the backend named by cfg.Type.
func New(cfg config.StorageConfig, log logrus.FieldLogger) (Storage, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStorage(), nil
	case "postgres", "sqlite":
		open := NewPostgresStorage
		if cfg.Type == "sqlite" {
			open = NewSQLiteStorage
		}
		store, err := open(cfg.DSN, cfg.AutoMigrate, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
