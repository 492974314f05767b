package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Raleighawesome/family-movies/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type householdRow struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)"`
	Name      *string `gorm:"type:text"`
	CreatedAt time.Time
}

func (householdRow) TableName() string { return "households" }

type memberRow struct {
	ID          string  `gorm:"primaryKey;type:varchar(36)"`
	HouseholdID string  `gorm:"type:varchar(36);index;not null"`
	UserID      string  `gorm:"type:varchar(255);index;not null"`
	DisplayName *string `gorm:"type:text"`
	Birthday    *string `gorm:"type:varchar(10)"`
	Email       *string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (memberRow) TableName() string { return "household_members" }

type labelRow struct {
	LabelKey  string `gorm:"primaryKey;type:varchar(255)"`
	Label     string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (labelRow) TableName() string { return "content_label_dictionary" }

type filterLimitRow struct {
	HouseholdID  string `gorm:"primaryKey;type:varchar(36)"`
	LabelKey     string `gorm:"primaryKey;type:varchar(255)"`
	MaxIntensity int    `gorm:"not null"`
	HardNo       bool   `gorm:"not null"`
	UpdatedAt    time.Time
}

func (filterLimitRow) TableName() string { return "household_filter_limits" }

type chatMessageRow struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	HouseholdID string         `gorm:"type:varchar(36);index:idx_chat_household_created,priority:1;not null"`
	UserID      *string        `gorm:"type:varchar(255)"`
	Role        string         `gorm:"type:varchar(16);not null"`
	Content     string         `gorm:"type:text;not null"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"index:idx_chat_household_created,priority:2"`
}

func (chatMessageRow) TableName() string { return "household_chat_messages" }

type watchRow struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	HouseholdID string         `gorm:"type:varchar(36);index;not null"`
	MovieID     string         `gorm:"type:varchar(255);not null"`
	WatchDate   *string        `gorm:"type:varchar(10)"`
	WatchedBy   datatypes.JSON `gorm:"type:jsonb"`
	Rating      *int
	CreatedAt   time.Time
}

func (watchRow) TableName() string { return "movie_watches" }

// GormStorage persists to Postgres in production and SQLite locally.
type GormStorage struct {
	db          *gorm.DB
	autoMigrate bool
	log         logrus.FieldLogger
}

func NewPostgresStorage(dsn string, autoMigrate bool, log logrus.FieldLogger) (*GormStorage, error) {
	return openGorm(postgres.Open(dsn), autoMigrate, log)
}

func NewSQLiteStorage(dsn string, autoMigrate bool, log logrus.FieldLogger) (*GormStorage, error) {
	return openGorm(sqlite.Open(dsn), autoMigrate, log)
}

func openGorm(dialector gorm.Dialector, autoMigrate bool, log logrus.FieldLogger) (*GormStorage, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &GormStorage{db: db, autoMigrate: autoMigrate, log: log}, nil
}

// Init creates the tables when auto migration is enabled. Without it a
// missing table surfaces as a MissingSchema error per call.
func (g *GormStorage) Init() error {
	if !g.autoMigrate {
		return nil
	}
	if err := g.db.AutoMigrate(
		&householdRow{},
		&memberRow{},
		&labelRow{},
		&filterLimitRow{},
		&chatMessageRow{},
		&watchRow{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	g.log.Info("database schema migrated")
	return nil
}

func (g *GormStorage) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormStorage) FirstMembership(ctx context.Context, userID string) (*model.Membership, error) {
	var rows []struct {
		ID            string
		UserID        string
		DisplayName   *string
		HouseholdID   string
		HouseholdName *string
	}
	err := g.db.WithContext(ctx).
		Table("household_members AS m").
		Select("m.id, m.user_id, m.display_name, m.household_id, h.name AS household_name").
		Joins("LEFT JOIN households h ON h.id = m.household_id").
		Where("m.user_id = ?", userID).
		Order("m.created_at ASC").
		Order("m.id ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapErr("storage.FirstMembership", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	return &model.Membership{
		ID:            r.ID,
		UserID:        r.UserID,
		DisplayName:   r.DisplayName,
		HouseholdID:   r.HouseholdID,
		HouseholdName: r.HouseholdName,
	}, nil
}

func (g *GormStorage) ListMembers(ctx context.Context, householdID string) ([]model.HouseholdMember, error) {
	var rows []memberRow
	err := g.db.WithContext(ctx).
		Where("household_id = ?", householdID).
		Order("display_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr("storage.ListMembers", err)
	}

	members := make([]model.HouseholdMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, model.HouseholdMember{
			ID:          r.ID,
			DisplayName: r.DisplayName,
			Birthday:    r.Birthday,
			Email:       r.Email,
		})
	}
	return members, nil
}

func (g *GormStorage) CreateHousehold(ctx context.Context, name string, member NewMember) (*model.Membership, error) {
	if member.UserID == "" {
		return nil, wrapErr("storage.CreateHousehold", ErrInvalidData)
	}

	hh := householdRow{ID: uuid.NewString(), Name: optional(name)}
	row := memberRow{
		ID:          uuid.NewString(),
		HouseholdID: hh.ID,
		UserID:      member.UserID,
		DisplayName: optional(member.DisplayName),
		Email:       optional(member.Email),
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&hh).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, wrapErr("storage.CreateHousehold", err)
	}

	return &model.Membership{
		ID:            row.ID,
		UserID:        row.UserID,
		DisplayName:   row.DisplayName,
		HouseholdID:   hh.ID,
		HouseholdName: hh.Name,
	}, nil
}

func (g *GormStorage) ListFilters(ctx context.Context, householdID string) ([]model.Filter, error) {
	var rows []filterLimitRow
	err := g.db.WithContext(ctx).
		Where("household_id = ?", householdID).
		Order("label_key ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr("storage.ListFilters", err)
	}

	filters := make([]model.Filter, 0, len(rows))
	for _, r := range rows {
		filters = append(filters, model.Filter{LabelKey: r.LabelKey, MaxIntensity: r.MaxIntensity, HardNo: r.HardNo})
	}
	return filters, nil
}

func (g *GormStorage) UpsertFilter(ctx context.Context, householdID string, filter model.Filter) error {
	row := filterLimitRow{
		HouseholdID:  householdID,
		LabelKey:     filter.LabelKey,
		MaxIntensity: filter.MaxIntensity,
		HardNo:       filter.HardNo,
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "household_id"}, {Name: "label_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_intensity", "hard_no", "updated_at"}),
	}).Create(&row).Error
	return wrapErr("storage.UpsertFilter", err)
}

func (g *GormStorage) InsertFilters(ctx context.Context, householdID string, filters []model.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	err := g.db.WithContext(ctx).Create(filterRows(householdID, filters)).Error
	return wrapErr("storage.InsertFilters", err)
}

func (g *GormStorage) DeleteFilters(ctx context.Context, householdID string, labelKeys []string) (int, error) {
	if len(labelKeys) == 0 {
		return 0, nil
	}
	res := g.db.WithContext(ctx).
		Where("household_id = ? AND label_key IN ?", householdID, labelKeys).
		Delete(&filterLimitRow{})
	if res.Error != nil {
		return 0, wrapErr("storage.DeleteFilters", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ReplaceFilters swaps the household's whole filter set in one transaction.
func (g *GormStorage) ReplaceFilters(ctx context.Context, householdID string, filters []model.Filter) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("household_id = ?", householdID).Delete(&filterLimitRow{}).Error; err != nil {
			return err
		}
		if len(filters) == 0 {
			return nil
		}
		return tx.Create(filterRows(householdID, filters)).Error
	})
	return wrapErr("storage.ReplaceFilters", err)
}

func (g *GormStorage) EnsureLabels(ctx context.Context, labels []model.FilterDefinition) error {
	if len(labels) == 0 {
		return nil
	}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "label_key"}}, DoNothing: true}).
		Create(labelRows(labels)).Error
	return wrapErr("storage.EnsureLabels", err)
}

func (g *GormStorage) UpsertLabels(ctx context.Context, labels []model.FilterDefinition) error {
	if len(labels) == 0 {
		return nil
	}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "label_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"label"}),
		}).
		Create(labelRows(labels)).Error
	return wrapErr("storage.UpsertLabels", err)
}

func (g *GormStorage) AddMessage(ctx context.Context, record *model.ChatRecord) error {
	if record == nil || record.HouseholdID == "" {
		return wrapErr("storage.AddMessage", ErrInvalidData)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var metadata datatypes.JSON
	if record.Metadata != nil {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return wrapErr("storage.AddMessage", err)
		}
		metadata = datatypes.JSON(raw)
	}

	err := g.db.WithContext(ctx).Create(&chatMessageRow{
		ID:          record.ID,
		HouseholdID: record.HouseholdID,
		UserID:      record.UserID,
		Role:        record.Role,
		Content:     record.Content,
		Metadata:    metadata,
		CreatedAt:   record.CreatedAt,
	}).Error
	return wrapErr("storage.AddMessage", err)
}

// ListMessages returns the newest limit rows, oldest first.
func (g *GormStorage) ListMessages(ctx context.Context, householdID string, limit int) ([]model.ChatRecord, error) {
	query := g.db.WithContext(ctx).
		Where("household_id = ?", householdID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []chatMessageRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapErr("storage.ListMessages", err)
	}

	records := make([]model.ChatRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		record := model.ChatRecord{
			ID:          r.ID,
			HouseholdID: r.HouseholdID,
			Role:        r.Role,
			Content:     r.Content,
			UserID:      r.UserID,
			CreatedAt:   r.CreatedAt,
		}
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &record.Metadata); err != nil {
				g.log.WithError(err).WithField("message_id", r.ID).Warn("ignoring unreadable chat metadata")
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (g *GormStorage) RecordWatch(ctx context.Context, record *model.WatchRecord) error {
	if record == nil || record.HouseholdID == "" || record.MovieID == "" {
		return wrapErr("storage.RecordWatch", ErrInvalidData)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	watchedBy, err := json.Marshal(record.WatchedBy)
	if err != nil {
		return wrapErr("storage.RecordWatch", err)
	}

	err = g.db.WithContext(ctx).Create(&watchRow{
		ID:          record.ID,
		HouseholdID: record.HouseholdID,
		MovieID:     record.MovieID,
		WatchDate:   optional(record.WatchDate),
		WatchedBy:   datatypes.JSON(watchedBy),
		Rating:      record.Rating,
		CreatedAt:   record.CreatedAt,
	}).Error
	return wrapErr("storage.RecordWatch", err)
}

func filterRows(householdID string, filters []model.Filter) []filterLimitRow {
	rows := make([]filterLimitRow, 0, len(filters))
	for _, f := range filters {
		rows = append(rows, filterLimitRow{
			HouseholdID:  householdID,
			LabelKey:     f.LabelKey,
			MaxIntensity: f.MaxIntensity,
			HardNo:       f.HardNo,
		})
	}
	return rows
}

func labelRows(labels []model.FilterDefinition) []labelRow {
	rows := make([]labelRow, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, labelRow{LabelKey: l.LabelKey, Label: l.Label})
	}
	return rows
}
