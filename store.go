package main

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cartel-sh/box/models"
)

// SeenState is the persisted notification watermark per account.
type SeenState struct {
	ID       uint   `gorm:"primarykey"`
	Account  string `gorm:"uniqueIndex"`
	LastSeen time.Time
}

// CollectSettings is the persisted composer collect config per account.
type CollectSettings struct {
	ID      uint   `gorm:"primarykey"`
	Account string `gorm:"uniqueIndex"`

	Enabled       bool
	CollectLimit  *int
	EndsAt        *time.Time
	FollowersOnly *bool
	PriceAmount   string
	PriceCurrency string
}

// Store wraps the local database. It holds only per-account UI state; all
// social data lives upstream.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&SeenState{}); err != nil {
		return err
	}
	return s.db.AutoMigrate(&CollectSettings{})
}

// LoadLastSeen returns the account's watermark, zero when none is stored.
func (s *Store) LoadLastSeen(account string) (time.Time, error) {
	var state SeenState
	if err := s.db.Where("account = ?", account).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return state.LastSeen, nil
}

// StoreLastSeen upserts the account's watermark.
func (s *Store) StoreLastSeen(account string, t time.Time) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
	}).Create(&SeenState{
		Account:  account,
		LastSeen: t,
	}).Error
}

// LoadCollectConfig returns the account's composer settings, creating the
// defaults on first access.
func (s *Store) LoadCollectConfig(account string) (models.CollectConfig, error) {
	var row CollectSettings
	if err := s.db.Where("account = ?", account).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg := models.DefaultCollectConfig(time.Now())
			if err := s.StoreCollectConfig(account, cfg); err != nil {
				return models.CollectConfig{}, err
			}
			return cfg, nil
		}
		return models.CollectConfig{}, err
	}

	cfg := models.CollectConfig{
		Enabled:       row.Enabled,
		CollectLimit:  row.CollectLimit,
		EndsAt:        row.EndsAt,
		FollowersOnly: row.FollowersOnly,
	}
	if row.PriceAmount != "" {
		cfg.Price = &models.CollectPrice{
			Amount:   row.PriceAmount,
			Currency: row.PriceCurrency,
		}
	}
	return cfg, nil
}

// StoreCollectConfig upserts the account's composer settings.
func (s *Store) StoreCollectConfig(account string, cfg models.CollectConfig) error {
	row := CollectSettings{
		Account:       account,
		Enabled:       cfg.Enabled,
		CollectLimit:  cfg.CollectLimit,
		EndsAt:        cfg.EndsAt,
		FollowersOnly: cfg.FollowersOnly,
	}
	if cfg.Price != nil {
		row.PriceAmount = cfg.Price.Amount
		row.PriceCurrency = cfg.Price.Currency
	}

	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "collect_limit", "ends_at", "followers_only",
			"price_amount", "price_currency",
		}),
	}).Create(&row).Error
}
