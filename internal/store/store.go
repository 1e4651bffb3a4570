// Package store persists minted records and lookup statistics in postgres,
// with a redis read-through cache in front of record lookups.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MagnunAVF/shinyid/internal"
	"github.com/MagnunAVF/shinyid/internal/logger"
)

var ErrNotFound = errors.New("not found")

const cachePrefix = "shiny:"

type Store struct {
	db    *gorm.DB
	cache *redis.Client
	ttl   time.Duration
}

// Open connects to postgres with gorm output routed through slog.
func Open(dsn, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.NewGormLogger(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// New returns a store over db. A nil cache disables caching.
func New(db *gorm.DB, cache *redis.Client, ttl time.Duration) *Store {
	return &Store{db: db, cache: cache, ttl: ttl}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&internal.Record{}, &internal.LookupStats{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (s *Store) CreateRecord(ctx context.Context, rec *internal.Record) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("create record %s: %w", rec.Shiny, err)
	}
	s.cacheRecord(ctx, rec)
	return nil
}

// FindRecord resolves a shiny through the cache, then the database.
func (s *Store) FindRecord(ctx context.Context, code string) (*internal.Record, error) {
	if rec, ok := s.cachedRecord(ctx, code); ok {
		return rec, nil
	}

	var rec internal.Record
	err := s.db.WithContext(ctx).Where("shiny = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("record %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", code, err)
	}

	s.cacheRecord(ctx, &rec)
	return &rec, nil
}

func (s *Store) Stats(ctx context.Context, code string) (*internal.LookupStats, error) {
	var st internal.LookupStats
	err := s.db.WithContext(ctx).Where("shiny = ?", code).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("stats %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find stats %s: %w", code, err)
	}
	return &st, nil
}

// ApplyLookups adds every tally to its shiny's counters in one transaction.
func (s *Store) ApplyLookups(ctx context.Context, tallies map[string]internal.LookupTally) error {
	if len(tallies) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for code, t := range tallies {
			row := internal.LookupStats{Shiny: code, LookupCount: t.Count, LastLookupAt: t.Last}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "shiny"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"lookup_count":   gorm.Expr("shiny_lookup_stats.lookup_count + EXCLUDED.lookup_count"),
					"last_lookup_at": gorm.Expr("GREATEST(shiny_lookup_stats.last_lookup_at, EXCLUDED.last_lookup_at)"),
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert lookups for %s: %w", code, err)
			}
		}
		return nil
	})
}

func (s *Store) cachedRecord(ctx context.Context, code string) (*internal.Record, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, cachePrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.FromContext(ctx).Warn("cache read failed", "shiny", code, "err", err)
		return nil, false
	}
	var rec internal.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.FromContext(ctx).Warn("cache entry corrupt", "shiny", code, "err", err)
		return nil, false
	}
	return &rec, true
}

func (s *Store) cacheRecord(ctx context.Context, rec *internal.Record) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cachePrefix+rec.Shiny, data, s.ttl).Err(); err != nil {
		logger.FromContext(ctx).Warn("cache write failed", "shiny", rec.Shiny, "err", err)
	}
}
