package kv

import (
	"context"
	"encoding/json"
	"time"

	"tracker-guard/agent/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL stores entries in the kv_entries table.
type SQL struct {
	db *gorm.DB
}

func NewSQL(gdb *gorm.DB) *SQL { return &SQL{db: gdb} }

func (s *SQL) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []db.KVEntry
	if err := s.db.WithContext(ctx).Where("`key` IN ?", keys).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Key] = json.RawMessage(r.Value)
	}
	return out, nil
}

func (s *SQL) Set(ctx context.Context, values map[string]any) error {
	enc, err := encode(values)
	if err != nil {
		return err
	}
	if len(enc) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]db.KVEntry, 0, len(enc))
	for k, v := range enc {
		rows = append(rows, db.KVEntry{Key: k, Value: v, UpdatedAt: now})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}

// Close is a no-op; the gorm handle is owned by the caller.
func (s *SQL) Close() error { return nil }
