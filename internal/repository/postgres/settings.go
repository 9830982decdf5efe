package postgres

import (
	"context"
	"encoding/json"
	"fmt"
)

// SettingsRepo reads the key/value settings table.
type SettingsRepo struct {
	db DBTX
}

// NewSettingsRepo creates a SettingsRepo.
func NewSettingsRepo(db DBTX) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// GetSettings returns the stored JSON values of keys. Missing keys are absent from the map.
func (r *SettingsRepo) GetSettings(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM settings WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage, len(keys))
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}
