package store

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// Settings keys.
const (
	// KeyOverlayParams holds the persisted overlay placement parameters.
	KeyOverlayParams = "overlay.params"
	// KeySelectedAsset holds the name of the last selected accessory.
	KeySelectedAsset = "overlay.selected"
)

// SettingsRepository reads and writes key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the raw value for key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return errors.Wrapf(err, "set %q", key)
}

// LoadJSON decodes the value under key into v.
func (r *SettingsRepository) LoadJSON(key string, v any) error {
	raw, err := r.Get(key)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal([]byte(raw), v), "decode %q", key)
}

// SaveJSON encodes v and stores it under key.
func (r *SettingsRepository) SaveJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %q", key)
	}
	return r.Set(key, string(data))
}
