package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Asset is an accessory model registered in the catalog.
type Asset struct {
	ID        string
	Name      string
	Path      string
	Position  int
	CreatedAt time.Time
}

// AssetRepository provides CRUD operations for assets.
type AssetRepository struct {
	db *sql.DB
}

// Assets returns the asset repository for this store.
func (s *Store) Assets() *AssetRepository {
	return &AssetRepository{db: s.db}
}

// Create inserts a new asset. A zero Position appends it after the last asset.
func (r *AssetRepository) Create(a *Asset) error {
	if a.Position == 0 {
		var last sql.NullInt64
		if err := r.db.QueryRow(`SELECT MAX(position) FROM assets`).Scan(&last); err != nil {
			return errors.Wrap(err, "find last position")
		}
		a.Position = int(last.Int64) + 1
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO assets (id, name, path, position, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Path, a.Position, a.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert asset %q", a.Name)
	}
	return nil
}

// GetByID retrieves an asset by its ID.
func (r *AssetRepository) GetByID(id string) (*Asset, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, path, position, created_at FROM assets WHERE id = ?`, id,
	))
}

// GetByName retrieves an asset by its name.
func (r *AssetRepository) GetByName(name string) (*Asset, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, path, position, created_at FROM assets WHERE name = ?`, name,
	))
}

func (r *AssetRepository) scanOne(row *sql.Row) (*Asset, error) {
	a := &Asset{}
	err := row.Scan(&a.ID, &a.Name, &a.Path, &a.Position, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns all assets in selection order.
func (r *AssetRepository) List() ([]*Asset, error) {
	rows, err := r.db.Query(
		`SELECT id, name, path, position, created_at FROM assets ORDER BY position, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a := &Asset{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Path, &a.Position, &a.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Delete removes an asset by its ID.
func (r *AssetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
