package store

import (
	"database/sql"
	"errors"
	"time"
)

// Preset is a saved musical selection.
type Preset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scale     string    `json:"scale"`
	Key       string    `json:"key"`
	Timbre    string    `json:"timbre"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PresetRepository provides CRUD operations for presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

const presetColumns = `id, name, scale, key, timbre, created_at, updated_at`

// Create inserts a new preset.
func (r *PresetRepository) Create(p *Preset) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO presets (`+presetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Scale, p.Key, p.Timbre, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves a preset by its ID.
func (r *PresetRepository) GetByID(id string) (*Preset, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE id = ?`, id))
}

// GetByName retrieves a preset by its name.
func (r *PresetRepository) GetByName(name string) (*Preset, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE name = ?`, name))
}

func (r *PresetRepository) scanOne(row *sql.Row) (*Preset, error) {
	p := &Preset{}
	err := row.Scan(&p.ID, &p.Name, &p.Scale, &p.Key, &p.Timbre, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List retrieves all presets ordered by name.
func (r *PresetRepository) List() ([]*Preset, error) {
	rows, err := r.db.Query(`SELECT ` + presetColumns + ` FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var presets []*Preset
	for rows.Next() {
		p := &Preset{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Scale, &p.Key, &p.Timbre, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return presets, nil
}

// Update replaces a preset's fields.
func (r *PresetRepository) Update(p *Preset) error {
	p.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE presets SET name = ?, scale = ?, key = ?, timbre = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Scale, p.Key, p.Timbre, p.UpdatedAt, p.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// Delete removes a preset by its ID.
func (r *PresetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}
