package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mingshan/internal/terrain"
)

// ErrDuplicateName is returned when an anchor name is already taken.
var ErrDuplicateName = errors.New("anchor name already exists")

// AnchorID derives the ID of a named anchor. The same name gives the same
// ID on every database, so seeded defaults keep their IDs across installs.
func AnchorID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mingshan:"+name)).String()
}

// Anchor is a stored point of interest.
type Anchor struct {
	terrain.Anchor
	CreatedAt time.Time `json:"created_at"`
}

// AnchorRepository provides CRUD operations for anchors.
type AnchorRepository struct {
	db *sql.DB
}

// Anchors returns the anchor repository for this store.
func (s *Store) Anchors() *AnchorRepository {
	return &AnchorRepository{db: s.db}
}

// Create inserts a new anchor, assigning an ID when a.ID is empty.
func (r *AnchorRepository) Create(a *Anchor) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO anchors (id, name, label, x, y, z, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Label, a.X, a.Y, a.Z, a.CreatedAt,
	)
	return mapConstraint(err)
}

// GetByID retrieves an anchor by its ID.
func (r *AnchorRepository) GetByID(id string) (*Anchor, error) {
	return r.scanOne(`SELECT id, name, label, x, y, z, created_at FROM anchors WHERE id = ?`, id)
}

// GetByName retrieves an anchor by its name.
func (r *AnchorRepository) GetByName(name string) (*Anchor, error) {
	return r.scanOne(`SELECT id, name, label, x, y, z, created_at FROM anchors WHERE name = ?`, name)
}

func (r *AnchorRepository) scanOne(query string, arg string) (*Anchor, error) {
	a := &Anchor{}
	err := r.db.QueryRow(query, arg).Scan(&a.ID, &a.Name, &a.Label, &a.X, &a.Y, &a.Z, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List retrieves all anchors in insertion order.
func (r *AnchorRepository) List() ([]*Anchor, error) {
	rows, err := r.db.Query(`SELECT id, name, label, x, y, z, created_at FROM anchors ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anchors []*Anchor
	for rows.Next() {
		a := &Anchor{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Label, &a.X, &a.Y, &a.Z, &a.CreatedAt); err != nil {
			return nil, err
		}
		anchors = append(anchors, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return anchors, nil
}

// Update overwrites the name, label and position of an existing anchor.
func (r *AnchorRepository) Update(a *Anchor) error {
	result, err := r.db.Exec(
		`UPDATE anchors SET name = ?, label = ?, x = ?, y = ?, z = ? WHERE id = ?`,
		a.Name, a.Label, a.X, a.Y, a.Z, a.ID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(result)
}

// Delete removes an anchor by its ID.
func (r *AnchorRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM anchors WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Count returns the number of stored anchors.
func (r *AnchorRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM anchors`).Scan(&n)
	return n, err
}

// Seed inserts defaults when the table is empty and reports how many rows
// it added.
func (r *AnchorRepository) Seed(defaults []terrain.Anchor) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM anchors`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	stmt, err := tx.Prepare(`INSERT INTO anchors (id, name, label, x, y, z, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range defaults {
		id := a.ID
		if id == "" {
			id = AnchorID(a.Name)
		}
		if _, err := stmt.Exec(id, a.Name, a.Label, a.X, a.Y, a.Z, now); err != nil {
			return 0, mapConstraint(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(defaults), nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicateName
	}
	return err
}
