package markerstorage

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zanzhit/voice_recorder/internal/storage/postgres"
)

// MarkerStorage persists the single "session in progress" marker. The row
// survives a crash, so the owning service reclaims it on startup instead of
// staying permanently unable to launch.
type MarkerStorage struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *MarkerStorage {
	return &MarkerStorage{db: db}
}

func (s *MarkerStorage) Set(owner string) error {
	const op = "storage.postgres.markers.Set"

	query := fmt.Sprintf(`INSERT INTO %s (id, owner, started_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET owner = $1, started_at = $2`, postgres.MarkersTable)

	if _, err := s.db.Exec(query, owner, time.Now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *MarkerStorage) Clear() error {
	const op = "storage.postgres.markers.Clear"

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = 1`, postgres.MarkersTable)

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
