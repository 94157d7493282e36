package recordingstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
	"github.com/zanzhit/voice_recorder/internal/storage/postgres"
)

// RecordingStorage persists RecordingEntry rows. It performs no
// latitude/longitude or path validation; callers own that policy.
type RecordingStorage struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *RecordingStorage {
	return &RecordingStorage{
		db: db,
	}
}

func (s *RecordingStorage) Insert(entry models.RecordingEntry) (string, error) {
	const op = "storage.postgres.recordings.Insert"

	id := uuid.NewString()
	now := time.Now()

	query := fmt.Sprintf(`INSERT INTO %s
		(id, filename, file_path, captured_at_ms, latitude, longitude,
		 transcription_status, transcription_result, is_fallback, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`, postgres.RecordingsTable)

	_, err := s.db.Exec(query, id, entry.Filename, entry.FilePath, entry.Timestamp,
		entry.Latitude, entry.Longitude, entry.TranscriptionStatus,
		entry.TranscriptionResult, entry.IsFallback, entry.ErrorMessage, now)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *RecordingStorage) ByID(id string) (models.RecordingEntry, error) {
	const op = "storage.postgres.recordings.ByID"

	var entry models.RecordingEntry

	query := fmt.Sprintf(`SELECT id, filename, file_path, captured_at_ms, latitude, longitude,
		transcription_status, transcription_result, is_fallback, error_message, created_at, updated_at
		FROM %s WHERE id = $1`, postgres.RecordingsTable)

	if err := s.db.Get(&entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RecordingEntry{}, fmt.Errorf("%s: %w", op, errs.ErrEntryNotFound)
		}

		return models.RecordingEntry{}, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

func (s *RecordingStorage) All() ([]models.RecordingEntry, error) {
	const op = "storage.postgres.recordings.All"

	var entries []models.RecordingEntry

	query := fmt.Sprintf(`SELECT id, filename, file_path, captured_at_ms, latitude, longitude,
		transcription_status, transcription_result, is_fallback, error_message, created_at, updated_at
		FROM %s ORDER BY captured_at_ms DESC`, postgres.RecordingsTable)

	if err := s.db.Select(&entries, query); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// Update replaces the row with the entry's id. A missing row is a silent
// no-op so an update can never resurrect a deleted entry.
func (s *RecordingStorage) Update(entry models.RecordingEntry) error {
	const op = "storage.postgres.recordings.Update"

	query := fmt.Sprintf(`UPDATE %s SET
		filename = $2, file_path = $3, captured_at_ms = $4, latitude = $5, longitude = $6,
		transcription_status = $7, transcription_result = $8, is_fallback = $9, error_message = $10,
		updated_at = $11
		WHERE id = $1`, postgres.RecordingsTable)

	_, err := s.db.Exec(query, entry.ID, entry.Filename, entry.FilePath, entry.Timestamp,
		entry.Latitude, entry.Longitude, entry.TranscriptionStatus,
		entry.TranscriptionResult, entry.IsFallback, entry.ErrorMessage, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *RecordingStorage) Delete(id string) error {
	const op = "storage.postgres.recordings.Delete"

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, postgres.RecordingsTable)

	if _, err := s.db.Exec(query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
