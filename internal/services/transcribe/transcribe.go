package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
	"github.com/zanzhit/voice_recorder/internal/lib/coord"
	"github.com/zanzhit/voice_recorder/internal/lib/sl"
)

// Service drives one RecordingEntry at a time through the transcription
// status machine. Failures are terminal until a human retries; there is no
// automatic retry or backoff anywhere in this service.
type Service struct {
	log          *slog.Logger
	entries      EntryStore
	recognizer   Recognizer
	waypoints    Merger
	notifier     Notifier
	waypointName string
	enabled      bool
}

type EntryStore interface {
	ByID(id string) (models.RecordingEntry, error)
	All() ([]models.RecordingEntry, error)
	Update(entry models.RecordingEntry) error
}

type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

type Merger interface {
	Merge(lat, lng float64, name, desc string, at time.Time) error
}

type Notifier interface {
	Progress(filename string, index, total int)
	Done(processed int)
}

func New(log *slog.Logger, entries EntryStore, recognizer Recognizer, waypoints Merger, notifier Notifier, waypointName string, enabled bool) *Service {
	return &Service{
		log:          log,
		entries:      entries,
		recognizer:   recognizer,
		waypoints:    waypoints,
		notifier:     notifier,
		waypointName: waypointName,
		enabled:      enabled,
	}
}

// Process runs one post-processing job for the entry with the given id.
// PROCESSING is persisted before the remote call so a crash mid-call leaves
// visible state instead of a silently stuck NOT_STARTED.
func (s *Service) Process(ctx context.Context, id string) error {
	const op = "service.transcribe.Process"

	log := s.log.With(
		slog.String("op", op),
		slog.String("entry_id", id),
	)

	if !s.enabled {
		log.Info("transcription is disabled, skipping")

		return nil
	}

	entry, err := s.entries.ByID(id)
	if err != nil {
		log.Error("failed to get entry", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	switch entry.TranscriptionStatus {
	case models.StatusProcessing:
		log.Warn("entry is already being processed")

		return fmt.Errorf("%s: %w", op, errs.ErrAlreadyInFlight)
	case models.StatusDisabled:
		log.Info("entry was recorded with transcription disabled, skipping")

		return nil
	}

	// Clear the previous outcome markers; the prior result stays readable
	// until the next outcome overwrites it.
	entry.TranscriptionStatus = models.StatusProcessing
	entry.ErrorMessage = nil
	entry.IsFallback = false

	if err := s.entries.Update(entry); err != nil {
		log.Error("failed to persist processing status", sl.Err(err))

		return fmt.Errorf("%s: %w", op, errs.ErrWriteToDB)
	}

	if _, err := os.Stat(entry.FilePath); err != nil {
		log.Error("audio artifact is not readable", sl.Err(err))

		return s.persistError(log, entry, errs.ErrNoAudioFile.Error())
	}

	log.Info("transcribing", slog.String("file", entry.Filename))

	text, err := s.recognizer.Recognize(ctx, entry.FilePath)
	if err != nil {
		log.Error("transcription failed", sl.Err(err))

		return s.persistError(log, entry, err.Error())
	}

	if strings.TrimSpace(text) == "" {
		return s.persistFallback(log, entry)
	}

	return s.persistCompleted(log, entry, text)
}

func (s *Service) persistCompleted(log *slog.Logger, entry models.RecordingEntry, text string) error {
	const op = "service.transcribe.persistCompleted"

	entry.TranscriptionStatus = models.StatusCompleted
	entry.TranscriptionResult = &text
	entry.IsFallback = false
	entry.ErrorMessage = nil

	if err := s.entries.Update(entry); err != nil {
		log.Error("failed to persist completed status", sl.Err(err))

		return fmt.Errorf("%s: %w", op, errs.ErrWriteToDB)
	}

	log.Info("transcription completed")

	s.merge(log, entry, text)

	return nil
}

func (s *Service) persistFallback(log *slog.Logger, entry models.RecordingEntry) error {
	const op = "service.transcribe.persistFallback"

	// The same placeholder goes into the persisted record and both export
	// formats, so they agree verbatim wherever it is later shown.
	placeholder := coord.Placeholder(entry.Latitude, entry.Longitude)

	entry.TranscriptionStatus = models.StatusFallback
	entry.TranscriptionResult = &placeholder
	entry.IsFallback = true
	entry.ErrorMessage = nil

	if err := s.entries.Update(entry); err != nil {
		log.Error("failed to persist fallback status", sl.Err(err))

		return fmt.Errorf("%s: %w", op, errs.ErrWriteToDB)
	}

	log.Info("no speech recognized, recorded fallback placeholder")

	s.merge(log, entry, placeholder)

	return nil
}

func (s *Service) persistError(log *slog.Logger, entry models.RecordingEntry, message string) error {
	const op = "service.transcribe.persistError"

	entry.TranscriptionStatus = models.StatusError
	entry.TranscriptionResult = nil
	entry.IsFallback = false
	entry.ErrorMessage = &message

	if err := s.entries.Update(entry); err != nil {
		log.Error("failed to persist error status", sl.Err(err))

		return fmt.Errorf("%s: %w", op, errs.ErrWriteToDB)
	}

	return nil
}

// merge folds the outcome into the waypoint collections. Transcription
// success and export success are independent: a merge failure is logged and
// the persisted status stays as it is.
func (s *Service) merge(log *slog.Logger, entry models.RecordingEntry, desc string) {
	at := time.UnixMilli(entry.Timestamp)

	if err := s.waypoints.Merge(entry.Latitude, entry.Longitude, s.waypointName, desc, at); err != nil {
		log.Error("failed to merge waypoint collections", sl.Err(err))
	}
}

// Retry re-runs post-processing at a human's request. The cleared-field
// semantics are the same as Process; only terminal statuses arrive here.
func (s *Service) Retry(ctx context.Context, id string) error {
	return s.Process(ctx, id)
}

// ProcessAll processes every entry lacking an acceptable outcome, strictly
// one at a time so the remote service is never hit concurrently and
// progress stays deterministic. Each item's outcome is persisted before the
// next item starts.
func (s *Service) ProcessAll(ctx context.Context) error {
	const op = "service.transcribe.ProcessAll"

	log := s.log.With(slog.String("op", op))

	entries, err := s.entries.All()
	if err != nil {
		log.Error("failed to list entries", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	var eligible []models.RecordingEntry
	for _, entry := range entries {
		if entry.TranscriptionStatus == models.StatusNotStarted || entry.TranscriptionStatus == models.StatusError {
			eligible = append(eligible, entry)
		}
	}

	total := len(eligible)
	log.Info("starting batch transcription", slog.Int("total", total))

	for i, entry := range eligible {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		s.notifier.Progress(entry.Filename, i+1, total)

		if err := s.Process(ctx, entry.ID); err != nil {
			log.Error("batch item failed", slog.String("entry_id", entry.ID), sl.Err(err))
		}
	}

	s.notifier.Done(total)

	return nil
}

// LogNotifier reports batch progress through the structured log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Progress(filename string, index, total int) {
	n.log.Info("transcribing batch item",
		slog.String("filename", filename),
		slog.Int("index", index),
		slog.Int("total", total),
	)
}

func (n *LogNotifier) Done(processed int) {
	n.log.Info("batch transcription finished", slog.Int("processed", processed))
}
