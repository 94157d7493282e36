package recordinghandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
	"github.com/zanzhit/voice_recorder/internal/http-server/handlers"
	"github.com/zanzhit/voice_recorder/internal/lib/api/response"
	"github.com/zanzhit/voice_recorder/internal/lib/sl"
	"github.com/zanzhit/voice_recorder/internal/storage/waypoints"
)

type RecordingHandler struct {
	log         *slog.Logger
	launcher    Launcher
	entries     EntryProvider
	transcriber Transcriber
}

type Launcher interface {
	Launch(grants models.Grants, duration time.Duration) (models.LaunchOutcome, string, error)
}

type EntryProvider interface {
	ByID(id string) (models.RecordingEntry, error)
	All() ([]models.RecordingEntry, error)
	Delete(id string) error
}

type Transcriber interface {
	Process(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) error
	ProcessAll(ctx context.Context) error
}

func New(log *slog.Logger, launcher Launcher, entries EntryProvider, transcriber Transcriber) *RecordingHandler {
	return &RecordingHandler{
		log:         log,
		launcher:    launcher,
		entries:     entries,
		transcriber: transcriber,
	}
}

type LaunchRequest struct {
	Grants          models.Grants `json:"grants"`
	DurationSeconds int           `json:"duration_seconds" validate:"omitempty,min=1,max=3600"`
}

type LaunchResponse struct {
	Outcome models.LaunchOutcome `json:"outcome"`
	Message string               `json:"message,omitempty"`
}

type TranscribeRequest struct {
	RecordID string `json:"record_id" validate:"omitempty,uuid"`
}

type EntryView struct {
	ID                  string                     `json:"id"`
	Filename            string                     `json:"filename"`
	Timestamp           int64                      `json:"timestamp"`
	Latitude            float64                    `json:"latitude"`
	Longitude           float64                    `json:"longitude"`
	TranscriptionStatus models.TranscriptionStatus `json:"transcription_status"`
	TranscriptionResult *string                    `json:"transcription_result,omitempty"`
	IsFallback          bool                       `json:"is_fallback"`
	ErrorMessage        *string                    `json:"error_message,omitempty"`
	Status              models.StatusView          `json:"status"`
}

func (h *RecordingHandler) Launch(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recordings.Launch"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req LaunchRequest
	err := render.DecodeJSON(r.Body, &req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			log.Error("request body is empty")

			handlers.Error(w, r, http.StatusBadRequest, response.Error("empty request", ""))

			return
		}

		log.Error("failed to decode request body", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to decode request", middleware.GetReqID(r.Context())))

		return
	}

	log.Info("request body decoded", slog.Any("request", req))

	if err := validator.New().Struct(req); err != nil {
		validateErr := err.(validator.ValidationErrors)

		log.Error("invalid request", sl.Err(err))

		handlers.Error(w, r, http.StatusBadRequest, response.ValidationError(validateErr))

		return
	}

	outcome, message, err := h.launcher.Launch(req.Grants, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		log.Error("failed to launch session", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to start recording", middleware.GetReqID(r.Context())))

		return
	}

	if outcome == models.LaunchDenied {
		render.Status(r, http.StatusForbidden)
	}

	render.JSON(w, r, LaunchResponse{Outcome: outcome, Message: message})
}

func (h *RecordingHandler) Recordings(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recordings.Recordings"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	entries, err := h.entries.All()
	if err != nil {
		log.Error("failed to list recordings", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to list recordings", middleware.GetReqID(r.Context())))

		return
	}

	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, entryView(entry))
	}

	render.JSON(w, r, views)
}

func (h *RecordingHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recordings.Transcribe"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req TranscribeRequest
	err := render.DecodeJSON(r.Body, &req)
	if err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request body", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to decode request", middleware.GetReqID(r.Context())))

		return
	}

	if err := validator.New().Struct(req); err != nil {
		validateErr := err.(validator.ValidationErrors)

		log.Error("invalid request", sl.Err(err))

		handlers.Error(w, r, http.StatusBadRequest, response.ValidationError(validateErr))

		return
	}

	if req.RecordID != "" {
		if err := h.transcriber.Process(r.Context(), req.RecordID); err != nil {
			h.transcriptionError(w, r, log, err)

			return
		}

		w.WriteHeader(http.StatusOK)

		return
	}

	// The batch run outlives the request; progress goes to the notifier.
	go func() {
		if err := h.transcriber.ProcessAll(context.Background()); err != nil {
			log.Error("batch transcription failed", sl.Err(err))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (h *RecordingHandler) Retry(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recordings.Retry"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if id == "" {
		handlers.Error(w, r, http.StatusBadRequest, response.Error("missing recording id", ""))

		return
	}

	if err := h.transcriber.Retry(r.Context(), id); err != nil {
		h.transcriptionError(w, r, log, err)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *RecordingHandler) Export(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recordings.Export"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")

	entry, err := h.entries.ByID(id)
	if err != nil {
		if errors.Is(err, errs.ErrEntryNotFound) {
			handlers.Error(w, r, http.StatusNotFound, response.Error("recording not found", ""))

			return
		}

		log.Error("failed to get recording", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to get recording", middleware.GetReqID(r.Context())))

		return
	}

	data, err := waypoints.EntryCSV(entry)
	if err != nil {
		log.Error("failed to build export", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to build export", middleware.GetReqID(r.Context())))

		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Filename+".csv"))
	_, _ = w.Write(data)
}

func (h *RecordingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recordings.Delete"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")

	entry, err := h.entries.ByID(id)
	if err != nil {
		if errors.Is(err, errs.ErrEntryNotFound) {
			handlers.Error(w, r, http.StatusNotFound, response.Error("recording not found", ""))

			return
		}

		log.Error("failed to get recording", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to get recording", middleware.GetReqID(r.Context())))

		return
	}

	if err := h.entries.Delete(id); err != nil {
		log.Error("failed to delete recording", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to delete recording", middleware.GetReqID(r.Context())))

		return
	}

	// The entry is gone either way; a leftover artifact only wastes disk.
	if err := os.Remove(entry.FilePath); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove audio artifact", sl.Err(err))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordingHandler) transcriptionError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, errs.ErrEntryNotFound):
		handlers.Error(w, r, http.StatusNotFound, response.Error("recording not found", ""))
	case errors.Is(err, errs.ErrAlreadyInFlight):
		handlers.Error(w, r, http.StatusConflict, response.Error("recording is already being transcribed", ""))
	default:
		log.Error("transcription failed", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, response.Error("failed to transcribe recording", middleware.GetReqID(r.Context())))
	}
}

func entryView(entry models.RecordingEntry) EntryView {
	return EntryView{
		ID:                  entry.ID,
		Filename:            entry.Filename,
		Timestamp:           entry.Timestamp,
		Latitude:            entry.Latitude,
		Longitude:           entry.Longitude,
		TranscriptionStatus: entry.TranscriptionStatus,
		TranscriptionResult: entry.TranscriptionResult,
		IsFallback:          entry.IsFallback,
		ErrorMessage:        entry.ErrorMessage,
		Status:              entry.TranscriptionStatus.View(),
	}
}
