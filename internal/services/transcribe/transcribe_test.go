package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
)

type fakeStore struct {
	entries map[string]models.RecordingEntry
	history []models.TranscriptionStatus
	updated []models.RecordingEntry
}

func newFakeStore(entries ...models.RecordingEntry) *fakeStore {
	s := &fakeStore{entries: make(map[string]models.RecordingEntry)}
	for _, e := range entries {
		s.entries[e.ID] = e
	}

	return s
}

func (s *fakeStore) ByID(id string) (models.RecordingEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return models.RecordingEntry{}, errs.ErrEntryNotFound
	}

	return entry, nil
}

func (s *fakeStore) All() ([]models.RecordingEntry, error) {
	var all []models.RecordingEntry
	for _, e := range s.entries {
		all = append(all, e)
	}

	return all, nil
}

func (s *fakeStore) Update(entry models.RecordingEntry) error {
	if _, ok := s.entries[entry.ID]; !ok {
		return nil
	}

	s.entries[entry.ID] = entry
	s.history = append(s.history, entry.TranscriptionStatus)
	s.updated = append(s.updated, entry)

	return nil
}

type fakeRecognizer struct {
	text    string
	err     error
	inCalls int
}

func (r *fakeRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	r.inCalls++

	return r.text, r.err
}

type mergeCall struct {
	lat, lng float64
	name     string
	desc     string
}

type fakeMerger struct {
	calls []mergeCall
	err   error
}

func (m *fakeMerger) Merge(lat, lng float64, name, desc string, at time.Time) error {
	m.calls = append(m.calls, mergeCall{lat: lat, lng: lng, name: name, desc: desc})

	return m.err
}

type progressEvent struct {
	filename     string
	index, total int
}

type fakeNotifier struct {
	progress []progressEvent
	done     []int
}

func (n *fakeNotifier) Progress(filename string, index, total int) {
	n.progress = append(n.progress, progressEvent{filename: filename, index: index, total: total})
}

func (n *fakeNotifier) Done(processed int) {
	n.done = append(n.done, processed)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEntry(t *testing.T, id string, status models.TranscriptionStatus) models.RecordingEntry {
	t.Helper()

	path := filepath.Join(t.TempDir(), id+".opus")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o600))

	return models.RecordingEntry{
		ID:                  id,
		Filename:            filepath.Base(path),
		FilePath:            path,
		Timestamp:           time.Now().UnixMilli(),
		Latitude:            37.774929,
		Longitude:           -122.419416,
		TranscriptionStatus: status,
	}
}

func newService(store *fakeStore, rec *fakeRecognizer, merger *fakeMerger, notifier *fakeNotifier) *Service {
	return New(discardLogger(), store, rec, merger, notifier, "Voice note", true)
}

func TestProcessSuccessPersistsCompletedThenMerges(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusNotStarted)
	store := newFakeStore(entry)
	merger := &fakeMerger{}

	svc := newService(store, &fakeRecognizer{text: "buy milk at the corner shop"}, merger, &fakeNotifier{})

	require.NoError(t, svc.Process(context.Background(), "e1"))

	assert.Equal(t, []models.TranscriptionStatus{models.StatusProcessing, models.StatusCompleted}, store.history,
		"PROCESSING must be persisted before the remote call")

	got := store.entries["e1"]
	require.NotNil(t, got.TranscriptionResult)
	assert.Equal(t, "buy milk at the corner shop", *got.TranscriptionResult)
	assert.False(t, got.IsFallback)
	assert.Nil(t, got.ErrorMessage)

	require.Len(t, merger.calls, 1)
	assert.Equal(t, "buy milk at the corner shop", merger.calls[0].desc)
	assert.Equal(t, "Voice note", merger.calls[0].name)
}

func TestProcessBlankTextPersistsFallbackPlaceholder(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusNotStarted)
	store := newFakeStore(entry)
	merger := &fakeMerger{}

	svc := newService(store, &fakeRecognizer{text: "   "}, merger, &fakeNotifier{})

	require.NoError(t, svc.Process(context.Background(), "e1"))

	got := store.entries["e1"]
	assert.Equal(t, models.StatusFallback, got.TranscriptionStatus)
	assert.True(t, got.IsFallback)
	require.NotNil(t, got.TranscriptionResult)
	assert.Equal(t, "37.774929,-122.419416 (no text)", *got.TranscriptionResult)

	require.Len(t, merger.calls, 1)
	assert.Equal(t, *got.TranscriptionResult, merger.calls[0].desc,
		"persisted record and export description must agree verbatim")
}

func TestProcessFailurePersistsErrorWithoutMerge(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusNotStarted)
	store := newFakeStore(entry)
	merger := &fakeMerger{}

	remoteErr := fmt.Errorf("%w: speech service said no", errs.ErrTranscriptionRemote)
	svc := newService(store, &fakeRecognizer{err: remoteErr}, merger, &fakeNotifier{})

	require.NoError(t, svc.Process(context.Background(), "e1"))

	got := store.entries["e1"]
	assert.Equal(t, models.StatusError, got.TranscriptionStatus)
	assert.Nil(t, got.TranscriptionResult)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "speech service said no")
	assert.Empty(t, merger.calls, "no waypoint merge on failure")
}

func TestProcessMissingArtifactPersistsError(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusNotStarted)
	entry.FilePath = filepath.Join(t.TempDir(), "gone.opus")
	store := newFakeStore(entry)
	rec := &fakeRecognizer{text: "never called"}

	svc := newService(store, rec, &fakeMerger{}, &fakeNotifier{})

	require.NoError(t, svc.Process(context.Background(), "e1"))

	got := store.entries["e1"]
	assert.Equal(t, models.StatusError, got.TranscriptionStatus)
	assert.Zero(t, rec.inCalls, "remote call must not happen without a readable artifact")
}

func TestMergeFailureDoesNotRevertCompleted(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusNotStarted)
	store := newFakeStore(entry)
	merger := &fakeMerger{err: errs.ErrMergeWrite}

	svc := newService(store, &fakeRecognizer{text: "hello"}, merger, &fakeNotifier{})

	require.NoError(t, svc.Process(context.Background(), "e1"))

	got := store.entries["e1"]
	assert.Equal(t, models.StatusCompleted, got.TranscriptionStatus)
	assert.Nil(t, got.ErrorMessage)
}

func TestRetryFromErrorClearsErrorMessage(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusError)
	msg := "old failure"
	entry.ErrorMessage = &msg
	store := newFakeStore(entry)

	svc := newService(store, &fakeRecognizer{text: "second try"}, &fakeMerger{}, &fakeNotifier{})

	require.NoError(t, svc.Retry(context.Background(), "e1"))

	require.GreaterOrEqual(t, len(store.updated), 1)
	processing := store.updated[0]
	assert.Equal(t, models.StatusProcessing, processing.TranscriptionStatus)
	assert.Nil(t, processing.ErrorMessage, "errorMessage must be cleared when retry begins")
}

func TestRetryFromCompletedKeepsResultUntilOverwritten(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusCompleted)
	prior := "the old text"
	entry.TranscriptionResult = &prior
	store := newFakeStore(entry)

	svc := newService(store, &fakeRecognizer{text: "the new text"}, &fakeMerger{}, &fakeNotifier{})

	require.NoError(t, svc.Retry(context.Background(), "e1"))

	processing := store.updated[0]
	assert.Equal(t, models.StatusProcessing, processing.TranscriptionStatus)
	require.NotNil(t, processing.TranscriptionResult)
	assert.Equal(t, "the old text", *processing.TranscriptionResult,
		"prior result stays readable until the next outcome")

	final := store.entries["e1"]
	require.NotNil(t, final.TranscriptionResult)
	assert.Equal(t, "the new text", *final.TranscriptionResult)
}

func TestProcessSkipsProcessingEntry(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusProcessing)
	store := newFakeStore(entry)
	rec := &fakeRecognizer{text: "nope"}

	svc := newService(store, rec, &fakeMerger{}, &fakeNotifier{})

	err := svc.Process(context.Background(), "e1")
	require.ErrorIs(t, err, errs.ErrAlreadyInFlight)
	assert.Zero(t, rec.inCalls)
}

func TestProcessSkipsDisabledEntry(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusDisabled)
	store := newFakeStore(entry)
	rec := &fakeRecognizer{text: "nope"}

	svc := newService(store, rec, &fakeMerger{}, &fakeNotifier{})

	require.NoError(t, svc.Process(context.Background(), "e1"))
	assert.Zero(t, rec.inCalls)
	assert.Empty(t, store.history, "DISABLED never auto-transitions")
}

func TestProcessUnknownEntry(t *testing.T) {
	svc := newService(newFakeStore(), &fakeRecognizer{}, &fakeMerger{}, &fakeNotifier{})

	err := svc.Process(context.Background(), "missing")
	require.ErrorIs(t, err, errs.ErrEntryNotFound)
}

func TestProcessAllIsSequentialAndReportsProgress(t *testing.T) {
	e1 := testEntry(t, "e1", models.StatusNotStarted)
	e2 := testEntry(t, "e2", models.StatusError)
	e3 := testEntry(t, "e3", models.StatusCompleted)
	e4 := testEntry(t, "e4", models.StatusDisabled)
	store := newFakeStore(e1, e2, e3, e4)
	notifier := &fakeNotifier{}
	rec := &fakeRecognizer{text: "hello"}

	svc := newService(store, rec, &fakeMerger{}, notifier)

	require.NoError(t, svc.ProcessAll(context.Background()))

	assert.Equal(t, 2, rec.inCalls, "only NOT_STARTED and ERROR entries are eligible")
	require.Len(t, notifier.progress, 2)
	assert.Equal(t, 1, notifier.progress[0].index)
	assert.Equal(t, 2, notifier.progress[0].total)
	assert.Equal(t, 2, notifier.progress[1].index)
	assert.Equal(t, []int{2}, notifier.done)

	// every eligible entry's outcome is persisted
	assert.Equal(t, models.StatusCompleted, store.entries["e1"].TranscriptionStatus)
	assert.Equal(t, models.StatusCompleted, store.entries["e2"].TranscriptionStatus)
	assert.Equal(t, models.StatusCompleted, store.entries["e3"].TranscriptionStatus)
	assert.Equal(t, models.StatusDisabled, store.entries["e4"].TranscriptionStatus)
}

func TestProcessAllStopsOnCancelledContext(t *testing.T) {
	e1 := testEntry(t, "e1", models.StatusNotStarted)
	store := newFakeStore(e1)
	rec := &fakeRecognizer{text: "hello"}

	svc := newService(store, rec, &fakeMerger{}, &fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.ProcessAll(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, rec.inCalls)
}

func TestDisabledServiceLeavesEntriesUntouched(t *testing.T) {
	entry := testEntry(t, "e1", models.StatusNotStarted)
	store := newFakeStore(entry)
	rec := &fakeRecognizer{}

	svc := New(discardLogger(), store, rec, &fakeMerger{}, &fakeNotifier{}, "Voice note", false)

	require.NoError(t, svc.Process(context.Background(), "e1"))
	assert.Zero(t, rec.inCalls)
	assert.Equal(t, models.StatusNotStarted, store.entries["e1"].TranscriptionStatus)
}
