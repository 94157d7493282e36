package waypoints

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanzhit/voice_recorder/internal/domain/models"
)

func readGPX(t *testing.T, dir string) gpxDoc {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join(dir, gpxFilename))
	require.NoError(t, err)

	var doc gpxDoc
	require.NoError(t, xml.Unmarshal(raw, &doc))

	return doc
}

func TestMergeCreatesCollections(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	err := store.Merge(37.774929, -122.419416, "Voice note", "pothole by the gate", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	doc := readGPX(t, dir)
	require.Len(t, doc.Waypoints, 1)
	assert.Equal(t, "37.774929", doc.Waypoints[0].Lat)
	assert.Equal(t, "-122.419416", doc.Waypoints[0].Lon)
	assert.Equal(t, "pothole by the gate", doc.Waypoints[0].Desc)
	assert.Equal(t, "2024-05-01T12:00:00Z", doc.Waypoints[0].Time)

	raw, err := os.ReadFile(filepath.Join(dir, csvFilename))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte(utf8BOM)), "csv must carry a BOM")
	assert.Contains(t, string(raw), "Date,Time,Coordinates,Text,Google Maps link,OSM link")
}

func TestMergeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Merge(37.774929, -122.419416, "Voice note", "same text", at))

	once, err := os.ReadFile(filepath.Join(dir, gpxFilename))
	require.NoError(t, err)

	require.NoError(t, store.Merge(37.774929, -122.419416, "Voice note", "same text", at))

	twice, err := os.ReadFile(filepath.Join(dir, gpxFilename))
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))

	doc := readGPX(t, dir)
	assert.Len(t, doc.Waypoints, 1)

	rows, err := readCSVRows(filepath.Join(dir, csvFilename))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMergeReplacesNotDuplicates(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Merge(37.774929, -122.419416, "Voice note", "A", at))
	require.NoError(t, store.Merge(48.858370, 2.294481, "Voice note", "other spot", at))
	require.NoError(t, store.Merge(37.774929, -122.419416, "Voice note", "B", at.Add(time.Hour)))

	doc := readGPX(t, dir)
	require.Len(t, doc.Waypoints, 2)
	assert.Equal(t, "B", doc.Waypoints[0].Desc, "entry must be replaced in place")
	assert.Equal(t, "other spot", doc.Waypoints[1].Desc)

	rows, err := readCSVRows(filepath.Join(dir, csvFilename))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "37.774929,-122.419416", rows[0][csvCoordinatesField])
	assert.Equal(t, "B", rows[0][3], "row order preserved, body replaced")
}

func TestMergeMatchesOnSixDecimalKey(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	at := time.Now()

	require.NoError(t, store.Merge(37.7749291, -122.4194161, "Voice note", "first", at))
	require.NoError(t, store.Merge(37.77492912, -122.41941618, "Voice note", "second", at))

	doc := readGPX(t, dir)
	require.Len(t, doc.Waypoints, 1)
	assert.Equal(t, "second", doc.Waypoints[0].Desc)
}

func TestCSVQuotingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	desc := `turn left, then "hard" right
and stop`

	require.NoError(t, store.Merge(10.5, 20.25, "Voice note", desc, time.Now()))

	rows, err := readCSVRows(filepath.Join(dir, csvFilename))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, desc, rows[0][3])
	assert.Equal(t, "10.500000,20.250000", rows[0][csvCoordinatesField])

	// the quoted text must not confuse duplicate matching on a later merge
	require.NoError(t, store.Merge(10.5, 20.25, "Voice note", "replaced", time.Now()))

	rows, err = readCSVRows(filepath.Join(dir, csvFilename))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "replaced", rows[0][3])
}

func TestMergeFailsWithoutCorruptingExisting(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	at := time.Now()

	require.NoError(t, store.Merge(1, 2, "Voice note", "keep me", at))

	before, err := os.ReadFile(filepath.Join(dir, gpxFilename))
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	err = store.Merge(3, 4, "Voice note", "new", at)
	require.Error(t, err)

	require.NoError(t, os.Chmod(dir, 0o755))

	after, err := os.ReadFile(filepath.Join(dir, gpxFilename))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestEntryCSV(t *testing.T) {
	text := "hello world"
	entry := models.RecordingEntry{
		Filename:            "37.774929,-122.419416_20240501_120000.opus",
		Latitude:            37.774929,
		Longitude:           -122.419416,
		Timestamp:           time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		TranscriptionResult: &text,
	}

	out, err := EntryCSV(entry)
	require.NoError(t, err)

	content := strings.TrimPrefix(string(out), utf8BOM)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Latitude,Longitude,Timestamp,Filename,Transcription", lines[0])
	assert.Contains(t, lines[1], "hello world")
	assert.Contains(t, lines[1], "2024-05-01T12:00:00Z")
}
