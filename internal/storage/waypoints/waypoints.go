package waypoints

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
	"github.com/zanzhit/voice_recorder/internal/lib/coord"
)

const (
	gpxFilename = "waypoints.gpx"
	csvFilename = "notes.csv"

	xmlHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"
	utf8BOM   = "\xEF\xBB\xBF"
)

var csvHeader = []string{"Date", "Time", "Coordinates", "Text", "Google Maps link", "OSM link"}

// csvCoordinatesField is the column matched against the coordinate key
// when looking for a row to replace.
const csvCoordinatesField = 2

// Store upserts coordinate-keyed entries into the GPX waypoint collection
// and the CSV export. Both are plain read-modify-write files; calls on one
// Store are serialized by a mutex, but nothing protects against another
// process writing the same files, and the last writer wins there.
type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

type gpxDoc struct {
	XMLName   xml.Name   `xml:"gpx"`
	Version   string     `xml:"version,attr"`
	Creator   string     `xml:"creator,attr"`
	Namespace string     `xml:"xmlns,attr"`
	Waypoints []waypoint `xml:"wpt"`
}

type waypoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Time string `xml:"time"`
	Name string `xml:"name"`
	Desc string `xml:"desc"`
}

// Merge upserts one entry into both collections. The entry with a matching
// 6-decimal coordinate key is replaced in place, otherwise a new entry is
// appended. Content is fully rendered before anything is written, so a
// failed merge leaves the existing files untouched.
func (s *Store) Merge(lat, lng float64, name, desc string, at time.Time) error {
	const op = "storage.waypoints.Merge"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mergeGPX(lat, lng, name, desc, at); err != nil {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrMergeWrite, err)
	}

	if err := s.mergeCSV(lat, lng, desc, at); err != nil {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrMergeWrite, err)
	}

	return nil
}

func (s *Store) mergeGPX(lat, lng float64, name, desc string, at time.Time) error {
	path := filepath.Join(s.dir, gpxFilename)
	latStr, lngStr := coord.Format(lat, lng)

	doc := gpxDoc{
		Version:   "1.1",
		Creator:   "voice_recorder",
		Namespace: "http://www.topografix.com/GPX/1/1",
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", gpxFilename, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return err
	}

	entry := waypoint{
		Lat:  latStr,
		Lon:  lngStr,
		Time: at.UTC().Format(time.RFC3339),
		Name: name,
		Desc: desc,
	}

	replaced := false
	for i := range doc.Waypoints {
		if doc.Waypoints[i].Lat == latStr && doc.Waypoints[i].Lon == lngStr {
			doc.Waypoints[i] = entry
			replaced = true

			break
		}
	}

	if !replaced {
		doc.Waypoints = append(doc.Waypoints, entry)
	}

	rendered, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.Write(rendered)
	buf.WriteByte('\n')

	return writeAtomic(path, buf.Bytes())
}

func (s *Store) mergeCSV(lat, lng float64, desc string, at time.Time) error {
	path := filepath.Join(s.dir, csvFilename)
	key := coord.Key(lat, lng)

	rows, err := readCSVRows(path)
	if err != nil {
		return err
	}

	latStr, lngStr := coord.Format(lat, lng)
	row := []string{
		at.Format("2006-01-02"),
		at.Format("15:04:05"),
		key,
		desc,
		"https://maps.google.com/?q=" + latStr + "," + lngStr,
		"https://www.openstreetmap.org/?mlat=" + latStr + "&mlon=" + lngStr,
	}

	replaced := false
	for i := range rows {
		if len(rows[i]) > csvCoordinatesField && rows[i][csvCoordinatesField] == key {
			rows[i] = row
			replaced = true

			break
		}
	}

	if !replaced {
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}

	return writeAtomic(path, buf.Bytes())
}

// readCSVRows returns the data rows of the export file, header excluded,
// parsed with full RFC-4180 quoting so descriptions containing the
// delimiter never split a row.
func readCSVRows(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw = bytes.TrimPrefix(raw, []byte(utf8BOM))

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false

			continue
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// EntryCSV renders the per-recording export document.
func EntryCSV(entry models.RecordingEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	text := ""
	if entry.TranscriptionResult != nil {
		text = *entry.TranscriptionResult
	}

	w := csv.NewWriter(&buf)
	records := [][]string{
		{"Latitude", "Longitude", "Timestamp", "Filename", "Transcription"},
		{
			strconv.FormatFloat(entry.Latitude, 'f', -1, 64),
			strconv.FormatFloat(entry.Longitude, 'f', -1, 64),
			time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC3339),
			entry.Filename,
			text,
		},
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".merge-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}
