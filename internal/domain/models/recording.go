package models

import "time"

type TranscriptionStatus string

const (
	StatusNotStarted TranscriptionStatus = "NOT_STARTED"
	StatusProcessing TranscriptionStatus = "PROCESSING"
	StatusCompleted  TranscriptionStatus = "COMPLETED"
	StatusFallback   TranscriptionStatus = "FALLBACK"
	StatusError      TranscriptionStatus = "ERROR"
	StatusDisabled   TranscriptionStatus = "DISABLED"
)

// RecordingEntry is one captured clip. The id is the only ownership key;
// identity is never re-derived from filename or coordinates.
type RecordingEntry struct {
	ID                  string              `json:"id" db:"id"`
	Filename            string              `json:"filename" db:"filename"`
	FilePath            string              `json:"-" db:"file_path"`
	Timestamp           int64               `json:"timestamp" db:"captured_at_ms"`
	Latitude            float64             `json:"latitude" db:"latitude"`
	Longitude           float64             `json:"longitude" db:"longitude"`
	TranscriptionStatus TranscriptionStatus `json:"transcription_status" db:"transcription_status"`
	TranscriptionResult *string             `json:"transcription_result,omitempty" db:"transcription_result"`
	IsFallback          bool                `json:"is_fallback" db:"is_fallback"`
	ErrorMessage        *string             `json:"error_message,omitempty" db:"error_message"`
	CreatedAt           time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" db:"updated_at"`
}

// StatusView is the presentation record for a transcription status,
// kept separate from the state machine itself.
type StatusView struct {
	Icon         string `json:"icon"`
	Label        string `json:"label"`
	IsActionable bool   `json:"is_actionable"`
}

var statusViews = map[TranscriptionStatus]StatusView{
	StatusNotStarted: {Icon: "pending", Label: "Not transcribed", IsActionable: true},
	StatusProcessing: {Icon: "sync", Label: "Transcribing", IsActionable: false},
	StatusCompleted:  {Icon: "done", Label: "Transcribed", IsActionable: true},
	StatusFallback:   {Icon: "warning", Label: "No speech recognized", IsActionable: true},
	StatusError:      {Icon: "error", Label: "Transcription failed", IsActionable: true},
	StatusDisabled:   {Icon: "off", Label: "Transcription disabled", IsActionable: false},
}

func (s TranscriptionStatus) View() StatusView {
	view, ok := statusViews[s]
	if !ok {
		return StatusView{Icon: "unknown", Label: string(s)}
	}

	return view
}
