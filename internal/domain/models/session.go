package models

type SessionState string

const (
	StateInit              SessionState = "INIT"
	StateAcquiringLocation SessionState = "ACQUIRING_LOCATION"
	StateLocationOK        SessionState = "LOCATION_OK"
	StateLocationFallback  SessionState = "LOCATION_FALLBACK"
	StateLocationFailed    SessionState = "LOCATION_FAILED"
	StatePreparingCapture  SessionState = "PREPARING_CAPTURE"
	StateAnnouncing        SessionState = "ANNOUNCING"
	StateCaptureFailed     SessionState = "CAPTURE_FAILED"
	StateRecording         SessionState = "RECORDING"
	StateStopping          SessionState = "STOPPING"
	StatePersisted         SessionState = "PERSISTED"
	StateTerminated        SessionState = "TERMINATED"
)

// CaptureProfile selects the container/codec pair of the audio artifact.
type CaptureProfile string

const (
	ProfileCompact CaptureProfile = "compact"
	ProfileLegacy  CaptureProfile = "legacy"
)

// Extension returns the artifact file extension for the profile.
func (p CaptureProfile) Extension() string {
	if p == ProfileLegacy {
		return ".wav"
	}

	return ".opus"
}

// Fix is a geographic fix acquired from the location provider.
type Fix struct {
	Latitude  float64
	Longitude float64
}

// Grants are the runtime capabilities the front end reports as granted.
type Grants struct {
	Location   bool `json:"location"`
	Microphone bool `json:"microphone"`
}

type LaunchOutcome string

const (
	LaunchStarted  LaunchOutcome = "started"
	LaunchExtended LaunchOutcome = "extended"
	LaunchDenied   LaunchOutcome = "denied"
)
