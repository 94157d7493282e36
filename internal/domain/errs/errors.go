package errs

import "errors"

var (
	ErrUserType           = errors.New("wrong user type")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrLocationUnavailable = errors.New("no location fix available")
	ErrCaptureDevice       = errors.New("capture device error")
	ErrCaptureBusy         = errors.New("capture device is busy")
	ErrCaptureUnsupported  = errors.New("capture profile is not supported")

	ErrTranscriptionTimeout = errors.New("transcription timed out")
	ErrTranscriptionRemote  = errors.New("transcription service error")
	ErrMergeWrite           = errors.New("failed to write waypoint collection")

	ErrEntryNotFound   = errors.New("recording entry not found")
	ErrMissingGrants   = errors.New("required capability grants are missing")
	ErrNoAudioFile     = errors.New("audio file is missing or not readable")
	ErrAlreadyInFlight = errors.New("transcription is already in progress")

	ErrWriteToDB = errors.New("failed to write to database")
)
