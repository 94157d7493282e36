package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
	"github.com/zanzhit/voice_recorder/internal/lib/coord"
	"github.com/zanzhit/voice_recorder/internal/lib/sl"
)

const (
	announceLocationAcquired = "location acquired"
	announceRecordingStarted = "recording started"
	announceRecordingSaved   = "recording saved"
)

type Config struct {
	RecordingsPath  string
	Duration        time.Duration
	LocationTimeout time.Duration
	CaptureSetup    time.Duration
	AnnounceTimeout time.Duration
	GraceDelay      time.Duration
	Profile         models.CaptureProfile
	TranscriptionOn bool

	// Tick is the countdown granularity, one second unless overridden.
	Tick time.Duration
}

// Controller owns the live recording lifecycle. At most one session is
// alive at any time; the mutex-guarded current pointer is the ownership
// token, and the persisted marker mirrors it across process restarts.
type Controller struct {
	log        *slog.Logger
	locator    Locator
	announcer  Announcer
	recorder   Recorder
	entries    EntrySaver
	markers    MarkerStore
	events     EventSink
	cfg        Config
	instanceID string

	mu      sync.Mutex
	current *activeSession
}

type Locator interface {
	Current(ctx context.Context) (models.Fix, error)
	LastKnown() (models.Fix, bool)
}

// Announcer speaks one utterance and returns only once playback has
// finished or failed.
type Announcer interface {
	Say(ctx context.Context, utterance string) error
}

type Recorder interface {
	Open(ctx context.Context, path string, profile models.CaptureProfile) (Capture, error)
}

type Capture interface {
	Start() error
	Stop() error
}

type EntrySaver interface {
	Insert(entry models.RecordingEntry) (string, error)
}

type MarkerStore interface {
	Set(owner string) error
	Clear() error
}

// EventSink tells the triggering front end to dismiss itself, with an
// optional diagnostic message on failure.
type EventSink interface {
	Dismiss(message string)
}

func New(log *slog.Logger, locator Locator, announcer Announcer, recorder Recorder,
	entries EntrySaver, markers MarkerStore, events EventSink, cfg Config) *Controller {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.AnnounceTimeout <= 0 {
		cfg.AnnounceTimeout = 10 * time.Second
	}

	c := &Controller{
		log:        log,
		locator:    locator,
		announcer:  announcer,
		recorder:   recorder,
		entries:    entries,
		markers:    markers,
		events:     events,
		cfg:        cfg,
		instanceID: uuid.NewString(),
	}

	// A marker left behind by a crashed run must not wedge future
	// launches; the live session pointer is authoritative within one
	// process.
	if err := markers.Clear(); err != nil {
		log.Warn("failed to reclaim stale session marker", sl.Err(err))
	}

	return c
}

type activeSession struct {
	stateMu sync.Mutex
	state   models.SessionState

	fix      models.Fix
	filePath string

	extend chan time.Duration
	done   chan struct{}
}

func (s *activeSession) setState(state models.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() models.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return s.state
}

// requestExtension resets the pending countdown to a fresh duration. A new
// request supersedes a not-yet-applied one, last writer wins. Every branch
// is non-blocking: once the countdown has exited nobody drains the channel,
// and a caller must not hang on it.
func (s *activeSession) requestExtension(d time.Duration) {
	select {
	case s.extend <- d:
		return
	default:
	}

	// Slot taken: drop the stale request and offer ours once.
	select {
	case <-s.extend:
	default:
	}

	select {
	case s.extend <- d:
	default:
	}
}

// Launch is the only path that can create a session. With a session in
// progress it dispatches an extension request instead of starting a second
// one; with required grants missing it surfaces a diagnostic and does
// nothing further.
func (c *Controller) Launch(grants models.Grants, duration time.Duration) (models.LaunchOutcome, string, error) {
	const op = "service.session.Launch"

	log := c.log.With(slog.String("op", op))

	if duration <= 0 {
		duration = c.cfg.Duration
	}

	c.mu.Lock()
	if c.current != nil {
		current := c.current
		c.mu.Unlock()

		current.requestExtension(duration)
		log.Info("session in progress, countdown reset", slog.Duration("duration", duration))

		return models.LaunchExtended, "recording extended", nil
	}
	defer c.mu.Unlock()

	if !grants.Location || !grants.Microphone {
		log.Warn("launch denied", sl.Err(errs.ErrMissingGrants))

		return models.LaunchDenied, "microphone and location permissions are required", nil
	}

	// The marker goes down before any capture-device work begins.
	if err := c.markers.Set(c.instanceID); err != nil {
		log.Error("failed to set in-progress marker", sl.Err(err))

		return "", "", fmt.Errorf("%s: %w", op, errs.ErrWriteToDB)
	}

	s := &activeSession{
		state:  models.StateInit,
		extend: make(chan time.Duration, 1),
		done:   make(chan struct{}),
	}
	c.current = s

	go c.run(s, duration)

	log.Info("session started", slog.Duration("duration", duration))

	return models.LaunchStarted, "recording started", nil
}

// InProgress reports whether a session is currently alive.
func (c *Controller) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current != nil
}

func (c *Controller) run(s *activeSession, duration time.Duration) {
	const op = "service.session.run"

	log := c.log.With(slog.String("op", op))
	ctx := context.Background()

	s.setState(models.StateAcquiringLocation)

	locCtx, cancel := context.WithTimeout(ctx, c.cfg.LocationTimeout)
	fix, err := c.locator.Current(locCtx)
	cancel()

	if err != nil {
		last, ok := c.locator.LastKnown()
		if !ok {
			log.Error("no fresh fix and no last known fix", sl.Err(err))
			c.finish(s, models.StateLocationFailed, "could not determine location")

			return
		}

		log.Warn("fresh fix unavailable, using last known", sl.Err(err))
		fix = last
		s.setState(models.StateLocationFallback)
	} else {
		s.setState(models.StateLocationOK)
	}

	s.fix = fix

	capturedAt := time.Now()
	filename := coord.Key(fix.Latitude, fix.Longitude) + "_" + capturedAt.Format("20060102_150405") + c.cfg.Profile.Extension()
	s.filePath = filepath.Join(c.cfg.RecordingsPath, filename)

	log = log.With(slog.String("file", filename))

	s.setState(models.StatePreparingCapture)

	setupCtx, cancel := context.WithTimeout(ctx, c.cfg.CaptureSetup)
	capture, err := c.recorder.Open(setupCtx, s.filePath, c.cfg.Profile)
	cancel()

	if err != nil {
		log.Error("failed to open capture device", sl.Err(err))
		c.finish(s, models.StateCaptureFailed, "recorder is not available")

		return
	}

	// Both announcements must finish before raw capture begins so the
	// saved artifact never contains the announcement audio.
	s.setState(models.StateAnnouncing)

	c.say(ctx, log, announceLocationAcquired)
	c.say(ctx, log, announceRecordingStarted)

	if err := capture.Start(); err != nil {
		log.Error("failed to start capture", sl.Err(err))
		_ = capture.Stop()
		c.finish(s, models.StateCaptureFailed, "failed to start recording")

		return
	}

	s.setState(models.StateRecording)
	log.Info("recording")

	c.countdown(s, duration)

	s.setState(models.StateStopping)

	if err := capture.Stop(); err != nil {
		log.Error("failed to finalize capture", sl.Err(err))
		c.finish(s, models.StateCaptureFailed, "failed to finalize recording")

		return
	}

	status := models.StatusNotStarted
	if !c.cfg.TranscriptionOn {
		status = models.StatusDisabled
	}

	id, err := c.entries.Insert(models.RecordingEntry{
		Filename:            filename,
		FilePath:            s.filePath,
		Timestamp:           capturedAt.UnixMilli(),
		Latitude:            fix.Latitude,
		Longitude:           fix.Longitude,
		TranscriptionStatus: status,
	})
	if err != nil {
		log.Error("failed to persist recording entry", sl.Err(err))
		c.finish(s, models.StateTerminated, "failed to save recording")

		return
	}

	s.setState(models.StatePersisted)
	log.Info("recording persisted", slog.String("record_id", id))

	c.say(ctx, log, announceRecordingSaved)

	if c.cfg.GraceDelay > 0 {
		time.Sleep(c.cfg.GraceDelay)
	}

	c.finish(s, models.StateTerminated, "")
}

// say speaks one announcement bounded by the announce window. Playback
// failure or expiry is logged and the session moves on; a stuck speech
// synthesizer must never hold the ownership token.
func (c *Controller) say(ctx context.Context, log *slog.Logger, utterance string) {
	sayCtx, cancel := context.WithTimeout(ctx, c.cfg.AnnounceTimeout)
	defer cancel()

	if err := c.announcer.Say(sayCtx, utterance); err != nil {
		log.Warn("announcement failed", sl.Err(err))
	}
}

func (c *Controller) countdown(s *activeSession, duration time.Duration) {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	runCountdown(countdownTicks(duration, c.cfg.Tick), c.cfg.Tick, ticker.C, s.extend)
}

// runCountdown returns once the countdown reaches zero. An extension
// request resets the remaining time to the freshly supplied duration, it
// never adds to what was left.
func runCountdown(remaining int, tick time.Duration, tickC <-chan time.Time, extend <-chan time.Duration) {
	for remaining > 0 {
		select {
		case <-tickC:
			remaining--
		case d := <-extend:
			remaining = countdownTicks(d, tick)
		}
	}
}

func countdownTicks(d, tick time.Duration) int {
	n := int(d / tick)
	if n < 1 {
		n = 1
	}

	return n
}

// finish is the single terminal path for success and failure alike: it
// clears the persisted marker, drops the ownership token, and tells the
// front end to dismiss itself.
func (c *Controller) finish(s *activeSession, state models.SessionState, message string) {
	s.setState(state)

	if err := c.markers.Clear(); err != nil {
		c.log.Error("failed to clear in-progress marker", sl.Err(err))
	}

	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()

	close(s.done)
	c.events.Dismiss(message)
}
