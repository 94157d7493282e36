package session

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// EspeakAnnouncer speaks status announcements through espeak-ng. Say
// returns only when playback has completed, which is what gives the
// controller its announcements-before-capture ordering.
type EspeakAnnouncer struct {
	voice string
}

func NewEspeakAnnouncer(voice string) *EspeakAnnouncer {
	return &EspeakAnnouncer{voice: voice}
}

func (a *EspeakAnnouncer) Say(ctx context.Context, utterance string) error {
	const op = "session.espeak.Say"

	cmd := exec.CommandContext(ctx, "espeak-ng", "-v", a.voice, utterance)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LogSink is the default front-end event sink: terminal transitions are
// only visible in the structured log.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Dismiss(message string) {
	if message == "" {
		s.log.Info("session dismissed")

		return
	}

	s.log.Warn("session dismissed", slog.String("reason", message))
}
