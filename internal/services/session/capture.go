package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
)

// GstRecorder captures microphone audio through a gst-launch pipeline.
// When a hands-free device is configured and present it is preferred,
// otherwise the default source is used silently.
type GstRecorder struct {
	handsFreeDevice string
}

func NewGstRecorder(handsFreeDevice string) *GstRecorder {
	return &GstRecorder{handsFreeDevice: handsFreeDevice}
}

func (r *GstRecorder) Open(ctx context.Context, path string, profile models.CaptureProfile) (Capture, error) {
	const op = "session.gst.Open"

	device := ""
	if r.handsFreeDevice != "" && sourcePresent(ctx, r.handsFreeDevice) {
		device = r.handsFreeDevice
	}

	args, err := pipeline(device, path, profile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: device setup window exceeded", op, errs.ErrCaptureDevice)
	}

	return &gstCapture{cmd: exec.Command(args[0], args[1:]...)}, nil
}

// sourcePresent asks the sound server whether the device exists, bounded
// by the caller's setup window.
func sourcePresent(ctx context.Context, device string) bool {
	out, err := exec.CommandContext(ctx, "pactl", "list", "short", "sources").Output()
	if err != nil {
		return false
	}

	return bytes.Contains(out, []byte(device))
}

func pipeline(device, path string, profile models.CaptureProfile) ([]string, error) {
	src := "pulsesrc"
	if device != "" {
		src = fmt.Sprintf("pulsesrc device=%s", device)
	}

	var parametres string
	switch profile {
	case models.ProfileCompact:
		parametres = fmt.Sprintf("gst-launch-1.0 -e -q %s ! audioconvert ! audioresample ! opusenc ! oggmux ! filesink location=%s",
			src, path)
	case models.ProfileLegacy:
		parametres = fmt.Sprintf("gst-launch-1.0 -e -q %s ! audioconvert ! audioresample ! audio/x-raw,rate=16000,channels=1 ! wavenc ! filesink location=%s",
			src, path)
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrCaptureUnsupported, profile)
	}

	return strings.Split(parametres, " "), nil
}

type gstCapture struct {
	cmd *exec.Cmd
}

func (g *gstCapture) Start() error {
	const op = "session.gst.Start"

	if err := g.cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s: %w: gst-launch-1.0 is not installed", op, errs.ErrCaptureUnsupported)
		}

		return fmt.Errorf("%s: %w: %w", op, errs.ErrCaptureDevice, err)
	}

	return nil
}

// Stop sends EOS through SIGINT so the muxer finalizes the artifact, then
// waits for the pipeline to drain before giving up and killing it.
func (g *gstCapture) Stop() error {
	const op = "session.gst.Stop"

	if g.cmd.Process == nil {
		return nil
	}

	if err := g.cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = g.cmd.Process.Kill()

		return fmt.Errorf("%s: %w: %w", op, errs.ErrCaptureDevice, err)
	}

	done := make(chan error, 1)
	go func() { done <- g.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		_ = g.cmd.Process.Kill()

		return fmt.Errorf("%s: %w: pipeline did not drain", op, errs.ErrCaptureDevice)
	}
}
