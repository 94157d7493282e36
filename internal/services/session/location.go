package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
)

// GpsdLocator reads fixes from a gpsd daemon. Every successful fresh fix
// is cached as the last-known fallback.
type GpsdLocator struct {
	addr string

	mu   sync.Mutex
	last *models.Fix
}

func NewGpsdLocator(addr string) *GpsdLocator {
	return &GpsdLocator{addr: addr}
}

const gpsdWatch = `?WATCH={"enable":true,"json":true}` + "\n"

type gpsdReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Current blocks until gpsd reports a 2D-or-better fix or the context
// deadline passes.
func (l *GpsdLocator) Current(ctx context.Context) (models.Fix, error) {
	const op = "session.gpsd.Current"

	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", l.addr)
	if err != nil {
		return models.Fix{}, fmt.Errorf("%s: %w: %w", op, errs.ErrLocationUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(gpsdWatch)); err != nil {
		return models.Fix{}, fmt.Errorf("%s: %w: %w", op, errs.ErrLocationUnavailable, err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report gpsdReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}

		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}

		fix := models.Fix{Latitude: report.Lat, Longitude: report.Lon}

		l.mu.Lock()
		l.last = &fix
		l.mu.Unlock()

		return fix, nil
	}

	if err := scanner.Err(); err != nil {
		return models.Fix{}, fmt.Errorf("%s: %w: %w", op, errs.ErrLocationUnavailable, err)
	}

	return models.Fix{}, fmt.Errorf("%s: %w: gpsd closed the stream", op, errs.ErrLocationUnavailable)
}

func (l *GpsdLocator) LastKnown() (models.Fix, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last == nil {
		return models.Fix{}, false
	}

	return *l.last, true
}
