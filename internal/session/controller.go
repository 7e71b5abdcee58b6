package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinelscan/internal/event"
	"sentinelscan/internal/logger"
	"sentinelscan/internal/metrics"
	"sentinelscan/pkg/models"
)

// EventSource is a push-stream transport delivering discrete typed events.
type EventSource interface {
	Next(ctx context.Context) (event.Message, error)
	Close() error
}

// SnapshotSource is a polling transport delivering a cumulative snapshot.
type SnapshotSource interface {
	Fetch(ctx context.Context) (*event.Snapshot, error)
	Close() error
}

// Alerter receives completed detections for out-of-band notification.
type Alerter interface {
	Notify(det models.Detection)
}

// HistoryReader loads persisted terminal scans for replay.
type HistoryReader interface {
	GetScan(ctx context.Context, scanID string) (*models.HistoricalScan, error)
}

// Config wires a Controller. Exactly one of OpenStream/OpenPoll selects the
// live transport; stream is preferred when both are set.
type Config struct {
	OpenStream   func(ctx context.Context) (EventSource, error)
	OpenPoll     func(ctx context.Context) (SnapshotSource, error)
	PollInterval time.Duration
	History      HistoryReader
	Alerter      Alerter
	Metrics      *metrics.Metrics
}

// Controller owns the single active scan session and its transport. All
// event application happens on one goroutine; readers get copies.
type Controller struct {
	mu         sync.Mutex
	cfg        Config
	acc        *Accumulator
	cancel     context.CancelFunc
	done       chan struct{}
	historical *models.ScanSession
}

// NewController creates a controller with an empty session.
func NewController(cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Controller{
		cfg: cfg,
		acc: NewAccumulator(cfg.Metrics),
	}
}

// StartScan tears down any running transport, resets state, and opens a new
// live session. It is rejected while a historical session is installed.
func (c *Controller) StartScan(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.historical != nil {
		return fmt.Errorf("historical session %s is installed; return to live mode first", c.historical.ScanID)
	}
	c.teardownLocked()

	scanID := "scan-" + time.Now().UTC().Format("20060102T150405")
	c.acc.Begin(scanID)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	switch {
	case c.cfg.OpenStream != nil:
		src, err := c.cfg.OpenStream(runCtx)
		if err != nil {
			cancel()
			c.acc.Fail()
			return fmt.Errorf("open event stream: %w", err)
		}
		c.cancel = cancel
		c.done = done
		go c.runStream(runCtx, src, done)
	case c.cfg.OpenPoll != nil:
		src, err := c.cfg.OpenPoll(runCtx)
		if err != nil {
			cancel()
			c.acc.Fail()
			return fmt.Errorf("open poll transport: %w", err)
		}
		c.cancel = cancel
		c.done = done
		go c.runPoll(runCtx, src, done)
	default:
		cancel()
		return fmt.Errorf("no transport configured")
	}

	logger.Infof("Scan %s started", scanID)
	return nil
}

// CancelScan closes the transport and freezes state as-is. Safe to call from
// a terminal phase; repeated calls are no-ops.
func (c *Controller) CancelScan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.acc.Fail()
}

// LoadHistorical installs a persisted terminal scan for read-only browsing.
// Any live session is torn down first.
func (c *Controller) LoadHistorical(ctx context.Context, scanID string) error {
	if c.cfg.History == nil {
		return fmt.Errorf("no history store configured")
	}
	scan, err := c.cfg.History.GetScan(ctx, scanID)
	if err != nil {
		return fmt.Errorf("load scan %s: %w", scanID, err)
	}
	if scan == nil {
		return fmt.Errorf("scan %s not found", scanID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	session := scan.Session()
	c.historical = &session
	logger.Infof("Historical scan %s installed (read-only)", scanID)
	return nil
}

// ReturnToLive drops the historical session and re-enables StartScan.
func (c *Controller) ReturnToLive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historical = nil
}

// Historical reports whether a read-only historical session is installed.
func (c *Controller) Historical() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historical != nil
}

// Snapshot returns a copy of the current session: the historical one when
// installed, otherwise the live accumulated state.
func (c *Controller) Snapshot() models.ScanSession {
	c.mu.Lock()
	if c.historical != nil {
		s := c.historical.Clone()
		c.mu.Unlock()
		return s
	}
	c.mu.Unlock()
	return c.acc.Session()
}

// Feed returns the arrival-ordered live feed entries.
func (c *Controller) Feed() []event.MissionLog {
	return c.acc.Feed()
}

// Done returns a channel closed when the current live session's transport
// loop has finished. With no session running it is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

// teardownLocked cancels the transport loop and waits for it to exit. The
// loop never takes c.mu, so waiting under the lock cannot deadlock.
func (c *Controller) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.done != nil {
		<-c.done
		c.done = nil
	}
}

// runStream drives the push-stream pipeline: transport bytes -> decoder ->
// accumulator. A connection error is fatal to the session.
func (c *Controller) runStream(ctx context.Context, src EventSource, done chan struct{}) {
	defer close(done)
	defer src.Close()

	for {
		msg, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Event stream failed: %v", err)
			c.cfg.Metrics.IncStreamFailures()
			c.acc.Fail()
			return
		}

		ev := event.Decode(msg)
		if ev == nil {
			c.cfg.Metrics.IncEventsDiscarded()
			continue
		}
		c.cfg.Metrics.IncEventsDecoded()

		applied := c.acc.Apply(ev)
		c.afterApply(ev, applied)

		if c.acc.Phase().Terminal() {
			return
		}
	}
}

// runPoll fetches the cumulative snapshot on a fixed interval. A failed
// request is transient: logged, counted, and retried on the next tick.
func (c *Controller) runPoll(ctx context.Context, src SnapshotSource, done chan struct{}) {
	defer close(done)
	defer src.Close()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		snap, err := src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnf("Poll request failed (will retry): %v", err)
			c.cfg.Metrics.IncPollFailures()
		} else if snap != nil {
			c.acc.ApplySnapshot(snap)
			c.publishProgress()
			if c.acc.Phase().Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) afterApply(ev *event.Event, applied bool) {
	if !applied {
		return
	}
	c.publishProgress()
	if ev.Kind == event.KindMissionComplete && c.cfg.Alerter != nil {
		c.cfg.Alerter.Notify(*ev.MissionComplete)
	}
}

func (c *Controller) publishProgress() {
	s := c.acc.Session()
	c.cfg.Metrics.SetProgress(s.Progress.Completed, s.Progress.Total)
}
