package session

import (
	"sync"

	"sentinelscan/internal/event"
	"sentinelscan/internal/logger"
	"sentinelscan/internal/metrics"
	"sentinelscan/pkg/models"
)

// Accumulator is the single reducer both transports funnel through. It owns
// the live ScanSession and applies decoded events in receipt order; the only
// cross-event buffering is log buffering by mission id.
type Accumulator struct {
	mu      sync.Mutex
	session models.ScanSession
	machine Machine

	index     map[string]int                // mission id -> detections slice position
	completed map[string]bool               // mission ids counted in progress.completed
	buffered  map[string][]models.MissionLog // logs awaiting their detection
	seen      map[string]bool               // event ids already applied
	feed      []event.MissionLog            // arrival-ordered live feed

	metrics *metrics.Metrics
}

// NewAccumulator creates an empty accumulator. Metrics may be nil.
func NewAccumulator(m *metrics.Metrics) *Accumulator {
	a := &Accumulator{metrics: m}
	a.reset("")
	return a
}

func (a *Accumulator) reset(scanID string) {
	a.session = models.ScanSession{ScanID: scanID, Phase: models.PhaseIdle}
	a.machine = NewMachine()
	a.index = make(map[string]int)
	a.completed = make(map[string]bool)
	a.buffered = make(map[string][]models.MissionLog)
	a.seen = make(map[string]bool)
	a.feed = nil
}

// Begin resets all state for a new scan and enters the brainstorming phase.
func (a *Accumulator) Begin(scanID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset(scanID)
	a.advance(models.PhaseBrainstorming)
}

// Fail freezes the session in the error phase; accumulated state remains.
func (a *Accumulator) Fail() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.machine.Fail()
	a.session.Phase = a.machine.Phase()
}

// Phase returns the current phase.
func (a *Accumulator) Phase() models.Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.Phase()
}

// Session returns a deep copy of the current session.
func (a *Accumulator) Session() models.ScanSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Clone()
}

// Feed returns a copy of the arrival-ordered live feed.
func (a *Accumulator) Feed() []event.MissionLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]event.MissionLog(nil), a.feed...)
}

// Apply folds one decoded event into the session and reports whether state
// changed. Terminal sessions ignore everything; re-delivered event ids are
// dropped before any effect.
func (a *Accumulator) Apply(ev *event.Event) bool {
	if ev == nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.machine.Phase().Terminal() {
		logger.Warnf("Ignoring %s event on terminal session %s", ev.Kind, a.session.ScanID)
		return false
	}
	if ev.EventID != "" {
		if a.seen[ev.EventID] {
			logger.Debugf("Dropping duplicate event %s (%s)", ev.EventID, ev.Kind)
			a.metrics.IncDuplicatesDropped()
			return false
		}
		a.seen[ev.EventID] = true
	}

	switch ev.Kind {
	case event.KindSessionStarted:
		return a.applySessionStarted(ev.SessionStarted)
	case event.KindMissionLog:
		return a.applyMissionLog(ev.MissionLog)
	case event.KindMissionComplete:
		return a.applyMissionComplete(ev.MissionComplete)
	case event.KindSessionBatchComplete:
		return a.advance(models.PhaseAnalyzing)
	case event.KindFollowupStarted:
		a.session.Progress.Total += ev.Followup.Count
		return true
	case event.KindCorrelationStarted:
		return a.advance(models.PhaseCorrelating)
	case event.KindCorrelationComplete:
		a.session.Clusters = ev.Clusters
		return true
	case event.KindNarrativeStarted:
		return a.advance(models.PhaseBriefing)
	case event.KindNarrativeComplete:
		a.session.Narrative = ev.Narrative
		a.advance(models.PhaseComplete)
		return true
	}
	return false
}

func (a *Accumulator) applySessionStarted(payload *event.SessionStarted) bool {
	if !a.advance(models.PhaseExecuting) {
		// A replayed session_started mid-scan must not wipe accumulated state.
		return false
	}
	if payload.ScanID != "" {
		a.session.ScanID = payload.ScanID
	}
	a.session.MissionPlan = payload.Missions
	a.session.Progress = models.Progress{Total: payload.TotalMissions}
	a.session.Detections = nil
	a.session.Clusters = nil
	a.session.Narrative = nil
	a.session.Adaptive = payload.Adaptive
	a.index = make(map[string]int)
	a.completed = make(map[string]bool)
	a.buffered = make(map[string][]models.MissionLog)
	return true
}

func (a *Accumulator) applyMissionLog(payload *event.MissionLog) bool {
	a.feed = append(a.feed, *payload)
	if idx, ok := a.index[payload.MissionID]; ok {
		a.session.Detections[idx].Logs = append(a.session.Detections[idx].Logs, payload.MissionLog)
		return true
	}
	a.buffered[payload.MissionID] = append(a.buffered[payload.MissionID], payload.MissionLog)
	return true
}

func (a *Accumulator) applyMissionComplete(det *models.Detection) bool {
	d := det.Clone()
	if pending := a.buffered[d.MissionID]; len(pending) > 0 {
		if len(d.Logs) == 0 {
			d.Logs = pending
		}
		delete(a.buffered, d.MissionID)
	}

	if idx, ok := a.index[d.MissionID]; ok {
		a.session.Detections[idx] = d
	} else {
		a.index[d.MissionID] = len(a.session.Detections)
		a.session.Detections = append(a.session.Detections, d)
	}

	if !a.completed[d.MissionID] {
		a.completed[d.MissionID] = true
		a.session.Progress.Completed++
	}
	return true
}

// advance drives the phase machine and mirrors the result onto the session.
// Completing without a narrative is rejected to keep a malformed or replayed
// stream from faking a finished scan.
func (a *Accumulator) advance(target models.Phase) bool {
	if target == models.PhaseComplete && a.session.Narrative == nil {
		logger.Warnf("Rejecting transition to complete: no narrative accumulated")
		a.metrics.IncTransitionsRejected()
		return false
	}
	ok := a.machine.Advance(target)
	if ok {
		a.session.Phase = a.machine.Phase()
	} else if target != a.machine.Phase() {
		a.metrics.IncTransitionsRejected()
	}
	return ok
}

// ApplySnapshot folds a cumulative poll snapshot into the session. Detections,
// clusters, and the narrative funnel through Apply's upsert rules; progress is
// replaced wholesale since the snapshot is authoritative, not incremental.
func (a *Accumulator) ApplySnapshot(snap *event.Snapshot) {
	if snap == nil {
		return
	}

	if a.Phase().Terminal() {
		return
	}

	if snap.Missions != nil && a.Phase().Rank() < models.PhaseExecuting.Rank() {
		a.Apply(&event.Event{
			Kind: event.KindSessionStarted,
			SessionStarted: &event.SessionStarted{
				ScanID:        snap.ScanID,
				Missions:      snap.Missions,
				TotalMissions: snap.Progress.Total,
				Adaptive:      snap.Adaptive,
			},
		})
	}

	for i := range snap.Detections {
		a.Apply(&event.Event{Kind: event.KindMissionComplete, MissionComplete: &snap.Detections[i]})
	}
	if snap.Clusters != nil {
		clusters := *snap.Clusters
		if clusters == nil {
			clusters = []models.ThreatCluster{}
		}
		a.Apply(&event.Event{Kind: event.KindCorrelationComplete, Clusters: clusters})
	}
	if snap.Narrative != nil {
		a.Apply(&event.Event{Kind: event.KindNarrativeComplete, Narrative: snap.Narrative})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if snap.Adaptive != nil {
		a.session.Adaptive = snap.Adaptive
	}
	if snap.Progress.Total > 0 || snap.Progress.Completed > 0 {
		a.session.Progress = snap.Progress
	}
	if target, ok := models.ParsePhase(snap.Phase); ok {
		if target == models.PhaseError {
			a.machine.Fail()
			a.session.Phase = a.machine.Phase()
		} else {
			a.advance(target)
		}
	}
}
