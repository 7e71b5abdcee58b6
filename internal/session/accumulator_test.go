package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sentinelscan/internal/event"
	"sentinelscan/pkg/models"
)

func startedEvent(scanID string, missions []models.PlanEntry) *event.Event {
	return &event.Event{
		Kind: event.KindSessionStarted,
		SessionStarted: &event.SessionStarted{
			ScanID:        scanID,
			Missions:      missions,
			TotalMissions: len(missions),
		},
	}
}

func logEvent(missionID, msg string, ts float64) *event.Event {
	return &event.Event{
		Kind: event.KindMissionLog,
		MissionLog: &event.MissionLog{
			MissionID:  missionID,
			MissionLog: models.MissionLog{TS: ts, Level: "info", Node: "executor", Msg: msg},
		},
	}
}

func completeEvent(d models.Detection) *event.Event {
	return &event.Event{Kind: event.KindMissionComplete, MissionComplete: &d}
}

func narrativeEvent(summary string) *event.Event {
	return &event.Event{
		Kind:      event.KindNarrativeComplete,
		Narrative: &models.Narrative{ExecutiveSummary: summary, OverallRisk: 60, OverallSeverity: models.SeverityHigh},
	}
}

func twoMissionPlan() []models.PlanEntry {
	return []models.PlanEntry{
		{ID: "m1", Name: "Failed Logins", Domain: "security"},
		{ID: "m2", Name: "Policy Drift", Domain: "compliance"},
	}
}

func TestBeginEntersBrainstorming(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	s := a.Session()
	if s.ScanID != "scan-1" || s.Phase != models.PhaseBrainstorming {
		t.Fatalf("unexpected session after begin: %+v", s)
	}
}

func TestSessionStartedInstallsPlanAndExecutes(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")

	if !a.Apply(startedEvent("scan-backend", twoMissionPlan())) {
		t.Fatalf("expected session_started to apply")
	}

	s := a.Session()
	if s.Phase != models.PhaseExecuting {
		t.Fatalf("unexpected phase: %s", s.Phase)
	}
	if s.ScanID != "scan-backend" {
		t.Fatalf("expected backend scan id to win, got %s", s.ScanID)
	}
	if len(s.MissionPlan) != 2 || s.Progress.Total != 2 || s.Progress.Completed != 0 {
		t.Fatalf("unexpected plan state: %+v", s)
	}
}

func TestReplayedSessionStartedCannotWipeState(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))
	a.Apply(completeEvent(models.Detection{MissionID: "m1", MissionName: "Failed Logins", Domain: "security", Severity: "HIGH"}))

	if a.Apply(startedEvent("scan-1", nil)) {
		t.Fatalf("expected replayed session_started to be rejected")
	}

	s := a.Session()
	if len(s.Detections) != 1 || s.Progress.Completed != 1 {
		t.Fatalf("replay wiped accumulated state: %+v", s)
	}
}

func TestMissionLogsBufferUntilDetectionArrives(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))

	a.Apply(logEvent("m1", "generating sql", 1.0))
	a.Apply(logEvent("m1", "executing", 2.0))

	if s := a.Session(); len(s.Detections) != 0 {
		t.Fatalf("logs materialized a detection early: %+v", s.Detections)
	}

	a.Apply(completeEvent(models.Detection{MissionID: "m1", MissionName: "Failed Logins", Domain: "security", Severity: "HIGH"}))

	s := a.Session()
	if len(s.Detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(s.Detections))
	}
	logs := s.Detections[0].Logs
	if len(logs) != 2 || logs[0].Msg != "generating sql" || logs[1].Msg != "executing" {
		t.Fatalf("buffered logs not attached in order: %+v", logs)
	}

	// Logs arriving after completion attach directly.
	a.Apply(logEvent("m1", "post-completion note", 3.0))
	if got := a.Session().Detections[0].Logs; len(got) != 3 || got[2].Msg != "post-completion note" {
		t.Fatalf("late log not attached: %+v", got)
	}
}

func TestPayloadLogsWinOverBufferedLogs(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))
	a.Apply(logEvent("m1", "buffered line", 1.0))

	a.Apply(completeEvent(models.Detection{
		MissionID:   "m1",
		MissionName: "Failed Logins",
		Domain:      "security",
		Severity:    "HIGH",
		Logs:        []models.MissionLog{{TS: 2.0, Msg: "authoritative line"}},
	}))

	logs := a.Session().Detections[0].Logs
	if len(logs) != 1 || logs[0].Msg != "authoritative line" {
		t.Fatalf("expected payload logs to take precedence: %+v", logs)
	}
}

func TestMissionCompleteUpsertKeepsSlicePosition(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))

	a.Apply(completeEvent(models.Detection{MissionID: "m1", MissionName: "Failed Logins", Domain: "security", Severity: "LOW", RiskScore: 20}))
	a.Apply(completeEvent(models.Detection{MissionID: "m2", MissionName: "Policy Drift", Domain: "compliance", Severity: "LOW", RiskScore: 10}))
	a.Apply(completeEvent(models.Detection{MissionID: "m1", MissionName: "Failed Logins", Domain: "security", Severity: "CRITICAL", RiskScore: 91}))

	s := a.Session()
	if len(s.Detections) != 2 {
		t.Fatalf("upsert duplicated a detection: %d", len(s.Detections))
	}
	if s.Detections[0].MissionID != "m1" || s.Detections[0].RiskScore != 91 {
		t.Fatalf("re-completion did not replace in place: %+v", s.Detections[0])
	}
	if s.Progress.Completed != 2 {
		t.Fatalf("re-completion inflated progress: %+v", s.Progress)
	}
}

func TestFollowupWidensTotal(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))

	if !a.Apply(&event.Event{Kind: event.KindFollowupStarted, Followup: &event.FollowupStarted{Count: 3}}) {
		t.Fatalf("expected followup_started to apply")
	}
	if got := a.Session().Progress.Total; got != 5 {
		t.Fatalf("expected total 5, got %d", got)
	}
}

func TestDuplicateEventIDsDropped(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))

	ev := &event.Event{Kind: event.KindFollowupStarted, EventID: "ev-1", Followup: &event.FollowupStarted{Count: 2}}
	if !a.Apply(ev) {
		t.Fatalf("expected first delivery to apply")
	}
	if a.Apply(ev) {
		t.Fatalf("expected redelivery to be dropped")
	}
	if got := a.Session().Progress.Total; got != 4 {
		t.Fatalf("duplicate widened total twice: %d", got)
	}
}

func TestCompleteWithoutNarrativeIsRejected(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))
	a.Apply(&event.Event{Kind: event.KindSessionBatchComplete})
	a.Apply(&event.Event{Kind: event.KindCorrelationStarted})
	a.Apply(&event.Event{Kind: event.KindNarrativeStarted})

	if a.Session().Phase != models.PhaseBriefing {
		t.Fatalf("unexpected phase: %s", a.Session().Phase)
	}

	// A narrative_complete with no narrative payload must not finish the scan.
	a.Apply(&event.Event{Kind: event.KindNarrativeComplete})
	if a.Session().Phase == models.PhaseComplete {
		t.Fatalf("session completed without a narrative")
	}

	a.Apply(narrativeEvent("two campaigns detected"))
	if a.Session().Phase != models.PhaseComplete {
		t.Fatalf("expected complete, got %s", a.Session().Phase)
	}
}

func TestTerminalSessionIgnoresEverything(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))
	a.Apply(narrativeEvent("done"))

	before := a.Session()
	if a.Apply(completeEvent(models.Detection{MissionID: "m9", MissionName: "Straggler", Domain: "security", Severity: "LOW"})) {
		t.Fatalf("expected terminal session to ignore events")
	}
	if diff := cmp.Diff(before, a.Session()); diff != "" {
		t.Fatalf("terminal session mutated (-before +after):\n%s", diff)
	}
}

func TestFailFreezesAccumulatedState(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))
	a.Apply(completeEvent(models.Detection{MissionID: "m1", MissionName: "Failed Logins", Domain: "security", Severity: "HIGH"}))

	a.Fail()
	s := a.Session()
	if s.Phase != models.PhaseError {
		t.Fatalf("unexpected phase: %s", s.Phase)
	}
	if len(s.Detections) != 1 {
		t.Fatalf("fail discarded accumulated detections")
	}
}

func TestFeedPreservesArrivalOrder(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Apply(startedEvent("scan-1", twoMissionPlan()))

	// Out-of-order timestamps on purpose.
	a.Apply(logEvent("m1", "first arrival", 5.0))
	a.Apply(logEvent("m2", "second arrival", 1.0))

	feed := a.Feed()
	if len(feed) != 2 || feed[0].Msg != "first arrival" || feed[1].Msg != "second arrival" {
		t.Fatalf("feed reordered arrivals: %+v", feed)
	}
}

func TestApplySnapshotReplacesProgressWholesale(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")

	a.ApplySnapshot(&event.Snapshot{
		ScanID:   "scan-1",
		Phase:    "executing",
		Progress: models.Progress{Completed: 2, Total: 6},
		Missions: twoMissionPlan(),
		Detections: []models.Detection{
			{MissionID: "m1", MissionName: "Failed Logins", Domain: "security", Severity: "HIGH", RiskScore: 70},
			{MissionID: "m2", MissionName: "Policy Drift", Domain: "compliance", Severity: "LOW", RiskScore: 15},
		},
	})

	s := a.Session()
	if s.Phase != models.PhaseExecuting {
		t.Fatalf("unexpected phase: %s", s.Phase)
	}
	if s.Progress != (models.Progress{Completed: 2, Total: 6}) {
		t.Fatalf("snapshot progress not replaced wholesale: %+v", s.Progress)
	}
	if len(s.Detections) != 2 {
		t.Fatalf("unexpected detections: %+v", s.Detections)
	}
}

func TestApplySnapshotPhaseIsForwardOnly(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.ApplySnapshot(&event.Snapshot{Phase: "correlating", Progress: models.Progress{Total: 2}})

	// A stale snapshot from an earlier phase must not move the session back.
	a.ApplySnapshot(&event.Snapshot{Phase: "executing", Progress: models.Progress{Completed: 1, Total: 2}})

	s := a.Session()
	if s.Phase != models.PhaseCorrelating {
		t.Fatalf("stale snapshot regressed the phase: %s", s.Phase)
	}
	if s.Progress.Completed != 1 {
		t.Fatalf("stale snapshot should still refresh progress: %+v", s.Progress)
	}
}

func TestApplySnapshotErrorPhaseFails(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.ApplySnapshot(&event.Snapshot{Phase: "error"})
	if a.Phase() != models.PhaseError {
		t.Fatalf("unexpected phase: %s", a.Phase())
	}
}

func TestApplySnapshotOnTerminalSessionIsIgnored(t *testing.T) {
	a := NewAccumulator(nil)
	a.Begin("scan-1")
	a.Fail()

	a.ApplySnapshot(&event.Snapshot{
		Phase:      "executing",
		Progress:   models.Progress{Completed: 1, Total: 2},
		Detections: []models.Detection{{MissionID: "m1", MissionName: "A", Domain: "security", Severity: "LOW"}},
	})

	s := a.Session()
	if s.Phase != models.PhaseError || len(s.Detections) != 0 {
		t.Fatalf("terminal session accepted snapshot: %+v", s)
	}
}
