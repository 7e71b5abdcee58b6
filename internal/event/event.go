package event

import "sentinelscan/pkg/models"

// Kind tags a decoded session event.
type Kind string

// The closed set of session event kinds emitted by the sentinel backend.
const (
	KindSessionStarted       Kind = "session_started"
	KindMissionLog           Kind = "mission_log"
	KindMissionComplete      Kind = "mission_complete"
	KindSessionBatchComplete Kind = "session_batch_complete"
	KindFollowupStarted      Kind = "followup_started"
	KindCorrelationStarted   Kind = "correlation_started"
	KindCorrelationComplete  Kind = "correlation_complete"
	KindNarrativeStarted     Kind = "narrative_started"
	KindNarrativeComplete    Kind = "narrative_complete"
)

// Message is one raw transport frame: an optional event name plus the JSON
// payload. When Name is empty the payload's "type" field names the kind.
type Message struct {
	Name string
	Data []byte
}

// SessionStarted announces the mission plan for a new scan.
type SessionStarted struct {
	ScanID        string                  `json:"scan_id,omitempty"`
	Missions      []models.PlanEntry      `json:"missions"`
	TotalMissions int                     `json:"total_missions"`
	Adaptive      *models.AdaptiveContext `json:"adaptive_context,omitempty"`
}

// MissionLog is one log line from an in-flight mission.
type MissionLog struct {
	MissionID   string `json:"mission_id"`
	MissionName string `json:"mission_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Severity    string `json:"severity,omitempty"`
	models.MissionLog
}

// FollowupStarted widens the session with deep-dive missions.
type FollowupStarted struct {
	Count int `json:"followup_count"`
}

// Event is exactly one decoded session event. Only the payload matching
// Kind is non-nil; kinds without payloads carry just the tag.
type Event struct {
	Kind    Kind
	EventID string

	SessionStarted  *SessionStarted
	MissionLog      *MissionLog
	MissionComplete *models.Detection
	Followup        *FollowupStarted
	Clusters        []models.ThreatCluster
	Narrative       *models.Narrative
}
