package event

import (
	"encoding/json"

	"sentinelscan/internal/logger"
	"sentinelscan/pkg/models"
)

// Decode converts one raw transport message into zero or one typed event.
// Unknown kinds, malformed JSON, and payloads missing a required field all
// yield nil; nothing raises past the decoder boundary.
func Decode(msg Message) *Event {
	var envelope struct {
		Type    string `json:"type"`
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		logger.Warnf("Discarding malformed event payload: %v", err)
		return nil
	}

	name := msg.Name
	if name == "" {
		name = envelope.Type
	}

	ev := &Event{Kind: Kind(name), EventID: envelope.EventID}

	switch ev.Kind {
	case KindSessionStarted:
		var payload SessionStarted
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warnf("Discarding malformed session_started: %v", err)
			return nil
		}
		if payload.Missions == nil {
			logger.Warnf("Discarding session_started without mission list")
			return nil
		}
		if payload.TotalMissions <= 0 {
			payload.TotalMissions = len(payload.Missions)
		}
		ev.SessionStarted = &payload

	case KindMissionLog:
		var payload MissionLog
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warnf("Discarding malformed mission_log: %v", err)
			return nil
		}
		if payload.MissionID == "" || payload.Msg == "" {
			return nil
		}
		ev.MissionLog = &payload

	case KindMissionComplete:
		var payload models.Detection
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warnf("Discarding malformed mission_complete: %v", err)
			return nil
		}
		if payload.MissionID == "" || payload.MissionName == "" {
			logger.Warnf("Discarding mission_complete without mission identity")
			return nil
		}
		ev.MissionComplete = &payload

	case KindFollowupStarted:
		var payload FollowupStarted
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warnf("Discarding malformed followup_started: %v", err)
			return nil
		}
		if payload.Count <= 0 {
			return nil
		}
		ev.Followup = &payload

	case KindCorrelationComplete:
		var payload struct {
			Clusters *[]models.ThreatCluster `json:"clusters"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warnf("Discarding malformed correlation_complete: %v", err)
			return nil
		}
		if payload.Clusters == nil {
			return nil
		}
		ev.Clusters = *payload.Clusters
		if ev.Clusters == nil {
			ev.Clusters = []models.ThreatCluster{}
		}

	case KindNarrativeComplete:
		var payload models.Narrative
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warnf("Discarding malformed narrative_complete: %v", err)
			return nil
		}
		if payload.ExecutiveSummary == "" {
			logger.Warnf("Discarding narrative_complete without summary")
			return nil
		}
		ev.Narrative = &payload

	case KindSessionBatchComplete, KindCorrelationStarted, KindNarrativeStarted:
		// No payload beyond the tag.

	default:
		logger.Debugf("Ignoring unknown event kind %q", name)
		return nil
	}

	return ev
}

// Snapshot is the cumulative poll response: every field replaces the
// corresponding session slice wholesale, never as a delta.
type Snapshot struct {
	Status     string                  `json:"status,omitempty"`
	ScanID     string                  `json:"scan_id,omitempty"`
	Phase      string                  `json:"phase"`
	Progress   models.Progress         `json:"progress"`
	Missions   []models.PlanEntry      `json:"missions,omitempty"`
	Detections []models.Detection      `json:"detections,omitempty"`
	Clusters   *[]models.ThreatCluster `json:"clusters,omitempty"`
	Narrative  *models.Narrative       `json:"narrative,omitempty"`
	Adaptive   *models.AdaptiveContext `json:"adaptive_context,omitempty"`
}

// DecodeSnapshot parses a cumulative poll payload.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
