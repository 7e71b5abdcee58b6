package projection

import (
	"sort"
	"strings"

	"sentinelscan/internal/event"
	"sentinelscan/pkg/models"
)

// UnassignedParent is the fallback bucket for sub-findings whose parent
// detection never arrived.
const UnassignedParent = "unassigned"

// DomainGroups partitions primary detections into display buckets. The risk
// domain is an alias of security for grouping; each detection keeps its own
// domain tag.
type DomainGroups struct {
	Security   []models.Detection
	Compliance []models.Detection
	Operations []models.Detection
}

// Groups buckets the session's primary detections by domain.
func Groups(s *models.ScanSession) DomainGroups {
	var g DomainGroups
	for i := range s.Detections {
		d := s.Detections[i]
		if !d.Primary() {
			continue
		}
		switch d.Domain {
		case models.DomainSecurity, models.DomainRisk:
			g.Security = append(g.Security, d)
		case models.DomainCompliance:
			g.Compliance = append(g.Compliance, d)
		case models.DomainOperations:
			g.Operations = append(g.Operations, d)
		}
	}
	return g
}

// Nest maps each primary mission id to its sub-findings. Orphans whose
// parent never arrived are kept under UnassignedParent, never dropped.
func Nest(s *models.ScanSession) map[string][]models.Detection {
	known := make(map[string]bool, len(s.Detections))
	for i := range s.Detections {
		known[s.Detections[i].MissionID] = true
	}

	nested := make(map[string][]models.Detection)
	for i := range s.Detections {
		d := s.Detections[i]
		if d.Primary() {
			continue
		}
		parent := d.ParentMissionID
		if parent == "" || !known[parent] {
			parent = UnassignedParent
		}
		nested[parent] = append(nested[parent], d)
	}
	return nested
}

// Counts summarizes the session. Everything is recomputed from current
// state on each call; nothing is cached incrementally.
type Counts struct {
	Critical   int
	Detections int
	Completed  int
	Total      int
}

// Count derives the session summary counters.
func Count(s *models.ScanSession) Counts {
	c := Counts{
		Detections: len(s.Detections),
		Completed:  s.Progress.Completed,
		Total:      s.Progress.Total,
	}
	for i := range s.Detections {
		if strings.EqualFold(s.Detections[i].Severity, models.SeverityCritical) {
			c.Critical++
		}
	}
	return c
}

// Feed returns log entries for display. While the session is live the raw
// arrival-ordered stream is returned as-is, since in-flight timestamps are
// not final. Once terminal, logs are flattened across all detections plus
// any entries for missions that never completed, ordered by timestamp.
func Feed(s *models.ScanSession, arrivals []event.MissionLog) []event.MissionLog {
	if !s.Phase.Terminal() {
		return arrivals
	}

	known := make(map[string]bool, len(s.Detections))
	var out []event.MissionLog
	for i := range s.Detections {
		d := s.Detections[i]
		known[d.MissionID] = true
		for _, line := range d.Logs {
			out = append(out, event.MissionLog{
				MissionID:   d.MissionID,
				MissionName: d.MissionName,
				Domain:      d.Domain,
				Severity:    d.Severity,
				MissionLog:  line,
			})
		}
	}
	for _, entry := range arrivals {
		if !known[entry.MissionID] {
			out = append(out, entry)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS < out[j].TS
	})
	return out
}
