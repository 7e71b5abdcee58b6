package history

import (
	"sort"
	"time"

	"sentinelscan/pkg/models"
)

// BuildRecord converts a terminal session into a persistable history record,
// deriving the summary stats from the accumulated detections.
func BuildRecord(s models.ScanSession, now time.Time) *models.HistoricalScan {
	return &models.HistoricalScan{
		ScanID:     s.ScanID,
		Timestamp:  now.UTC().Format(time.RFC3339),
		Stats:      buildStats(s.Detections, s.Narrative),
		Detections: s.Detections,
		Clusters:   s.Clusters,
		Narrative:  s.Narrative,
	}
}

// buildStats summarizes detections: severity counts, and overall risk as the
// mean of the top three risk scores unless the narrative already carries an
// authoritative overall risk.
func buildStats(detections []models.Detection, narrative *models.Narrative) models.ScanStats {
	stats := models.ScanStats{TotalMissions: len(detections)}

	scores := make([]int, 0, len(detections))
	for i := range detections {
		switch detections[i].Severity {
		case models.SeverityCritical:
			stats.CriticalCount++
		case models.SeverityHigh:
			stats.HighCount++
		}
		scores = append(scores, detections[i].RiskScore)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	if len(scores) > 3 {
		scores = scores[:3]
	}
	if len(scores) > 0 {
		sum := 0
		for _, v := range scores {
			sum += v
		}
		stats.OverallRisk = (sum + len(scores)/2) / len(scores)
	}
	if narrative != nil && narrative.OverallRisk > 0 {
		stats.OverallRisk = narrative.OverallRisk
	}

	switch {
	case stats.CriticalCount > 0:
		stats.OverallSeverity = models.SeverityCritical
	case stats.HighCount > 0:
		stats.OverallSeverity = models.SeverityHigh
	default:
		stats.OverallSeverity = models.SeverityLow
	}
	return stats
}
