package models

// ScanStats summarizes a terminal scan for listings and briefs.
type ScanStats struct {
	TotalMissions   int    `json:"total_missions"`
	CriticalCount   int    `json:"critical_count"`
	HighCount       int    `json:"high_count"`
	OverallRisk     int    `json:"overall_risk"`
	OverallSeverity string `json:"overall_severity"`
}

// ScanSummary is one index entry in the scan history listing.
type ScanSummary struct {
	ScanID    string `json:"scan_id"`
	Timestamp string `json:"timestamp"`
	ScanStats
}

// HistoricalScan is a persisted terminal session, consumed read-only.
type HistoricalScan struct {
	ScanID     string          `json:"scan_id"`
	Timestamp  string          `json:"timestamp"`
	Stats      ScanStats       `json:"stats"`
	Detections []Detection     `json:"detections"`
	Clusters   []ThreatCluster `json:"clusters,omitempty"`
	Narrative  *Narrative      `json:"narrative,omitempty"`
}

// Session converts the historical record into a terminal ScanSession.
func (h *HistoricalScan) Session() ScanSession {
	s := ScanSession{
		ScanID:     h.ScanID,
		Phase:      PhaseComplete,
		Progress:   Progress{Completed: len(h.Detections), Total: len(h.Detections)},
		Detections: h.Detections,
		Clusters:   h.Clusters,
		Narrative:  h.Narrative,
	}
	return s.Clone()
}
