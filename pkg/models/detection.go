package models

import "strings"

// Audit domains assigned by the backend brainstormer.
const (
	DomainSecurity   = "security"
	DomainRisk       = "risk"
	DomainCompliance = "compliance"
	DomainOperations = "operations"
)

// Severity levels in ascending order of urgency.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// SeverityRank orders severities; unknown values rank lowest.
func SeverityRank(severity string) int {
	switch strings.ToUpper(severity) {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 0
	default:
		return 0
	}
}

// PlanEntry is a planned mission not yet materialized as a Detection.
type PlanEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// MissionLog is one pipeline log line tagged with its emitting node.
type MissionLog struct {
	TS    float64 `json:"ts"`
	Level string  `json:"level"`
	Node  string  `json:"node"`
	Msg   string  `json:"msg"`
}

// RiskFactor is one component of the backend's factor-based risk score.
type RiskFactor struct {
	Value  interface{} `json:"value"`
	Score  int         `json:"score"`
	Detail string      `json:"detail,omitempty"`
}

// Detection is the materialized result of a completed mission.
type Detection struct {
	MissionID       string                   `json:"mission_id"`
	MissionName     string                   `json:"mission_name"`
	Domain          string                   `json:"domain"`
	Severity        string                   `json:"severity"`
	RiskScore       int                      `json:"risk_score"`
	RiskFactors     map[string]RiskFactor    `json:"risk_factors,omitempty"`
	SQL             string                   `json:"sql,omitempty"`
	DataCount       int                      `json:"data_count"`
	Results         []map[string]interface{} `json:"results,omitempty"`
	Visualization   map[string]interface{}   `json:"visualization_config,omitempty"`
	Insight         string                   `json:"insight,omitempty"`
	Recommendation  string                   `json:"recommendation,omitempty"`
	Timestamp       string                   `json:"timestamp,omitempty"`
	Depth           int                      `json:"depth,omitempty"`
	ParentMissionID string                   `json:"parent_mission_id,omitempty"`
	Rationale       string                   `json:"rationale,omitempty"`
	Error           string                   `json:"error,omitempty"`
	Logs            []MissionLog             `json:"logs,omitempty"`
}

// Primary reports whether the detection is a top-level finding.
func (d *Detection) Primary() bool {
	return d.Depth == 0
}

// Clone returns a deep copy of the detection.
func (d *Detection) Clone() Detection {
	out := *d
	if d.RiskFactors != nil {
		out.RiskFactors = make(map[string]RiskFactor, len(d.RiskFactors))
		for k, v := range d.RiskFactors {
			out.RiskFactors[k] = v
		}
	}
	if d.Results != nil {
		out.Results = make([]map[string]interface{}, len(d.Results))
		for i, row := range d.Results {
			cp := make(map[string]interface{}, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.Results[i] = cp
		}
	}
	if d.Visualization != nil {
		out.Visualization = make(map[string]interface{}, len(d.Visualization))
		for k, v := range d.Visualization {
			out.Visualization[k] = v
		}
	}
	out.Logs = append([]MissionLog(nil), d.Logs...)
	return out
}
