package models

// Phase is the macro-stage of a scan session.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseBrainstorming Phase = "brainstorming"
	PhaseExecuting     Phase = "executing"
	PhaseAnalyzing     Phase = "analyzing"
	PhaseCorrelating   Phase = "correlating"
	PhaseBriefing      Phase = "briefing"
	PhaseComplete      Phase = "complete"
	PhaseError         Phase = "error"
)

var phaseRanks = map[Phase]int{
	PhaseIdle:          0,
	PhaseBrainstorming: 1,
	PhaseExecuting:     2,
	PhaseAnalyzing:     3,
	PhaseCorrelating:   4,
	PhaseBriefing:      5,
	PhaseComplete:      6,
}

// Rank returns the ordering position of the phase, or -1 for error/unknown.
func (p Phase) Rank() int {
	if r, ok := phaseRanks[p]; ok {
		return r
	}
	return -1
}

// Terminal reports whether no further mutation is expected in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// ParsePhase maps a wire phase string onto the known set.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(s)
	if _, ok := phaseRanks[p]; ok {
		return p, true
	}
	if p == PhaseError {
		return p, true
	}
	return "", false
}

// Progress tracks completed versus total missions for a session.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// AdaptiveContext is the backend's scan intelligence, surfaced read-only.
type AdaptiveContext struct {
	DomainWeights map[string]int `json:"domain_weights,omitempty"`
	AvoidQueries  []string       `json:"avoid_queries,omitempty"`
	FocusAreas    []string       `json:"focus_areas,omitempty"`
	ScanCount     int            `json:"scan_count"`
}

// ScanSession is the root aggregate for one end-to-end scan.
type ScanSession struct {
	ScanID      string           `json:"scan_id"`
	Phase       Phase            `json:"phase"`
	Progress    Progress         `json:"progress"`
	MissionPlan []PlanEntry      `json:"mission_plan,omitempty"`
	Detections  []Detection      `json:"detections"`
	Clusters    []ThreatCluster  `json:"clusters,omitempty"`
	Narrative   *Narrative       `json:"narrative,omitempty"`
	Adaptive    *AdaptiveContext `json:"adaptive_context,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (s *ScanSession) Clone() ScanSession {
	out := *s
	if s.MissionPlan != nil {
		out.MissionPlan = append([]PlanEntry(nil), s.MissionPlan...)
	}
	if s.Detections != nil {
		out.Detections = make([]Detection, len(s.Detections))
		for i := range s.Detections {
			out.Detections[i] = s.Detections[i].Clone()
		}
	}
	if s.Clusters != nil {
		out.Clusters = make([]ThreatCluster, len(s.Clusters))
		for i := range s.Clusters {
			out.Clusters[i] = s.Clusters[i].Clone()
		}
	}
	if s.Narrative != nil {
		n := s.Narrative.Clone()
		out.Narrative = &n
	}
	if s.Adaptive != nil {
		a := *s.Adaptive
		if s.Adaptive.DomainWeights != nil {
			a.DomainWeights = make(map[string]int, len(s.Adaptive.DomainWeights))
			for k, v := range s.Adaptive.DomainWeights {
				a.DomainWeights[k] = v
			}
		}
		a.AvoidQueries = append([]string(nil), s.Adaptive.AvoidQueries...)
		a.FocusAreas = append([]string(nil), s.Adaptive.FocusAreas...)
		out.Adaptive = &a
	}
	return out
}
