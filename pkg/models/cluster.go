package models

// SharedEntities is the evidence connecting missions inside a cluster.
type SharedEntities struct {
	UserIDs     []string `json:"user_ids,omitempty"`
	Countries   []string `json:"countries,omitempty"`
	IPAddresses []string `json:"ip_addresses,omitempty"`
}

// ThreatCluster groups correlated findings across domains.
type ThreatCluster struct {
	ClusterID         string         `json:"cluster_id"`
	ThreatName        string         `json:"threat_name"`
	Severity          string         `json:"severity"`
	ConnectedMissions []string       `json:"connected_missions,omitempty"`
	SharedEntities    SharedEntities `json:"shared_entities"`
	Narrative         string         `json:"narrative,omitempty"`
	RecommendedAction string         `json:"recommended_action,omitempty"`
}

// Clone returns a deep copy of the cluster.
func (c *ThreatCluster) Clone() ThreatCluster {
	out := *c
	out.ConnectedMissions = append([]string(nil), c.ConnectedMissions...)
	out.SharedEntities.UserIDs = append([]string(nil), c.SharedEntities.UserIDs...)
	out.SharedEntities.Countries = append([]string(nil), c.SharedEntities.Countries...)
	out.SharedEntities.IPAddresses = append([]string(nil), c.SharedEntities.IPAddresses...)
	return out
}

// ThreatVector is one named threat in the executive brief.
type ThreatVector struct {
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

// Narrative is the terminal executive synthesis of a scan.
type Narrative struct {
	Title                     string         `json:"title,omitempty"`
	OverallRisk               int            `json:"overall_risk"`
	OverallSeverity           string         `json:"overall_severity"`
	ExecutiveSummary          string         `json:"executive_summary"`
	ThreatVectors             []ThreatVector `json:"threat_vectors,omitempty"`
	ImmediateActions          []string       `json:"immediate_actions,omitempty"`
	MonitoringRecommendations []string       `json:"monitoring_recommendations,omitempty"`
}

// Clone returns a deep copy of the narrative.
func (n *Narrative) Clone() Narrative {
	out := *n
	out.ThreatVectors = append([]ThreatVector(nil), n.ThreatVectors...)
	out.ImmediateActions = append([]string(nil), n.ImmediateActions...)
	out.MonitoringRecommendations = append([]string(nil), n.MonitoringRecommendations...)
	return out
}
