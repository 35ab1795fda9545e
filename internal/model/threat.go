package model

import "strings"

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskFromLevel maps the backend's numeric threat level to a risk label.
// Levels 3 and 4 both map to High.
func RiskFromLevel(level int) RiskLevel {
	switch level {
	case 1:
		return RiskLow
	case 2:
		return RiskMedium
	case 3, 4:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Rank orders risk levels for threshold comparisons.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// ParseRiskLevel accepts Low/Medium/High in any case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	}
	return "", false
}

type ThreatStatus string

const (
	StatusPending  ThreatStatus = "Pending"
	StatusBlocked  ThreatStatus = "Blocked"
	StatusResolved ThreatStatus = "Resolved"
)

// ThreatEvent is the normalized view of a threat, whether it came from the
// live IDS stream or from the alert history endpoint.
type ThreatEvent struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	SourceIP  string       `json:"sourceIp"`
	TargetIP  string       `json:"targetIp"`
	Timestamp string       `json:"timestamp"`
	RiskLevel RiskLevel    `json:"riskLevel"`
	Status    ThreatStatus `json:"status"`
	Details   string       `json:"details"`
}

// ThreatAlert is the backend's wire form of a potential threat alert.
type ThreatAlert struct {
	ID          int          `json:"id"`
	ThreatID    string       `json:"threatId"`
	ThreatLevel int          `json:"threatLevel"`
	ImpactScope string       `json:"impactScope"`
	OccurTime   string       `json:"occurTime"`
	CreateTime  string       `json:"createTime,omitempty"`
	Status      ThreatStatus `json:"status,omitempty"`
}

// AuthMessage is the first frame a stream client sends after connecting.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

const AuthMessageType = "AUTH"
