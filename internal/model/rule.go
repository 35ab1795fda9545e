package model

import "time"

type Rule struct {
	Name        string                 `yaml:"name" json:"name"`
	Enabled     bool                   `yaml:"enabled" json:"enabled"`
	Severity    string                 `yaml:"severity" json:"severity"`
	Description string                 `yaml:"description" json:"description"`
	Thresholds  map[string]interface{} `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	Keywords    []string               `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

type Alert struct {
	Type      string       `json:"type"`
	Severity  string       `json:"severity"`
	SourceIP  string       `json:"source_ip,omitempty"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	Event     *ThreatEvent `json:"event,omitempty"`
}

// StreamStats summarizes what the watcher has seen on the stream.
type StreamStats struct {
	TotalEvents    int64
	DecodeFailures int64
	Reconnects     int64
	ByRisk         map[RiskLevel]int64
	LastEvent      time.Time
}
