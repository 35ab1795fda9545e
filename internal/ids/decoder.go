package ids

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sentinel-guard/internal/model"
)

const NoDetails = "无详细信息"

// Decoder turns backend threat alerts into ThreatEvents.
type Decoder struct {
	// Now supplies the fallback timestamp and generated ids. Defaults to time.Now.
	Now func() time.Time
}

var defaultDecoder = &Decoder{}

// Decode parses one stream frame.
func Decode(data []byte) (model.ThreatEvent, error) {
	return defaultDecoder.Decode(data)
}

// Adapt converts an already decoded alert.
func Adapt(alert model.ThreatAlert) model.ThreatEvent {
	return defaultDecoder.Adapt(alert)
}

// wireAlert tolerates ids and levels sent either as numbers or strings.
type wireAlert struct {
	ID          json.RawMessage `json:"id"`
	ThreatID    string          `json:"threatId"`
	ThreatLevel json.RawMessage `json:"threatLevel"`
	ImpactScope string          `json:"impactScope"`
	OccurTime   string          `json:"occurTime"`
	CreateTime  string          `json:"createTime"`
	Status      string          `json:"status"`
}

func (d *Decoder) Decode(data []byte) (model.ThreatEvent, error) {
	var w wireAlert
	if err := json.Unmarshal(data, &w); err != nil {
		return model.ThreatEvent{}, fmt.Errorf("failed to decode threat frame: %w", err)
	}

	id, hasID := rawString(w.ID)
	level, _ := strconv.Atoi(mustString(w.ThreatLevel))

	alert := model.ThreatAlert{
		ThreatID:    w.ThreatID,
		ThreatLevel: level,
		ImpactScope: w.ImpactScope,
		OccurTime:   w.OccurTime,
		CreateTime:  w.CreateTime,
		Status:      model.ThreatStatus(w.Status),
	}
	event := d.Adapt(alert)
	if w.ThreatID == "" && hasID {
		event.ID = id
	}
	return event, nil
}

func (d *Decoder) Adapt(alert model.ThreatAlert) model.ThreatEvent {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	scope := ScopeOrDefault(alert.ImpactScope)

	event := model.ThreatEvent{
		ID:        alert.ThreatID,
		Type:      scope.AttackType,
		SourceIP:  scope.SourceIP,
		TargetIP:  scope.TargetIP,
		RiskLevel: model.RiskFromLevel(alert.ThreatLevel),
		Status:    model.StatusPending,
		Details:   alert.ImpactScope,
	}

	if event.ID == "" && alert.ID != 0 {
		event.ID = strconv.Itoa(alert.ID)
	}
	if event.ID == "" {
		event.ID = fmt.Sprintf("IDS-%d", now().UnixMilli())
	}

	if alert.OccurTime != "" {
		event.Timestamp = strings.Replace(alert.OccurTime, "T", " ", 1)
	} else {
		event.Timestamp = now().Format("15:04:05")
	}

	if alert.Status != "" {
		event.Status = alert.Status
	}
	if strings.TrimSpace(event.Details) == "" {
		event.Details = NoDetails
	}
	return event
}

func rawString(raw json.RawMessage) (string, bool) {
	s := mustString(raw)
	return s, s != ""
}

func mustString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}
