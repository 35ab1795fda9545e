package model

import (
	"encoding/json"
	"strconv"
)

// Collection status codes used by the collection host endpoints.
const (
	CollectStopped = 0
	CollectRunning = 1
	CollectPaused  = 2
	CollectError   = 3
)

func CollectStatusName(status int) string {
	switch status {
	case CollectStopped:
		return "stopped"
	case CollectRunning:
		return "running"
	case CollectPaused:
		return "paused"
	case CollectError:
		return "error"
	default:
		return "unknown"
	}
}

type HostCollectionConfig struct {
	ID            int    `json:"id"`
	HostIP        string `json:"hostIp"`
	CollectFreq   int    `json:"collectFreq"`
	CollectStatus int    `json:"collectStatus"`
	CreateTime    string `json:"createTime,omitempty"`
}

// HostCollectionUpdate carries a partial update; nil fields are left alone.
type HostCollectionUpdate struct {
	HostIP        *string `json:"hostIp,omitempty"`
	CollectFreq   *int    `json:"collectFreq,omitempty"`
	CollectStatus *int    `json:"collectStatus,omitempty"`
}

// HostPage is the paged result of the collection host listing.
type HostPage struct {
	Total int64                  `json:"total"`
	List  []HostCollectionConfig `json:"list"`
}

// OrgInfo is the wire form of an organization.
type OrgInfo struct {
	ID              int    `json:"id"`
	OrgID           string `json:"orgId,omitempty"`
	OrgName         string `json:"orgName"`
	MemberCount     int    `json:"memberCount"`
	MaxMemberCount  int    `json:"maxMemberCount"`
	AdminPermission int    `json:"adminPermission"`
	CreateTime      string `json:"createTime,omitempty"`
}

type Organization struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	MemberCount     int    `json:"memberCount"`
	MaxMembers      int    `json:"maxMembers"`
	AdminPermission bool   `json:"adminPermission"`
	CreatedAt       string `json:"createdAt"`
}

// ToOrganization converts the wire form into the client-side view.
func (o OrgInfo) ToOrganization() Organization {
	return Organization{
		ID:              strconv.Itoa(o.ID),
		Name:            o.OrgName,
		MemberCount:     o.MemberCount,
		MaxMembers:      o.MaxMemberCount,
		AdminPermission: o.AdminPermission == 1,
		CreatedAt:       o.CreateTime,
	}
}

const (
	ProcessRunning  = "running"
	ProcessAbnormal = "abnormal"
	ProcessStopped  = "stopped"
)

type ProcessRecord struct {
	ID             int    `json:"id"`
	PID            int    `json:"processId"`
	Name           string `json:"processName"`
	Status         string `json:"processStatus"`
	AbnormalReason string `json:"abnormalReason"`
	CreateTime     string `json:"createTime,omitempty"`
}

type HostStatus struct {
	ID          int     `json:"id"`
	HostID      string  `json:"hostId"`
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryUsage float64 `json:"memoryUsage"`
	NetworkConn int     `json:"networkConn"`
	DiskUsage   float64 `json:"diskUsage"`
	DiskInfo    string  `json:"diskInfo"`
	FileStatus  string  `json:"fileStatus"`
	MonitorTime string  `json:"monitorTime"`
}

type TrafficStat struct {
	ID          int    `json:"id"`
	AttackType  string `json:"attackType"`
	SourceIP    string `json:"sourceIp"`
	TargetIP    string `json:"targetIp"`
	StatTime    string `json:"statTime"`
	AttackCount int    `json:"attackCount"`
}

type TrendPoint struct {
	Time    string `json:"time"`
	Count   int64  `json:"count"`
	Traffic int64  `json:"traffic,omitempty"`
}

// UnmarshalJSON also accepts the time_bucket key used by SQL-grouped trends.
func (p *TrendPoint) UnmarshalJSON(data []byte) error {
	type plain TrendPoint
	var aux struct {
		plain
		Bucket string `json:"time_bucket"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = TrendPoint(aux.plain)
	if p.Time == "" {
		p.Time = aux.Bucket
	}
	return nil
}

type TracingResult struct {
	ID            int    `json:"id"`
	ThreatSource  string `json:"threatSource"`
	MaliciousIP   string `json:"maliciousIp"`
	AttackCmd     string `json:"attackCmd"`
	MalwareOrigin string `json:"malwareOrigin"`
	AttackPath    string `json:"attackPath"`
	FlowChart     string `json:"flowCharm"`
	CreateTime    string `json:"createTime"`
}

type ReportHistory struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	ReportType string `json:"reportType"`
	Content    string `json:"content"`
	CreateTime string `json:"createTime"`
}

type DashboardSummary struct {
	SecurityScore     int    `json:"securityScore"`
	TotalAttacksToday int64  `json:"totalAttacksToday"`
	ActiveThreats     int64  `json:"activeThreats"`
	ProtectedAssets   int64  `json:"protectedAssets"`
	IDSStatus         string `json:"idsStatus"`
}

type UserInfo struct {
	ID       int    `json:"id,omitempty"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// TraceRequest is the payload of an AI-assisted trace question.
type TraceRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type TraceAnswer struct {
	Answer string `json:"answer"`
}

// TimeLayout is the backend's timestamp format.
const TimeLayout = "2006-01-02 15:04:05"
