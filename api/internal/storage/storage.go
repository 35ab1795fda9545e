package storage

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"sentinel-guard/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrUnknownRange = errors.New("unknown trend range")

// Storage is the mock backend's in-memory database.
type Storage struct {
	mu sync.RWMutex

	orgs      []model.OrgInfo
	alerts    []model.ThreatAlert
	hosts     []model.HostCollectionConfig
	statuses  map[string]model.HostStatus
	processes []model.ProcessRecord
	traffic   []model.TrafficStat
	tracing   []model.TracingResult
	reports   []model.ReportHistory
	blocked   map[string]time.Time

	nextID    int
	maxAlerts int
	logger    *logrus.Logger
	now       func() time.Time
}

func NewStorage(logger *logrus.Logger) *Storage {
	return &Storage{
		orgs:      make([]model.OrgInfo, 0),
		alerts:    make([]model.ThreatAlert, 0),
		hosts:     make([]model.HostCollectionConfig, 0),
		statuses:  make(map[string]model.HostStatus),
		processes: make([]model.ProcessRecord, 0),
		traffic:   make([]model.TrafficStat, 0),
		tracing:   make([]model.TracingResult, 0),
		reports:   make([]model.ReportHistory, 0),
		blocked:   make(map[string]time.Time),
		maxAlerts: 10000, // Keep last 10k alerts
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the clock used for timestamps and trend buckets.
func (s *Storage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Storage) id() int {
	s.nextID++
	return s.nextID
}

func (s *Storage) stamp() string {
	return s.now().Format(model.TimeLayout)
}

// Page returns the 1-based page of items.
func Page[T any](items []T, pageNum, pageSize int) []T {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if len(items) == 0 || pageNum-1 > (len(items)-1)/pageSize {
		return []T{}
	}
	start := (pageNum - 1) * pageSize
	end := len(items)
	if pageSize < end-start {
		end = start + pageSize
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

func reversed[T any](items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}

// Organizations

func (s *Storage) ListOrgs(pageNum, pageSize int) ([]model.OrgInfo, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Page(s.orgs, pageNum, pageSize), len(s.orgs)
}

func (s *Storage) CreateOrg(org model.OrgInfo) model.OrgInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	org.ID = s.id()
	org.OrgID = uuid.NewString()
	org.CreateTime = s.stamp()
	s.orgs = append(s.orgs, org)
	return org
}

func (s *Storage) UpdateOrg(id int, update model.OrgInfo) (model.OrgInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orgs {
		if s.orgs[i].ID != id {
			continue
		}
		if update.OrgName != "" {
			s.orgs[i].OrgName = update.OrgName
		}
		if update.MaxMemberCount > 0 {
			s.orgs[i].MaxMemberCount = update.MaxMemberCount
		}
		s.orgs[i].AdminPermission = update.AdminPermission
		return s.orgs[i], true
	}
	return model.OrgInfo{}, false
}

func (s *Storage) DeleteOrg(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orgs {
		if s.orgs[i].ID == id {
			s.orgs = append(s.orgs[:i], s.orgs[i+1:]...)
			return true
		}
	}
	return false
}

// Threat alerts

// AddAlert stores an alert, filling id, threat id, timestamps and status.
func (s *Storage) AddAlert(alert model.ThreatAlert) model.ThreatAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert.ID = s.id()
	if alert.ThreatID == "" {
		alert.ThreatID = uuid.NewString()
	}
	if alert.OccurTime == "" {
		alert.OccurTime = s.stamp()
	}
	alert.CreateTime = s.stamp()
	if alert.Status == "" {
		alert.Status = model.StatusPending
	}

	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-s.maxAlerts:]
	}
	return alert
}

// ListAlerts pages alerts newest first.
func (s *Storage) ListAlerts(pageNum, pageSize int) ([]model.ThreatAlert, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Page(reversed(s.alerts), pageNum, pageSize), len(s.alerts)
}

// LatestAlerts returns up to n alerts, newest first.
func (s *Storage) LatestAlerts(n int) []model.ThreatAlert {
	alerts, _ := s.ListAlerts(1, n)
	return alerts
}

// GetAlert finds an alert by numeric id or threat id.
func (s *Storage) GetAlert(id string) (model.ThreatAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.findAlert(id); i >= 0 {
		return s.alerts[i], true
	}
	return model.ThreatAlert{}, false
}

func (s *Storage) findAlert(id string) int {
	for i := range s.alerts {
		if s.alerts[i].ThreatID == id || strconv.Itoa(s.alerts[i].ID) == id {
			return i
		}
	}
	return -1
}

func (s *Storage) SetAlertStatus(id string, status model.ThreatStatus) (model.ThreatAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findAlert(id)
	if i < 0 {
		return model.ThreatAlert{}, false
	}
	s.alerts[i].Status = status
	return s.alerts[i], true
}

// ActiveThreats counts alerts that are not resolved.
func (s *Storage) ActiveThreats() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, a := range s.alerts {
		if a.Status != model.StatusResolved {
			n++
		}
	}
	return n
}

func parseOccurTime(value string) (time.Time, bool) {
	value = strings.Replace(value, "T", " ", 1)
	if len(value) > len(model.TimeLayout) {
		value = value[:len(model.TimeLayout)]
	}
	t, err := time.ParseInLocation(model.TimeLayout, value, time.Local)
	return t, err == nil
}

// Trend buckets alert counts: hourly for 24h, daily for 7d and 30d. Empty
// buckets are included.
func (s *Storage) Trend(rangeName string) ([]model.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var (
		step    time.Duration
		buckets int
		layout  string
		start   time.Time
	)
	switch rangeName {
	case "", "24h":
		step, buckets, layout = time.Hour, 24, "2006-01-02 15:00"
		start = now.Truncate(time.Hour).Add(-23 * time.Hour)
	case "7d", "30d":
		buckets = 7
		if rangeName == "30d" {
			buckets = 30
		}
		step, layout = 24*time.Hour, "2006-01-02"
		y, m, d := now.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(buckets - 1))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRange, rangeName)
	}

	points := make([]model.TrendPoint, buckets)
	for i := range points {
		points[i].Time = start.Add(time.Duration(i) * step).Format(layout)
	}
	for _, a := range s.alerts {
		t, ok := parseOccurTime(a.OccurTime)
		if !ok || t.Before(start) || t.After(now) {
			continue
		}
		if idx := int(t.Sub(start) / step); idx >= 0 && idx < buckets {
			points[idx].Count++
		}
	}
	return points, nil
}

// AttacksToday is the sum of the 24h trend.
func (s *Storage) AttacksToday() int64 {
	points, _ := s.Trend("24h")
	var total int64
	for _, p := range points {
		total += p.Count
	}
	return total
}

// Blocked IPs

func (s *Storage) BlockIP(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[ip] = s.now()
}

func (s *Storage) IsBlocked(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocked[ip]
	return ok
}

func (s *Storage) UnblockIP(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocked[ip]; !ok {
		return false
	}
	delete(s.blocked, ip)
	return true
}

func (s *Storage) BlockedIPs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ips := make([]string, 0, len(s.blocked))
	for ip := range s.blocked {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Collection hosts

func (s *Storage) ListHosts(pageNum, pageSize int) ([]model.HostCollectionConfig, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Page(s.hosts, pageNum, pageSize), len(s.hosts)
}

func (s *Storage) CreateHost(host model.HostCollectionConfig) model.HostCollectionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	host.ID = s.id()
	host.CreateTime = s.stamp()
	s.hosts = append(s.hosts, host)
	return host
}

func (s *Storage) UpdateHost(id int, update model.HostCollectionUpdate) (model.HostCollectionConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.hosts {
		if s.hosts[i].ID != id {
			continue
		}
		if update.HostIP != nil {
			s.hosts[i].HostIP = *update.HostIP
		}
		if update.CollectFreq != nil {
			s.hosts[i].CollectFreq = *update.CollectFreq
		}
		if update.CollectStatus != nil {
			s.hosts[i].CollectStatus = *update.CollectStatus
		}
		return s.hosts[i], true
	}
	return model.HostCollectionConfig{}, false
}

func (s *Storage) DeleteHost(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.hosts {
		if s.hosts[i].ID == id {
			s.hosts = append(s.hosts[:i], s.hosts[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Storage) HostCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.hosts))
}

// Host status

func (s *Storage) PutHostStatus(status model.HostStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.statuses[status.HostID]; ok {
		status.ID = existing.ID
	} else {
		status.ID = s.id()
	}
	if status.MonitorTime == "" {
		status.MonitorTime = s.stamp()
	}
	s.statuses[status.HostID] = status
}

func (s *Storage) HostStatus(hostID string) (model.HostStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[hostID]
	return status, ok
}

func (s *Storage) ListHostStatus(pageNum, pageSize int) ([]model.HostStatus, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.HostStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		list = append(list, status)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return Page(list, pageNum, pageSize), len(list)
}

// Processes

func (s *Storage) AddProcess(proc model.ProcessRecord) model.ProcessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	proc.ID = s.id()
	proc.CreateTime = s.stamp()
	s.processes = append(s.processes, proc)
	return proc
}

func (s *Storage) ListProcesses(pageNum, pageSize int) ([]model.ProcessRecord, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Page(s.processes, pageNum, pageSize), len(s.processes)
}

// UpdateProcess applies processStatus and abnormalReason from fields.
func (s *Storage) UpdateProcess(id int, fields map[string]interface{}) (model.ProcessRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.processes {
		if s.processes[i].ID != id {
			continue
		}
		proc := s.processes[i]
		if v, ok := fields["processStatus"]; ok {
			status, _ := v.(string)
			switch status {
			case model.ProcessRunning, model.ProcessAbnormal, model.ProcessStopped:
				proc.Status = status
			default:
				return model.ProcessRecord{}, true, fmt.Errorf("invalid processStatus %v", v)
			}
		}
		if v, ok := fields["abnormalReason"]; ok {
			reason, _ := v.(string)
			proc.AbnormalReason = reason
		}
		s.processes[i] = proc
		return proc, true, nil
	}
	return model.ProcessRecord{}, false, nil
}

// Traffic statistics

// RecordTraffic counts one attack for the (type, source, target) triple.
func (s *Storage) RecordTraffic(attackType, sourceIP, targetIP string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.traffic {
		t := &s.traffic[i]
		if t.AttackType == attackType && t.SourceIP == sourceIP && t.TargetIP == targetIP {
			t.AttackCount++
			t.StatTime = s.stamp()
			return
		}
	}
	s.traffic = append(s.traffic, model.TrafficStat{
		ID:          s.id(),
		AttackType:  attackType,
		SourceIP:    sourceIP,
		TargetIP:    targetIP,
		StatTime:    s.stamp(),
		AttackCount: 1,
	})
}

func (s *Storage) ListTraffic(pageNum, pageSize int) ([]model.TrafficStat, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.TrafficStat, len(s.traffic))
	copy(list, s.traffic)
	sort.SliceStable(list, func(i, j int) bool { return list[i].AttackCount > list[j].AttackCount })
	return Page(list, pageNum, pageSize), len(list)
}

// Tracing

func (s *Storage) AddTracing(result model.TracingResult) model.TracingResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result.ID = s.id()
	if result.CreateTime == "" {
		result.CreateTime = s.stamp()
	}
	s.tracing = append(s.tracing, result)
	return result
}

func (s *Storage) ListTracing(pageNum, pageSize int) ([]model.TracingResult, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Page(reversed(s.tracing), pageNum, pageSize), len(s.tracing)
}

// Reports

func (s *Storage) AddReport(title, reportType, content string) model.ReportHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := model.ReportHistory{
		ID:         s.id(),
		Title:      title,
		ReportType: reportType,
		Content:    content,
		CreateTime: s.stamp(),
	}
	s.reports = append(s.reports, report)
	return report
}

// ListReports returns reports newest first.
func (s *Storage) ListReports() []model.ReportHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reversed(s.reports)
}

func (s *Storage) DeleteReport(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reports {
		if s.reports[i].ID == id {
			s.reports = append(s.reports[:i], s.reports[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Storage) RenameReport(id int, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reports {
		if s.reports[i].ID == id {
			s.reports[i].Title = title
			return true
		}
	}
	return false
}
