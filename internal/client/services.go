package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"
)

func pageQuery(pageNum, pageSize int) url.Values {
	q := url.Values{}
	q.Set("pageNum", strconv.Itoa(pageNum))
	q.Set("pageSize", strconv.Itoa(pageSize))
	return q
}

// Auth

type loginResponse struct {
	Token string `json:"token"`
	Data  *struct {
		Token string          `json:"token"`
		User  *model.UserInfo `json:"user"`
	} `json:"data"`
}

// Login exchanges credentials for a token and stores it in the session.
// The token is accepted either at the top level or under data.
func (c *APIClient) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	raw, status, err := c.send(ctx, http.MethodPost, "/auth/login", nil, body)
	if err != nil {
		return "", err
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	token := lr.Token
	user := &model.UserInfo{Username: username}
	if lr.Data != nil {
		if token == "" {
			token = lr.Data.Token
		}
		if lr.Data.User != nil {
			user = lr.Data.User
		}
	}
	if token == "" {
		if _, err := unwrap(status, raw); err != nil {
			return "", fmt.Errorf("login failed: %w", err)
		}
		return "", fmt.Errorf("login failed: no token in response")
	}

	if err := c.session.Set(token, user); err != nil {
		return token, fmt.Errorf("failed to persist session: %w", err)
	}
	if c.logger != nil {
		c.logger.Infof("Logged in as %s", user.Username)
	}
	return token, nil
}

// Logout only clears local state; the backend keeps no session.
func (c *APIClient) Logout() error {
	return c.session.Invalidate()
}

// Organizations

type OrgInput struct {
	Name            string
	MaxMembers      int
	AdminPermission bool
}

func (in OrgInput) wire() map[string]interface{} {
	perm := 0
	if in.AdminPermission {
		perm = 1
	}
	return map[string]interface{}{
		"orgName":         in.Name,
		"maxMemberCount":  in.MaxMembers,
		"adminPermission": perm,
	}
}

func (c *APIClient) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	data, err := c.do(ctx, http.MethodGet, "/org/info", pageQuery(1, 100), nil)
	if err != nil {
		return nil, err
	}
	infos, _, err := decodeList[model.OrgInfo](data)
	if err != nil {
		return nil, err
	}
	orgs := make([]model.Organization, 0, len(infos))
	for _, info := range infos {
		orgs = append(orgs, info.ToOrganization())
	}
	return orgs, nil
}

func (c *APIClient) CreateOrganization(ctx context.Context, in OrgInput) (model.Organization, error) {
	return c.saveOrganization(ctx, http.MethodPost, "/org/info", in)
}

func (c *APIClient) UpdateOrganization(ctx context.Context, id string, in OrgInput) (model.Organization, error) {
	return c.saveOrganization(ctx, http.MethodPut, "/org/info/"+url.PathEscape(id), in)
}

func (c *APIClient) saveOrganization(ctx context.Context, method, path string, in OrgInput) (model.Organization, error) {
	data, err := c.do(ctx, method, path, nil, in.wire())
	if err != nil {
		return model.Organization{}, err
	}
	var info model.OrgInfo
	if err := decodeInto(data, &info); err != nil {
		return model.Organization{}, err
	}
	return info.ToOrganization(), nil
}

func (c *APIClient) DeleteOrganization(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/org/info/"+url.PathEscape(id), nil, nil)
	return err
}

// Threats

func (c *APIClient) BlockThreat(ctx context.Context, threatID string) error {
	return c.threatAction(ctx, threatID, "block")
}

func (c *APIClient) UnblockThreat(ctx context.Context, threatID string) error {
	return c.threatAction(ctx, threatID, "unblock")
}

func (c *APIClient) ResolveThreat(ctx context.Context, threatID string) error {
	return c.threatAction(ctx, threatID, "resolve")
}

func (c *APIClient) threatAction(ctx context.Context, threatID, action string) error {
	_, err := c.do(ctx, http.MethodPost, "/threats/"+url.PathEscape(threatID)+"/"+action, nil, nil)
	return err
}

func (c *APIClient) BlockedIPs(ctx context.Context) ([]string, error) {
	data, err := c.do(ctx, http.MethodGet, "/threats/blocked-ips", nil, nil)
	if err != nil {
		return nil, err
	}
	ips, _, err := decodeList[string](data)
	return ips, err
}

func (c *APIClient) ManualBlock(ctx context.Context, ip string) error {
	_, err := c.do(ctx, http.MethodPost, "/threats/manual-block", url.Values{"ip": {ip}}, nil)
	return err
}

func (c *APIClient) ManualUnblock(ctx context.Context, ip string) error {
	_, err := c.do(ctx, http.MethodPost, "/threats/manual-unblock", url.Values{"ip": {ip}}, nil)
	return err
}

// ThreatHistory fetches recent alerts and adapts them the same way the
// live stream does.
func (c *APIClient) ThreatHistory(ctx context.Context, pageNum, pageSize int) ([]model.ThreatEvent, error) {
	data, err := c.do(ctx, http.MethodGet, "/analysis/alert", pageQuery(pageNum, pageSize), nil)
	if err != nil {
		return nil, err
	}
	alerts, _, err := decodeList[json.RawMessage](data)
	if err != nil {
		return nil, err
	}
	events := make([]model.ThreatEvent, 0, len(alerts))
	for _, raw := range alerts {
		event, err := ids.Decode(raw)
		if err != nil {
			if c.logger != nil {
				c.logger.Debugf("Skipping undecodable alert: %v", err)
			}
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// TraceThreat asks the backend's AI tracer a question.
func (c *APIClient) TraceThreat(ctx context.Context, question string, topK int) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/analysis/ai-trace", nil, model.TraceRequest{Question: question, TopK: topK})
	if err != nil {
		return "", err
	}
	var answer model.TraceAnswer
	if err := json.Unmarshal(data, &answer); err == nil && answer.Answer != "" {
		return answer.Answer, nil
	}
	var text string
	if err := decodeInto(data, &text); err != nil {
		return "", err
	}
	return text, nil
}

// Collection hosts

func (c *APIClient) ListHosts(ctx context.Context, pageNum, pageSize int) (model.HostPage, error) {
	data, err := c.do(ctx, http.MethodGet, "/collection/host", pageQuery(pageNum, pageSize), nil)
	if err != nil {
		return model.HostPage{}, err
	}
	hosts, total, err := decodeList[model.HostCollectionConfig](data)
	if err != nil {
		return model.HostPage{}, err
	}
	return model.HostPage{Total: total, List: hosts}, nil
}

// CreateHost returns the id assigned by the backend.
func (c *APIClient) CreateHost(ctx context.Context, host model.HostCollectionConfig) (int, error) {
	body := map[string]interface{}{
		"hostIp":        host.HostIP,
		"collectFreq":   host.CollectFreq,
		"collectStatus": host.CollectStatus,
	}
	data, err := c.do(ctx, http.MethodPost, "/collection/host", nil, body)
	if err != nil {
		return 0, err
	}
	var id int
	if err := decodeInto(data, &id); err != nil {
		var created model.HostCollectionConfig
		if err2 := decodeInto(data, &created); err2 != nil {
			return 0, err
		}
		id = created.ID
	}
	return id, nil
}

func (c *APIClient) UpdateHost(ctx context.Context, id int, update model.HostCollectionUpdate) error {
	_, err := c.do(ctx, http.MethodPut, "/collection/host/"+strconv.Itoa(id), nil, update)
	return err
}

// ToggleHost flips a host between running and paused.
func (c *APIClient) ToggleHost(ctx context.Context, host model.HostCollectionConfig) (int, error) {
	next := model.CollectRunning
	if host.CollectStatus == model.CollectRunning {
		next = model.CollectPaused
	}
	if err := c.UpdateHost(ctx, host.ID, model.HostCollectionUpdate{CollectStatus: &next}); err != nil {
		return host.CollectStatus, err
	}
	return next, nil
}

func (c *APIClient) DeleteHost(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, "/collection/host/"+strconv.Itoa(id), nil, nil)
	return err
}

// Dashboard and analysis

func (c *APIClient) DashboardSummary(ctx context.Context) (model.DashboardSummary, error) {
	var summary model.DashboardSummary
	data, err := c.do(ctx, http.MethodGet, "/dashboard/summary", nil, nil)
	if err != nil {
		return summary, err
	}
	err = decodeInto(data, &summary)
	return summary, err
}

func (c *APIClient) Traffic(ctx context.Context, pageNum, pageSize int) ([]model.TrafficStat, error) {
	data, err := c.do(ctx, http.MethodGet, "/analysis/traffic", pageQuery(pageNum, pageSize), nil)
	if err != nil {
		return nil, err
	}
	stats, _, err := decodeList[model.TrafficStat](data)
	return stats, err
}

// Trend accepts "24h", "7d" or "30d".
func (c *APIClient) Trend(ctx context.Context, rangeName string) ([]model.TrendPoint, error) {
	if rangeName == "" {
		rangeName = "24h"
	}
	data, err := c.do(ctx, http.MethodGet, "/analysis/trend", url.Values{"range": {rangeName}}, nil)
	if err != nil {
		return nil, err
	}
	points, _, err := decodeList[model.TrendPoint](data)
	return points, err
}

func (c *APIClient) TracingResults(ctx context.Context, pageNum, pageSize int) ([]model.TracingResult, error) {
	data, err := c.do(ctx, http.MethodGet, "/tracing/result", pageQuery(pageNum, pageSize), nil)
	if err != nil {
		return nil, err
	}
	results, _, err := decodeList[model.TracingResult](data)
	return results, err
}

// Monitoring

func (c *APIClient) HostMonitorList(ctx context.Context, pageNum, pageSize int) ([]model.HostStatus, error) {
	data, err := c.do(ctx, http.MethodGet, "/host/monitor", pageQuery(pageNum, pageSize), nil)
	if err != nil {
		return nil, err
	}
	statuses, _, err := decodeList[model.HostStatus](data)
	return statuses, err
}

func (c *APIClient) HostStatus(ctx context.Context, hostID string) (model.HostStatus, error) {
	var status model.HostStatus
	data, err := c.do(ctx, http.MethodGet, "/host/monitor/realtime/"+url.PathEscape(hostID), nil, nil)
	if err != nil {
		return status, err
	}
	err = decodeInto(data, &status)
	return status, err
}

func (c *APIClient) Processes(ctx context.Context, pageNum, pageSize int) ([]model.ProcessRecord, error) {
	data, err := c.do(ctx, http.MethodGet, "/process/monitor", pageQuery(pageNum, pageSize), nil)
	if err != nil {
		return nil, err
	}
	procs, _, err := decodeList[model.ProcessRecord](data)
	return procs, err
}

func (c *APIClient) UpdateProcess(ctx context.Context, id int, fields map[string]interface{}) error {
	_, err := c.do(ctx, http.MethodPut, "/process/monitor/"+strconv.Itoa(id), nil, fields)
	return err
}

func (c *APIClient) KillProcess(ctx context.Context, id int) error {
	return c.UpdateProcess(ctx, id, map[string]interface{}{"processStatus": model.ProcessStopped})
}

// TrustProcess marks the process as running and clears its abnormal reason.
func (c *APIClient) TrustProcess(ctx context.Context, id int) error {
	return c.UpdateProcess(ctx, id, map[string]interface{}{
		"processStatus":  model.ProcessRunning,
		"abnormalReason": "",
	})
}

// Reports

// GenerateReport returns the generated report content.
func (c *APIClient) GenerateReport(ctx context.Context, reportType string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/report/generate", nil, map[string]string{"type": reportType})
	if err != nil {
		return "", err
	}
	var content string
	err = decodeInto(data, &content)
	return content, err
}

func (c *APIClient) ReportHistory(ctx context.Context) ([]model.ReportHistory, error) {
	data, err := c.do(ctx, http.MethodGet, "/report/history", nil, nil)
	if err != nil {
		return nil, err
	}
	reports, _, err := decodeList[model.ReportHistory](data)
	return reports, err
}

func (c *APIClient) DeleteReport(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, "/report/history/"+strconv.Itoa(id), nil, nil)
	return err
}

func (c *APIClient) RenameReport(ctx context.Context, id int, title string) error {
	_, err := c.do(ctx, http.MethodPut, "/report/history/"+strconv.Itoa(id), nil, map[string]string{"title": title})
	return err
}
