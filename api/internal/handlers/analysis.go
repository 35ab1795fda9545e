package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sentinel-guard/api/internal/storage"
	"sentinel-guard/internal/model"

	"github.com/gorilla/mux"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
)

// Alerts handlers
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := pageParams(r)
	alerts, total := h.store.ListAlerts(pageNum, pageSize)
	writePage(w, total, alerts)
}

func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.store.GetAlert(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	writeSuccess(w, alert)
}

// ReceiveAlert stores an alert posted by an IDS sensor and pushes it to
// stream subscribers.
func (h *Handlers) ReceiveAlert(w http.ResponseWriter, r *http.Request) {
	var alert model.ThreatAlert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stored := h.store.Ingest(alert)
	h.metrics.ObserveAlert(stored)
	if h.hub != nil {
		h.hub.Broadcast(stored)
	}
	h.logger.Infof("Received IDS alert %s: %s", stored.ThreatID, stored.ImpactScope)
	writeSuccess(w, "Alert received and processed")
}

func (h *Handlers) Traffic(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := pageParams(r)
	stats, total := h.store.ListTraffic(pageNum, pageSize)
	writePage(w, total, stats)
}

func (h *Handlers) Trend(w http.ResponseWriter, r *http.Request) {
	rangeName := r.URL.Query().Get("range")
	if rangeName == "" {
		rangeName = "24h"
	}
	points, err := h.trend(r.Context(), rangeName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, points)
}

// trend prefers Prometheus when configured and falls back to the store.
func (h *Handlers) trend(ctx context.Context, rangeName string) ([]model.TrendPoint, error) {
	if h.prom != nil {
		points, err := h.prometheusTrend(ctx, rangeName)
		if err == nil {
			return points, nil
		}
		if errors.Is(err, storage.ErrUnknownRange) {
			return nil, err
		}
		h.logger.Warnf("Prometheus trend failed, using stored alerts: %v", err)
	}
	return h.store.Trend(rangeName)
}

// prometheusTrend sums increase() of the ingest counter per bucket. Each
// sample is taken at the end of its bucket and labelled with the start.
func (h *Handlers) prometheusTrend(ctx context.Context, rangeName string) ([]model.TrendPoint, error) {
	now := time.Now()
	var (
		start, end time.Time
		step       time.Duration
		window     string
		layout     string
	)
	switch rangeName {
	case "24h":
		step, window, layout = time.Hour, "1h", "2006-01-02 15:00"
		end = now.Truncate(time.Hour)
		start = end.Add(-23 * time.Hour)
	case "7d", "30d":
		days := 7
		if rangeName == "30d" {
			days = 30
		}
		step, window, layout = 24*time.Hour, "1d", "2006-01-02"
		y, m, d := now.Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		start = end.AddDate(0, 0, -(days - 1))
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownRange, rangeName)
	}

	query := fmt.Sprintf("sum(increase(%s[%s]))", alertsIngestedMetric, window)
	timeout := time.Duration(h.config.Prometheus.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	points, err := h.prom.SumRange(ctx, query, v1.Range{Start: start.Add(step), End: end.Add(step), Step: step}, model.TimeLayout, timeout)
	if err != nil {
		return nil, err
	}
	for i := range points {
		t, err := time.ParseInLocation(model.TimeLayout, points[i].Time, time.Local)
		if err != nil {
			continue
		}
		points[i].Time = t.Add(-step).Format(layout)
	}
	return points, nil
}

func (h *Handlers) AITrace(w http.ResponseWriter, r *http.Request) {
	var req model.TraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.logger.Infof("AI trace requested: %q", req.Question)
	writeSuccess(w, h.reports.Trace(r.Context(), req))
}

// Dashboard handlers
func (h *Handlers) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	var today int64
	if points, err := h.trend(r.Context(), "24h"); err == nil {
		for _, p := range points {
			today += p.Count
		}
	}

	score := 100 - 5*today
	if score < 0 {
		score = 0
	}

	status := "offline"
	if (h.hub != nil && h.hub.AuthenticatedCount() > 0) || (h.gen != nil && h.gen.Running()) {
		status = "online"
	}

	writeSuccess(w, model.DashboardSummary{
		SecurityScore:     int(score),
		TotalAttacksToday: today,
		ActiveThreats:     h.store.ActiveThreats(),
		ProtectedAssets:   h.store.HostCount(),
		IDSStatus:         status,
	})
}

func (h *Handlers) TracingResults(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := pageParams(r)
	results, total := h.store.ListTracing(pageNum, pageSize)
	writePage(w, total, results)
}
