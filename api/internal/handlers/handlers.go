package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sentinel-guard/api/internal/auth"
	"sentinel-guard/api/internal/hoststat"
	"sentinel-guard/api/internal/report"
	"sentinel-guard/api/internal/storage"
	"sentinel-guard/internal/model"
	"sentinel-guard/internal/utils"

	"github.com/gorilla/mux"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/sirupsen/logrus"
)

// Broadcaster pushes alerts to stream subscribers.
type Broadcaster interface {
	Broadcast(alert model.ThreatAlert)
	AuthenticatedCount() int
}

// GeneratorState reports whether the mock alert generator is active.
type GeneratorState interface {
	Running() bool
}

// TrendSource answers trend range queries from Prometheus.
type TrendSource interface {
	SumRange(ctx context.Context, query string, r v1.Range, layout string, timeout time.Duration) ([]model.TrendPoint, error)
}

// Deps are the collaborators the handlers need. Generator, Prometheus and
// Sampler may be nil.
type Deps struct {
	Store      *storage.Storage
	Queue      storage.CommandQueue
	Auth       *auth.Authenticator
	Hub        Broadcaster
	Generator  GeneratorState
	Reports    *report.Service
	Sampler    *hoststat.Sampler
	Prometheus TrendSource
	Metrics    *Metrics
	Config     *utils.Config
	Logger     *logrus.Logger
}

type Handlers struct {
	store   *storage.Storage
	queue   storage.CommandQueue
	auth    *auth.Authenticator
	hub     Broadcaster
	gen     GeneratorState
	reports *report.Service
	sampler *hoststat.Sampler
	prom    TrendSource
	metrics *Metrics
	config  *utils.Config
	logger  *logrus.Logger
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		store:   d.Store,
		queue:   d.Queue,
		auth:    d.Auth,
		hub:     d.Hub,
		gen:     d.Generator,
		reports: d.Reports,
		sampler: d.Sampler,
		prom:    d.Prometheus,
		metrics: d.Metrics,
		config:  d.Config,
		logger:  d.Logger,
	}
}

// Register mounts every API route on r. Everything except login requires a
// bearer token.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods("POST")

	api := r.NewRoute().Subrouter()
	api.Use(h.auth.Middleware(func(w http.ResponseWriter, message string) {
		writeError(w, http.StatusUnauthorized, message)
	}))

	api.HandleFunc("/org/info", h.ListOrgs).Methods("GET")
	api.HandleFunc("/org/info", h.CreateOrg).Methods("POST")
	api.HandleFunc("/org/info/{id:[0-9]+}", h.UpdateOrg).Methods("PUT")
	api.HandleFunc("/org/info/{id:[0-9]+}", h.DeleteOrg).Methods("DELETE")

	api.HandleFunc("/threats/blocked-ips", h.BlockedIPs).Methods("GET")
	api.HandleFunc("/threats/manual-block", h.ManualBlock).Methods("POST")
	api.HandleFunc("/threats/manual-unblock", h.ManualUnblock).Methods("POST")
	api.HandleFunc("/threats/{id}/block", h.BlockThreat).Methods("POST")
	api.HandleFunc("/threats/{id}/unblock", h.UnblockThreat).Methods("POST")
	api.HandleFunc("/threats/{id}/resolve", h.ResolveThreat).Methods("POST")

	api.HandleFunc("/analysis/alert", h.ListAlerts).Methods("GET")
	api.HandleFunc("/analysis/alert", h.ReceiveAlert).Methods("POST")
	api.HandleFunc("/analysis/alert/{id}", h.GetAlert).Methods("GET")
	api.HandleFunc("/analysis/traffic", h.Traffic).Methods("GET")
	api.HandleFunc("/analysis/trend", h.Trend).Methods("GET")
	api.HandleFunc("/analysis/ai-trace", h.AITrace).Methods("POST")

	api.HandleFunc("/collection/host", h.ListHosts).Methods("GET")
	api.HandleFunc("/collection/host", h.CreateHost).Methods("POST")
	api.HandleFunc("/collection/host/{id:[0-9]+}", h.UpdateHost).Methods("PUT")
	api.HandleFunc("/collection/host/{id:[0-9]+}", h.DeleteHost).Methods("DELETE")

	api.HandleFunc("/dashboard/summary", h.DashboardSummary).Methods("GET")
	api.HandleFunc("/tracing/result", h.TracingResults).Methods("GET")

	api.HandleFunc("/host/monitor", h.HostMonitor).Methods("GET")
	api.HandleFunc("/host/monitor/realtime/{hostId}", h.HostRealtime).Methods("GET")
	api.HandleFunc("/process/monitor", h.Processes).Methods("GET")
	api.HandleFunc("/process/monitor/{id:[0-9]+}", h.UpdateProcess).Methods("PUT")

	api.HandleFunc("/report/generate", h.GenerateReport).Methods("POST")
	api.HandleFunc("/report/history", h.ReportHistory).Methods("GET")
	api.HandleFunc("/report/history/{id:[0-9]+}", h.RenameReport).Methods("PUT")
	api.HandleFunc("/report/history/{id:[0-9]+}", h.DeleteReport).Methods("DELETE")

	api.HandleFunc("/agent/commands/{hostId}", h.NextCommand).Methods("GET")
}

// Auth handlers
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := h.auth.Login(creds.Username, creds.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		h.logger.Warnf("Failed login for %q from %s", creds.Username, r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		h.logger.Errorf("Login failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.logger.Infof("User %s logged in", user.Username)
	writeSuccess(w, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// Organization handlers
func (h *Handlers) ListOrgs(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := pageParams(r)
	orgs, total := h.store.ListOrgs(pageNum, pageSize)
	writePage(w, total, orgs)
}

func (h *Handlers) CreateOrg(w http.ResponseWriter, r *http.Request) {
	var org model.OrgInfo
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if org.OrgName == "" {
		writeError(w, http.StatusBadRequest, "orgName is required")
		return
	}
	writeSuccess(w, h.store.CreateOrg(org))
}

func (h *Handlers) UpdateOrg(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	var org model.OrgInfo
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	updated, ok := h.store.UpdateOrg(id, org)
	if !ok {
		writeError(w, http.StatusNotFound, "Organization not found")
		return
	}
	writeSuccess(w, updated)
}

func (h *Handlers) DeleteOrg(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if !h.store.DeleteOrg(id) {
		writeError(w, http.StatusNotFound, "Organization not found")
		return
	}
	writeSuccess(w, nil)
}

// Helper functions

// response is the {code, msg, data} envelope every endpoint answers with.
type response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

type page struct {
	Total   int         `json:"total"`
	Records interface{} `json:"records"`
}

func pageParams(r *http.Request) (int, int) {
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("pageNum"))
	if pageNum < 1 {
		pageNum = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 1000 {
		pageSize = 1000
	}
	return pageNum, pageSize
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, response{Code: 1, Msg: "success", Data: data})
}

func writePage(w http.ResponseWriter, total int, records interface{}) {
	writeSuccess(w, page{Total: total, Records: records})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Code: 0, Msg: message})
}
