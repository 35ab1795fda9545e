package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"sentinel-guard/internal/model"

	"github.com/gorilla/mux"
)

// Collection host handlers
func (h *Handlers) ListHosts(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := pageParams(r)
	hosts, total := h.store.ListHosts(pageNum, pageSize)
	writePage(w, total, hosts)
}

// CreateHost answers with the new host's id.
func (h *Handlers) CreateHost(w http.ResponseWriter, r *http.Request) {
	var host model.HostCollectionConfig
	if err := json.NewDecoder(r.Body).Decode(&host); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if net.ParseIP(host.HostIP) == nil {
		writeError(w, http.StatusBadRequest, "Invalid hostIp")
		return
	}
	if host.CollectFreq <= 0 {
		host.CollectFreq = 60
	}

	created := h.store.CreateHost(host)
	h.logger.Infof("Collection host %s added (id %d)", created.HostIP, created.ID)
	writeSuccess(w, created.ID)
}

func (h *Handlers) UpdateHost(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	var update model.HostCollectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if update.HostIP != nil && net.ParseIP(*update.HostIP) == nil {
		writeError(w, http.StatusBadRequest, "Invalid hostIp")
		return
	}
	if update.CollectStatus != nil && model.CollectStatusName(*update.CollectStatus) == "unknown" {
		writeError(w, http.StatusBadRequest, "Invalid collectStatus")
		return
	}

	updated, ok := h.store.UpdateHost(id, update)
	if !ok {
		writeError(w, http.StatusNotFound, "Host not found")
		return
	}
	writeSuccess(w, updated)
}

func (h *Handlers) DeleteHost(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if !h.store.DeleteHost(id) {
		writeError(w, http.StatusNotFound, "Host not found")
		return
	}
	writeSuccess(w, nil)
}

// Host monitoring handlers
func (h *Handlers) HostMonitor(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := pageParams(r)
	statuses, total := h.store.ListHostStatus(pageNum, pageSize)
	writePage(w, total, statuses)
}

// HostRealtime samples this machine live and serves the last stored
// snapshot for every other host.
func (h *Handlers) HostRealtime(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["hostId"]

	if h.sampler != nil && h.sampler.IsLocal(hostID) {
		status, err := h.sampler.Sample(r.Context(), hostID)
		if err != nil {
			h.logger.Errorf("Failed to sample local host: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to sample host")
			return
		}
		h.store.PutHostStatus(status)
		status, _ = h.store.HostStatus(hostID)
		writeSuccess(w, status)
		return
	}

	status, ok := h.store.HostStatus(hostID)
	if !ok {
		writeError(w, http.StatusNotFound, "Host not found")
		return
	}
	writeSuccess(w, status)
}

func (h *Handlers) Processes(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := pageParams(r)
	procs, total := h.store.ListProcesses(pageNum, pageSize)
	writePage(w, total, procs)
}

func (h *Handlers) UpdateProcess(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	proc, ok, err := h.store.UpdateProcess(id, fields)
	if !ok {
		writeError(w, http.StatusNotFound, "Process not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Infof("Process %d (%s) set to %s", proc.PID, proc.Name, proc.Status)
	writeSuccess(w, proc)
}

// Report handlers
func (h *Handlers) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.reports.Generate(r.Context(), req.Type)
	if err != nil {
		h.logger.Errorf("Report generation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}
	writeSuccess(w, saved.Content)
}

func (h *Handlers) ReportHistory(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.store.ListReports())
}

func (h *Handlers) RenameReport(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}
	if !h.store.RenameReport(id, req.Title) {
		writeError(w, http.StatusNotFound, "Report not found")
		return
	}
	writeSuccess(w, nil)
}

func (h *Handlers) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if !h.store.DeleteReport(id) {
		writeError(w, http.StatusNotFound, "Report not found")
		return
	}
	writeSuccess(w, nil)
}
