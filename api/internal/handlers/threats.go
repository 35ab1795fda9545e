package handlers

import (
	"fmt"
	"net"
	"net/http"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"

	"github.com/gorilla/mux"
)

const (
	blockCommand   = "BLOCK_IP"
	unblockCommand = "UNBLOCK_IP"
)

func (h *Handlers) BlockThreat(w http.ResponseWriter, r *http.Request) {
	h.threatCommand(w, r, blockCommand, model.StatusBlocked)
}

func (h *Handlers) UnblockThreat(w http.ResponseWriter, r *http.Request) {
	h.threatCommand(w, r, unblockCommand, model.StatusPending)
}

// threatCommand queues "<verb> <source ip>" for the alert's target host.
func (h *Handlers) threatCommand(w http.ResponseWriter, r *http.Request, verb string, status model.ThreatStatus) {
	id := mux.Vars(r)["id"]
	h.logger.Infof("Threat %s requested for %s", verb, id)

	alert, ok := h.store.GetAlert(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Threat event not found")
		return
	}
	// A missing attack type still leaves usable addresses.
	scope, err := ids.Parse(alert.ImpactScope)
	if scope.SourceIP == ids.UnknownIP || scope.TargetIP == ids.UnknownIP {
		h.logger.Warnf("Cannot parse impact scope of %s: %v", id, err)
		writeError(w, http.StatusBadRequest, "Cannot parse IPs from impact scope")
		return
	}

	command := verb + " " + scope.SourceIP
	if err := h.pushCommand(r, scope.TargetIP, command); err != nil {
		h.logger.Errorf("Failed to queue %q for %s: %v", command, scope.TargetIP, err)
		writeError(w, http.StatusInternalServerError, "Failed to queue command")
		return
	}
	if verb == blockCommand {
		h.store.BlockIP(scope.SourceIP)
	} else {
		h.store.UnblockIP(scope.SourceIP)
	}
	h.store.SetAlertStatus(id, status)
	h.recordAction(verb)

	h.logger.Infof("Queued %q for host %s", command, scope.TargetIP)
	writeSuccess(w, fmt.Sprintf("%s command queued for host %s", verb, scope.TargetIP))
}

func (h *Handlers) ResolveThreat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.store.SetAlertStatus(id, model.StatusResolved); !ok {
		writeError(w, http.StatusNotFound, "Threat event not found")
		return
	}
	h.recordAction("RESOLVE")
	h.logger.Infof("Threat %s marked as resolved", id)
	writeSuccess(w, "Threat marked as resolved")
}

func (h *Handlers) BlockedIPs(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.store.BlockedIPs())
}

func (h *Handlers) ManualBlock(w http.ResponseWriter, r *http.Request) {
	h.manualCommand(w, r, blockCommand)
}

func (h *Handlers) ManualUnblock(w http.ResponseWriter, r *http.Request) {
	h.manualCommand(w, r, unblockCommand)
}

// manualCommand applies a block or unblock to every collection host.
func (h *Handlers) manualCommand(w http.ResponseWriter, r *http.Request, verb string) {
	ip := r.URL.Query().Get("ip")
	if net.ParseIP(ip) == nil {
		writeError(w, http.StatusBadRequest, "Invalid ip parameter")
		return
	}

	if verb == unblockCommand && !h.store.IsBlocked(ip) {
		writeError(w, http.StatusNotFound, "IP is not blocked")
		return
	}

	command := verb + " " + ip
	hosts, _ := h.store.ListHosts(1, int(h.store.HostCount()))
	for _, host := range hosts {
		if err := h.pushCommand(r, host.HostIP, command); err != nil {
			h.logger.Errorf("Failed to queue %q for %s: %v", command, host.HostIP, err)
			writeError(w, http.StatusInternalServerError, "Failed to queue command")
			return
		}
	}
	// The blocked list only changes once every host has the command.
	if verb == blockCommand {
		h.store.BlockIP(ip)
	} else {
		h.store.UnblockIP(ip)
	}
	h.recordAction("MANUAL_" + verb)
	h.logger.Infof("Manual %s for %s queued on %d hosts", verb, ip, len(hosts))
	writeSuccess(w, fmt.Sprintf("%s queued on %d hosts", command, len(hosts)))
}

// NextCommand pops the next queued command for an agent. Data is empty when
// nothing is pending.
func (h *Handlers) NextCommand(w http.ResponseWriter, r *http.Request) {
	hostID := mux.Vars(r)["hostId"]
	cmd, ok, err := h.queue.Pop(r.Context(), hostID)
	if err != nil {
		h.logger.Errorf("Failed to read commands for %s: %v", hostID, err)
		writeError(w, http.StatusInternalServerError, "Failed to read command queue")
		return
	}
	if !ok {
		writeSuccess(w, nil)
		return
	}
	h.logger.Infof("Dispatched %q to agent %s", cmd, hostID)
	writeSuccess(w, cmd)
}

func (h *Handlers) pushCommand(r *http.Request, hostID, command string) error {
	if err := h.queue.Push(r.Context(), hostID, command); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.CommandsQueued.Inc()
	}
	return nil
}

func (h *Handlers) recordAction(action string) {
	if h.metrics != nil {
		h.metrics.ThreatActions.WithLabelValues(action).Inc()
	}
}
