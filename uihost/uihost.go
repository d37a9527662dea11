// Package uihost is a local simulator of the mobile UI surface host: it
// implements surface.Host over a small HTTP API, standing in for the real
// on-device overlay/activity layer during integration tests and local
// development (adapted from fluxforge's agent HTTP server, which plays the
// same "receive a command, act on it asynchronously" role for job execution).
package uihost

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/mindfence/decisioncore/coordinator"
	"github.com/mindfence/decisioncore/surface"
)

// Host simulates the device's UI surface. Wake requests are recorded and
// exposed over HTTP so a test harness or a developer's browser can drive
// the simulated user actions (open/destroy the surface, confirm/decline a
// Quick Task, pick a post-Quick-Task choice) back into the Coordinator.
type Host struct {
	mu      sync.Mutex
	pending []surface.WakeCommand
	busy    bool

	bridge *surface.Bridge
	coord  *coordinator.Coordinator
}

// New returns a Host not yet wired to a surface.Bridge or Coordinator.
func New() *Host {
	return &Host{}
}

// Attach wires the Host to the Bridge whose Wake calls it will serve.
func (h *Host) Attach(bridge *surface.Bridge) {
	h.bridge = bridge
}

// Wire connects the simulated UI's action endpoints to the Coordinator.
func (h *Host) Wire(coord *coordinator.Coordinator) {
	h.coord = coord
}

// Wake implements surface.Host. It records the command for inspection and
// simulated delivery; a real device would push this to the OS via an
// overlay window or full-screen activity intent.
func (h *Host) Wake(cmd surface.WakeCommand) error {
	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		return fmt.Errorf("uihost: surface already busy")
	}
	h.busy = true
	h.pending = append(h.pending, cmd)
	h.mu.Unlock()

	log.Printf("uihost: wake app=%s reason=%s session=%s instance=%d", cmd.App, cmd.WakeReason, cmd.SessionID, cmd.InstanceID)
	return nil
}

func (h *Host) clearBusy() {
	h.mu.Lock()
	h.busy = false
	h.mu.Unlock()
}

// ServeMux returns an http.Handler exposing the simulated surface's
// lifecycle and user-choice endpoints, for a developer or test harness to
// drive manually.
func (h *Host) ServeMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/surface/open", h.handleOpen)
	mux.HandleFunc("/surface/destroy", h.handleDestroy)
	mux.HandleFunc("/quicktask/confirm", h.handleQuickTaskConfirm)
	mux.HandleFunc("/quicktask/decline", h.handleQuickTaskDecline)
	mux.HandleFunc("/quicktask/finish", h.handleQuickTaskFinish)
	mux.HandleFunc("/postchoice", h.handlePostChoice)
	return mux
}

type lifecycleRequest struct {
	InstanceID int64  `json:"instance_id"`
	App        string `json:"app"`
	SessionID  string `json:"session_id"`
	WakeReason string `json:"wake_reason"`
}

func (h *Host) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.bridge.OnOpened(surface.OpenedEvent{
		InstanceID: req.InstanceID,
		App:        req.App,
		SessionID:  req.SessionID,
	})
	h.coord.OnSurfaceOpened(req.App, req.SessionID, req.WakeReason, req.InstanceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Host) handleDestroy(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.clearBusy()
	h.bridge.OnDestroyed(surface.DestroyedEvent{
		InstanceID: req.InstanceID,
	})
	h.coord.OnSurfaceDestroyed(req.App, req.SessionID, req.WakeReason, req.InstanceID)
	w.WriteHeader(http.StatusNoContent)
}

type quickTaskRequest struct {
	App       string `json:"app"`
	SessionID string `json:"session_id"`
}

func (h *Host) handleQuickTaskConfirm(w http.ResponseWriter, r *http.Request) {
	var req quickTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.coord.OnQuickTaskConfirmed(req.App, req.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Host) handleQuickTaskDecline(w http.ResponseWriter, r *http.Request) {
	var req quickTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.coord.OnQuickTaskDeclined(req.App, req.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Host) handleQuickTaskFinish(w http.ResponseWriter, r *http.Request) {
	var req quickTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.coord.OnQuickTaskFinished(req.App, req.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

type postChoiceRequest struct {
	App       string `json:"app"`
	SessionID string `json:"session_id"`
	Continue  bool   `json:"continue"`
}

func (h *Host) handlePostChoice(w http.ResponseWriter, r *http.Request) {
	var req postChoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	choice := coordinator.Quit
	if req.Continue {
		choice = coordinator.Continue
	}
	h.coord.OnPostQuickTaskChoice(req.App, req.SessionID, choice)
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
