package server

import (
	"encoding/json"
	"net/http"

	"github.com/openclock/clockd/pkg/device"
)

func (h *Handler) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Device.Config())
}

func (h *Handler) replaceConfig(w http.ResponseWriter, r *http.Request) {
	var cfg device.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "malformed config payload")
		return
	}

	if err := h.app.Device.Replace(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) patchDebug(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Debug bool `json:"debug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	cfg, err := h.app.Device.Mutate(func(c *device.Config) { c.Debug = body.Debug })
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// patchHostname persists the new hostname, then applies it to the OS. A
// failing hostnamectl is logged by the runner but does not undo the
// persisted setting; it re-applies on next boot.
func (h *Handler) patchHostname(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Hostname string `json:"hostname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Hostname == "" {
		writeError(w, http.StatusBadRequest, "hostname required")
		return
	}

	cfg, err := h.app.Device.Mutate(func(c *device.Config) { c.Hostname = body.Hostname })
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.app.System.SetHostname(r.Context(), body.Hostname); err != nil {
		writeError(w, http.StatusInternalServerError, "hostname saved but not applied")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) patchTimezone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Timezone == "" {
		writeError(w, http.StatusBadRequest, "timezone required")
		return
	}

	cfg, err := h.app.Device.Mutate(func(c *device.Config) { c.Timezone = body.Timezone })
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.app.System.SetTimezone(r.Context(), body.Timezone); err != nil {
		writeError(w, http.StatusInternalServerError, "timezone saved but not applied")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) resetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := h.app.Device.Reset()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not reset config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
