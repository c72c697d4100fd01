package server

import "net/http"

func (h *Handler) reboot(w http.ResponseWriter, r *http.Request) {
	if err := h.app.System.Reboot(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "reboot failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebooting"})
}

func (h *Handler) shutdown(w http.ResponseWriter, r *http.Request) {
	if err := h.app.System.Shutdown(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "shutdown failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
}

// getSystemStatus mirrors the subset of the device config the display needs
// to decide its boot screen.
func (h *Handler) getSystemStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := h.app.Device.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"setup":       cfg.Setup,
		"model":       cfg.Model,
		"wallmounted": cfg.Wallmounted,
		"version":     Version,
	})
}
