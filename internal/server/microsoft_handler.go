package server

import (
	"net/http"

	"github.com/openclock/clockd/pkg/msauth"
)

// microsoftLogin starts a device flow sign-in. The response carries the
// code the user types at the verification URI; completion happens in the
// background and shows up on /microsoft/status.
func (h *Handler) microsoftLogin(w http.ResponseWriter, r *http.Request) {
	flow, err := h.app.StartMicrosoftLogin(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

func (h *Handler) getAccounts(w http.ResponseWriter, _ *http.Request) {
	accounts := h.app.MicrosoftAccounts()
	if accounts == nil {
		accounts = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) getMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.app.MicrosoftMessages(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []msauth.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *Handler) getMicrosoftStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  h.app.Microsoft.Status(),
		"accounts": len(h.app.MicrosoftAccounts()),
	})
}

func (h *Handler) microsoftLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.MicrosoftLogout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "could not clear token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
