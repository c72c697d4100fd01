package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openclock/clockd/pkg/clock"
	"github.com/openclock/clockd/pkg/session"
	"github.com/openclock/clockd/pkg/untis"
)

// Handler routes the API groups onto the App.
type Handler struct {
	mux *http.ServeMux
	app *clock.App
}

// NewHandler creates the API handler for app.
func NewHandler(app *clock.App) *Handler {
	h := &Handler{
		mux: http.NewServeMux(),
		app: app,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /untis/set-creds", h.setUntisCreds)
	h.mux.HandleFunc("GET /untis/timetable", h.getTimetable)
	h.mux.HandleFunc("GET /untis/holidays", h.getHolidays)
	h.mux.HandleFunc("GET /untis/current-lesson", h.getCurrentLesson)
	h.mux.HandleFunc("GET /untis/lessons-today", h.getLessonsToday)
	h.mux.HandleFunc("GET /untis/lessons-week", h.getLessonsWeek)
	h.mux.HandleFunc("GET /untis/next-event", h.getNextEvent)
	h.mux.HandleFunc("GET /untis/status", h.getUntisStatus)
	h.mux.HandleFunc("GET /untis/login-name", h.getLoginName)
	h.mux.HandleFunc("POST /untis/logout", h.untisLogout)

	h.mux.HandleFunc("GET /microsoft/login", h.microsoftLogin)
	h.mux.HandleFunc("GET /microsoft/accounts", h.getAccounts)
	h.mux.HandleFunc("GET /microsoft/messages", h.getMessages)
	h.mux.HandleFunc("GET /microsoft/status", h.getMicrosoftStatus)
	h.mux.HandleFunc("POST /microsoft/logout", h.microsoftLogout)

	h.mux.HandleFunc("GET /config", h.getConfig)
	h.mux.HandleFunc("POST /config", h.replaceConfig)
	h.mux.HandleFunc("PATCH /config/debug", h.patchDebug)
	h.mux.HandleFunc("PATCH /config/hostname", h.patchHostname)
	h.mux.HandleFunc("PATCH /config/timezone", h.patchTimezone)
	h.mux.HandleFunc("POST /config/reset", h.resetConfig)

	h.mux.HandleFunc("POST /system/reboot", h.reboot)
	h.mux.HandleFunc("POST /system/shutdown", h.shutdown)
	h.mux.HandleFunc("GET /system/status", h.getSystemStatus)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the session error taxonomy onto status codes:
// missing configuration is a conflict the caller resolves by configuring,
// rejected credentials are 401, everything else is a bad gateway.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *untis.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	switch session.Classify(err) {
	case session.KindNotConfigured:
		writeError(w, http.StatusConflict, "service not configured")
	case session.KindInvalidCredentials:
		writeError(w, http.StatusUnauthorized, "credentials rejected by provider")
	default:
		writeError(w, http.StatusBadGateway, "provider unavailable")
	}
}
