package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/openclock/clockd/pkg/untis"
)

// staleFactor scales the refresh interval into the staleness threshold for
// cache reads: data older than three missed refreshes is flagged stale.
const staleFactor = 3

// lessonsBody is the cache-read response shape for lesson queries.
type lessonsBody struct {
	Lessons []untis.Lesson `json:"lessons"`
	Updated time.Time      `json:"updated,omitzero"`
	Stale   bool           `json:"stale"`
}

func (h *Handler) stale(updated time.Time) bool {
	if updated.IsZero() {
		return true
	}
	return time.Since(updated) > staleFactor*h.app.Config().Untis.RefreshInterval
}

func (h *Handler) writeLessons(w http.ResponseWriter, lessons []untis.Lesson, updated time.Time) {
	if lessons == nil {
		lessons = []untis.Lesson{}
	}
	writeJSON(w, http.StatusOK, lessonsBody{
		Lessons: lessons,
		Updated: updated,
		Stale:   h.stale(updated),
	})
}

func (h *Handler) setUntisCreds(w http.ResponseWriter, r *http.Request) {
	var creds untis.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed credentials payload")
		return
	}

	if err := h.app.SetUntisCredentials(r.Context(), creds); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (h *Handler) getTimetable(w http.ResponseWriter, r *http.Request) {
	days := h.app.Config().Untis.DayRange
	if v := r.URL.Query().Get("dayRange"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "dayRange must be a positive integer")
			return
		}
		days = n
	}

	_, updated := h.app.Cache.Lessons()
	now := time.Now()
	h.writeLessons(w, h.app.Cache.LessonsBetween(now, now.AddDate(0, 0, days)), updated)
}

func (h *Handler) getHolidays(w http.ResponseWriter, _ *http.Request) {
	holidays, updated := h.app.Cache.Holidays()
	if holidays == nil {
		holidays = []untis.Holiday{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"holidays": holidays,
		"updated":  updated,
		"stale":    h.stale(updated),
	})
}

func (h *Handler) getCurrentLesson(w http.ResponseWriter, _ *http.Request) {
	lesson, ok := h.app.Cache.CurrentLesson(time.Now())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"lesson": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lesson": lesson})
}

func (h *Handler) getLessonsToday(w http.ResponseWriter, _ *http.Request) {
	_, updated := h.app.Cache.Lessons()
	h.writeLessons(w, h.app.Cache.LessonsOn(time.Now()), updated)
}

// getLessonsWeek returns the lessons of the current Monday-to-Sunday week.
func (h *Handler) getLessonsWeek(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	weekday := (int(now.Weekday()) + 6) % 7 // Monday = 0
	y, m, d := now.AddDate(0, 0, -weekday).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	_, updated := h.app.Cache.Lessons()
	h.writeLessons(w, h.app.Cache.LessonsBetween(start, start.AddDate(0, 0, 7)), updated)
}

// getNextEvent reports the next upcoming holiday.
func (h *Handler) getNextEvent(w http.ResponseWriter, _ *http.Request) {
	holiday, ok := h.app.Cache.NextHoliday(time.Now())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"type": ""})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":  "holiday",
		"name":  holiday.Name,
		"start": holiday.Start,
		"end":   holiday.End,
	})
}

func (h *Handler) getUntisStatus(w http.ResponseWriter, _ *http.Request) {
	lessons, holidays := h.app.Cache.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"session":           h.app.Untis.Status(),
		"timetable_entries": lessons,
		"holidays":          holidays,
	})
}

func (h *Handler) getLoginName(w http.ResponseWriter, _ *http.Request) {
	name, ok := h.app.UntisLoginName()
	if !ok {
		writeError(w, http.StatusConflict, "no credentials configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": name})
}

func (h *Handler) untisLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.ClearUntisCredentials(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "could not clear credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
